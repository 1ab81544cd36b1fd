// Package store persists analysis results, benchmark records, and weekly
// scorecards. Two backends: PostgreSQL for deployments, SQLite for local
// runs. Both tolerate a schema that lags the code: optional columns missing
// from the table are stripped and the write retried once, with the negative
// result cached for a bounded time.
package store

import (
	"context"
	"time"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	Category string         `json:"category,omitempty"`
	Decision model.Decision `json:"decision,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the appraisal engine.
type Store interface {
	// Analyses
	SaveAnalysis(ctx context.Context, result *model.AnalysisResult) error
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisResult, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisResult, error)

	// Benchmarks
	SaveBenchmarkRecords(ctx context.Context, records []model.BenchmarkRecord) error
	ListBenchmarkRecords(ctx context.Context, provider string, start, end time.Time) ([]model.BenchmarkRecord, error)
	ListBenchmarkProviders(ctx context.Context, start, end time.Time) ([]string, error)

	// Scorecards
	SaveScorecards(ctx context.Context, cards []model.WeeklyScorecard) error
	ListScorecards(ctx context.Context, weekStart time.Time) ([]model.WeeklyScorecard, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// optionalAnalysisColumns are columns newer than the oldest supported
// schema. A write that fails on one of these strips it and retries once.
var optionalAnalysisColumns = map[string]bool{
	"market_confidence": true,
	"detection":         true,
}
