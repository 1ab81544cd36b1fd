package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/db"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	caps    *CapabilityCache
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_analysis":         `SELECT id, item_name, category, request, detection, evidence, votes, consensus, created_at FROM analyses WHERE id = $1`,
	"list_bench_records":   `SELECT id, analysis_id, provider, category, value, decision, confidence, ground_truth, ground_truth_source, abs_error, pct_error, direction, decision_correct, latency_ms, scored_at FROM benchmark_records WHERE provider = $1 AND scored_at >= $2 AND scored_at < $3`,
	"list_bench_providers": `SELECT DISTINCT provider FROM benchmark_records WHERE scored_at >= $1 AND scored_at < $2 ORDER BY provider`,
	"list_scorecards":      `SELECT card FROM weekly_scorecards WHERE week_start = $1 ORDER BY provider`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, caps *CapabilityCache) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, caps: caps, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool, caps *CapabilityCache) *PostgresStore {
	return &PostgresStore{pool: pool, caps: caps}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                TEXT PRIMARY KEY,
	item_name         TEXT NOT NULL,
	category          TEXT NOT NULL,
	request           JSONB NOT NULL,
	detection         JSONB,
	evidence          JSONB,
	votes             JSONB NOT NULL,
	consensus         JSONB NOT NULL,
	decision          TEXT NOT NULL,
	estimated_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality           TEXT NOT NULL,
	market_confidence DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);

CREATE TABLE IF NOT EXISTS benchmark_records (
	id                  TEXT PRIMARY KEY,
	analysis_id         TEXT NOT NULL,
	provider            TEXT NOT NULL,
	category            TEXT NOT NULL,
	value               DOUBLE PRECISION NOT NULL,
	decision            TEXT NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL,
	ground_truth        DOUBLE PRECISION NOT NULL,
	ground_truth_source TEXT NOT NULL,
	abs_error           DOUBLE PRECISION NOT NULL,
	pct_error           DOUBLE PRECISION NOT NULL,
	direction           TEXT NOT NULL,
	decision_correct    BOOLEAN NOT NULL,
	latency_ms          BIGINT NOT NULL,
	scored_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bench_provider_scored ON benchmark_records(provider, scored_at);
CREATE INDEX IF NOT EXISTS idx_bench_analysis ON benchmark_records(analysis_id);

CREATE TABLE IF NOT EXISTS weekly_scorecards (
	provider   TEXT NOT NULL,
	week_start DATE NOT NULL,
	card       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, week_start)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// analysisColumn is one column of an analysis insert, paired with its value.
type analysisColumn struct {
	name  string
	value any
}

func (s *PostgresStore) analysisColumns(result *model.AnalysisResult) ([]analysisColumn, error) {
	requestJSON, err := json.Marshal(result.Request)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}
	votesJSON, err := json.Marshal(result.Votes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal votes")
	}
	consensusJSON, err := json.Marshal(result.Consensus)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal consensus")
	}

	cols := []analysisColumn{
		{"id", result.ID},
		{"item_name", result.Request.ItemName},
		{"category", result.Detection.Category},
		{"request", requestJSON},
		{"votes", votesJSON},
		{"consensus", consensusJSON},
		{"decision", string(result.Consensus.Decision)},
		{"estimated_value", result.Consensus.EstimatedValue},
		{"quality", string(result.Consensus.Quality)},
		{"created_at", result.CreatedAt},
	}

	if result.Evidence != nil {
		evidenceJSON, err := json.Marshal(result.Evidence)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal evidence")
		}
		cols = append(cols,
			analysisColumn{"evidence", evidenceJSON},
			analysisColumn{"market_confidence", result.Evidence.MarketConfidence})
	}

	detectionJSON, err := json.Marshal(result.Detection)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal detection")
	}
	cols = append(cols, analysisColumn{"detection", detectionJSON})

	return cols, nil
}

// SaveAnalysis writes one analysis. Optional columns missing from the live
// schema are stripped exactly once and the write retried; the negative
// result is cached so later writes skip the doomed attempt.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, result *model.AnalysisResult) error {
	cols, err := s.analysisColumns(result)
	if err != nil {
		return err
	}
	cols = s.filterCached(cols)

	err = s.insertAnalysis(ctx, cols)
	if column, ok := undefinedColumn(err); ok && optionalAnalysisColumns[column] {
		s.caps.MarkUnsupported(column)
		zap.L().Warn("postgres: schema missing optional column, retrying without it",
			zap.String("column", column))
		err = s.insertAnalysis(ctx, dropColumn(cols, column))
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: save analysis %s", result.ID)
	}
	return nil
}

func (s *PostgresStore) filterCached(cols []analysisColumn) []analysisColumn {
	out := cols[:0]
	for _, c := range cols {
		if optionalAnalysisColumns[c.name] && s.caps != nil && s.caps.Unsupported(c.name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func dropColumn(cols []analysisColumn, name string) []analysisColumn {
	out := make([]analysisColumn, 0, len(cols))
	for _, c := range cols {
		if c.name != name {
			out = append(out, c)
		}
	}
	return out
}

func (s *PostgresStore) insertAnalysis(ctx context.Context, cols []analysisColumn) error {
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.value
	}

	sql := fmt.Sprintf("INSERT INTO analyses (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

var undefinedColumnRe = regexp.MustCompile(`column "([^"]+)"`)

// undefinedColumn extracts the offending column from a 42703 error.
func undefinedColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42703" {
		return "", false
	}
	m := undefinedColumnRe.FindStringSubmatch(pgErr.Message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, item_name, category, request, detection, evidence, votes, consensus, created_at FROM analyses WHERE id = $1`,
		id)
	result, err := scanAnalysis(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return result, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisResult, error) {
	query := `SELECT id, item_name, category, request, detection, evidence, votes, consensus, created_at FROM analyses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Decision != "" {
		query += fmt.Sprintf(` AND decision = $%d`, argIdx)
		args = append(args, string(filter.Decision))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		result, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		results = append(results, *result)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func scanAnalysis(row pgx.Row) (*model.AnalysisResult, error) {
	var r model.AnalysisResult
	var itemName, category string
	var requestJSON, votesJSON, consensusJSON []byte
	var detectionJSON, evidenceJSON *[]byte

	if err := row.Scan(&r.ID, &itemName, &category, &requestJSON, &detectionJSON,
		&evidenceJSON, &votesJSON, &consensusJSON, &r.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(requestJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "unmarshal request")
	}
	if err := json.Unmarshal(votesJSON, &r.Votes); err != nil {
		return nil, eris.Wrap(err, "unmarshal votes")
	}
	if err := json.Unmarshal(consensusJSON, &r.Consensus); err != nil {
		return nil, eris.Wrap(err, "unmarshal consensus")
	}
	if detectionJSON != nil {
		if err := json.Unmarshal(*detectionJSON, &r.Detection); err != nil {
			return nil, eris.Wrap(err, "unmarshal detection")
		}
	}
	if evidenceJSON != nil {
		r.Evidence = &model.EvidenceSummary{}
		if err := json.Unmarshal(*evidenceJSON, r.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	return &r, nil
}

var benchmarkColumns = []string{
	"id", "analysis_id", "provider", "category", "value", "decision",
	"confidence", "ground_truth", "ground_truth_source", "abs_error",
	"pct_error", "direction", "decision_correct", "latency_ms", "scored_at",
}

func (s *PostgresStore) SaveBenchmarkRecords(ctx context.Context, records []model.BenchmarkRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.ID, r.AnalysisID, r.Provider, r.Category, r.Value, string(r.Decision),
			r.Confidence, r.GroundTruth, r.GroundTruthSource, r.AbsError,
			r.PctError, string(r.Direction), r.DecisionCorrect,
			r.Latency.Milliseconds(), r.ScoredAt,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "benchmark_records", benchmarkColumns, rows)
	return eris.Wrap(err, "postgres: save benchmark records")
}

func (s *PostgresStore) ListBenchmarkRecords(ctx context.Context, provider string, start, end time.Time) ([]model.BenchmarkRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, analysis_id, provider, category, value, decision, confidence, ground_truth, ground_truth_source, abs_error, pct_error, direction, decision_correct, latency_ms, scored_at FROM benchmark_records WHERE provider = $1 AND scored_at >= $2 AND scored_at < $3`,
		provider, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list benchmark records")
	}
	defer rows.Close()

	var records []model.BenchmarkRecord
	for rows.Next() {
		var r model.BenchmarkRecord
		var decision, direction string
		var latencyMs int64
		if err := rows.Scan(&r.ID, &r.AnalysisID, &r.Provider, &r.Category, &r.Value,
			&decision, &r.Confidence, &r.GroundTruth, &r.GroundTruthSource,
			&r.AbsError, &r.PctError, &direction, &r.DecisionCorrect,
			&latencyMs, &r.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan benchmark record")
		}
		r.Decision = model.Decision(decision)
		r.Direction = model.ErrorDirection(direction)
		r.Latency = time.Duration(latencyMs) * time.Millisecond
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list benchmark records iterate")
}

func (s *PostgresStore) ListBenchmarkProviders(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT provider FROM benchmark_records WHERE scored_at >= $1 AND scored_at < $2 ORDER BY provider`,
		start, end)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list benchmark providers")
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		providers = append(providers, p)
	}
	return providers, eris.Wrap(rows.Err(), "postgres: list benchmark providers iterate")
}

func (s *PostgresStore) SaveScorecards(ctx context.Context, cards []model.WeeklyScorecard) error {
	if len(cards) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(cards))
	for _, c := range cards {
		cardJSON, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal scorecard")
		}
		rows = append(rows, []any{c.Provider, c.WeekStart, cardJSON, time.Now().UTC()})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "weekly_scorecards",
		Columns:      []string{"provider", "week_start", "card", "updated_at"},
		ConflictKeys: []string{"provider", "week_start"},
	}, rows)
	return eris.Wrap(err, "postgres: save scorecards")
}

func (s *PostgresStore) ListScorecards(ctx context.Context, weekStart time.Time) ([]model.WeeklyScorecard, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT card FROM weekly_scorecards WHERE week_start = $1 ORDER BY provider`,
		weekStart)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scorecards")
	}
	defer rows.Close()

	var cards []model.WeeklyScorecard
	for rows.Next() {
		var cardJSON []byte
		if err := rows.Scan(&cardJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scorecard")
		}
		var card model.WeeklyScorecard
		if err := json.Unmarshal(cardJSON, &card); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal scorecard")
		}
		cards = append(cards, card)
	}
	return cards, eris.Wrap(rows.Err(), "postgres: list scorecards iterate")
}
