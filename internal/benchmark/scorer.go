// Package benchmark grades provider votes against realized ground truth and
// aggregates the grades into weekly scorecards and competitive rankings.
// Nothing in this package ever affects the primary pipeline's response.
package benchmark

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// GroundTruth is the reference the votes are graded against: the
// market-anchored blended price and the decision it implies.
type GroundTruth struct {
	Value    float64
	Source   string
	Decision model.Decision
}

// Scorer grades votes. A vote within the accurate band of the truth counts
// as directionally accurate.
type Scorer struct {
	accurateBand float64
}

// NewScorer creates a scorer from config.
func NewScorer(cfg config.BenchmarkConfig) *Scorer {
	return &Scorer{accurateBand: cfg.AccurateBandPct}
}

// Score grades each vote against the ground truth. Zero votes or a
// non-positive truth value yields an empty batch, never an error.
func (s *Scorer) Score(analysisID string, votes []model.Vote, truth GroundTruth) []model.BenchmarkRecord {
	if len(votes) == 0 || truth.Value <= 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]model.BenchmarkRecord, 0, len(votes))
	for _, v := range votes {
		absErr := math.Abs(v.Value - truth.Value)
		pctErr := absErr / truth.Value

		direction := model.DirectionAccurate
		if pctErr > s.accurateBand {
			if v.Value > truth.Value {
				direction = model.DirectionOver
			} else {
				direction = model.DirectionUnder
			}
		}

		records = append(records, model.BenchmarkRecord{
			ID:                uuid.NewString(),
			AnalysisID:        analysisID,
			Provider:          v.Provider,
			Category:          v.Category,
			Value:             v.Value,
			Decision:          v.Decision,
			Confidence:        v.Confidence,
			GroundTruth:       truth.Value,
			GroundTruthSource: truth.Source,
			AbsError:          absErr,
			PctError:          pctErr,
			Direction:         direction,
			DecisionCorrect:   v.Decision == truth.Decision,
			Latency:           v.Latency,
			ScoredAt:          now,
		})
	}

	return records
}
