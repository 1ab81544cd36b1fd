package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

func testBenchmarkConfig() config.BenchmarkConfig {
	return config.BenchmarkConfig{
		AccurateBandPct:  0.10,
		QueueSize:        8,
		MinCategoryVotes: 3,
	}
}

func benchVote(provider string, value float64, decision model.Decision, latency time.Duration) model.Vote {
	return model.Vote{
		Provider:   provider,
		ItemName:   "item",
		Category:   "lego",
		Value:      value,
		Decision:   decision,
		Confidence: 0.8,
		Latency:    latency,
	}
}

func TestScore_GradesVotes(t *testing.T) {
	s := NewScorer(testBenchmarkConfig())
	truth := GroundTruth{Value: 100, Source: "blended", Decision: model.DecisionBuy}

	votes := []model.Vote{
		benchVote("claude", 105, model.DecisionBuy, time.Second),     // within band
		benchVote("perplexity", 150, model.DecisionBuy, time.Second), // over
		benchVote("openrouter", 60, model.DecisionSell, time.Second), // under, wrong decision
	}

	records := s.Score("analysis-1", votes, truth)
	require.Len(t, records, 3)

	assert.Equal(t, model.DirectionAccurate, records[0].Direction)
	assert.InDelta(t, 0.05, records[0].PctError, 1e-9)
	assert.True(t, records[0].DecisionCorrect)

	assert.Equal(t, model.DirectionOver, records[1].Direction)
	assert.InDelta(t, 0.50, records[1].PctError, 1e-9)

	assert.Equal(t, model.DirectionUnder, records[2].Direction)
	assert.False(t, records[2].DecisionCorrect)

	for _, r := range records {
		assert.Equal(t, "analysis-1", r.AnalysisID)
		assert.Equal(t, "blended", r.GroundTruthSource)
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.ScoredAt.IsZero())
	}
}

func TestScore_BandBoundaryIsAccurate(t *testing.T) {
	s := NewScorer(testBenchmarkConfig())
	truth := GroundTruth{Value: 100, Decision: model.DecisionBuy}

	// Exactly 10% off still counts as accurate.
	records := s.Score("a", []model.Vote{benchVote("p", 110, model.DecisionBuy, time.Second)}, truth)
	require.Len(t, records, 1)
	assert.Equal(t, model.DirectionAccurate, records[0].Direction)
}

func TestScore_EmptyInputsYieldEmptyBatch(t *testing.T) {
	s := NewScorer(testBenchmarkConfig())

	// Zero votes: an analysis where every provider timed out still scores
	// without erroring.
	assert.Empty(t, s.Score("a", nil, GroundTruth{Value: 100}))

	// No usable truth: nothing to grade against.
	votes := []model.Vote{benchVote("p", 50, model.DecisionBuy, time.Second)}
	assert.Empty(t, s.Score("a", votes, GroundTruth{Value: 0}))
}
