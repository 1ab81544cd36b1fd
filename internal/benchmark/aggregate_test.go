package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/model"
)

var (
	weekStart = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	weekEnd   = weekStart.AddDate(0, 0, 7)
)

func record(provider, category string, pctError float64, direction model.ErrorDirection, correct bool, latency time.Duration) model.BenchmarkRecord {
	return model.BenchmarkRecord{
		Provider:        provider,
		Category:        category,
		PctError:        pctError,
		Direction:       direction,
		DecisionCorrect: correct,
		Latency:         latency,
		ScoredAt:        weekStart.Add(24 * time.Hour),
	}
}

func TestAggregateWeek_Basic(t *testing.T) {
	records := []model.BenchmarkRecord{
		record("claude", "lego", 0.05, model.DirectionAccurate, true, 800*time.Millisecond),
		record("claude", "lego", 0.20, model.DirectionOver, true, 1200*time.Millisecond),
		record("claude", "lego", 0.40, model.DirectionUnder, false, 2*time.Second),
		// Another provider's record must not leak in.
		record("perplexity", "lego", 0.90, model.DirectionOver, false, 5*time.Second),
	}

	card := AggregateWeek("claude", weekStart, weekEnd, records, testBenchmarkConfig())

	assert.Equal(t, 3, card.VoteCount)
	assert.InDelta(t, (0.05+0.20+0.40)/3, card.MeanPctError, 1e-9)
	assert.InDelta(t, 0.20, card.MedianPctError, 1e-9)
	assert.InDelta(t, 1.0/3, card.Within10Pct, 1e-9)
	assert.InDelta(t, 2.0/3, card.Within25Pct, 1e-9)
	assert.Equal(t, 1, card.OverCount)
	assert.Equal(t, 1, card.UnderCount)
	assert.Equal(t, 1, card.AccurateCount)
	assert.InDelta(t, 2.0/3, card.DecisionAccuracy, 1e-9)
	assert.Equal(t, 1200*time.Millisecond, card.LatencyP50)
	assert.Greater(t, card.Composite, 0.0)
	assert.LessOrEqual(t, card.Composite, 100.0)
}

func TestAggregateWeek_WindowFiltering(t *testing.T) {
	early := record("claude", "lego", 0.05, model.DirectionAccurate, true, time.Second)
	early.ScoredAt = weekStart.Add(-time.Hour)
	late := record("claude", "lego", 0.05, model.DirectionAccurate, true, time.Second)
	late.ScoredAt = weekEnd // end is exclusive

	card := AggregateWeek("claude", weekStart, weekEnd, []model.BenchmarkRecord{early, late}, testBenchmarkConfig())
	assert.Zero(t, card.VoteCount)
	assert.Zero(t, card.Composite)
}

func TestAggregateWeek_CategoryFlags(t *testing.T) {
	var records []model.BenchmarkRecord
	// lego: 3 votes, low error. coins: 3 votes, high error. shoes: 2 votes,
	// lowest error but below the vote floor.
	for i := 0; i < 3; i++ {
		records = append(records, record("claude", "lego", 0.05, model.DirectionAccurate, true, time.Second))
		records = append(records, record("claude", "coins", 0.60, model.DirectionOver, false, time.Second))
	}
	for i := 0; i < 2; i++ {
		records = append(records, record("claude", "shoes", 0.01, model.DirectionAccurate, true, time.Second))
	}

	card := AggregateWeek("claude", weekStart, weekEnd, records, testBenchmarkConfig())
	require.Len(t, card.Categories, 3)

	byName := make(map[string]model.CategoryBreakdown)
	for _, c := range card.Categories {
		byName[c.Category] = c
	}
	assert.True(t, byName["lego"].Best)
	assert.True(t, byName["coins"].Worst)
	assert.False(t, byName["shoes"].Best, "below the vote floor")
	assert.False(t, byName["shoes"].Worst)
}

func TestSpeedScore_Anchors(t *testing.T) {
	assert.InDelta(t, 100, SpeedScore(model.WeeklyScorecard{LatencyP50: 500 * time.Millisecond}), 1e-9)
	assert.InDelta(t, 0, SpeedScore(model.WeeklyScorecard{LatencyP50: 15 * time.Second}), 1e-9)
	mid := SpeedScore(model.WeeklyScorecard{LatencyP50: 5500 * time.Millisecond})
	assert.InDelta(t, 50, mid, 1e-9)
}

func TestVolumeScore_Capped(t *testing.T) {
	assert.InDelta(t, 100, VolumeScore(model.WeeklyScorecard{VoteCount: 80}), 1e-9)
	assert.InDelta(t, 50, VolumeScore(model.WeeklyScorecard{VoteCount: 25}), 1e-9)
}

func TestComposite_Weighting(t *testing.T) {
	card := model.WeeklyScorecard{
		VoteCount:        50,
		MeanPctError:     0, // accuracy 100
		DecisionAccuracy: 1, // decision 100
		LatencyP50:       time.Second,
	}
	// Perfect on every dimension.
	assert.InDelta(t, 100, composite(card), 1e-9)

	// Dropping only decision accuracy to zero removes its 20% share.
	card.DecisionAccuracy = 0
	assert.InDelta(t, 80, composite(card), 1e-9)
}
