package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/model"
)

func card(provider string, meanPctError, decisionAccuracy float64, p50 time.Duration, composite float64) model.WeeklyScorecard {
	return model.WeeklyScorecard{
		Provider:         provider,
		MeanPctError:     meanPctError,
		DecisionAccuracy: decisionAccuracy,
		LatencyP50:       p50,
		Composite:        composite,
	}
}

func TestRankings_AllDimensions(t *testing.T) {
	current := []model.WeeklyScorecard{
		card("claude", 0.10, 0.9, 2*time.Second, 85),
		card("perplexity", 0.30, 0.7, time.Second, 70),
	}

	rankings := Rankings(weekStart, current, nil)
	require.Len(t, rankings, 4)

	byDim := make(map[string]model.CompetitiveRanking)
	for _, r := range rankings {
		byDim[r.Dimension] = r
	}

	// claude is more accurate, perplexity is faster.
	assert.Equal(t, "claude", byDim[DimensionAccuracy].Entries[0].Provider)
	assert.Equal(t, "perplexity", byDim[DimensionSpeed].Entries[0].Provider)
	assert.Equal(t, "claude", byDim[DimensionComposite].Entries[0].Provider)

	// No prior week: deltas stay zero.
	for _, e := range byDim[DimensionComposite].Entries {
		assert.Zero(t, e.Delta)
	}
}

func TestRankings_DeltaAgainstPriorWeek(t *testing.T) {
	prior := []model.WeeklyScorecard{
		card("claude", 0, 0, 0, 60),
		card("perplexity", 0, 0, 0, 90),
	}
	current := []model.WeeklyScorecard{
		card("claude", 0, 0, 0, 95),
		card("perplexity", 0, 0, 0, 80),
	}

	rankings := Rankings(weekStart, current, prior)
	var composite model.CompetitiveRanking
	for _, r := range rankings {
		if r.Dimension == DimensionComposite {
			composite = r
		}
	}
	require.Len(t, composite.Entries, 2)

	// claude climbed from rank 2 to rank 1; perplexity fell.
	assert.Equal(t, "claude", composite.Entries[0].Provider)
	assert.Equal(t, 1, composite.Entries[0].Rank)
	assert.Equal(t, 1, composite.Entries[0].Delta)
	assert.Equal(t, -1, composite.Entries[1].Delta)
}

func TestRankings_DeterministicTieBreak(t *testing.T) {
	current := []model.WeeklyScorecard{
		card("beta", 0.10, 0.8, time.Second, 80),
		card("alpha", 0.10, 0.8, time.Second, 80),
	}

	first := Rankings(weekStart, current, nil)
	second := Rankings(weekStart, current, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, "alpha", first[0].Entries[0].Provider)
}

func TestRankings_Empty(t *testing.T) {
	assert.Nil(t, Rankings(weekStart, nil, nil))
}
