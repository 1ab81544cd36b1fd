package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

func testConsensusConfig() config.ConsensusConfig {
	return config.ConsensusConfig{
		CloseVoteThreshold:    0.15,
		AuthorityBlend:        0.4,
		DisagreementBlend:     0.6,
		DisagreementRatioHigh: 3.0,
		DisagreementRatioLow:  0.33,
	}
}

func TestConsensus_BuyMajorityScenario(t *testing.T) {
	c := NewCalculator(testConsensusConfig())
	result := c.Consensus(scenarioVotes(), 0)

	assert.Equal(t, model.DecisionBuy, result.Decision)
	assert.False(t, result.Tally.IsCloseVote)
	assert.InDelta(t, 105.5/2.2, result.EstimatedValue, 1e-9)
	// round(0.7333x100) = 73, no adjustments apply.
	assert.Equal(t, 73, result.Confidence)
	assert.Equal(t, model.QualityGood, result.Quality)
}

func TestConsensus_EmptyVotesFails(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	result := c.Consensus(nil, 100)
	require.NotNil(t, result)
	assert.Equal(t, model.QualityFailed, result.Quality)
	assert.Zero(t, result.EstimatedValue)
	assert.Equal(t, model.DecisionSell, result.Decision)
	assert.Zero(t, result.Confidence)

	// Idempotent: calling again yields the same sentinel.
	assert.Equal(t, result, c.Consensus(nil, 100))
}

func TestBlend_DefaultRatio(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	// Swarm mean 50, authority 40, ratio 1.25: 40% authority / 60% mean.
	assert.InDelta(t, 0.4*40+0.6*50, c.blend(50, 40), 1e-9)
}

func TestBlend_DisagreementTrustsAuthority(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	// Mean/authority = 4.0 > 3.0: authority share rises to 60%.
	blended := c.blend(40, 10)
	assert.InDelta(t, 0.6*10+0.4*40, blended, 1e-9)

	// The disagreement blend lies strictly between the two inputs and
	// closer to the authority than the default blend would be.
	defaultBlend := 0.4*10 + 0.6*40
	assert.Greater(t, blended, 10.0)
	assert.Less(t, blended, 40.0)
	assert.Less(t, blended, defaultBlend)

	// Symmetric on the low side.
	assert.InDelta(t, 0.6*100+0.4*20, c.blend(20, 100), 1e-9)
}

func TestBlend_MissingInputs(t *testing.T) {
	c := NewCalculator(testConsensusConfig())
	assert.InDelta(t, 50.0, c.blend(50, 0), 1e-9)
	assert.InDelta(t, 40.0, c.blend(0, 40), 1e-9)
}

func TestConfidence_Adjustments(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	tests := []struct {
		name      string
		stats     model.VoteStats
		tally     model.VoteTally
		voteCount int
		want      int
	}{
		{"base", model.VoteStats{MeanConfidence: 0.70}, model.VoteTally{}, 3, 70},
		{"agreement bonus", model.VoteStats{MeanConfidence: 0.70, ValueAgreement: 0.9}, model.VoteTally{}, 3, 75},
		{"close vote penalty", model.VoteStats{MeanConfidence: 0.70}, model.VoteTally{IsCloseVote: true}, 3, 60},
		{"single vote penalty", model.VoteStats{MeanConfidence: 0.70}, model.VoteTally{}, 1, 55},
		{"clamped low", model.VoteStats{MeanConfidence: 0.10}, model.VoteTally{IsCloseVote: true}, 1, 0},
		{"clamped high", model.VoteStats{MeanConfidence: 0.99, ValueAgreement: 0.95}, model.VoteTally{}, 3, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.confidence(tt.stats, tt.tally, tt.voteCount))
		})
	}
}

func TestQualityTier_TopDown(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		agreement  float64
		voteCount  int
		want       model.QualityTier
	}{
		{"high", 85, 0.8, 3, model.QualityHigh},
		{"high confidence but low agreement", 85, 0.5, 3, model.QualityGood},
		{"high confidence but too few votes", 85, 0.8, 2, model.QualityGood},
		{"good", 65, 0.5, 2, model.QualityGood},
		{"moderate single vote", 45, 0.5, 1, model.QualityModerate},
		{"low", 20, 0.5, 1, model.QualityLow},
		{"degraded", 20, 0.5, 0, model.QualityDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualityTier(tt.confidence, tt.agreement, tt.voteCount))
		})
	}
}

func TestReasoning_PrefersHeaviestExplanation(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	votes := scenarioVotes()
	votes[0].Raw = &model.Appraisal{Explanation: "strong comps at this price"}
	result := c.Consensus(votes, 0)
	assert.Equal(t, "strong comps at this price", result.Reasoning)
}

func TestReasoning_SynthesizedFallback(t *testing.T) {
	c := NewCalculator(testConsensusConfig())

	result := c.Consensus(scenarioVotes(), 0)
	assert.Contains(t, result.Reasoning, "3 votes")
	assert.Contains(t, result.Reasoning, "BUY")
}
