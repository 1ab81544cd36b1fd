package consensus

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// Calculator blends vote statistics with the authority price into the final
// estimate. The blend ratios and disagreement cutoffs come from config; they
// are heuristics and deliberately not hard-coded.
type Calculator struct {
	cfg config.ConsensusConfig
}

// NewCalculator creates a consensus calculator.
func NewCalculator(cfg config.ConsensusConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Consensus computes the final result for a vote list. An authority price of
// 0 means none is available. Zero votes yields the FAILED sentinel result:
// value 0, decision SELL, confidence 0.
func (c *Calculator) Consensus(votes []model.Vote, authorityPrice float64) *model.ConsensusResult {
	if len(votes) == 0 {
		return &model.ConsensusResult{
			Decision:  model.DecisionSell,
			Quality:   model.QualityFailed,
			Reasoning: "no votes were cast; analysis failed",
			Tally:     model.VoteTally{Decision: model.DecisionSell},
		}
	}

	tally := Tally(votes, c.cfg.CloseVoteThreshold)
	stats := Stats(votes)

	value := c.blend(stats.WeightedMeanValue, authorityPrice)
	confidence := c.confidence(stats, tally, len(votes))
	quality := qualityTier(confidence, stats.ValueAgreement, len(votes))

	result := &model.ConsensusResult{
		ItemName:       stats.ConsensusItemName,
		EstimatedValue: value,
		Decision:       tally.Decision,
		Confidence:     confidence,
		Reasoning:      reasoning(votes, tally, value),
		Quality:        quality,
		Tally:          tally,
		Stats:          stats,
	}

	zap.L().Debug("consensus: computed",
		zap.String("item", result.ItemName),
		zap.String("decision", string(result.Decision)),
		zap.Float64("value", result.EstimatedValue),
		zap.Int("confidence", result.Confidence),
		zap.String("quality", string(result.Quality)))

	return result
}

// blend mixes the vote swarm's weighted mean with the authority price. When
// the swarm lands far from the authority the authority share grows: a swarm
// that is off by more than the disagreement ratio is more likely wrong than
// the price guide.
func (c *Calculator) blend(weightedMean, authorityPrice float64) float64 {
	if authorityPrice <= 0 {
		return weightedMean
	}
	if weightedMean <= 0 {
		return authorityPrice
	}

	authorityShare := c.cfg.AuthorityBlend
	ratio := weightedMean / authorityPrice
	if ratio > c.cfg.DisagreementRatioHigh || ratio < c.cfg.DisagreementRatioLow {
		authorityShare = c.cfg.DisagreementBlend
	}

	return authorityShare*authorityPrice + (1-authorityShare)*weightedMean
}

func (c *Calculator) confidence(stats model.VoteStats, tally model.VoteTally, voteCount int) int {
	conf := int(math.Round(stats.MeanConfidence * 100))
	if stats.ValueAgreement > 0.8 {
		conf += 5
	}
	if tally.IsCloseVote {
		conf -= 10
	}
	if voteCount < 2 {
		conf -= 15
	}

	if conf < 0 {
		return 0
	}
	if conf > 100 {
		return 100
	}
	return conf
}

// qualityTier is evaluated top-down; the first matching tier wins.
func qualityTier(confidence int, agreement float64, voteCount int) model.QualityTier {
	switch {
	case confidence >= 80 && agreement > 0.7 && voteCount >= 3:
		return model.QualityHigh
	case confidence >= 60 && voteCount >= 2:
		return model.QualityGood
	case confidence >= 40:
		return model.QualityModerate
	case voteCount >= 1:
		return model.QualityLow
	default:
		return model.QualityDegraded
	}
}

// reasoning prefers the heaviest vote's own explanation; otherwise it
// synthesizes a one-line summary.
func reasoning(votes []model.Vote, tally model.VoteTally, value float64) string {
	var heaviest *model.Vote
	for i := range votes {
		if heaviest == nil || votes[i].Weight > heaviest.Weight {
			heaviest = &votes[i]
		}
	}
	if heaviest != nil && heaviest.Explanation() != "" {
		return heaviest.Explanation()
	}
	return fmt.Sprintf("%d votes reached a %s consensus at an estimated value of $%.2f",
		len(votes), tally.Decision, value)
}
