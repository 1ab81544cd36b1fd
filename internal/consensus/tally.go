// Package consensus aggregates weighted votes into a tally, summary
// statistics, and a final blended estimate with a quality tier.
package consensus

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// Tally sums vote weights by decision. BUY wins only on a strictly greater
// weight; ties resolve to SELL. The weight difference is normalized to [0,1]
// and a difference below closeThreshold marks the vote close.
func Tally(votes []model.Vote, closeThreshold float64) model.VoteTally {
	t := model.VoteTally{Decision: model.DecisionSell}

	for _, v := range votes {
		switch v.Decision {
		case model.DecisionBuy:
			t.BuyWeight += v.Weight
			t.BuyCount++
		case model.DecisionSell:
			t.SellWeight += v.Weight
			t.SellCount++
		}
	}
	t.TotalWeight = t.BuyWeight + t.SellWeight

	if t.TotalWeight > 0 {
		diff := t.BuyWeight - t.SellWeight
		if diff < 0 {
			diff = -diff
		}
		t.WeightDifference = diff / t.TotalWeight
		t.IsCloseVote = t.WeightDifference < closeThreshold
	}
	if t.BuyWeight > t.SellWeight {
		t.Decision = model.DecisionBuy
	}

	return t
}

// Stats computes the statistical summary of a vote list.
func Stats(votes []model.Vote) model.VoteStats {
	var s model.VoteStats
	if len(votes) == 0 {
		return s
	}

	var confSum, weightSum, valueSum float64
	var latencySum time.Duration
	nameScores := make(map[string]float64)
	var positives []float64

	for _, v := range votes {
		confSum += v.Confidence
		latencySum += v.Latency
		weightSum += v.Weight
		valueSum += v.Value * v.Weight
		nameScores[v.ItemName] += v.Weight * v.Confidence
		if v.Value > 0 {
			positives = append(positives, v.Value)
		}
	}

	s.MeanConfidence = confSum / float64(len(votes))
	s.MeanLatency = latencySum / time.Duration(len(votes))
	if weightSum > 0 {
		s.WeightedMeanValue = valueSum / weightSum
	}
	s.ValueAgreement = valueAgreement(positives)
	s.DecisionAgreement = decisionAgreement(votes)
	s.ConsensusItemName = topName(nameScores)

	return s
}

// valueAgreement maps the coefficient of variation over positive values to
// [0,1]. Fewer than two positive values scores a full 1.0.
func valueAgreement(positives []float64) float64 {
	if len(positives) < 2 {
		return 1.0
	}
	mean, std := stat.MeanStdDev(positives, nil)
	if mean <= 0 {
		return 1.0
	}
	agreement := 1 - std/mean
	if agreement < 0 {
		return 0
	}
	return agreement
}

func decisionAgreement(votes []model.Vote) float64 {
	buy := 0
	for _, v := range votes {
		if v.Decision == model.DecisionBuy {
			buy++
		}
	}
	majority := buy
	if len(votes)-buy > majority {
		majority = len(votes) - buy
	}
	return float64(majority) / float64(len(votes))
}

// topName picks the item name with the highest accumulated weight x
// confidence score, breaking ties lexicographically for determinism.
func topName(scores map[string]float64) string {
	var best string
	bestScore := -1.0
	for name, score := range scores {
		if score > bestScore || (score == bestScore && name < best) {
			best = name
			bestScore = score
		}
	}
	return best
}
