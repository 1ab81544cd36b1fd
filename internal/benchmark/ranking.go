package benchmark

import (
	"sort"
	"time"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// Ranking dimensions.
const (
	DimensionAccuracy  = "accuracy"
	DimensionDecision  = "decision"
	DimensionSpeed     = "speed"
	DimensionComposite = "composite"
)

var dimensions = []string{DimensionAccuracy, DimensionDecision, DimensionSpeed, DimensionComposite}

// Rankings ranks providers on every dimension for one week and computes rank
// deltas against the prior week's scorecards (positive delta = climbed).
func Rankings(weekStart time.Time, current, prior []model.WeeklyScorecard) []model.CompetitiveRanking {
	if len(current) == 0 {
		return nil
	}

	rankings := make([]model.CompetitiveRanking, 0, len(dimensions))
	for _, dim := range dimensions {
		priorRanks := rankByDimension(prior, dim)

		entries := rankByDimension(current, dim)
		for i := range entries {
			if prev, ok := priorRanks[entries[i].Provider]; ok {
				e := entries[i]
				e.Delta = prev.Rank - e.Rank
				entries[i] = e
			}
		}

		ordered := make([]model.RankEntry, 0, len(entries))
		for _, e := range entries {
			ordered = append(ordered, e)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

		rankings = append(rankings, model.CompetitiveRanking{
			WeekStart: weekStart,
			Dimension: dim,
			Entries:   ordered,
		})
	}

	return rankings
}

// rankByDimension scores each provider on one dimension and assigns dense
// ranks, best first. Ties break by provider name for determinism.
func rankByDimension(cards []model.WeeklyScorecard, dimension string) map[string]model.RankEntry {
	type scored struct {
		provider string
		score    float64
	}
	list := make([]scored, 0, len(cards))
	for _, c := range cards {
		list = append(list, scored{provider: c.Provider, score: dimensionScore(c, dimension)})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].provider < list[j].provider
	})

	out := make(map[string]model.RankEntry, len(list))
	for i, s := range list {
		out[s.provider] = model.RankEntry{Provider: s.provider, Rank: i + 1, Score: s.score}
	}
	return out
}

func dimensionScore(card model.WeeklyScorecard, dimension string) float64 {
	switch dimension {
	case DimensionAccuracy:
		return AccuracyScore(card)
	case DimensionDecision:
		return card.DecisionAccuracy * 100
	case DimensionSpeed:
		return SpeedScore(card)
	default:
		return card.Composite
	}
}
