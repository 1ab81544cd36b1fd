package benchmark

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// Composite score weights.
const (
	accuracyWeight = 0.40
	decisionWeight = 0.20
	speedWeight    = 0.20
	volumeWeight   = 0.20
)

// Speed scoring anchors: a p50 at or under the fast mark scores 100, at or
// over the slow mark scores 0, linear in between.
const (
	speedFastMark = 1 * time.Second
	speedSlowMark = 10 * time.Second
)

// volumeTarget is the weekly vote count that earns full volume credit.
const volumeTarget = 50

// AggregateWeek builds one provider's scorecard from its records in the
// [start, end) window. Records for other providers or outside the window are
// ignored, so callers can pass a mixed batch.
func AggregateWeek(providerID string, start, end time.Time, records []model.BenchmarkRecord, cfg config.BenchmarkConfig) model.WeeklyScorecard {
	card := model.WeeklyScorecard{
		Provider:  providerID,
		WeekStart: start,
		WeekEnd:   end,
	}

	var (
		pctErrors []float64
		latencies []float64
		correct   int
		within10  int
		within25  int
	)
	byCategory := make(map[string][]model.BenchmarkRecord)

	for _, r := range records {
		if r.Provider != providerID {
			continue
		}
		if r.ScoredAt.Before(start) || !r.ScoredAt.Before(end) {
			continue
		}

		card.VoteCount++
		pctErrors = append(pctErrors, r.PctError)
		latencies = append(latencies, float64(r.Latency))
		if r.DecisionCorrect {
			correct++
		}
		if r.PctError <= 0.10 {
			within10++
		}
		if r.PctError <= 0.25 {
			within25++
		}
		switch r.Direction {
		case model.DirectionOver:
			card.OverCount++
		case model.DirectionUnder:
			card.UnderCount++
		case model.DirectionAccurate:
			card.AccurateCount++
		}
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	if card.VoteCount == 0 {
		return card
	}

	n := float64(card.VoteCount)
	card.MeanPctError = stat.Mean(pctErrors, nil)
	card.MedianPctError = quantile(pctErrors, 0.5)
	card.Within10Pct = float64(within10) / n
	card.Within25Pct = float64(within25) / n
	card.DecisionAccuracy = float64(correct) / n
	card.LatencyP50 = time.Duration(quantile(latencies, 0.5))
	card.LatencyP95 = time.Duration(quantile(latencies, 0.95))
	card.Composite = composite(card)
	card.Categories = categoryBreakdowns(byCategory, cfg.MinCategoryVotes)

	return card
}

// quantile sorts a copy and takes the empirical quantile.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// composite folds the scorecard's dimensions into a 0-100 score.
func composite(card model.WeeklyScorecard) float64 {
	score := accuracyWeight*AccuracyScore(card) +
		decisionWeight*card.DecisionAccuracy*100 +
		speedWeight*SpeedScore(card) +
		volumeWeight*VolumeScore(card)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// AccuracyScore maps mean percent error to [0,100]; errors at or beyond 100%
// score zero.
func AccuracyScore(card model.WeeklyScorecard) float64 {
	e := card.MeanPctError
	if e >= 1 {
		return 0
	}
	return (1 - e) * 100
}

// SpeedScore maps the p50 latency to [0,100] between the fast and slow marks.
func SpeedScore(card model.WeeklyScorecard) float64 {
	p50 := card.LatencyP50
	if p50 <= speedFastMark {
		return 100
	}
	if p50 >= speedSlowMark {
		return 0
	}
	span := float64(speedSlowMark - speedFastMark)
	return (1 - float64(p50-speedFastMark)/span) * 100
}

// VolumeScore maps weekly vote count to [0,100] against the volume target.
func VolumeScore(card model.WeeklyScorecard) float64 {
	if card.VoteCount >= volumeTarget {
		return 100
	}
	return float64(card.VoteCount) / volumeTarget * 100
}

// categoryBreakdowns summarizes per-category performance. Only categories
// with at least minVotes scored votes are eligible for best/worst flags;
// with a single eligible category only best is flagged.
func categoryBreakdowns(byCategory map[string][]model.BenchmarkRecord, minVotes int) []model.CategoryBreakdown {
	if len(byCategory) == 0 {
		return nil
	}

	breakdowns := make([]model.CategoryBreakdown, 0, len(byCategory))
	for category, recs := range byCategory {
		var errSum float64
		correct := 0
		for _, r := range recs {
			errSum += r.PctError
			if r.DecisionCorrect {
				correct++
			}
		}
		breakdowns = append(breakdowns, model.CategoryBreakdown{
			Category:         category,
			VoteCount:        len(recs),
			MeanPctError:     errSum / float64(len(recs)),
			DecisionAccuracy: float64(correct) / float64(len(recs)),
		})
	}
	sort.Slice(breakdowns, func(i, j int) bool {
		return breakdowns[i].Category < breakdowns[j].Category
	})

	bestIdx, worstIdx := -1, -1
	for i, b := range breakdowns {
		if b.VoteCount < minVotes {
			continue
		}
		if bestIdx < 0 || b.MeanPctError < breakdowns[bestIdx].MeanPctError {
			bestIdx = i
		}
		if worstIdx < 0 || b.MeanPctError > breakdowns[worstIdx].MeanPctError {
			worstIdx = i
		}
	}
	if bestIdx >= 0 {
		breakdowns[bestIdx].Best = true
	}
	if worstIdx >= 0 && worstIdx != bestIdx {
		breakdowns[worstIdx].Worst = true
	}

	return breakdowns
}
