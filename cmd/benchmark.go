package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/benchmark"
	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/store"
)

var (
	benchWeek string
	benchOut  string
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Aggregate benchmark records into weekly scorecards",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		weekStart := previousWeekStart(time.Now().UTC())
		if benchWeek != "" {
			weekStart, err = time.Parse("2006-01-02", benchWeek)
			if err != nil {
				return eris.Wrap(err, "parse --week")
			}
		}

		if err := aggregateAndSave(ctx, st, weekStart); err != nil {
			return err
		}

		if benchOut != "" {
			cards, rankings, err := weekResults(ctx, st, weekStart)
			if err != nil {
				return err
			}
			if err := benchmark.ExportScorecards(cards, rankings, benchOut); err != nil {
				return err
			}
			zap.L().Info("scorecards exported", zap.String("path", benchOut))
		}

		return nil
	},
}

// previousWeekStart returns the Monday 00:00 UTC that starts the most
// recently completed week.
func previousWeekStart(now time.Time) time.Time {
	now = now.Truncate(24 * time.Hour)
	// Walk back to Monday of the current week, then one more week.
	offset := (int(now.Weekday()) + 6) % 7
	return now.AddDate(0, 0, -offset-7)
}

// aggregateAndSave builds and persists one week's scorecards for every
// provider with benchmark records in the window.
func aggregateAndSave(ctx context.Context, st store.Store, weekStart time.Time) error {
	weekEnd := weekStart.AddDate(0, 0, 7)

	providers, err := st.ListBenchmarkProviders(ctx, weekStart, weekEnd)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		zap.L().Info("no benchmark records for week", zap.Time("week_start", weekStart))
		return nil
	}

	cards := make([]model.WeeklyScorecard, 0, len(providers))
	for _, p := range providers {
		records, err := st.ListBenchmarkRecords(ctx, p, weekStart, weekEnd)
		if err != nil {
			return err
		}
		cards = append(cards, benchmark.AggregateWeek(p, weekStart, weekEnd, records, cfg.Benchmark))
	}

	if err := st.SaveScorecards(ctx, cards); err != nil {
		return err
	}
	zap.L().Info("weekly scorecards saved",
		zap.Time("week_start", weekStart), zap.Int("providers", len(cards)))
	return nil
}

// weekResults loads a week's saved scorecards plus rankings against the
// prior week.
func weekResults(ctx context.Context, st store.Store, weekStart time.Time) ([]model.WeeklyScorecard, []model.CompetitiveRanking, error) {
	cards, err := st.ListScorecards(ctx, weekStart)
	if err != nil {
		return nil, nil, err
	}
	prior, err := st.ListScorecards(ctx, weekStart.AddDate(0, 0, -7))
	if err != nil {
		return nil, nil, err
	}
	return cards, benchmark.Rankings(weekStart, cards, prior), nil
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchWeek, "week", "", "week start (YYYY-MM-DD, a Monday; default: last completed week)")
	benchmarkCmd.Flags().StringVar(&benchOut, "out", "", "write scorecards and rankings to an xlsx file")
	rootCmd.AddCommand(benchmarkCmd)
}
