package benchmark

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// ExportScorecards writes weekly scorecards and rankings to an xlsx
// workbook, one sheet per concern.
func ExportScorecards(cards []model.WeeklyScorecard, rankings []model.CompetitiveRanking, path string) error {
	f := xlsx.NewFile()

	if err := addScorecardSheet(f, cards); err != nil {
		return err
	}
	if err := addRankingSheet(f, rankings); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "benchmark: save workbook %s", path)
	}
	return nil
}

func addScorecardSheet(f *xlsx.File, cards []model.WeeklyScorecard) error {
	sheet, err := f.AddSheet("Scorecards")
	if err != nil {
		return eris.Wrap(err, "benchmark: add scorecard sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Provider", "Week Start", "Votes", "Mean % Error", "Median % Error",
		"Within 10%", "Within 25%", "Over", "Under", "Accurate",
		"Decision Accuracy", "Latency P50", "Latency P95", "Composite",
	} {
		header.AddCell().Value = h
	}

	for _, c := range cards {
		row := sheet.AddRow()
		row.AddCell().Value = c.Provider
		row.AddCell().Value = c.WeekStart.Format("2006-01-02")
		row.AddCell().SetInt(c.VoteCount)
		row.AddCell().SetFloatWithFormat(c.MeanPctError, "0.00%")
		row.AddCell().SetFloatWithFormat(c.MedianPctError, "0.00%")
		row.AddCell().SetFloatWithFormat(c.Within10Pct, "0.00%")
		row.AddCell().SetFloatWithFormat(c.Within25Pct, "0.00%")
		row.AddCell().SetInt(c.OverCount)
		row.AddCell().SetInt(c.UnderCount)
		row.AddCell().SetInt(c.AccurateCount)
		row.AddCell().SetFloatWithFormat(c.DecisionAccuracy, "0.00%")
		row.AddCell().Value = c.LatencyP50.String()
		row.AddCell().Value = c.LatencyP95.String()
		row.AddCell().SetFloatWithFormat(c.Composite, "0.0")
	}

	return nil
}

func addRankingSheet(f *xlsx.File, rankings []model.CompetitiveRanking) error {
	sheet, err := f.AddSheet("Rankings")
	if err != nil {
		return eris.Wrap(err, "benchmark: add ranking sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Week Start", "Dimension", "Rank", "Provider", "Score", "Delta"} {
		header.AddCell().Value = h
	}

	for _, r := range rankings {
		for _, e := range r.Entries {
			row := sheet.AddRow()
			row.AddCell().Value = r.WeekStart.Format("2006-01-02")
			row.AddCell().Value = r.Dimension
			row.AddCell().SetInt(e.Rank)
			row.AddCell().Value = e.Provider
			row.AddCell().SetFloatWithFormat(e.Score, "0.0")
			row.AddCell().Value = fmt.Sprintf("%+d", e.Delta)
		}
	}

	return nil
}
