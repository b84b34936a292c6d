package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"scorecard-insights-go/internal/actionable"
	"scorecard-insights-go/internal/aggregator"
)

const overviewSheet = "Overview"

// GroupSheetName names the per-group sheet after the grouping.
func GroupSheetName(g aggregator.GroupBy) string {
	switch g {
	case aggregator.GroupByProduct:
		return "Products"
	case aggregator.GroupByDomain:
		return "Domains"
	default:
		return "Executives"
	}
}

// WriteReport writes an Overview sheet and one row per group.
func WriteReport(w io.Writer, rep aggregator.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), overviewSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	card := actionable.Generate(rep)
	overview := [][]any{
		{"Metric", "Value"},
		{"Total Conversations", rep.TotalConversations},
		{"Average Score", round1(rep.AvgScore)},
		{"Pass Rate (%)", round1(rep.PassRate)},
		{"Unique Executives", rep.UniqueExecutives},
		{},
		{"Insight", card.Insight},
		{"Action", card.Action},
		{"Impact", card.Impact},
	}
	if err := writeRows(f, overviewSheet, overview); err != nil {
		return err
	}
	if err := f.SetCellStyle(overviewSheet, "A1", "B1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(overviewSheet, "A", "A", 22)
	_ = f.SetColWidth(overviewSheet, "B", "B", 60)

	groups := GroupSheetName(rep.GroupBy)
	if _, err := f.NewSheet(groups); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	rows := [][]any{{strings.TrimSuffix(groups, "s"), "ID", "Conversations", "Avg Score", "Pass", "Fail", "Pass Rate (%)", "Rating"}}
	for _, g := range rep.Groups {
		rows = append(rows, []any{
			g.Label, g.Key, g.Conversations, round1(g.AvgScore), g.PassCount, g.FailCount, round1(g.PassRate), actionable.Rating(g.PassRate),
		})
	}
	if err := writeRows(f, groups, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(groups, "A1", "H1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(groups, "A", "A", 32)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
