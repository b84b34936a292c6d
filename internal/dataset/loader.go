package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/types"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01-02-06 15:04",
	"2006-01-02",
	"01-02-06",
}

type columns struct {
	id, product, executive, email, timestamp, score, status, transcript, analysis int
}

// detectColumns maps headers to fields by keyword. The first matching header
// wins for each field.
func detectColumns(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(idx *int, i int) {
		if *idx == -1 {
			*idx = i
		}
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "analysis") || strings.Contains(l, "result") || strings.Contains(l, "json"):
			set(&c.analysis, i)
		case strings.Contains(l, "transcript") || strings.Contains(l, "text"):
			set(&c.transcript, i)
		case strings.Contains(l, "email"):
			set(&c.email, i)
		case strings.Contains(l, "executive") || strings.Contains(l, "agent") || strings.Contains(l, "seller"):
			set(&c.executive, i)
		case strings.Contains(l, "product"):
			set(&c.product, i)
		case strings.Contains(l, "timestamp") || strings.Contains(l, "date") || strings.Contains(l, "time"):
			set(&c.timestamp, i)
		case strings.Contains(l, "score") || strings.Contains(l, "total"):
			set(&c.score, i)
		case strings.Contains(l, "status") || strings.Contains(l, "grade"):
			set(&c.status, i)
		case strings.Contains(l, "id"):
			set(&c.id, i)
		}
	}
	return c
}

// Load reads conversations from the first sheet of an xlsx workbook.
func Load(path string) ([]types.Conversation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return read(f)
}

// Read is Load for an in-memory workbook.
func Read(r io.Reader) ([]types.Conversation, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return read(f)
}

func read(f *excelize.File) ([]types.Conversation, error) {
	log := logger.New().WithField("component", "dataset.loader")

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.id == -1 {
		return nil, fmt.Errorf("no id column in header %v", rows[0])
	}
	log.WithField("columns", fmt.Sprintf("%+v", cols)).Debug("detected column indices")

	cell := func(r []string, idx int) string {
		if idx >= 0 && idx < len(r) {
			return strings.TrimSpace(r[idx])
		}
		return ""
	}

	var out []types.Conversation
	for i, r := range rows {
		if i == 0 {
			continue
		}
		rowLog := log.WithField("row", i+1)

		c := types.Conversation{
			ID:             cell(r, cols.id),
			ProductID:      cell(r, cols.product),
			ExecutiveID:    cell(r, cols.executive),
			ExecutiveEmail: cell(r, cols.email),
			Transcript:     cell(r, cols.transcript),
		}
		// rows without an id are notes or totals, not conversations
		if c.ID == "" {
			continue
		}

		if ts := cell(r, cols.timestamp); ts != "" {
			parsed, err := parseTimestamp(ts)
			if err != nil {
				rowLog.WithField("value", ts).Warn("unparseable timestamp")
			}
			c.Timestamp = parsed
		}
		if s := cell(r, cols.score); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				c.TotalScore = &v
			} else {
				rowLog.WithField("value", s).Warn("non-numeric score")
			}
		}
		if s := cell(r, cols.status); s != "" {
			c.Status = &s
		}

		a, err := types.DecodeAnalysis([]byte(cell(r, cols.analysis)))
		if err != nil {
			rowLog.WithField("error", err.Error()).Warn("invalid analysis JSON, importing without analysis")
			a = types.Analysis{Kind: types.AnalysisEmpty}
		}
		c.Analysis = a

		out = append(out, c)
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
