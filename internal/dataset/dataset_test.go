package dataset

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scorecard-insights-go/internal/aggregator"
	"scorecard-insights-go/internal/types"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestRead(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Conversation ID", "Product ID", "Executive ID", "Executive Email", "Conversation Timestamp", "Total Score", "Status", "Transcript", "Analysis Result"},
		{"c1", "castrol", "e1", "e1@example.com", "2025-03-01 10:30:00", "82.5", "pass", "Executive: hi", `{"overall_rating":{"score_0_to_100":82}}`},
		{"", "castrol", "e1", "", "", "", "", "totals row", ""},
		{"c2", "sbi", "e2", "", "2025-03-02", "", "", "", `{"score":{"total":55,"grade":"poor"}}`},
		{"c3", "sbi", "e2", "", "yesterday", "n/a", "", "", `{broken`},
	})

	convs, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, convs, 3)

	c1 := convs[0]
	assert.Equal(t, "c1", c1.ID)
	assert.Equal(t, "castrol", c1.ProductID)
	assert.Equal(t, "e1", c1.ExecutiveID)
	assert.Equal(t, "e1@example.com", c1.ExecutiveEmail)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), c1.Timestamp)
	require.NotNil(t, c1.TotalScore)
	assert.Equal(t, 82.5, *c1.TotalScore)
	require.NotNil(t, c1.Status)
	assert.Equal(t, "pass", *c1.Status)
	assert.Equal(t, types.AnalysisDimension, c1.Analysis.Kind)

	c2 := convs[1]
	assert.Nil(t, c2.TotalScore)
	assert.Nil(t, c2.Status)
	assert.Equal(t, types.AnalysisSubscore, c2.Analysis.Kind)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), c2.Timestamp)

	c3 := convs[2]
	assert.True(t, c3.Timestamp.IsZero())
	assert.Nil(t, c3.TotalScore)
	assert.Equal(t, types.AnalysisEmpty, c3.Analysis.Kind)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(workbook(t, [][]any{{"Conversation ID"}}))
	assert.ErrorContains(t, err, "no data rows")

	_, err = Read(workbook(t, [][]any{{"Product", "Status"}, {"x", "pass"}}))
	assert.ErrorContains(t, err, "no id column")

	_, err = Read(bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	c := detectColumns([]string{"ID", "Agent", "Date", "Grade", "Score", "Text", "JSON"})
	assert.Equal(t, columns{id: 0, executive: 1, timestamp: 2, status: 3, score: 4, transcript: 5, analysis: 6, product: -1, email: -1}, c)
}

func TestWriteReport(t *testing.T) {
	rep := aggregator.Report{
		Overview: aggregator.Overview{TotalConversations: 4, AvgScore: 71.25, PassRate: 50, UniqueExecutives: 2},
		GroupBy:  aggregator.GroupByExecutive,
		Groups: []aggregator.GroupStats{
			{Key: "e1", Label: "e1@example.com", Conversations: 3, AvgScore: 80, PassCount: 2, FailCount: 1, PassRate: 66.666},
			{Key: "e2", Label: "Unknown", Conversations: 1, AvgScore: 45, FailCount: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Overview", "Executives"}, f.GetSheetList())

	overview, err := f.GetRows("Overview")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Conversations", "4"}, overview[1])
	assert.Equal(t, []string{"Average Score", "71.3"}, overview[2])
	assert.Equal(t, []string{"Pass Rate (%)", "50"}, overview[3])
	assert.Equal(t, "Insight", overview[6][0])
	assert.Contains(t, overview[6][1], "Unknown")

	groups, err := f.GetRows("Executives")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"Executive", "ID", "Conversations", "Avg Score", "Pass", "Fail", "Pass Rate (%)", "Rating"}, groups[0])
	assert.Equal(t, []string{"e1@example.com", "e1", "3", "80", "2", "1", "66.7", "Good"}, groups[1])
	assert.Equal(t, "Needs Improvement", groups[2][7])
}

func TestGroupSheetName(t *testing.T) {
	assert.Equal(t, "Products", GroupSheetName(aggregator.GroupByProduct))
	assert.Equal(t, "Domains", GroupSheetName(aggregator.GroupByDomain))
	assert.Equal(t, "Executives", GroupSheetName(""))
}
