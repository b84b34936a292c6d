package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorecard-insights-go/internal/types"
)

func ptr[T any](v T) *T { return &v }

func decode(t *testing.T, payload string) types.Analysis {
	t.Helper()
	a, err := types.DecodeAnalysis([]byte(payload))
	require.NoError(t, err)
	return a
}

func TestResolveTotalScore_TopLevelWins(t *testing.T) {
	payloads := []string{
		`null`,
		`{"overall_rating":{"score_0_to_100":90}}`,
		`{"score":{"total":70}}`,
		`{"total_score":50}`,
	}
	for _, p := range payloads {
		for _, top := range []float64{0, 12.5, 99} {
			c := types.Conversation{TotalScore: ptr(top), Analysis: decode(t, p)}
			assert.Equal(t, top, ResolveTotalScore(c), "payload %s", p)
		}
	}
}

func TestResolveTotalScore_TierOrder(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{"only score.total", `{"score":{"total":42}}`, 42},
		{"dimension before subscore", `{"overall_rating":{"score_0_to_100":81},"score":{"total":42},"total_score":7}`, 81},
		{"subscore before legacy", `{"score":{"total":42},"total_score":7}`, 42},
		{"zero overall falls through", `{"overall_rating":{"score_0_to_100":0},"score":{"total":42}}`, 42},
		{"legacy", `{"total_score":7}`, 7},
		{"nothing", `{}`, 0},
		{"null payload", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := types.Conversation{Analysis: decode(t, tt.payload)}
			assert.Equal(t, tt.want, ResolveTotalScore(c))
		})
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name    string
		top     *string
		payload string
		want    string
	}{
		{"top level", ptr("Pass"), `{"status":"fail"}`, "Pass"},
		{"empty top level falls through", ptr(""), `{"status":"fail"}`, "fail"},
		{"payload status before compliance", nil, `{"status":"Good","compliance":{"status":"fail"}}`, "Good"},
		{"compliance before grade", nil, `{"compliance":{"status":"needs_improvement"},"score":{"grade":"A"}}`, "needs_improvement"},
		{"grade", nil, `{"score":{"total":10,"grade":"Excellent"}}`, "Excellent"},
		{"nothing anywhere", nil, `{"score":{"total":10}}`, "unknown"},
		{"null payload", nil, `null`, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := types.Conversation{Status: tt.top, Analysis: decode(t, tt.payload)}
			assert.Equal(t, tt.want, ResolveStatus(c))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := map[string]StatusClass{
		"PASS":              StatusPositive,
		"pass":              StatusPositive,
		"Pass":              StatusPositive,
		"good":              StatusPositive,
		"Excellent":         StatusPositive,
		"fail":              StatusNegative,
		"POOR":              StatusNegative,
		"bad":               StatusNegative,
		"needs improvement": StatusCaution,
		"needs_improvement": StatusCaution,
		"Needs Improvement": StatusCaution,
		"needs-improvement": StatusNeutral,
		"unknown":           StatusNeutral,
		"":                  StatusNeutral,
		"A":                 StatusNeutral,
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassifyStatus(in), "status %q", in)
	}
}

func TestIsPass(t *testing.T) {
	assert.True(t, IsPass("Good"))
	assert.False(t, IsPass("needs_improvement"))
	assert.False(t, IsPass("unknown"))
	assert.False(t, IsPass("fail"))
}

func TestComplianceBadge(t *testing.T) {
	assert.Equal(t, "pass", ComplianceBadge(types.Conversation{Status: ptr("pass")}))
	assert.Equal(t, "fail", ComplianceBadge(types.Conversation{Analysis: decode(t, `{"compliance":{"status":"fail"}}`)}))
	assert.Equal(t, "", ComplianceBadge(types.Conversation{Analysis: decode(t, `{"score":{"grade":"A"}}`)}))
}
