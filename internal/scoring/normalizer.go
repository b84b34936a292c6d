// Package scoring turns heterogeneous analysis payloads into one total score,
// one status and a display-ready score view.
package scoring

import (
	"strings"

	"scorecard-insights-go/internal/types"
)

// UnknownStatus is returned when no status-bearing field is populated.
const UnknownStatus = "unknown"

// ResolveTotalScore returns the conversation's total score. The top-level
// column wins whenever it is set, including zero; nested tiers only count
// when non-zero. Nothing populated resolves to 0.
func ResolveTotalScore(c types.Conversation) float64 {
	if c.TotalScore != nil {
		return *c.TotalScore
	}
	return TotalFromAnalysis(c.Analysis)
}

// TotalFromAnalysis walks overall_rating -> score.total -> legacy total_score.
func TotalFromAnalysis(a types.Analysis) float64 {
	if a.Dimension != nil && a.Dimension.OverallScore != 0 {
		return a.Dimension.OverallScore
	}
	if a.Subscore != nil && a.Subscore.Total != 0 {
		return a.Subscore.Total
	}
	return a.Legacy.TotalScore
}

// ResolveStatus returns the conversation's status with its original casing.
func ResolveStatus(c types.Conversation) string {
	if c.Status != nil && *c.Status != "" {
		return *c.Status
	}
	return StatusFromAnalysis(c.Analysis)
}

// StatusFromAnalysis walks status -> compliance.status -> score.grade.
func StatusFromAnalysis(a types.Analysis) string {
	if a.Legacy.Status != "" {
		return a.Legacy.Status
	}
	if a.Dimension != nil && a.Dimension.ComplianceStatus != "" {
		return a.Dimension.ComplianceStatus
	}
	if a.Subscore != nil && a.Subscore.Grade != "" {
		return a.Subscore.Grade
	}
	return UnknownStatus
}

// StatusClass is the four-way bucket a status string falls into.
type StatusClass string

const (
	StatusPositive StatusClass = "positive"
	StatusNegative StatusClass = "negative"
	StatusCaution  StatusClass = "caution"
	StatusNeutral  StatusClass = "neutral"
)

// ClassifyStatus buckets a status case-insensitively. Every badge colour and
// pass/fail count derives from this one function.
func ClassifyStatus(status string) StatusClass {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pass", "good", "excellent":
		return StatusPositive
	case "fail", "poor", "bad":
		return StatusNegative
	case "needs_improvement", "needs improvement":
		return StatusCaution
	default:
		return StatusNeutral
	}
}

// IsPass reports whether a status counts toward pass rate. Only the positive
// bucket does.
func IsPass(status string) bool { return ClassifyStatus(status) == StatusPositive }

// ComplianceBadge is the status shown on a conversation card: the top-level
// status, else the payload's compliance status. Empty when neither is set.
func ComplianceBadge(c types.Conversation) string {
	if c.Status != nil && *c.Status != "" {
		return *c.Status
	}
	if c.Analysis.Dimension != nil {
		return c.Analysis.Dimension.ComplianceStatus
	}
	return ""
}
