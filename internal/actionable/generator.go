package actionable

import (
	"fmt"

	"scorecard-insights-go/internal/aggregator"
	"scorecard-insights-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const coachingThreshold = 60

// Rating labels a pass rate for the executive performance table.
func Rating(passRate float64) string {
	switch {
	case passRate >= 80:
		return "Excellent"
	case passRate >= 60:
		return "Good"
	default:
		return "Needs Improvement"
	}
}

// Generate points at the group with the lowest pass rate when it is below the
// coaching threshold.
func Generate(rep aggregator.Report) ActionCard {
	var worst *aggregator.GroupStats
	for i := range rep.Groups {
		g := &rep.Groups[i]
		if worst == nil || g.PassRate < worst.PassRate {
			worst = g
		}
	}
	if worst != nil && worst.PassRate < coachingThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("Low pass rate for %s (%.0f%% over %d conversations)", worst.Label, worst.PassRate, worst.Conversations),
			Action:  fmt.Sprintf("Schedule a coaching review of %s's recent calls against the scorecard", worst.Label),
			Impact:  "Lift pass rate above 60% and close the gap to the team average",
		}
	}
	if rep.TotalConversations == 0 {
		return ActionCard{
			Insight: "No conversations match the current filters",
			Action:  "Widen the date range or clear filters",
			Impact:  "No intervention possible without data",
		}
	}
	return ActionCard{
		Insight: fmt.Sprintf("All %ss are at or above a %d%% pass rate", rep.GroupBy, coachingThreshold),
		Action:  "Monitor and collect more data",
		Impact:  "Low immediate intervention",
	}
}

// Evidence is one line of supporting material shown on a conversation card.
type Evidence struct {
	Source    string `json:"source"`
	Label     string `json:"label,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Highlights struct {
	Evidence        []Evidence `json:"evidence"`
	Recommendations []string   `json:"recommendations"`
	Strengths       []string   `json:"strengths"`
}

// ExtractHighlights collects the evidence and coaching lines of every payload
// tier present, capped per source.
func ExtractHighlights(a types.Analysis) Highlights {
	h := Highlights{Evidence: []Evidence{}, Recommendations: []string{}, Strengths: []string{}}

	for _, q := range first(a.Legacy.EvidenceQuotes, 3) {
		h.Evidence = append(h.Evidence, Evidence{Source: "quote", Text: q.Quote, Timestamp: q.Timestamp})
	}

	if d := a.Dimension; d != nil {
		for _, r := range first(d.Ratings, 3) {
			if len(r.EvidenceQuotes) == 0 {
				continue
			}
			h.Evidence = append(h.Evidence, Evidence{Source: "dimension", Label: r.Name, Text: r.EvidenceQuotes[0]})
		}
		h.Strengths = append(h.Strengths, first(d.WhatWentWell, 2)...)
	}

	if s := a.Subscore; s != nil {
		for _, qa := range first(s.QA, 2) {
			h.Evidence = append(h.Evidence, Evidence{Source: "qa", Label: string(qa.Question), Text: string(qa.AnswerQuality)})
		}
	}

	h.Recommendations = append(h.Recommendations, first(a.Legacy.Recommendations, 3)...)
	if s := a.Subscore; s != nil {
		h.Recommendations = append(h.Recommendations, first(s.Coach, 3)...)
	}
	return h
}

func first[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
