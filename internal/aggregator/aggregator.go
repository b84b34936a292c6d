package aggregator

import (
	"fmt"

	"scorecard-insights-go/internal/scoring"
	"scorecard-insights-go/internal/types"
)

type GroupBy string

const (
	GroupByExecutive GroupBy = "executive"
	GroupByProduct   GroupBy = "product"
	GroupByDomain    GroupBy = "domain"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case "":
		return GroupByExecutive, nil
	case GroupByExecutive, GroupByProduct, GroupByDomain:
		return g, nil
	}
	return "", fmt.Errorf("unknown group_by %q", s)
}

type GroupStats struct {
	Key           string  `json:"id"`
	Label         string  `json:"label"`
	Conversations int     `json:"conversations"`
	TotalScore    float64 `json:"total_score"`
	AvgScore      float64 `json:"avg_score"`
	PassCount     int     `json:"pass_count"`
	FailCount     int     `json:"fail_count"`
	PassRate      float64 `json:"pass_rate"`
}

type Overview struct {
	TotalConversations int     `json:"total_conversations"`
	AvgScore           float64 `json:"avg_score"`
	PassRate           float64 `json:"pass_rate"`
	UniqueExecutives   int     `json:"unique_executives"`
}

type Report struct {
	Overview
	GroupBy GroupBy      `json:"group_by"`
	Groups  []GroupStats `json:"groups"`
}

// Aggregate filters convs and computes per-group and overall statistics.
// Groups appear in first-seen order. An empty selection yields zeroed stats.
func Aggregate(convs []types.Conversation, catalog types.Catalog, f Filter, groupBy GroupBy) Report {
	if groupBy == "" {
		groupBy = GroupByExecutive
	}
	selected := Apply(convs, f.Predicates(catalog)...)

	rep := Report{GroupBy: groupBy, Groups: []GroupStats{}}
	index := map[string]int{}
	executives := map[string]struct{}{}
	var sum float64
	var passes int

	for _, c := range selected {
		score := scoring.ResolveTotalScore(c)
		class := scoring.ClassifyStatus(scoring.ResolveStatus(c))

		sum += score
		if class == scoring.StatusPositive {
			passes++
		}
		executives[c.ExecutiveID] = struct{}{}

		key, label := groupKey(c, catalog, groupBy)
		i, ok := index[key]
		if !ok {
			i = len(rep.Groups)
			index[key] = i
			rep.Groups = append(rep.Groups, GroupStats{Key: key, Label: label})
		}
		g := &rep.Groups[i]
		g.Conversations++
		g.TotalScore += score
		switch class {
		case scoring.StatusPositive:
			g.PassCount++
		case scoring.StatusNegative:
			g.FailCount++
		}
	}

	for i := range rep.Groups {
		g := &rep.Groups[i]
		g.AvgScore = ratio(g.TotalScore, g.Conversations)
		g.PassRate = ratio(float64(g.PassCount), g.Conversations) * 100
	}

	rep.TotalConversations = len(selected)
	rep.AvgScore = ratio(sum, len(selected))
	rep.PassRate = ratio(float64(passes), len(selected)) * 100
	rep.UniqueExecutives = len(executives)
	return rep
}

func ratio(v float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return v / float64(n)
}

func groupKey(c types.Conversation, catalog types.Catalog, groupBy GroupBy) (string, string) {
	switch groupBy {
	case GroupByProduct:
		if p, ok := catalog.Lookup(c.ProductID); ok && p.Name != "" {
			return c.ProductID, p.Name
		}
		return c.ProductID, "Unknown"
	case GroupByDomain:
		d := catalog.DomainOf(c.ProductID)
		if d == "" {
			return "", "Unknown"
		}
		return d, d
	default:
		return c.ExecutiveID, emailOrUnknown(c.ExecutiveEmail)
	}
}

func emailOrUnknown(email string) string {
	if email == "" {
		return "Unknown"
	}
	return email
}
