package aggregator

import "scorecard-insights-go/internal/types"

type ExecutiveRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Executives lists the distinct executives in convs, restricted to domain
// when one is given. It backs the executive filter drop-down, so it ignores
// the product, executive and date filters.
func Executives(convs []types.Conversation, catalog types.Catalog, domain string) []ExecutiveRef {
	if domain != "" {
		convs = Apply(convs, ByDomain(domain, catalog))
	}
	seen := map[string]bool{}
	out := []ExecutiveRef{}
	for _, c := range convs {
		if seen[c.ExecutiveID] {
			continue
		}
		seen[c.ExecutiveID] = true
		out = append(out, ExecutiveRef{ID: c.ExecutiveID, Email: emailOrUnknown(c.ExecutiveEmail)})
	}
	return out
}
