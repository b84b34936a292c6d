package auth

import (
	"fmt"

	"scorecard-insights-go/internal/types"
)

// Scope is the data slice a dashboard request asks for. Empty fields mean
// "all".
type Scope struct {
	ProductID   string `json:"product_id,omitempty"`
	ExecutiveID string `json:"executive_id,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// AccessibleProducts filters products to those the user may see. Admins see
// everything; everyone else sees their own domain.
func AccessibleProducts(p types.UserProfile, products []types.Product) []types.Product {
	if p.Role.IsAdmin() {
		return products
	}
	out := []types.Product{}
	for _, prod := range products {
		if prod.Domain == p.Domain {
			out = append(out, prod)
		}
	}
	return out
}

// ScopeFor narrows a requested scope to what the user may see. Non-admins are
// pinned to their domain, and executives are always pinned to their own
// executive id whatever they asked for. Asking for another domain, or for a
// product outside it, is ErrForbidden, and so is any request from a non-admin
// without a domain.
func ScopeFor(p types.UserProfile, requested Scope, catalog types.Catalog) (Scope, error) {
	if p.Role.IsAdmin() {
		return requested, nil
	}

	if p.Domain == "" {
		return Scope{}, fmt.Errorf("%w: no domain assigned to %s %q", ErrForbidden, p.Role, p.ID)
	}

	s := requested
	if s.Domain != "" && s.Domain != p.Domain {
		return Scope{}, fmt.Errorf("%w: domain %q", ErrForbidden, s.Domain)
	}
	s.Domain = p.Domain

	if s.ProductID != "" {
		if prod, ok := catalog.Lookup(s.ProductID); !ok || prod.Domain != p.Domain {
			return Scope{}, fmt.Errorf("%w: product %q", ErrForbidden, s.ProductID)
		}
	}

	if p.Role == types.RoleExecutive {
		s.ExecutiveID = p.ID
	}
	return s, nil
}
