package types

import "sort"

// Catalog indexes products by id. Conversations carry only a product id, so
// domain and schema are always resolved through it.
type Catalog struct {
	byID  map[string]Product
	order []string
}

func NewCatalog(products []Product) Catalog {
	c := Catalog{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; !dup {
			c.order = append(c.order, p.ID)
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c Catalog) DomainOf(productID string) string {
	return c.byID[productID].Domain
}

func (c Catalog) Len() int { return len(c.order) }

// Products returns products in the order they were supplied.
func (c Catalog) Products() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Domains returns the sorted set of distinct product domains.
func (c Catalog) Domains() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range c.byID {
		if p.Domain == "" || seen[p.Domain] {
			continue
		}
		seen[p.Domain] = true
		out = append(out, p.Domain)
	}
	sort.Strings(out)
	return out
}
