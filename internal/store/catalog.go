package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"scorecard-insights-go/internal/types"
)

type ProductFetcher interface {
	Fetch(ctx context.Context) ([]types.Product, error)
}

const catalogKey = "catalog"

// CachedCatalog keeps the product catalog in memory for ttl. Products change
// rarely; the change feed calls Invalidate when they do.
type CachedCatalog struct {
	products ProductFetcher
	cache    *cache.Cache
}

func NewCachedCatalog(products ProductFetcher, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		products: products,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (c *CachedCatalog) Catalog(ctx context.Context) (types.Catalog, error) {
	if x, found := c.cache.Get(catalogKey); found {
		return x.(types.Catalog), nil
	}
	products, err := c.products.Fetch(ctx)
	if err != nil {
		return types.Catalog{}, err
	}
	catalog := types.NewCatalog(products)
	c.cache.Set(catalogKey, catalog, cache.DefaultExpiration)
	return catalog, nil
}

func (c *CachedCatalog) Invalidate() {
	c.cache.Delete(catalogKey)
}
