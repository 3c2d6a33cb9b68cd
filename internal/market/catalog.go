// Package market lists tradable quote markets and filters them for selection.
package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"MarketLens/internal/collector"
	"MarketLens/internal/model"
)

const (
	DefaultTTL = 10 * time.Minute
	cacheKey   = "markets"
)

// Catalog caches the backend market list.
type Catalog struct {
	fetcher collector.MarketFetcher
	quote   string
	cache   *cache.Cache
}

// NewCatalog creates a catalog of markets quoted in quote.
func NewCatalog(fetcher collector.MarketFetcher, quote string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		fetcher: fetcher,
		quote:   strings.ToUpper(quote),
		cache:   cache.New(ttl, 2*ttl),
	}
}

// List returns quote markets sorted by symbol. A failed fetch is not cached.
func (c *Catalog) List(ctx context.Context) ([]model.Market, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return clone(v.([]model.Market)), nil
	}

	all, err := c.fetcher.FetchMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	prefix := c.quote + "-"
	markets := make([]model.Market, 0, len(all))
	for _, m := range all {
		if strings.HasPrefix(strings.ToUpper(m.Symbol), prefix) {
			markets = append(markets, m)
		}
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })

	c.cache.SetDefault(cacheKey, markets)
	return clone(markets), nil
}

// Invalidate drops the cached list.
func (c *Catalog) Invalidate() { c.cache.Delete(cacheKey) }

// Filter returns markets whose symbol, Korean or English name contains query,
// ignoring case. An empty query matches everything.
func Filter(markets []model.Market, query string) []model.Market {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Market, 0, len(markets))
	for _, m := range markets {
		if q == "" ||
			strings.Contains(strings.ToLower(m.Symbol), q) ||
			strings.Contains(strings.ToLower(m.KoreanName), q) ||
			strings.Contains(strings.ToLower(m.EnglishName), q) {
			out = append(out, m)
		}
	}
	return out
}

func clone(in []model.Market) []model.Market {
	out := make([]model.Market, len(in))
	copy(out, in)
	return out
}
