package geoapi

import (
	"context"
	"fmt"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheName = "commune"

// CachedLocator wraps a CommuneLocator with an in-memory LRU cache.
// Nodes sharing a station position resolve with a single request.
type CachedLocator struct {
	inner   domain.CommuneLocator
	cache   *lru.Cache[string, domain.Commune]
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator holding at
// most maxEntries communes (at least one).
func NewCachedLocator(inner domain.CommuneLocator, maxEntries int, metrics *observability.Metrics) *CachedLocator {
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, domain.Commune](max(maxEntries, 1))
	return &CachedLocator{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedLocator) LocateCommune(ctx context.Context, lat, lon float64) (domain.Commune, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if commune, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues(cacheName, "hit").Inc()
		return commune, nil
	}
	c.metrics.CacheLookups.WithLabelValues(cacheName, "miss").Inc()

	commune, err := c.inner.LocateCommune(ctx, lat, lon)
	if err != nil {
		return commune, err
	}
	// Errors are never cached so a later run can recover from a flaky upstream.
	c.cache.Add(key, commune)
	return commune, nil
}
