package geoapi

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingLocator struct {
	calls  int
	result domain.Commune
	err    error
}

func (m *countingLocator) LocateCommune(_ context.Context, _, _ float64) (domain.Commune, error) {
	m.calls++
	return m.result, m.err
}

// --- CachedLocator tests ---

func TestCachedLocator_CacheHit(t *testing.T) {
	inner := &countingLocator{result: domain.Commune{Code: "75056", Name: "Paris", DepartmentCode: "75"}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLocator(inner, 10, metrics)

	c1, err := cached.LocateCommune(context.Background(), 48.8443, 2.3744)
	require.NoError(t, err)
	assert.Equal(t, "Paris", c1.Name)

	c2, err := cached.LocateCommune(context.Background(), 48.8443, 2.3744)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(cacheName, "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(cacheName, "miss")), 0)
}

func TestCachedLocator_KeyRoundsToMicrodegrees(t *testing.T) {
	inner := &countingLocator{result: domain.Commune{Code: "75056"}}
	cached := NewCachedLocator(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.LocateCommune(context.Background(), 48.8443001, 2.3744001)
	_, _ = cached.LocateCommune(context.Background(), 48.8443002, 2.3744002)
	_, _ = cached.LocateCommune(context.Background(), 48.8444, 2.3744)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedLocator_ErrorsNotCached(t *testing.T) {
	inner := &countingLocator{err: errors.New("HTTP 500: boom")}
	cached := NewCachedLocator(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.LocateCommune(context.Background(), 45.76, 4.83)
	require.Error(t, err)
	_, err = cached.LocateCommune(context.Background(), 45.76, 4.83)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedLocator_NotFoundNotCached(t *testing.T) {
	inner := &countingLocator{err: domain.ErrCommuneNotFound}
	cached := NewCachedLocator(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.LocateCommune(context.Background(), 0, 0)
	require.ErrorIs(t, err, domain.ErrCommuneNotFound)

	inner.err = nil
	inner.result = domain.Commune{Code: "00000"}
	c, err := cached.LocateCommune(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "00000", c.Code)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedLocator_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingLocator{result: domain.Commune{Code: "13055"}}
	cached := NewCachedLocator(inner, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	_, _ = cached.LocateCommune(ctx, 1, 1)
	_, _ = cached.LocateCommune(ctx, 2, 2)
	_, _ = cached.LocateCommune(ctx, 1, 1) // refreshes (1, 1)
	_, _ = cached.LocateCommune(ctx, 3, 3) // evicts (2, 2)
	assert.Equal(t, 3, inner.calls)

	_, _ = cached.LocateCommune(ctx, 1, 1)
	assert.Equal(t, 3, inner.calls, "(1, 1) should still be cached")
	_, _ = cached.LocateCommune(ctx, 2, 2)
	assert.Equal(t, 4, inner.calls, "(2, 2) should have been evicted")
}

func TestCachedLocator_NonPositiveSizeKeepsOneEntry(t *testing.T) {
	inner := &countingLocator{result: domain.Commune{Code: "13055"}}
	cached := NewCachedLocator(inner, 0, observability.NewMetricsForTesting())

	_, _ = cached.LocateCommune(context.Background(), 1, 1)
	_, _ = cached.LocateCommune(context.Background(), 1, 1)
	assert.Equal(t, 1, inner.calls)
}
