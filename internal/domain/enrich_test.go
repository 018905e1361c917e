package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

// --- mock locator ---

type mockLocator struct {
	result Commune
	err    error
	calls  int
}

func (m *mockLocator) LocateCommune(_ context.Context, _, _ float64) (Commune, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichNode_Found(t *testing.T) {
	loc := &mockLocator{result: Commune{
		Code:           "13055",
		Name:           "Marseille",
		DepartmentCode: "13",
		RegionCode:     "93",
		Population:     873076,
		PostalCodes:    []string{"13001", "13002"},
	}}
	node := Node{ID: 42, SNCFID: "87751008", Name: "Marseille Saint-Charles", Lat: 43.3026, Lon: 5.3806}

	rec := EnrichNode(context.Background(), node, loc, discardLogger())

	assert.True(t, rec.Found())
	assert.Equal(t, int64(42), rec.NodeID)
	assert.Equal(t, "13", rec.Commune.DepartmentCode)
	assert.Equal(t, "Marseille", rec.Commune.Name)
	assert.Equal(t, 1, loc.calls)
}

func TestEnrichNode_LookupError_GracefulDegradation(t *testing.T) {
	loc := &mockLocator{err: errors.New("HTTP 502: Bad Gateway")}

	rec := EnrichNode(context.Background(), Node{ID: 7}, loc, discardLogger())

	assert.False(t, rec.Found())
	assert.Equal(t, int64(7), rec.NodeID)
	assert.Equal(t, "HTTP 502: Bad Gateway", rec.ErrorMessage)
	assert.Empty(t, rec.Commune.DepartmentCode)
}

func TestEnrichNode_EmptyCommune(t *testing.T) {
	loc := &mockLocator{}

	rec := EnrichNode(context.Background(), Node{ID: 8}, loc, discardLogger())

	assert.False(t, rec.Found())
	assert.Equal(t, ErrCommuneNotFound.Error(), rec.ErrorMessage)
}

func TestNewFailure_UsesClock(t *testing.T) {
	at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })

	f := NewFailure(3, "87751008", "missing coordinates")

	assert.Equal(t, 3, f.Index)
	assert.Equal(t, "87751008", f.Identifier)
	assert.Equal(t, "missing coordinates", f.Reason)
	assert.Equal(t, at, f.At)
}
