package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// MuseumSource aggregates museum counts per postal code.
type MuseumSource interface {
	MuseumCounts(ctx context.Context) (domain.MuseumCensus, error)
}

// MuseumStore persists museum counts.
type MuseumStore interface {
	UpsertMuseums(ctx context.Context, counts []domain.MuseumCount) (int, error)
}

// IngestMuseums fetches museum counts and upserts them by postal code.
// Groups without a postal code or without a count are counted as skipped.
func IngestMuseums(ctx context.Context, source MuseumSource, store MuseumStore, metrics *observability.Metrics, logger *slog.Logger) (*Summary, error) {
	t := newTally(JobIngestMuseums, metrics)

	census, err := source.MuseumCounts(ctx)
	if err != nil {
		return t.summary, fmt.Errorf("fetch museum counts: %w", err)
	}
	for i := range census.SkippedNull {
		t.skipped(domain.NewFailure(i, "", "null postal code"))
	}
	for i, code := range census.NullCounts {
		t.skipped(domain.NewFailure(census.SkippedNull+i, code, "null museum count"))
	}

	n, err := store.UpsertMuseums(ctx, census.Counts)
	if err != nil {
		return t.summary, fmt.Errorf("store museum counts: %w", err)
	}
	for range n {
		t.ok()
	}

	logger.Info("museum counts ingested",
		"postal_codes", n,
		"skipped_null", census.SkippedNull,
		"null_counts", len(census.NullCounts),
		"total_groups", census.TotalCount,
	)
	return t.summary, nil
}
