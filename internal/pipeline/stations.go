package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// StationLister lists the observation stations of one department.
type StationLister interface {
	ListStations(ctx context.Context, departmentCode string) ([]domain.WeatherStation, error)
}

// StationStore persists stations and knows which departments hold nodes.
type StationStore interface {
	DepartmentCodes(ctx context.Context) ([]string, error)
	UpsertStations(ctx context.Context, stations []domain.WeatherStation) (int, error)
}

// IngestStations fetches and stores the stations of each department. When
// departments is empty the departments of already-enriched nodes are used.
// A department whose listing fails is recorded and skipped.
func IngestStations(ctx context.Context, lister StationLister, store StationStore, departments []string, metrics *observability.Metrics, logger *slog.Logger) (*Summary, error) {
	t := newTally(JobIngestStations, metrics)

	if len(departments) == 0 {
		var err error
		departments, err = store.DepartmentCodes(ctx)
		if err != nil {
			return t.summary, fmt.Errorf("load department codes: %w", err)
		}
	}
	if len(departments) == 0 {
		logger.Warn("no departments to ingest, run enrich-insee first or pass -departments")
		return t.summary, nil
	}
	logger.Info("ingesting weather stations", "departments", len(departments))

	total := 0
	for i, dept := range departments {
		stations, err := lister.ListStations(ctx, dept)
		if err != nil {
			if ctx.Err() != nil {
				return t.summary, ctx.Err()
			}
			logger.Warn("station listing failed", "department", dept, "error", err)
			t.errored(domain.NewFailure(i, dept, err.Error()))
			continue
		}

		n, err := store.UpsertStations(ctx, stations)
		if err != nil {
			return t.summary, fmt.Errorf("store stations of department %s: %w", dept, err)
		}
		total += n
		t.ok()
		logger.Info("department stations stored", "department", dept, "stations", n)
	}

	logger.Info("weather stations ingested", "stations", total)
	return t.summary, nil
}
