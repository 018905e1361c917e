package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

const (
	weatherProgressEvery = 10
	// weatherBatchNodes nodes (twelve rows each) are committed together.
	weatherBatchNodes = 100

	stationYearCache = "station_year"
)

// WeatherFetcher downloads one calendar year of a station's monthly extract.
type WeatherFetcher interface {
	FetchYear(ctx context.Context, stationID string, year int) (string, error)
}

// WeatherStore reads the matching inputs and persists monthly averages.
type WeatherStore interface {
	OpenStations(ctx context.Context) ([]domain.WeatherStation, error)
	LocatedNodes(ctx context.Context) ([]domain.LocatedNode, error)
	UpsertMonthlyAverages(ctx context.Context, rows []domain.MonthlyAverage) (int, error)
}

// Publisher ships stored monthly averages downstream.
type Publisher interface {
	Publish(ctx context.Context, rows []domain.MonthlyAverage) error
}

type stationYear struct {
	stationID string
	year      int
}

// fetchResult memoizes one station-year fetch, failures included, so a
// station shared by many nodes is only requested once per run.
type fetchResult struct {
	data string
	err  error
}

// WeatherPipeline matches every located node to its nearest open station in
// the same department, fetches the station's monthly data for each year,
// and stores twelve per-month averages per node.
type WeatherPipeline struct {
	fetcher   WeatherFetcher
	store     WeatherStore
	publisher Publisher
	years     []int
	metrics   *observability.Metrics
	logger    *slog.Logger

	cache    map[stationYear]fetchResult
	requests int
}

// NewWeatherPipeline creates a pipeline over the given years. publisher may
// be nil to skip publication.
func NewWeatherPipeline(fetcher WeatherFetcher, store WeatherStore, publisher Publisher, years []int, metrics *observability.Metrics, logger *slog.Logger) *WeatherPipeline {
	return &WeatherPipeline{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		years:     years,
		metrics:   metrics,
		logger:    logger,
		cache:     make(map[stationYear]fetchResult),
	}
}

// Run executes one full pass. Node-level failures are recorded in the
// summary; only store errors and cancellation abort the run.
func (p *WeatherPipeline) Run(ctx context.Context) (*Summary, error) {
	t := newTally(JobWeatherAverages, p.metrics)

	stations, err := p.store.OpenStations(ctx)
	if err != nil {
		return t.summary, fmt.Errorf("load stations: %w", err)
	}
	nodes, err := p.store.LocatedNodes(ctx)
	if err != nil {
		return t.summary, fmt.Errorf("load located nodes: %w", err)
	}

	idx := domain.NewStationIndex(stations)
	matched := domain.MatchNearest(idx, nodes)
	p.metrics.UnmatchedNodes.Set(float64(matched.Unmatched))
	level := slog.LevelInfo
	if matched.Unmatched > 0 {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "nodes matched to weather stations",
		"nodes", len(nodes),
		"stations", idx.Size(),
		"departments", len(idx),
		"matched", len(matched.Matches),
		"unmatched", matched.Unmatched,
	)

	maxRequests := len(matched.Matches) * len(p.years)
	batch := make([]domain.MonthlyAverage, 0, weatherBatchNodes*12)
	batchNodes := 0

	for i, node := range nodes {
		m, ok := matched.Matches[node.ID]
		if !ok {
			t.skipped(domain.NewFailure(i, node.SNCFID,
				fmt.Sprintf("no open weather station in department %s", node.DepartmentCode)))
			continue
		}

		csvByYear, err := p.fetchYears(ctx, i, node, m.Station, t, maxRequests)
		if err != nil {
			if ferr := p.flush(context.WithoutCancel(ctx), batch); ferr != nil {
				p.logger.Error("flush after interruption failed", "error", ferr)
			}
			return t.summary, err
		}
		if len(csvByYear) == 0 {
			t.errored(domain.NewFailure(i, node.SNCFID,
				fmt.Sprintf("no weather data fetched for station %s", m.Station.StationID)))
			continue
		}

		monthly := domain.AggregateMonthly(csvByYear)
		for month := 1; month <= 12; month++ {
			batch = append(batch, domain.MonthlyAverage{
				NodeID:        node.ID,
				StationID:     m.Station.ID,
				Month:         month,
				MonthlyFields: monthly[month],
			})
		}
		t.ok()
		p.logger.Debug("node averaged",
			"node_id", node.ID,
			"station_id", m.Station.StationID,
			"distance_km", m.DistanceKm,
			"years", len(csvByYear),
		)

		batchNodes++
		if batchNodes == weatherBatchNodes {
			if err := p.flush(ctx, batch); err != nil {
				return t.summary, err
			}
			batch = batch[:0]
			batchNodes = 0
		}
	}

	if err := p.flush(ctx, batch); err != nil {
		return t.summary, err
	}
	p.logger.Info("weather fetch finished", "requests", p.requests, "cached_pairs", len(p.cache))
	return t.summary, nil
}

// fetchYears collects the extracts of every configured year for a station.
// Years that fail are noted on the summary and left out of the pool.
func (p *WeatherPipeline) fetchYears(ctx context.Context, index int, node domain.LocatedNode, st domain.WeatherStation, t *tally, maxRequests int) (map[int]string, error) {
	csvByYear := make(map[int]string, len(p.years))
	for _, year := range p.years {
		data, err := p.fetchStationYear(ctx, st.StationID, year, maxRequests)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("weather fetch failed",
				"node_id", node.ID,
				"station_id", st.StationID,
				"year", year,
				"error", err,
			)
			t.summary.Failures = append(t.summary.Failures, domain.NewFailure(index,
				fmt.Sprintf("%s/%s/%d", node.SNCFID, st.StationID, year), err.Error()))
			continue
		}
		csvByYear[year] = data
	}
	return csvByYear, nil
}

func (p *WeatherPipeline) fetchStationYear(ctx context.Context, stationID string, year int, maxRequests int) (string, error) {
	key := stationYear{stationID: stationID, year: year}
	if r, ok := p.cache[key]; ok {
		p.metrics.CacheLookups.WithLabelValues(stationYearCache, "hit").Inc()
		return r.data, r.err
	}
	p.metrics.CacheLookups.WithLabelValues(stationYearCache, "miss").Inc()

	data, err := p.fetcher.FetchYear(ctx, stationID, year)
	if err != nil && ctx.Err() != nil {
		return "", err
	}
	p.cache[key] = fetchResult{data: data, err: err}

	p.requests++
	if p.requests%weatherProgressEvery == 0 {
		p.logger.Info("weather fetch progress", "requests", p.requests, "max", maxRequests)
	}
	return data, err
}

// flush stores a batch and, when configured, publishes it. Publication
// failures are logged; the store stays the source of truth.
func (p *WeatherPipeline) flush(ctx context.Context, rows []domain.MonthlyAverage) error {
	if len(rows) == 0 {
		return nil
	}
	n, err := p.store.UpsertMonthlyAverages(ctx, rows)
	if err != nil {
		return fmt.Errorf("store monthly averages: %w", err)
	}
	p.logger.Info("monthly averages committed", "rows", n)

	if p.publisher == nil {
		return nil
	}
	if err := p.publisher.Publish(ctx, rows); err != nil {
		p.logger.Error("publish monthly averages failed", "rows", len(rows), "error", err)
	}
	return nil
}
