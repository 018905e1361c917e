// Package pipeline implements the one-shot ingestion jobs: node ingest,
// commune enrichment, station and museum ingest, and the monthly weather
// averages pipeline. Each job reads from a source, transforms with the domain
// package and upserts into a store, recording every skipped unit instead of
// aborting the batch.
package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// Job names, used as the "job" metric label and in reports.
const (
	JobIngestNodes     = "ingest_nodes"
	JobEnrichInsee     = "enrich_insee"
	JobIngestStations  = "ingest_stations"
	JobIngestMuseums   = "ingest_museums"
	JobWeatherAverages = "weather_averages"
)

// Summary counts the units of work a job handled.
type Summary struct {
	Job       string
	Processed int
	Succeeded int
	Errored   int
	Skipped   int
	Failures  []domain.Failure
}

// tally records outcomes into a Summary and the items_total counter together.
type tally struct {
	summary *Summary
	metrics *observability.Metrics
}

func newTally(job string, metrics *observability.Metrics) *tally {
	return &tally{summary: &Summary{Job: job}, metrics: metrics}
}

func (t *tally) ok() {
	t.summary.Processed++
	t.summary.Succeeded++
	t.metrics.Items.WithLabelValues(t.summary.Job, "ok").Inc()
}

func (t *tally) errored(f domain.Failure) {
	t.summary.Processed++
	t.summary.Errored++
	t.summary.Failures = append(t.summary.Failures, f)
	t.metrics.Items.WithLabelValues(t.summary.Job, "error").Inc()
}

func (t *tally) skipped(f domain.Failure) {
	t.summary.Processed++
	t.summary.Skipped++
	t.summary.Failures = append(t.summary.Failures, f)
	t.metrics.Items.WithLabelValues(t.summary.Job, "skipped").Inc()
}

// LogValue implements slog.LogValuer.
func (s *Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("job", s.Job),
		slog.Int("processed", s.Processed),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("errored", s.Errored),
		slog.Int("skipped", s.Skipped),
	)
}
