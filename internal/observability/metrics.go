package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "transit_etl"

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// ingestion commands.
type Metrics struct {
	JobRunning   prometheus.Gauge
	Items        *prometheus.CounterVec // labels: job, outcome={ok,error,skipped}
	RowsUpserted *prometheus.CounterVec // labels: table

	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: service, outcome={success,error,transient}
	UpstreamRetries  *prometheus.CounterVec   // labels: service
	UpstreamDuration *prometheus.HistogramVec // labels: service

	// Memoization metrics for the commune LRU and the station-year cache.
	CacheLookups   *prometheus.CounterVec // labels: cache={commune,station_year}, result={hit,miss}
	UnmatchedNodes prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.JobRunning,
		m.Items,
		m.RowsUpserted,
		m.UpstreamRequests,
		m.UpstreamRetries,
		m.UpstreamDuration,
		m.CacheLookups,
		m.UnmatchedNodes,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while an ingestion job is running, 0 otherwise.",
		}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Units of work handled by a job, by outcome.",
		}, []string{"job", "outcome"}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Rows written to the SQLite store, by table.",
		}, []string{"table"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "HTTP requests sent to upstream APIs, by service and outcome.",
		}, []string{"service", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Backoff retries scheduled after transient upstream failures.",
		}, []string{"service"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		UnmatchedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_nodes",
			Help:      "Nodes without an open weather station in their department during the last match.",
		}),
	}
}
