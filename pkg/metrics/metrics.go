// Package metrics defines the Prometheus metric collectors used by the stats
// server and the counter daemon, and exposes an HTTP handler for scraping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	CounterQueriesTotal  *prometheus.CounterVec
	CounterQueryLatency  *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CounterEventsTotal   *prometheus.CounterVec
	ArchiveRunsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		CounterQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "counter_queries_total",
				Help: "Aggregate counter data queries by handler and outcome (ok, error).",
			},
			[]string{"handler", "outcome"},
		),
		CounterQueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "counter_query_latency_seconds",
				Help:    "Latency of aggregate counter data lookups in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"handler"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "counter_cache_hits_total",
				Help: "Total number of counter data cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "counter_cache_misses_total",
				Help: "Total number of counter data cache misses.",
			},
		),
		CounterEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "counter_events_total",
				Help: "Counter increment events by result (applied, invalid, failed).",
			},
			[]string{"result"},
		),
		ArchiveRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "counter_archive_runs_total",
				Help: "Redis to Postgres archive runs by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CounterQueriesTotal,
		m.CounterQueryLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CounterEventsTotal,
		m.ArchiveRunsTotal,
	)

	return m
}

