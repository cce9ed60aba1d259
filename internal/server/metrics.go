// Package server exposes the metrics endpoint for long series runs: a small
// HTTP server publishing Prometheus metrics about the fit loop, plus a health
// probe. The driver knows nothing about it; the wiring goes through the
// series.Observer interface.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenlab/holofit/internal/series"
)

// namespace prefixes every metric this package registers.
const namespace = "holofit"

// Metrics holds the Prometheus instruments for a series run. Each Metrics
// value carries its own registry so independent runs (and tests) do not
// collide on metric registration.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	framesFitted   prometheus.Counter
	checkpointHits prometheus.Counter
	fitDuration    prometheus.Histogram
	activeSeries   prometheus.Gauge

	requestsTotal  prometheus.Counter
	activeRequests prometheus.Gauge
}

// Metrics feeds the fit loop's measurement events into Prometheus.
var _ series.Observer = (*Metrics)(nil)

// NewMetrics creates a Metrics with all instruments registered on a fresh
// registry, alongside the standard Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		framesFitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_fitted_total",
			Help:      "Number of frames fitted fresh (checkpoint loads excluded).",
		}),
		checkpointHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_hits_total",
			Help:      "Number of frames satisfied from a checkpoint on restart.",
		}),
		fitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall-clock duration of single-frame fits.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		activeSeries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_series",
			Help:      "Number of series fits currently running.",
		}),
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the metrics endpoint.",
		}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "HTTP requests currently in flight.",
		}),
	}
}

// FrameFitted records a successful fresh fit and its duration.
func (m *Metrics) FrameFitted(_ int, d time.Duration) {
	m.framesFitted.Inc()
	m.fitDuration.Observe(d.Seconds())
}

// CheckpointHit records a frame satisfied from a checkpoint.
func (m *Metrics) CheckpointHit(_ int) {
	m.checkpointHits.Inc()
}

// SeriesStarted marks a series run as in flight.
func (m *Metrics) SeriesStarted() { m.activeSeries.Inc() }

// SeriesDone marks a series run as finished.
func (m *Metrics) SeriesDone() { m.activeSeries.Dec() }

// IncrementActiveRequests marks an HTTP request as in flight.
func (m *Metrics) IncrementActiveRequests() {
	m.activeRequests.Inc()
	m.requestsTotal.Inc()
}

// DecrementActiveRequests marks an HTTP request as finished.
func (m *Metrics) DecrementActiveRequests() {
	m.activeRequests.Dec()
}

// WritePrometheus serves the registry in the Prometheus exposition format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
