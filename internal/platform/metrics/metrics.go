// Package metrics holds the Prometheus instruments for generation, loading
// and query measurement. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeFallback  = "fallback"
	OutcomeFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	RecordsInserted      prometheus.Counter
	RecordsSkipped       prometheus.Counter
	Batches              *prometheus.CounterVec
	BatchLatency         prometheus.Histogram
	GenerationAttempts   *prometheus.CounterVec
	GenerationRejections *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RecordsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "persondir_records_inserted_total",
			Help: "Total number of records committed to the store",
		}),
		RecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "persondir_records_skipped_total",
			Help: "Total number of records skipped by the per-record fallback",
		}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persondir_batches_total",
			Help: "Total number of load batches, labeled by outcome",
		}, []string{"outcome"}),
		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "persondir_batch_duration_seconds",
			Help:    "Time spent committing one batch, including fallback",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		GenerationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persondir_generation_attempts_total",
			Help: "Candidate records drawn, labeled by phase",
		}, []string{"phase"}),
		GenerationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persondir_generation_rejections_total",
			Help: "Candidates rejected by the uniqueness ledger, labeled by phase",
		}, []string{"phase"}),
		QueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "persondir_query_duration_seconds",
			Help:    "Latency of the demonstration query, labeled by index phase",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
	}
}

// Registry exposes the gatherer for tests and the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBatch records one batch outcome.
func (m *Metrics) ObserveBatch(outcome string, inserted, skipped int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
	m.RecordsInserted.Add(float64(inserted))
	m.RecordsSkipped.Add(float64(skipped))
	m.BatchLatency.Observe(elapsed.Seconds())
}

// ObserveGeneration records the draws of one generation phase.
func (m *Metrics) ObserveGeneration(phase string, attempts, rejected int) {
	if m == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(phase).Add(float64(attempts))
	m.GenerationRejections.WithLabelValues(phase).Add(float64(rejected))
}

// ObserveQuery records one timed query execution.
func (m *Metrics) ObserveQuery(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueryLatency.WithLabelValues(phase).Observe(elapsed.Seconds())
}
