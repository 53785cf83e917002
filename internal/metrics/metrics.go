// Package metrics records repository activity in a private Prometheus
// registry. A CLI process is short-lived, so the registry is written to a
// node_exporter textfile instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/storage"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	subscribers  *prometheus.GaugeVec
	syncOutcomes *prometheus.CounterVec
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_repository_operations_total",
			Help: "Total number of repository operations",
		}, []string{"op", "backend", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tally_repository_operation_duration_seconds",
			Help:    "Repository operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "backend"}),

		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tally_repository_subscribers",
			Help: "Number of live habit list subscriptions",
		}, []string{"backend"}),

		syncOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_sync_outcomes_total",
			Help: "Outcomes of merging guest data into a signed-in account",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, backend storage.Backend, start time.Time, err error) {
	m.operations.WithLabelValues(op, string(backend), result(err)).Inc()
	m.duration.WithLabelValues(op, string(backend)).Observe(time.Since(start).Seconds())
}

// SyncOutcome counts one merge outcome.
func (m *Metrics) SyncOutcome(outcome string) {
	m.syncOutcomes.WithLabelValues(outcome).Inc()
}

// WriteTextfile atomically writes every metric to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// result labels an outcome by error kind so dashboards can separate
// permission problems from outages.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.KindOf(err).String()
}
