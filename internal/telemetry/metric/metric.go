// Package metric provides Prometheus metrics for tokpass.
//
// A CLI process is short-lived, so metrics are kept on a private registry
// and flushed to a node_exporter textfile on exit instead of being scraped.
package metric

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tokpass"

// Login outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeAuth       = "auth"
	OutcomeConnection = "connection"
	OutcomeUnexpected = "unexpected"
	OutcomeThrottled  = "throttled"
	OutcomeInFlight   = "in_flight"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	LoginAttempts       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	StorageReadFailures prometheus.Counter
	SessionState        *prometheus.GaugeVec
}

// NewRegistry creates and registers all metrics on a fresh registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "attempts_total",
			Help:      "Login form submissions by outcome",
		}, []string{"outcome"}),

		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "securestore",
			Name:      "persistence_failures_total",
			Help:      "Secure storage write/delete failures by operation",
		}, []string{"op"}),

		StorageReadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "securestore",
			Name:      "read_failures_total",
			Help:      "Secure storage reads that failed during initialize",
		}),

		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
	}

	r.registry.MustRegister(
		r.LoginAttempts,
		r.PersistenceFailures,
		r.StorageReadFailures,
		r.SessionState,
	)

	return r
}

// ObserveLogin counts a login submission outcome.
func (r *Registry) ObserveLogin(outcome string) {
	if r == nil {
		return
	}
	r.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObservePersistenceFailure counts a failed storage write or delete.
func (r *Registry) ObservePersistenceFailure(op string) {
	if r == nil {
		return
	}
	r.PersistenceFailures.WithLabelValues(op).Inc()
}

// ObserveReadFailure counts a failed storage read.
func (r *Registry) ObserveReadFailure() {
	if r == nil {
		return
	}
	r.StorageReadFailures.Inc()
}

// SetSessionState marks state as the only active session state.
func (r *Registry) SetSessionState(state string, all ...string) {
	if r == nil {
		return
	}
	for _, s := range all {
		r.SessionState.WithLabelValues(s).Set(0)
	}
	r.SessionState.WithLabelValues(state).Set(1)
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metric: write textfile: %w", err)
	}
	return nil
}
