// Package metrics exposes Prometheus counters for transitions, the competency
// gate and progress updates. A nil *Metrics is a valid no-op recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "equipment"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	transitions   *prometheus.CounterVec
	gate          *prometheus.CounterVec
	progress      *prometheus.CounterVec
	auditFailures prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Equipment state transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "competency_checks_total",
			Help:      "Competency gate evaluations by resulting status.",
		}, []string{"status"}),
		progress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Progress ledger writes by operation and outcome.",
		}, []string{"operation", "outcome"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit notes that could not be written after a successful transition.",
		}),
	}
	reg.MustRegister(m.transitions, m.gate, m.progress, m.auditFailures)
	return m
}

func (m *Metrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveGate(status string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveProgress(operation, outcome string) {
	if m == nil {
		return
	}
	m.progress.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}
