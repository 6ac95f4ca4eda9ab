package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("lock_out", OutcomeSuccess)
	m.ObserveTransition("lock_out", OutcomeSuccess)
	m.ObserveTransition("lend", OutcomeRejected)
	m.ObserveGate("NotCompetent")
	m.ObserveProgress("reset", OutcomeSuccess)
	m.ObserveAuditFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("lock_out", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("lend", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gate.WithLabelValues("NotCompetent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.progress.WithLabelValues("reset", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditFailures))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("return", OutcomeError)
		m.ObserveGate("Clear")
		m.ObserveProgress("apply", OutcomeSuccess)
		m.ObserveAuditFailure()
	})
}
