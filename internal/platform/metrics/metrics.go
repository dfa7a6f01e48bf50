package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the donations ledger.
type Metrics struct {
	Mutations       *prometheus.CounterVec
	GuardConflicts  *prometheus.CounterVec
	AuditRecorded   prometheus.Counter
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New registers the ledger metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donations_mutations_total",
			Help: "Committed ledger mutations by entity kind and operation",
		}, []string{"kind", "operation"}),
		GuardConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donations_guard_conflicts_total",
			Help: "Deletes refused because dependents still reference the entity",
		}, []string{"kind"}),
		AuditRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "donations_audit_entries_recorded_total",
			Help: "Audit entries committed alongside their mutation",
		}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "donations_audit_outbox_published_total",
			Help: "Audit entries forwarded to the event stream",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "donations_audit_outbox_failures_total",
			Help: "Outbox drains that stopped on a publish failure",
		}),
	}
}

// IncMutation counts one committed mutation and the audit entry it wrote.
func (m *Metrics) IncMutation(kind, operation string) {
	m.Mutations.WithLabelValues(kind, operation).Inc()
	m.AuditRecorded.Inc()
}

func (m *Metrics) IncGuardConflict(kind string) {
	m.GuardConflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncOutboxPublished(n int) {
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncOutboxFailures() {
	m.OutboxFailures.Inc()
}
