package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncMutation("Donor", "INSERT")
	m.IncMutation("Donor", "INSERT")
	m.IncMutation("Pledge", "DELETE")
	m.IncGuardConflict("Donor")
	m.IncOutboxPublished(3)
	m.IncOutboxFailures()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("Donor", "INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("Pledge", "DELETE")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuditRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardConflicts.WithLabelValues("Donor")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxFailures))
}
