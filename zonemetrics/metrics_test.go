package zonemetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zone "github.com/attax1994/zone.js"
)

func noop(args ...any) any { return nil }

func newInstrumentedZone(t *testing.T) (*zone.Zone, *Metrics) {
	t.Helper()
	e, err := zone.NewEngine()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := MustNew("app", reg)
	return e.Root().Fork(m.Spec()), m
}

func TestMetrics_ScheduleInvokeCounters(t *testing.T) {
	z, m := newInstrumentedZone(t)

	task := z.ScheduleMacroTask("op", noop, nil, func(*zone.Task) {}, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scheduled.WithLabelValues("app", "macroTask")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.invoked.WithLabelValues("app", "macroTask")))

	z.RunTask(task)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoked.WithLabelValues("app", "macroTask")))
}

func TestMetrics_CancelCounter(t *testing.T) {
	z, m := newInstrumentedZone(t)

	task := z.ScheduleMacroTask("op", noop, nil, func(*zone.Task) {}, func(*zone.Task) {})
	z.CancelTask(task)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelled.WithLabelValues("app", "macroTask")))
}

func TestMetrics_PendingGaugeFollowsHasTask(t *testing.T) {
	z, m := newInstrumentedZone(t)

	task := z.ScheduleEventTask("listener", noop, nil, func(*zone.Task) {}, func(*zone.Task) {})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending.WithLabelValues("app", "eventTask")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pending.WithLabelValues("app", "macroTask")))

	z.CancelTask(task)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pending.WithLabelValues("app", "eventTask")))
}

func TestMetrics_ErrorCounter(t *testing.T) {
	z, m := newInstrumentedZone(t)

	// The spec forwards to the parent chain (root default: propagate), so the
	// guarded run still panics while the counter increments.
	assert.Panics(t, func() {
		z.RunGuarded(func(args ...any) any { panic(errors.New("boom")) })
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors))
}

func TestMetrics_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("app", reg)
	require.NoError(t, err)
	_, err = New("app", reg)
	assert.Error(t, err)
}
