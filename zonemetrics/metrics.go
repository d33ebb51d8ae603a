// Package zonemetrics exports zone task activity as Prometheus metrics.
//
// The spec it provides layers onto any zone via the ordinary delegate chain:
// scheduling, invocation and cancellation feed counters, and the hasTask
// signal drives a pending-work gauge per task kind.
package zonemetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	zone "github.com/attax1994/zone.js"
)

// Metrics holds the collectors fed by the spec. One Metrics instance backs
// one zone subtree and every series carries its zone name as the zone label.
// Each instance registers its own collectors, so a second instance on the
// same registry fails to register.
type Metrics struct {
	scheduled *prometheus.CounterVec
	invoked   *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	pending   *prometheus.GaugeVec
	errors    prometheus.Counter

	zoneName string
}

// New creates the collectors and registers them with reg.
func New(zoneName string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zone_tasks_scheduled_total",
				Help: "Tasks scheduled in the zone subtree, by kind.",
			},
			[]string{"zone", "type"},
		),
		invoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zone_tasks_invoked_total",
				Help: "Task invocations in the zone subtree, by kind.",
			},
			[]string{"zone", "type"},
		),
		cancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zone_tasks_cancelled_total",
				Help: "Tasks cancelled in the zone subtree, by kind.",
			},
			[]string{"zone", "type"},
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zone_tasks_pending",
				Help: "Whether the zone subtree has outstanding tasks of a kind (0 or 1).",
			},
			[]string{"zone", "type"},
		),
		errors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zone_errors_total",
				Help: "Errors routed through the zone's handleError chain.",
			},
		),
		zoneName: zoneName,
	}
	for _, c := range []prometheus.Collector{m.scheduled, m.invoked, m.cancelled, m.pending, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New, panicking on registration failure.
func MustNew(zoneName string, reg prometheus.Registerer) *Metrics {
	m, err := New(zoneName, reg)
	if err != nil {
		panic(err)
	}
	return m
}

// Spec returns the zone spec feeding these collectors.
func (m *Metrics) Spec() *zone.Spec {
	return &zone.Spec{
		Name: m.zoneName,
		OnScheduleTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) *zone.Task {
			scheduled := parent.ScheduleTask(target, task)
			m.scheduled.WithLabelValues(m.zoneName, string(task.Type)).Inc()
			return scheduled
		},
		OnInvokeTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task, args []any) any {
			m.invoked.WithLabelValues(m.zoneName, string(task.Type)).Inc()
			return parent.InvokeTask(target, task, args)
		},
		OnCancelTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) any {
			value := parent.CancelTask(target, task)
			m.cancelled.WithLabelValues(m.zoneName, string(task.Type)).Inc()
			return value
		},
		OnHasTask: func(parent *zone.Delegate, _, target *zone.Zone, state zone.HasTaskState) {
			m.pending.WithLabelValues(m.zoneName, string(zone.MicroTask)).Set(boolGauge(state.MicroTask))
			m.pending.WithLabelValues(m.zoneName, string(zone.MacroTask)).Set(boolGauge(state.MacroTask))
			m.pending.WithLabelValues(m.zoneName, string(zone.EventTask)).Set(boolGauge(state.EventTask))
			parent.HasTask(target, state)
		},
		OnHandleError: func(parent *zone.Delegate, _, target *zone.Zone, err error) bool {
			m.errors.Inc()
			return parent.HandleError(target, err)
		},
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
