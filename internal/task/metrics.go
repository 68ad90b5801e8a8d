package task

import (
	"context"

	"github.com/phrazzld/stack-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports task lifecycle counters and runtimes. It is fed by worker
// events and satisfies events.EventHandler.
type Metrics struct {
	events  *prometheus.CounterVec
	runtime *prometheus.HistogramVec
	active  *prometheus.GaugeVec
}

// NewMetrics registers the task collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stack",
			Subsystem: "tasks",
			Name:      "events_total",
			Help:      "Task lifecycle events by type, task name and queue.",
		}, []string{"event", "task", "queue"}),
		runtime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stack",
			Subsystem: "tasks",
			Name:      "runtime_seconds",
			Help:      "Task execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"task", "state"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stack",
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Tasks currently executing.",
		}, []string{"task"}),
	}
}

// HandleEvent implements events.EventHandler.
func (m *Metrics) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	m.events.WithLabelValues(string(event.Type), event.TaskName, event.Queue).Inc()

	switch event.Type {
	case events.TaskStarted:
		m.active.WithLabelValues(event.TaskName).Inc()
	case events.TaskSucceeded:
		m.active.WithLabelValues(event.TaskName).Dec()
		m.runtime.WithLabelValues(event.TaskName, string(StateSuccess)).Observe(event.Runtime.Seconds())
	case events.TaskFailed:
		// Unknown tasks and chain links fail without ever starting.
		if event.Runtime > 0 {
			m.active.WithLabelValues(event.TaskName).Dec()
			m.runtime.WithLabelValues(event.TaskName, string(StateFailure)).Observe(event.Runtime.Seconds())
		}
	}
	return nil
}

var _ events.EventHandler = (*Metrics)(nil)
