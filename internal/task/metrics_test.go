package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/stack-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandleEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ctx := context.Background()
	id := uuid.New()

	emit := func(typ events.EventType, runtime time.Duration) {
		e := events.NewTaskEvent(typ, id, NameAdd, QueueShared, "alpha@host")
		e.Runtime = runtime
		require.NoError(t, m.HandleEvent(ctx, e))
	}

	emit(events.TaskReceived, 0)
	emit(events.TaskStarted, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active.WithLabelValues(NameAdd)))

	emit(events.TaskSucceeded, 20*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.active.WithLabelValues(NameAdd)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("task-succeeded", NameAdd, QueueShared)))

	emit(events.TaskFailed, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.active.WithLabelValues(NameAdd)),
		"a failure without runtime never started")
	assert.Equal(t, 1, testutil.CollectAndCount(m.runtime))
}
