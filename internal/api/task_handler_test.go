package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stack-api/internal/task"
	"github.com/phrazzld/stack-api/internal/task/tasks"
)

// startTaskStack runs in-memory alpha and beta workers and returns a client
// publishing to them. registries overrides the registration of a worker.
func startTaskStack(t *testing.T, registries map[string]func(*task.Registry) error) (*task.Client, *task.MemoryBroker) {
	t.Helper()

	broker := task.NewMemoryBroker(64, discardLogger)
	backend := task.NewMemoryBackend()
	client := task.NewClient(broker, backend, task.NewRouter(task.DefaultRoutes()), discardLogger,
		task.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, len(registries))
	for name, register := range registries {
		registry := task.NewRegistry()
		require.NoError(t, register(registry))
		w := task.NewWorker(task.WorkerConfig{
			Name:        name,
			Queues:      tasks.Workers[name].Queues,
			Concurrency: 2,
		}, broker, backend, registry, nil, discardLogger)
		go func() {
			_ = w.Run(ctx)
			done <- struct{}{}
		}()
	}
	t.Cleanup(func() {
		cancel()
		for range registries {
			<-done
		}
		_ = broker.Close()
	})
	return client, broker
}

func defaultWorkers() map[string]func(*task.Registry) error {
	return map[string]func(*task.Registry) error{
		task.QueueAlpha: tasks.RegisterAlpha,
		task.QueueBeta:  tasks.RegisterBeta,
	}
}

func TestTaskHandler_Add(t *testing.T) {
	client, broker := startTaskStack(t, nil)
	h := NewTaskHandler(client, time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.Add), http.MethodPost, "/tasks/add", `{"a": 1, "b": 2}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task add submitted successfully", decodeBody[MessageResponse](t, rec).Message)
	assert.Equal(t, 1, broker.Len(task.QueueShared))
}

func TestTaskHandler_AddWait(t *testing.T) {
	client, _ := startTaskStack(t, defaultWorkers())
	h := NewTaskHandler(client, 5*time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.AddWait), http.MethodPost, "/tasks/add-wait", `{"a": 1.5, "b": 2}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"s": 3.5}`, rec.Body.String())
}

func TestTaskHandler_MultiplyWait(t *testing.T) {
	client, _ := startTaskStack(t, defaultWorkers())
	h := NewTaskHandler(client, 5*time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.MultiplyWait), http.MethodPost, "/tasks/multiply-wait", `{"a": 3, "b": -4}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"s": -12}`, rec.Body.String())
}

func TestTaskHandler_MultiplyBySummationWait(t *testing.T) {
	client, _ := startTaskStack(t, defaultWorkers())
	h := NewTaskHandler(client, 5*time.Second, discardLogger)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{"b is zero", `{"a": 7, "b": 0}`, http.StatusOK, `{"s": 0}`},
		{"b is one", `{"a": 7, "b": 1}`, http.StatusOK, `{"s": 7}`},
		{"two links", `{"a": 3, "b": 2}`, http.StatusOK, `{"s": 6}`},
		{"long chain", `{"a": 3, "b": 5}`, http.StatusOK, `{"s": 15}`},
		{"negative a", `{"a": -2, "b": 4}`, http.StatusOK, `{"s": -8}`},
		{"negative b", `{"a": 3, "b": -1}`, http.StatusUnprocessableEntity, `{"detail": "Invalid b: too small"}`},
		{"b too large", `{"a": 3, "b": 10001}`, http.StatusUnprocessableEntity, `{"detail": "Invalid b: too large"}`},
		{"missing b", `{"a": 3}`, http.StatusUnprocessableEntity, `{"detail": "Invalid b: required field"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, http.HandlerFunc(h.MultiplyBySummationWait), http.MethodPost,
				"/tasks/multiply-by-summation-wait", tc.body, nil)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestTaskHandler_SampleNormalWait(t *testing.T) {
	client, _ := startTaskStack(t, defaultWorkers())
	h := NewTaskHandler(client, 5*time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.SampleNormalWait), http.MethodPost, "/tasks/sample-normal-wait",
		`{"loc": 100, "scale": 0.000001}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 100, decodeBody[tasks.SampleResult](t, rec).S, 0.01)

	rec = serve(t, http.HandlerFunc(h.SampleNormalWait), http.MethodPost, "/tasks/sample-normal-wait",
		`{"loc": 0, "scale": 0}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid scale: too small", detail(t, rec))
}

func TestTaskHandler_TaskFailure(t *testing.T) {
	failing := func(r *task.Registry) error {
		return r.Register(task.NameAdd, func(ctx context.Context, req *task.Request) (any, error) {
			return nil, errors.New("adder is broken")
		})
	}
	client, _ := startTaskStack(t, map[string]func(*task.Registry) error{task.QueueAlpha: failing})
	h := NewTaskHandler(client, 5*time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.AddWait), http.MethodPost, "/tasks/add-wait", `{"a": 1, "b": 2}`, nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Task failed", detail(t, rec))
}

func TestTaskHandler_WaitTimeout(t *testing.T) {
	client, _ := startTaskStack(t, nil)
	h := NewTaskHandler(client, 50*time.Millisecond, discardLogger)

	rec := serve(t, http.HandlerFunc(h.MultiplyWait), http.MethodPost, "/tasks/multiply-wait", `{"a": 1, "b": 2}`, nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Timed out waiting for task result", detail(t, rec))
}

func TestTaskHandler_Validation(t *testing.T) {
	client, _ := startTaskStack(t, nil)
	h := NewTaskHandler(client, time.Second, discardLogger)

	rec := serve(t, http.HandlerFunc(h.Add), http.MethodPost, "/tasks/add", `{"a": 1}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid b: required field", detail(t, rec))

	rec = serve(t, http.HandlerFunc(h.Add), http.MethodPost, "/tasks/add", `{"a": "one", "b": 2}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid request format", detail(t, rec))
}
