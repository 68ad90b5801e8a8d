package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/stack-api/internal/config"
	"github.com/phrazzld/stack-api/internal/events"
	"github.com/phrazzld/stack-api/internal/task"
	"github.com/phrazzld/stack-api/internal/task/tasks"
)

// ErrUnknownWorker is returned for a worker name with no task group.
var ErrUnknownWorker = errors.New("unknown worker")

const metricsShutdownTimeout = 5 * time.Second

// newWorker builds the worker for the named group. Queues configured in cfg
// replace the group's default queues.
func newWorker(
	cfg config.WorkerConfig,
	name string,
	broker task.Broker,
	backend task.ResultBackend,
	reg prometheus.Registerer,
	logger *slog.Logger,
) (*task.Worker, error) {
	group, ok := tasks.Workers[name]
	if !ok {
		known := make([]string, 0, len(tasks.Workers))
		for k := range tasks.Workers {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrUnknownWorker, name, known)
	}

	registry := task.NewRegistry()
	if err := group.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register %s tasks: %w", name, err)
	}

	queues := group.Queues
	if len(cfg.Queues) > 0 {
		queues = slices.Clone(cfg.Queues)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLoggingHandler(logger))
	emitter.RegisterHandler(task.NewMetrics(reg))

	return task.NewWorker(task.WorkerConfig{
		Name:        name,
		Queues:      queues,
		Concurrency: cfg.Concurrency,
		Prefetch:    cfg.Prefetch,
	}, broker, backend, registry, emitter, logger), nil
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

// serveMetrics exposes reg on port until ctx ends or the returned func is
// called.
func serveMetrics(ctx context.Context, port int, reg *prometheus.Registry, logger *slog.Logger) func() {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listener starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics listener shutdown failed", "error", err)
		}
	}
}
