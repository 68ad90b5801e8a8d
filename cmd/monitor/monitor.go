package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiMiddleware "github.com/phrazzld/stack-api/internal/api/middleware"
	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/store"
	"github.com/phrazzld/stack-api/internal/task"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// scrapeLimit bounds the results inspected per metrics scrape.
	scrapeLimit    = 1000
	scrapeTimeout  = 5 * time.Second
	backendTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// monitor serves a read-only view of the result backend.
type monitor struct {
	backend task.ResultBackend
	logger  *slog.Logger
}

func newMonitor(backend task.ResultBackend, logger *slog.Logger) *monitor {
	return &monitor{backend: backend, logger: logger.With("component", "monitor")}
}

// routes mounts the monitor endpoints. reg is exposed on /metrics.
func (m *monitor) routes(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(m.logger))
	r.Use(apiMiddleware.NewHTTPMetrics(reg).Handler)

	r.Get("/tasks", m.listTasks)
	r.Get("/tasks/{id}", m.getTask)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

func (m *monitor) listTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			shared.RespondWithError(w, r, http.StatusUnprocessableEntity,
				"limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	results, err := m.backend.List(ctx, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to list task results", err)
		return
	}
	if results == nil {
		results = []*task.Result{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"count": len(results),
		"data":  results,
	})
}

func (m *monitor) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	res, err := m.backend.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrTaskResultNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
	case err != nil:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to get task result", err)
	default:
		shared.RespondWithJSON(w, r, http.StatusOK, res)
	}
}

// resultsCollector reports the number of stored results per task and state
// among the most recent ones at scrape time.
type resultsCollector struct {
	backend task.ResultBackend
	desc    *prometheus.Desc
	logger  *slog.Logger
}

func newResultsCollector(backend task.ResultBackend, logger *slog.Logger) *resultsCollector {
	return &resultsCollector{
		backend: backend,
		desc: prometheus.NewDesc(
			"stack_monitor_task_results",
			"Recent task results in the backend by task name and state.",
			[]string{"task", "state"}, nil,
		),
		logger: logger,
	}
}

// Describe implements prometheus.Collector.
func (c *resultsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *resultsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	results, err := c.backend.List(ctx, scrapeLimit)
	if err != nil {
		c.logger.Error("failed to list task results for metrics", "error", err)
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}

	type key struct{ name, state string }
	counts := make(map[key]int)
	for _, res := range results {
		counts[key{res.Name, string(res.State)}]++
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), k.name, k.state)
	}
}
