package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/task"
	"github.com/phrazzld/stack-api/internal/task/tasks"
)

// TaskClient publishes tasks. *task.Client implements it.
type TaskClient interface {
	SendTask(ctx context.Context, name string, args []any, kwargs map[string]any) (*task.AsyncResult, error)
	Chain(sigs ...task.Signature) *task.Chain
}

// BinaryOperandsRequest is the payload of add and multiply.
type BinaryOperandsRequest struct {
	A *float64 `json:"a" validate:"required"`
	B *float64 `json:"b" validate:"required"`
}

// BinaryIntegerOperandsRequest is the payload of multiply-by-summation.
type BinaryIntegerOperandsRequest struct {
	A *int64 `json:"a" validate:"required"`
	B *int64 `json:"b" validate:"required,gte=0,lte=10000"`
}

// SampleNormalRequest parameterizes the normal distribution to sample.
type SampleNormalRequest struct {
	Loc   *float64 `json:"loc"   validate:"required"`
	Scale *float64 `json:"scale" validate:"required,gt=0"`
}

// TaskHandler submits tasks to the workers and optionally waits for results.
type TaskHandler struct {
	client      TaskClient
	waitTimeout time.Duration
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler. A zero waitTimeout waits until
// the request is cancelled.
func NewTaskHandler(client TaskClient, waitTimeout time.Duration, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		client:      client,
		waitTimeout: waitTimeout,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

func (h *TaskHandler) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.waitTimeout > 0 {
		return context.WithTimeout(ctx, h.waitTimeout)
	}
	return context.WithCancel(ctx)
}

// wait blocks until res is ready and decodes its value into v.
func (h *TaskHandler) wait(w http.ResponseWriter, r *http.Request, res *task.AsyncResult, v any) bool {
	ctx, cancel := h.waitContext(r.Context())
	defer cancel()

	if err := res.Get(ctx, v); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("waiting for task failed",
			"task_id", res.ID, "error", err)
		HandleAPIError(w, r, err)
		return false
	}
	return true
}

// Add handles POST /tasks/add. It does not wait for the result.
func (h *TaskHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req BinaryOperandsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.client.SendTask(r.Context(), task.NameAdd, []any{*req.A, *req.B}, nil)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("task submitted", "task_id", res.ID)
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Task add submitted successfully"})
}

// AddWait handles POST /tasks/add-wait.
func (h *TaskHandler) AddWait(w http.ResponseWriter, r *http.Request) {
	var req BinaryOperandsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.client.SendTask(r.Context(), task.NameAdd, []any{*req.A, *req.B}, nil)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	var sum float64
	if !h.wait(w, r, res, &sum) {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasks.BinaryResult{S: sum})
}

// MultiplyWait handles POST /tasks/multiply-wait.
func (h *TaskHandler) MultiplyWait(w http.ResponseWriter, r *http.Request) {
	var req BinaryOperandsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.client.SendTask(r.Context(), task.NameMultiply, nil, map[string]any{"a": *req.A, "b": *req.B})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	var out tasks.BinaryResult
	if !h.wait(w, r, res, &out) {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// MultiplyBySummationWait handles POST /tasks/multiply-by-summation-wait. It
// computes a*b with a chain of b-1 add tasks.
func (h *TaskHandler) MultiplyBySummationWait(w http.ResponseWriter, r *http.Request) {
	var req BinaryIntegerOperandsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	links, value, ok, err := tasks.SummationChain(tasks.BinaryIntegerOperands{A: *req.A, B: *req.B})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if !ok {
		shared.RespondWithJSON(w, r, http.StatusOK, tasks.BinaryResult{S: float64(value)})
		return
	}

	res, err := h.client.Chain(links...).Apply(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	var product float64
	if !h.wait(w, r, res, &product) {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasks.BinaryResult{S: product})
}

// SampleNormalWait handles POST /tasks/sample-normal-wait.
func (h *TaskHandler) SampleNormalWait(w http.ResponseWriter, r *http.Request) {
	var req SampleNormalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.client.SendTask(r.Context(), task.NameSampleNormal, nil,
		map[string]any{"loc": *req.Loc, "scale": *req.Scale})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	var out tasks.SampleResult
	if !h.wait(w, r, res, &out) {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}
