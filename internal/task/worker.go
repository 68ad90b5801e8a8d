package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/stack-api/internal/events"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// WorkerConfig holds configuration options for a worker.
type WorkerConfig struct {
	// Name identifies the worker in results and events, e.g. "alpha".
	Name string

	// Queues lists the queues the worker consumes.
	Queues []string

	// Concurrency bounds the number of tasks executing at once across all
	// queues. Zero or negative means 1.
	Concurrency int

	// Prefetch bounds unacknowledged messages per consumer. Zero or negative means 1.
	Prefetch int
}

// Worker consumes queues and executes registered task handlers.
type Worker struct {
	cfg      WorkerConfig
	hostname string
	broker   Broker
	backend  ResultBackend
	registry *Registry
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewWorker creates a worker. emitter may be nil.
func NewWorker(
	cfg WorkerConfig,
	broker Broker,
	backend ResultBackend,
	registry *Registry,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *Worker {
	if cfg.Concurrency <= 0 {
		logger.Warn("invalid concurrency specified, using default",
			"specified", cfg.Concurrency, "default", 1)
		cfg.Concurrency = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{DefaultQueue}
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	if cfg.Name == "" {
		cfg.Name = "worker"
	}
	return &Worker{
		cfg:      cfg,
		hostname: fmt.Sprintf("%s@%s", cfg.Name, host),
		broker:   broker,
		backend:  backend,
		registry: registry,
		emitter:  emitter,
		logger:   logger.With("component", "worker", "worker", cfg.Name),
	}
}

// Hostname returns the worker identity recorded in task results.
func (w *Worker) Hostname() string {
	return w.hostname
}

// Run consumes every configured queue until ctx is cancelled. Each queue gets
// Concurrency consumers; a shared semaphore keeps the total number of running
// tasks at Concurrency.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker starting",
		"queues", w.cfg.Queues,
		"concurrency", w.cfg.Concurrency,
		"prefetch", w.cfg.Prefetch,
		"tasks", w.registry.Names())

	sem := semaphore.NewWeighted(int64(w.cfg.Concurrency))
	handler := func(ctx context.Context, msg *Message) error {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)
		w.Process(ctx, msg)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, queue := range w.cfg.Queues {
		for i := 0; i < w.cfg.Concurrency; i++ {
			g.Go(func() error {
				if err := w.broker.Consume(gctx, queue, w.cfg.Prefetch, handler); err != nil {
					return fmt.Errorf("consumer for %s stopped: %w", queue, err)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	w.logger.Info("worker stopped", "error", err)
	return err
}

// Process executes one message and records its outcome. Result writes use a
// context detached from cancellation so a shutdown does not lose the outcome
// of a task that already ran.
func (w *Worker) Process(ctx context.Context, msg *Message) {
	storeCtx := context.WithoutCancel(ctx)
	log := w.logger.With("task_id", msg.ID, "task_name", msg.Name, "queue", msg.Queue)
	w.emit(ctx, events.TaskReceived, msg, 0, nil)

	handler, ok := w.registry.Lookup(msg.Name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTask, msg.Name)
		log.Error("received unregistered task")
		w.fail(storeCtx, msg, err, 0)
		return
	}

	started := resultFor(msg, StateStarted, w.hostname)
	if err := w.backend.Store(storeCtx, started); err != nil {
		log.Error("failed to store task state", "state", StateStarted, "error", err)
	}
	w.emit(ctx, events.TaskStarted, msg, 0, nil)

	start := time.Now()
	value, err := runHandler(ctx, handler, &Request{
		ID:     msg.ID,
		Name:   msg.Name,
		Args:   msg.Args,
		Kwargs: msg.Kwargs,
	})
	runtime := time.Since(start)

	var encoded []byte
	if err == nil {
		encoded, err = json.Marshal(value)
		if err != nil {
			err = fmt.Errorf("failed to encode result: %w", err)
		}
	}
	if err != nil {
		log.Warn("task failed", "error", err, "runtime_ms", runtime.Milliseconds())
		w.fail(storeCtx, msg, err, runtime)
		return
	}

	done := time.Now().UTC()
	res := resultFor(msg, StateSuccess, w.hostname)
	res.Result = encoded
	res.DateDone = &done
	if err := w.backend.Store(storeCtx, res); err != nil {
		log.Error("failed to store task state", "state", StateSuccess, "error", err)
	}
	log.Debug("task succeeded", "runtime_ms", runtime.Milliseconds())
	w.emit(ctx, events.TaskSucceeded, msg, runtime, nil)

	if len(msg.Chain) > 0 {
		w.continueChain(storeCtx, msg, encoded)
	}
}

// continueChain publishes the next link with the parent's result as its first argument.
func (w *Worker) continueChain(ctx context.Context, parent *Message, result json.RawMessage) {
	next := parent.Chain[0]
	args := make([]json.RawMessage, 0, len(next.Args)+1)
	args = append(args, result)
	args = append(args, next.Args...)
	next.Args = args

	msg := newMessage(next, parent.Chain[1:])
	if err := w.broker.Publish(ctx, next.Queue, msg); err != nil {
		w.logger.Error("failed to publish chained task",
			"parent_id", parent.ID, "task_id", next.ID, "error", err)
		w.failChain(ctx, msg.ID, append([]Signature{next}, parent.Chain[1:]...),
			fmt.Errorf("failed to publish chained task: %w", err))
	}
}

// fail stores FAILURE for msg and for every link still pending in its chain.
func (w *Worker) fail(ctx context.Context, msg *Message, cause error, runtime time.Duration) {
	done := time.Now().UTC()
	res := resultFor(msg, StateFailure, w.hostname)
	res.Traceback = cause.Error()
	res.DateDone = &done
	if err := w.backend.Store(ctx, res); err != nil {
		w.logger.Error("failed to store task state",
			"task_id", msg.ID, "state", StateFailure, "error", err)
	}
	w.emit(ctx, events.TaskFailed, msg, runtime, cause)

	if len(msg.Chain) > 0 {
		w.failChain(ctx, msg.ID, msg.Chain, cause)
	}
}

// failChain marks links that will never run as failed so waiters on the
// final link return.
func (w *Worker) failChain(ctx context.Context, parentID uuid.UUID, links []Signature, cause error) {
	done := time.Now().UTC()
	for _, link := range links {
		res := resultFor(newMessage(link, nil), StateFailure, w.hostname)
		res.Traceback = fmt.Sprintf("parent task %s failed: %v", parentID, cause)
		res.DateDone = &done
		if err := w.backend.Store(ctx, res); err != nil {
			w.logger.Error("failed to store chain failure", "task_id", link.ID, "error", err)
		}
	}
}

func (w *Worker) emit(ctx context.Context, typ events.EventType, msg *Message, runtime time.Duration, cause error) {
	if w.emitter == nil {
		return
	}
	event := events.NewTaskEvent(typ, msg.ID, msg.Name, msg.Queue, w.hostname)
	event.Runtime = runtime
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := w.emitter.EmitEvent(ctx, event); err != nil {
		w.logger.Debug("event handler error", "event_type", typ, "error", err)
	}
}

// runHandler calls h and converts a panic into an error carrying the stack.
func runHandler(ctx context.Context, h Handler, req *Request) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return h(ctx, req)
}
