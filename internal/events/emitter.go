package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously to handlers registered
// in the same process.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// A failing handler does not stop delivery to the others; the first error
// encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_type", event.Type,
				"task_id", event.TaskID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// NewLoggingHandler returns a handler that writes every event to logger.
// Failures are logged at WARN, everything else at INFO.
func NewLoggingHandler(logger *slog.Logger) EventHandler {
	return EventHandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		level := slog.LevelInfo
		if event.Type == TaskFailed {
			level = slog.LevelWarn
		}
		attrs := []any{
			"task_id", event.TaskID,
			"task_name", event.TaskName,
			"queue", event.Queue,
			"worker", event.Worker,
		}
		if event.Runtime > 0 {
			attrs = append(attrs, "runtime_ms", event.Runtime.Milliseconds())
		}
		if event.Error != "" {
			attrs = append(attrs, "error", event.Error)
		}
		logger.Log(ctx, level, string(event.Type), attrs...)
		return nil
	})
}
