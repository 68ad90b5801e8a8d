package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a task lifecycle transition.
type EventType string

// Task lifecycle event types.
const (
	TaskReceived  EventType = "task-received"
	TaskStarted   EventType = "task-started"
	TaskSucceeded EventType = "task-succeeded"
	TaskFailed    EventType = "task-failed"
)

// TaskEvent describes one transition of a task on a worker.
type TaskEvent struct {
	ID        uuid.UUID     `json:"id"`
	Type      EventType     `json:"type"`
	TaskID    uuid.UUID     `json:"task_id"`
	TaskName  string        `json:"task_name"`
	Queue     string        `json:"queue"`
	Worker    string        `json:"worker"`
	Runtime   time.Duration `json:"runtime,omitempty"` // set on succeeded and failed
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewTaskEvent creates a TaskEvent stamped with the current time.
func NewTaskEvent(eventType EventType, taskID uuid.UUID, taskName, queue, worker string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		TaskName:  taskName,
		Queue:     queue,
		Worker:    worker,
		Timestamp: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
