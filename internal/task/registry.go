package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Request is what a Handler receives: the task identity and its raw arguments.
type Request struct {
	ID     uuid.UUID
	Name   string
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// Arg decodes positional argument i into v.
func (r *Request) Arg(i int, v any) error {
	if i < 0 || i >= len(r.Args) {
		return fmt.Errorf("%w: %s expects at least %d positional arguments, got %d",
			ErrInvalidArguments, r.Name, i+1, len(r.Args))
	}
	if err := json.Unmarshal(r.Args[i], v); err != nil {
		return fmt.Errorf("%w: argument %d of %s: %v", ErrInvalidArguments, i, r.Name, err)
	}
	return nil
}

// Kwarg decodes keyword argument name into v.
func (r *Request) Kwarg(name string, v any) error {
	raw, ok := r.Kwargs[name]
	if !ok {
		return fmt.Errorf("%w: %s requires keyword argument %q", ErrInvalidArguments, r.Name, name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: argument %q of %s: %v", ErrInvalidArguments, name, r.Name, err)
	}
	return nil
}

// Handler executes a task and returns a JSON-encodable result.
type Handler func(ctx context.Context, req *Request) (any, error)

// Registry maps task names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering the same name twice is an error.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("task name and handler are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("task %q is already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler registered for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
