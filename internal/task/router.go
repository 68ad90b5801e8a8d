package task

import "sync"

// Task names routed by DefaultRoutes.
const (
	NameAdd                 = "add"
	NameMultiply            = "multiply"
	NameMultiplyBySummation = "multiply-by-summation"
	NameSampleNormal        = "sample-normal"
)

// Queue names.
const (
	QueueShared = "shared"
	QueueAlpha  = "alpha"
	QueueBeta   = "beta"
)

// DefaultRoutes returns the task to queue routing of the stack.
func DefaultRoutes() map[string]string {
	return map[string]string{
		NameAdd:                 QueueShared,
		NameMultiply:            QueueAlpha,
		NameMultiplyBySummation: QueueAlpha,
		NameSampleNormal:        QueueBeta,
	}
}

// Router resolves the queue a task is published to.
type Router struct {
	mu           sync.RWMutex
	routes       map[string]string
	defaultQueue string
}

// NewRouter creates a Router from a name to queue map. Unrouted names go to
// DefaultQueue.
func NewRouter(routes map[string]string) *Router {
	r := &Router{routes: make(map[string]string, len(routes)), defaultQueue: DefaultQueue}
	for name, queue := range routes {
		r.routes[name] = queue
	}
	return r
}

// Route sets the queue for a task name.
func (r *Router) Route(name, queue string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[name] = queue
}

// QueueFor returns the queue for a task name.
func (r *Router) QueueFor(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if q, ok := r.routes[name]; ok {
		return q
	}
	return r.defaultQueue
}
