package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/stack-api/internal/store"
)

// ResultBackend stores task outcomes keyed by task id.
type ResultBackend interface {
	// Store inserts or replaces the result for r.TaskID.
	Store(ctx context.Context, r *Result) error

	// Get returns the stored result.
	// Returns store.ErrTaskResultNotFound when nothing is stored for taskID.
	Get(ctx context.Context, taskID uuid.UUID) (*Result, error)

	// List returns up to limit results, most recently finished first.
	// Results that have not finished yet come first.
	List(ctx context.Context, limit int) ([]*Result, error)

	// Cleanup removes finished results whose date_done is before the cutoff
	// and returns the number removed.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// MemoryBackend is an in-process ResultBackend.
type MemoryBackend struct {
	mu      sync.RWMutex
	results map[uuid.UUID]*Result
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{results: make(map[uuid.UUID]*Result)}
}

// Store implements ResultBackend.
func (b *MemoryBackend) Store(ctx context.Context, r *Result) error {
	cp := *r
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[r.TaskID] = &cp
	return nil
}

// Get implements ResultBackend.
func (b *MemoryBackend) Get(ctx context.Context, taskID uuid.UUID) (*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.results[taskID]
	if !ok {
		return nil, store.ErrTaskResultNotFound
	}
	cp := *r
	return &cp, nil
}

// List implements ResultBackend.
func (b *MemoryBackend) List(ctx context.Context, limit int) ([]*Result, error) {
	b.mu.RLock()
	out := make([]*Result, 0, len(b.results))
	for _, r := range b.results {
		cp := *r
		out = append(out, &cp)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DateDone, out[j].DateDone
		switch {
		case di == nil && dj == nil:
			return out[i].TaskID.String() < out[j].TaskID.String()
		case di == nil:
			return true
		case dj == nil:
			return false
		default:
			return di.After(*dj)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cleanup implements ResultBackend.
func (b *MemoryBackend) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for id, r := range b.results {
		if r.DateDone != nil && r.DateDone.Before(before) {
			delete(b.results, id)
			n++
		}
	}
	return n, nil
}
