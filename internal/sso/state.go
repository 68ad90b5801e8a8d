package sso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when a state is unknown, expired or already used.
var ErrStateNotFound = errors.New("sso state not found")

// State is what a login remembers until its callback arrives.
type State struct {
	App         string `json:"app"`
	Verifier    string `json:"verifier"`
	RedirectURL string `json:"redirect_url"`
}

// StateStore keeps pending logins. Take removes the state so each one can be
// used once.
type StateStore interface {
	Put(ctx context.Context, key string, state State, ttl time.Duration) error
	Take(ctx context.Context, key string) (State, error)
}

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryStateStore keeps states in process memory. It only works when the
// login and the callback reach the same server instance.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStateStore creates an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put implements StateStore. Expired entries are purged on each call.
func (s *MemoryStateStore) Put(_ context.Context, key string, state State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{state: state, expires: now.Add(ttl)}
	return nil
}

// Take implements StateStore.
func (s *MemoryStateStore) Take(_ context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return State{}, ErrStateNotFound
	}
	delete(s.entries, key)
	if s.now().After(e.expires) {
		return State{}, ErrStateNotFound
	}
	return e.state, nil
}

// Len returns the number of stored states, expired ones included.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStateStore shares states between server instances through Redis.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore creates a store writing keys under "sso:state:".
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "sso:state:"}
}

// Put implements StateStore.
func (s *RedisStateStore) Put(ctx context.Context, key string, state State, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode sso state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store sso state: %w", err)
	}
	return nil
}

// Take implements StateStore using GETDEL.
func (s *RedisStateStore) Take(ctx context.Context, key string) (State, error) {
	payload, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrStateNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load sso state: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("failed to decode sso state: %w", err)
	}
	return state, nil
}
