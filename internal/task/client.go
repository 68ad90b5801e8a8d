package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/stack-api/internal/store"
)

// DefaultPollInterval is how often AsyncResult.Wait polls the backend.
const DefaultPollInterval = 500 * time.Millisecond

// Client publishes tasks and hands back AsyncResults to wait on.
type Client struct {
	broker       Broker
	backend      ResultBackend
	router       *Router
	pollInterval time.Duration
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPollInterval sets the polling interval of AsyncResults created by the client.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient creates a Client.
func NewClient(broker Broker, backend ResultBackend, router *Router, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		broker:       broker,
		backend:      backend,
		router:       router,
		pollInterval: DefaultPollInterval,
		logger:       logger.With("component", "task_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendTask publishes a single task.
func (c *Client) SendTask(ctx context.Context, name string, args []any, kwargs map[string]any) (*AsyncResult, error) {
	sig, err := NewSignature(name, args, kwargs)
	if err != nil {
		return nil, err
	}
	return c.Apply(ctx, sig)
}

// Apply publishes a prepared signature.
func (c *Client) Apply(ctx context.Context, sig Signature) (*AsyncResult, error) {
	return c.Chain(sig).Apply(ctx)
}

// AsyncResult returns a handle for an existing task id.
func (c *Client) AsyncResult(id uuid.UUID) *AsyncResult {
	return &AsyncResult{ID: id, backend: c.backend, interval: c.pollInterval}
}

// Chain groups signatures that run sequentially.
func (c *Client) Chain(sigs ...Signature) *Chain {
	return &Chain{client: c, links: sigs}
}

// Chain is an ordered list of signatures. Each link after the first receives
// the previous link's result prepended to its positional arguments.
type Chain struct {
	client *Client
	links  []Signature
}

// Apply assigns ids and queues to every link, publishes the first link and
// returns the AsyncResult of the last one.
func (ch *Chain) Apply(ctx context.Context) (*AsyncResult, error) {
	if len(ch.links) == 0 {
		return nil, errors.New("cannot apply an empty chain")
	}
	links := make([]Signature, len(ch.links))
	for i, sig := range ch.links {
		if sig.ID == uuid.Nil {
			sig.ID = uuid.New()
		}
		if sig.Queue == "" {
			sig.Queue = ch.client.router.QueueFor(sig.Name)
		}
		links[i] = sig
	}

	first := links[0]
	msg := newMessage(first, links[1:])
	if err := ch.client.broker.Publish(ctx, first.Queue, msg); err != nil {
		return nil, fmt.Errorf("failed to send task %s: %w", first.Name, err)
	}

	last := links[len(links)-1]
	ch.client.logger.Debug("task sent",
		"task_id", first.ID,
		"task_name", first.Name,
		"queue", first.Queue,
		"chain_length", len(links),
		"final_task_id", last.ID)
	return ch.client.AsyncResult(last.ID), nil
}

// AsyncResult is a handle on a task outcome stored in the result backend.
type AsyncResult struct {
	ID       uuid.UUID
	backend  ResultBackend
	interval time.Duration
}

// State returns the current state of the task.
func (r *AsyncResult) State(ctx context.Context) (State, error) {
	res, err := r.backend.Get(ctx, r.ID)
	if err != nil {
		if errors.Is(err, store.ErrTaskResultNotFound) {
			return StatePending, nil
		}
		return "", err
	}
	return res.State, nil
}

// Wait polls the backend until the task is ready or ctx is done. A FAILURE
// result is returned together with an error wrapping ErrTaskFailed.
func (r *AsyncResult) Wait(ctx context.Context) (*Result, error) {
	interval := r.interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := r.backend.Get(ctx, r.ID)
		switch {
		case err == nil && res.State == StateFailure:
			return res, fmt.Errorf("%w: %s", ErrTaskFailed, res.Traceback)
		case err == nil && res.State.Ready():
			return res, nil
		case err != nil && !errors.Is(err, store.ErrTaskResultNotFound):
			return nil, fmt.Errorf("failed to fetch result of task %s: %w", r.ID, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for task %s: %w", r.ID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Get waits for the task and decodes its result into v.
func (r *AsyncResult) Get(ctx context.Context, v any) error {
	res, err := r.Wait(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Result, v); err != nil {
		return fmt.Errorf("failed to decode result of task %s: %w", r.ID, err)
	}
	return nil
}
