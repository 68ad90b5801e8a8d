package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DeliveryHandler processes one consumed message. The broker acknowledges
// the message when the handler returns nil and requeues it otherwise.
type DeliveryHandler func(ctx context.Context, msg *Message) error

// Broker moves task messages between clients and workers.
type Broker interface {
	// Publish sends msg to queue.
	Publish(ctx context.Context, queue string, msg *Message) error

	// Consume delivers messages from queue to handler one at a time until ctx
	// is cancelled, at which point it returns nil. prefetch bounds the number
	// of unacknowledged messages held for this consumer.
	Consume(ctx context.Context, queue string, prefetch int, handler DeliveryHandler) error

	// Close releases the broker connection.
	Close() error
}

// MemoryBroker is an in-process Broker backed by buffered channels, one per
// queue. Messages are lost when the process exits.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan *Message
	size   int
	closed bool
	done   chan struct{}
	logger *slog.Logger
}

// NewMemoryBroker creates a MemoryBroker whose queues hold up to size messages.
func NewMemoryBroker(size int, logger *slog.Logger) *MemoryBroker {
	if size <= 0 {
		size = 1024
	}
	return &MemoryBroker{
		queues: make(map[string]chan *Message),
		size:   size,
		done:   make(chan struct{}),
		logger: logger.With("component", "memory_broker"),
	}
}

func (b *MemoryBroker) queue(name string) (chan *Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan *Message, b.size)
		b.queues[name] = q
	}
	return q, nil
}

// Publish adds msg to the queue, blocking while the queue is full.
func (b *MemoryBroker) Publish(ctx context.Context, queue string, msg *Message) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	select {
	case q <- msg:
		b.logger.Debug("task enqueued",
			"task_id", msg.ID,
			"task_name", msg.Name,
			"queue", queue,
			"queue_len", len(q))
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return fmt.Errorf("failed to publish to %s: %w", queue, ctx.Err())
	}
}

// Consume implements Broker. prefetch has no effect: a message leaves the
// queue only when the handler is ready for it.
func (b *MemoryBroker) Consume(ctx context.Context, queue string, prefetch int, handler DeliveryHandler) error {
	q, err := b.queue(queue)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return ErrBrokerClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				b.logger.Warn("requeueing message after handler error",
					"task_id", msg.ID, "queue", queue, "error", err)
				select {
				case q <- msg:
				default:
					b.logger.Error("dropping message, queue is full", "task_id", msg.ID, "queue", queue)
				}
			}
		}
	}
}

// Len returns the number of messages waiting in queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

// Close stops all consumers and rejects further publishes.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
