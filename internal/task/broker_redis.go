package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultBlockWait bounds each BRPOP so cancellation is noticed promptly.
const defaultBlockWait = time.Second

// RedisBroker keeps each queue in a Redis list: LPUSH to publish, BRPOP to
// consume. A message whose handler fails is pushed back to the consuming end.
type RedisBroker struct {
	client *redis.Client
	wait   time.Duration
	logger *slog.Logger
}

// NewRedisBroker creates a broker over an existing client.
func NewRedisBroker(client *redis.Client, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		wait:   defaultBlockWait,
		logger: logger.With("component", "redis_broker"),
	}
}

// NewRedisClient connects to addr and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, queue string, msg *Message) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task message: %w", err)
	}
	if err := b.client.LPush(ctx, queue, body).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrBrokerClosed
		}
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// Consume implements Broker. prefetch is ignored: BRPOP takes one message at a time.
func (b *RedisBroker) Consume(ctx context.Context, queue string, prefetch int, handler DeliveryHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		values, err := b.client.BRPop(ctx, b.wait, queue).Result()
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				continue
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, redis.ErrClosed):
				return ErrBrokerClosed
			default:
				return fmt.Errorf("failed to consume %s: %w", queue, err)
			}
		}
		if len(values) != 2 {
			continue
		}

		msg, err := DecodeMessage([]byte(values[1]))
		if err != nil {
			b.logger.Error("dropping undecodable message", "queue", queue, "error", err)
			continue
		}
		if err := handler(ctx, msg); err != nil {
			b.logger.Warn("requeueing message after handler error",
				"task_id", msg.ID, "queue", queue, "error", err)
			if pushErr := b.client.RPush(context.WithoutCancel(ctx), queue, values[1]).Err(); pushErr != nil {
				b.logger.Error("failed to requeue message", "task_id", msg.ID, "error", pushErr)
			}
		}
	}
}

// Len returns the number of messages waiting in queue.
func (b *RedisBroker) Len(ctx context.Context, queue string) (int64, error) {
	return b.client.LLen(ctx, queue).Result()
}

// Close closes the redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
