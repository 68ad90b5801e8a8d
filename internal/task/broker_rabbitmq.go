package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBroker publishes to durable queues on the default exchange and
// consumes with manual acknowledgements.
type RabbitMQBroker struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]bool
	logger   *slog.Logger
}

// NewRabbitMQBroker dials url and opens the publishing channel.
func NewRabbitMQBroker(url string, logger *slog.Logger) (*RabbitMQBroker, error) {
	if url == "" {
		return nil, errors.New("RabbitMQ URL is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	return &RabbitMQBroker{
		conn:     conn,
		pub:      ch,
		declared: make(map[string]bool),
		logger:   logger.With("component", "rabbitmq_broker"),
	}, nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Publish sends a persistent JSON message to queue.
func (b *RabbitMQBroker) Publish(ctx context.Context, queue string, msg *Message) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task message: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.publishChannel()
	if err != nil {
		return err
	}
	if !b.declared[queue] {
		if err := declareQueue(ch, queue); err != nil {
			return err
		}
		b.declared[queue] = true
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         msg.Name,
		Timestamp:    msg.SentAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// publishChannel returns the publishing channel, reopening it when the server
// closed it but the connection is still up. Callers hold b.mu.
func (b *RabbitMQBroker) publishChannel() (*amqp.Channel, error) {
	if b.pub != nil && !b.pub.IsClosed() {
		return b.pub, nil
	}
	if b.conn == nil || b.conn.IsClosed() {
		return nil, ErrBrokerClosed
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reopen publishing channel: %v", ErrBrokerClosed, err)
	}
	b.logger.Warn("reopened RabbitMQ publishing channel")
	b.pub = ch
	clear(b.declared)
	return ch, nil
}

// Consume opens a dedicated channel with the given prefetch and handles
// deliveries until ctx is cancelled. Messages that cannot be decoded are
// rejected without requeue.
func (b *RabbitMQBroker) Consume(ctx context.Context, queue string, prefetch int, handler DeliveryHandler) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set RabbitMQ QoS: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: delivery channel for %s closed", ErrBrokerClosed, queue)
			}
			b.deliver(ctx, queue, d, handler)
		}
	}
}

func (b *RabbitMQBroker) deliver(ctx context.Context, queue string, d amqp.Delivery, handler DeliveryHandler) {
	msg, err := DecodeMessage(d.Body)
	if err != nil {
		b.logger.Error("rejecting undecodable message", "queue", queue, "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		b.logger.Warn("requeueing message after handler error",
			"task_id", msg.ID, "queue", queue, "error", err)
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		b.logger.Error("failed to ack message", "task_id", msg.ID, "queue", queue, "error", err)
	}
}

// Close closes the publishing channel and the connection.
func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pub != nil {
		_ = b.pub.Close()
		b.pub = nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn.Close()
	}
	return nil
}
