// Package dispatch opens the message broker and result backend selected in
// configuration. It is shared by the server, the workers and the monitor.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/stack-api/internal/config"
	"github.com/phrazzld/stack-api/internal/platform/postgres"
	"github.com/phrazzld/stack-api/internal/task"
)

// Driver names accepted by BrokerConfig.Driver and ResultsConfig.Driver.
const (
	DriverRabbitMQ = "rabbitmq"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// memoryQueueSize is the buffer of each in-process queue.
const memoryQueueSize = 1024

// NewBroker connects to the configured broker.
func NewBroker(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (task.Broker, error) {
	switch cfg.Driver {
	case DriverRabbitMQ:
		b, err := task.NewRabbitMQBroker(cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverRedis:
		client, err := task.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return task.NewRedisBroker(client, logger), nil
	case DriverMemory:
		return task.NewMemoryBroker(memoryQueueSize, logger), nil
	default:
		return nil, fmt.Errorf("unsupported broker driver %q", cfg.Driver)
	}
}

// NewResultBackend returns the configured result backend. db is required for
// the postgres driver.
func NewResultBackend(cfg config.ResultsConfig, db *sql.DB) (task.ResultBackend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres result backend requires a database")
		}
		return postgres.NewPostgresTaskResultStore(db), nil
	case DriverMemory:
		return task.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported result backend driver %q", cfg.Driver)
	}
}
