// Package main implements a task worker process. A worker consumes the
// queues of one queue group and optionally runs the periodic result cleanup.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phrazzld/stack-api/internal/config"
	"github.com/phrazzld/stack-api/internal/platform/dispatch"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/platform/postgres"
	"github.com/phrazzld/stack-api/internal/task"
)

func main() {
	name := flag.String("name", "", "worker group to run: alpha or beta")
	beat := flag.Bool("beat", false, "also run the scheduled result backend cleanup")
	flag.Parse()

	if err := run(*name, *beat); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(name string, beat bool) error {
	cfg, err := config.Load(config.RoleWorker)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if name == "" {
		name = cfg.Worker.Name
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Broker.Driver == dispatch.DriverMemory {
		return fmt.Errorf("broker driver %q is only usable inside the server process", dispatch.DriverMemory)
	}

	var db *sql.DB
	if cfg.Results.Driver == dispatch.DriverPostgres {
		db, err = postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	broker, err := dispatch.NewBroker(ctx, cfg.Broker, log)
	if err != nil {
		return fmt.Errorf("failed to connect broker: %w", err)
	}
	defer func() { _ = broker.Close() }()

	backend, err := dispatch.NewResultBackend(cfg.Results, db)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	worker, err := newWorker(cfg.Worker, name, broker, backend, registry, log)
	if err != nil {
		return err
	}

	if beat {
		b, err := task.NewBeat(backend, cfg.Results.Expires, log)
		if err != nil {
			return err
		}
		b.Start()
		defer b.Stop(context.WithoutCancel(ctx))
		log.Info("beat started", "jobs", b.Jobs(), "expires", cfg.Results.Expires)
	}

	if cfg.Worker.MetricsPort > 0 {
		stopMetrics := serveMetrics(ctx, cfg.Worker.MetricsPort, registry, log)
		defer stopMetrics()
	}

	return worker.Run(ctx)
}
