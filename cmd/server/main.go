// Package main implements the entry point of the stack API server, which
// serves authentication, user management and task submission endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/stack-api/internal/config"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/platform/postgres"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	if err := run(*migrateOnly); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, prepares the database and serves until SIGINT or
// SIGTERM.
func run(migrateOnly bool) error {
	cfg, err := config.Load(config.RoleServer)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"project", cfg.Project.Name,
		"environment", cfg.Project.Environment,
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"broker", cfg.Broker.Driver,
		"results", cfg.Results.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	log.Info("database connection established")

	if err := postgres.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return err
	}
	if migrateOnly {
		return db.Close()
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}
