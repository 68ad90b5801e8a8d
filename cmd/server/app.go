package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/stack-api/internal/api"
	"github.com/phrazzld/stack-api/internal/config"
	"github.com/phrazzld/stack-api/internal/email"
	"github.com/phrazzld/stack-api/internal/events"
	"github.com/phrazzld/stack-api/internal/platform/dispatch"
	"github.com/phrazzld/stack-api/internal/platform/postgres"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/service/auth"
	"github.com/phrazzld/stack-api/internal/sso"
	"github.com/phrazzld/stack-api/internal/store"
	"github.com/phrazzld/stack-api/internal/task"
	"github.com/phrazzld/stack-api/internal/task/tasks"
)

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	registry *prometheus.Registry

	userStore  store.UserStore
	users      service.UserService
	jwtService auth.JWTService

	sso      api.SSOProvider
	ssoApps  []string
	ssoRedis *redis.Client

	broker  task.Broker
	backend task.ResultBackend
	tasks   api.TaskClient

	// workers run in-process when the memory broker is configured.
	workers   []*task.Worker
	workersWG sync.WaitGroup
	stopWork  context.CancelFunc
}

// newApplication wires stores, services, the SSO provider and the task client.
// On failure every resource acquired so far is released, db included.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (_ *application, err error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"access_token_lifetime", cfg.Auth.AccessTokenLifetime)

	if err = app.setupUsers(); err != nil {
		return nil, err
	}
	if _, err = app.users.EnsureSuperuser(ctx, cfg.Superuser.Email, cfg.Superuser.Password); err != nil {
		return nil, fmt.Errorf("failed to seed superuser: %w", err)
	}
	if err = app.setupSSO(ctx); err != nil {
		return nil, err
	}
	if err = app.setupTasks(ctx); err != nil {
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

func (app *application) setupUsers() error {
	cfg := app.config

	composer, err := email.NewComposer(cfg.Project.Name, cfg.Project.FrontendHost)
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}
	tokens, err := auth.NewVerificationTokens(cfg.Auth.SecretKey, cfg.Auth.VerificationTokenLifetime)
	if err != nil {
		return fmt.Errorf("failed to initialize verification tokens: %w", err)
	}

	app.userStore = postgres.NewPostgresUserStore(app.db, cfg.Auth.BcryptCost)
	app.users, err = service.NewUserService(service.UserServiceDeps{
		Users:            app.userStore,
		DB:               app.db,
		Passwords:        auth.NewBcryptVerifier(cfg.Auth.BcryptCost),
		Tokens:           tokens,
		Emails:           composer,
		Sender:           email.NewSender(cfg.SMTP, app.logger),
		OpenRegistration: cfg.Users.OpenRegistration,
		Logger:           app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}
	app.logger.Info("user service initialized",
		"emails_enabled", cfg.SMTP.EmailsEnabled(),
		"open_registration", cfg.Users.OpenRegistration)
	return nil
}

func (app *application) setupSSO(ctx context.Context) error {
	var states sso.StateStore
	switch app.config.SSO.StateStore {
	case "redis":
		client, err := task.NewRedisClient(ctx, app.config.SSO.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect SSO state store: %w", err)
		}
		app.ssoRedis = client
		states = sso.NewRedisStateStore(client)
	default:
		states = sso.NewMemoryStateStore()
	}

	provider := sso.NewFusionAuth(ctx, app.config.SSO, states, app.logger)
	app.sso = provider
	app.ssoApps = provider.Apps()
	app.logger.Info("SSO provider initialized",
		"provider", sso.ProviderName,
		"apps", app.ssoApps,
		"state_store", app.config.SSO.StateStore)
	return nil
}

func (app *application) setupTasks(ctx context.Context) error {
	var err error
	app.broker, err = dispatch.NewBroker(ctx, app.config.Broker, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect broker: %w", err)
	}
	app.backend, err = dispatch.NewResultBackend(app.config.Results, app.db)
	if err != nil {
		return err
	}
	app.tasks = task.NewClient(app.broker, app.backend, task.NewRouter(task.DefaultRoutes()), app.logger,
		task.WithPollInterval(app.config.Results.PollInterval))

	if app.config.Broker.Driver == dispatch.DriverMemory {
		return app.startLocalWorkers(ctx)
	}
	return nil
}

// startLocalWorkers runs one worker per queue group inside the server. The
// memory broker cannot be reached from separate worker processes.
func (app *application) startLocalWorkers(ctx context.Context) error {
	emitter := events.NewInMemoryEventEmitter(app.logger)
	emitter.RegisterHandler(events.NewLoggingHandler(app.logger))
	emitter.RegisterHandler(task.NewMetrics(app.registry))

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app.stopWork = cancel

	for _, name := range []string{task.QueueAlpha, task.QueueBeta} {
		spec := tasks.Workers[name]
		registry := task.NewRegistry()
		if err := spec.Register(registry); err != nil {
			return fmt.Errorf("failed to register %s tasks: %w", name, err)
		}
		w := task.NewWorker(task.WorkerConfig{
			Name:        name,
			Queues:      spec.Queues,
			Concurrency: app.config.Worker.Concurrency,
			Prefetch:    app.config.Worker.Prefetch,
		}, app.broker, app.backend, registry, emitter, app.logger)
		app.workers = append(app.workers, w)

		app.workersWG.Add(1)
		go func() {
			defer app.workersWG.Done()
			if err := w.Run(workCtx); err != nil {
				app.logger.Error("in-process worker stopped", "worker", w.Hostname(), "error", err)
			}
		}()
	}
	app.logger.Warn("memory broker in use, running workers in-process", "workers", len(app.workers))
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse order of creation.
func (app *application) cleanup() {
	if app.stopWork != nil {
		app.stopWork()
		app.workersWG.Wait()
	}
	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Error("error closing broker", "error", err)
		}
	}
	if app.ssoRedis != nil {
		if err := app.ssoRedis.Close(); err != nil {
			app.logger.Error("error closing SSO state store", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
