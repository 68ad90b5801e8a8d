package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// BackendCleanupSchedule runs result expiry daily at 04:00 UTC.
const BackendCleanupSchedule = "0 4 * * *"

// cleanupTimeout bounds a single cleanup run.
const cleanupTimeout = 5 * time.Minute

// Beat runs periodic maintenance jobs for the result backend.
type Beat struct {
	cron    *cron.Cron
	backend ResultBackend
	expires time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewBeat schedules the result backend cleanup. When expires is zero results
// never expire and no job is scheduled.
func NewBeat(backend ResultBackend, expires time.Duration, logger *slog.Logger) (*Beat, error) {
	b := &Beat{
		backend: backend,
		expires: expires,
		now:     time.Now,
		logger:  logger.With("component", "beat"),
	}
	b.cron = cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cronLogger{b.logger}))

	if expires > 0 {
		if _, err := b.cron.AddFunc(BackendCleanupSchedule, b.runCleanup); err != nil {
			return nil, fmt.Errorf("failed to schedule backend cleanup: %w", err)
		}
	} else {
		b.logger.Info("result expiry disabled, backend cleanup not scheduled")
	}
	return b, nil
}

// Start begins running scheduled jobs in the background.
func (b *Beat) Start() {
	b.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx to end.
func (b *Beat) Stop(ctx context.Context) {
	done := b.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Jobs returns the number of scheduled jobs.
func (b *Beat) Jobs() int {
	return len(b.cron.Entries())
}

// Cleanup deletes results that finished more than the expiry ago.
func (b *Beat) Cleanup(ctx context.Context) (int64, error) {
	if b.expires <= 0 {
		return 0, nil
	}
	cutoff := b.now().UTC().Add(-b.expires)
	n, err := b.backend.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("backend cleanup failed: %w", err)
	}
	return n, nil
}

func (b *Beat) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	n, err := b.Cleanup(ctx)
	if err != nil {
		b.logger.Error("backend cleanup failed", "error", err)
		return
	}
	b.logger.Info("backend cleanup finished", "removed", n)
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
