package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/store"
	"github.com/phrazzld/stack-api/internal/task"
)

const taskResultColumns = `task_id, status, result, date_done, traceback, name, args, kwargs,
	worker, retries, queue`

// PostgresTaskResultStore implements task.ResultBackend on the task_results table.
type PostgresTaskResultStore struct {
	db store.DBTX
}

// NewPostgresTaskResultStore creates a new PostgresTaskResultStore.
func NewPostgresTaskResultStore(db store.DBTX) *PostgresTaskResultStore {
	return &PostgresTaskResultStore{db: db}
}

var _ task.ResultBackend = (*PostgresTaskResultStore)(nil)

// nullJSON stores empty JSON as SQL NULL.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Store upserts the result row for r.TaskID.
func (s *PostgresTaskResultStore) Store(ctx context.Context, r *task.Result) error {
	var dateDone sql.NullTime
	if r.DateDone != nil {
		dateDone = sql.NullTime{Time: *r.DateDone, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_results (`+taskResultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			date_done = EXCLUDED.date_done,
			traceback = EXCLUDED.traceback,
			name = EXCLUDED.name,
			args = EXCLUDED.args,
			kwargs = EXCLUDED.kwargs,
			worker = EXCLUDED.worker,
			retries = EXCLUDED.retries,
			queue = EXCLUDED.queue`,
		r.TaskID, string(r.State), nullJSON(r.Result), dateDone, nullString(r.Traceback),
		nullString(r.Name), nullJSON(r.Args), nullJSON(r.Kwargs), nullString(r.Worker),
		r.Retries, nullString(r.Queue),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to store task result",
			"task_id", r.TaskID,
			"status", r.State,
			"error", err)
		return fmt.Errorf("failed to store task result: %w", MapError(err))
	}
	return nil
}

func scanTaskResult(row interface{ Scan(...any) error }) (*task.Result, error) {
	var (
		r                              task.Result
		status                         string
		result, args, kwargs           []byte
		dateDone                       sql.NullTime
		traceback, name, worker, queue sql.NullString
	)
	err := row.Scan(&r.TaskID, &status, &result, &dateDone, &traceback, &name, &args, &kwargs,
		&worker, &r.Retries, &queue)
	if err != nil {
		return nil, err
	}
	r.State = task.State(status)
	r.Result = result
	r.Args = args
	r.Kwargs = kwargs
	r.Traceback = traceback.String
	r.Name = name.String
	r.Worker = worker.String
	r.Queue = queue.String
	if dateDone.Valid {
		t := dateDone.Time.UTC()
		r.DateDone = &t
	}
	return &r, nil
}

// Get implements task.ResultBackend.
func (s *PostgresTaskResultStore) Get(ctx context.Context, taskID uuid.UUID) (*task.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskResultColumns+` FROM task_results WHERE task_id = $1`, taskID)
	r, err := scanTaskResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskResultNotFound
		}
		return nil, fmt.Errorf("failed to get task result: %w", MapError(err))
	}
	return r, nil
}

// List implements task.ResultBackend.
func (s *PostgresTaskResultStore) List(ctx context.Context, limit int) ([]*task.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskResultColumns+` FROM task_results
		ORDER BY date_done DESC NULLS FIRST, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list task results: %w", MapError(err))
	}
	defer rows.Close()

	results := make([]*task.Result, 0, limit)
	for rows.Next() {
		r, err := scanTaskResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list task results: %w", MapError(err))
	}
	return results, nil
}

// Cleanup implements task.ResultBackend.
func (s *PostgresTaskResultStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM task_results WHERE date_done IS NOT NULL AND date_done < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up task results: %w", MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
