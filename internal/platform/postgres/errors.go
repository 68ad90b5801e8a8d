package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/stack-api/internal/store"
)

const uniqueViolationCode = "23505"

// integrityErrors maps integrity constraint SQLSTATE codes to store categories.
var integrityErrors = map[string]struct {
	category error
	kind     string
}{
	uniqueViolationCode: {store.ErrDuplicate, "unique violation"},
	"23503":             {store.ErrInvalidEntity, "foreign key violation"},
	"23514":             {store.ErrInvalidEntity, "check violation"},
	"23502":             {store.ErrInvalidEntity, "not null violation"},
}

// MapError translates driver errors into store categories. The driver error
// stays in the chain for logging; anything unrecognised is returned as is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	mapped, ok := integrityErrors[pgErr.Code]
	if !ok {
		return err
	}
	subject := pgErr.ConstraintName
	if subject == "" {
		subject = pgErr.ColumnName
	}
	return fmt.Errorf("%w: %s on %s.%s: %v", mapped.category, mapped.kind, pgErr.TableName, subject, err)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CheckRowsAffected returns notFound, or store.ErrNotFound when notFound is
// nil, if an UPDATE or DELETE matched no rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if notFound == nil {
		return store.ErrNotFound
	}
	return notFound
}
