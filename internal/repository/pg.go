package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// classify wraps a storage error into the domain taxonomy. A *pgconn.PgError
// means the server responded, so the failure is scoped to this statement; any
// other error (dial failure, closed pool, cancelled context) is treated as
// systemic and escalates a running batch.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicateKey) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if isUniqueViolation(err) {
		return domain.ErrDuplicateKey
	}
	var pgErr *pgconn.PgError
	systemic := !errors.As(err, &pgErr)
	return &domain.PersistenceError{Op: op, Systemic: systemic, Cause: err}
}
