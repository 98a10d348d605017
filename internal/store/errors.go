package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// PostgreSQL error codes the store reacts to
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgConnectionException  = "08"
	pgAdminShutdown        = "57P01"
)

// classifyError maps driver errors onto the domain sentinels so callers can decide
// whether to retry. Unique violations mean another writer won a race.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrTransientStore) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		case pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgLockNotAvailable,
			pgErr.Code == pgAdminShutdown,
			strings.HasPrefix(pgErr.Code, pgConnectionException):
			return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
	}

	return err
}
