package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mataresit/embedq/internal/store"
)

// PostgreSQL error codes and classes
const (
	// connectionExceptionClass covers connection failures (class 08).
	connectionExceptionClass = "08"

	// serializationFailureCode is returned when a transaction loses a
	// serialization conflict and should be retried.
	serializationFailureCode = "40001"

	// deadlockDetectedCode is returned when the server resolves a deadlock
	// by aborting this transaction.
	deadlockDetectedCode = "40P01"

	// lockNotAvailableCode is returned when a lock request cannot be
	// granted (e.g., NOWAIT or lock_timeout).
	lockNotAvailableCode = "55P03"

	// queryCanceledCode is returned on statement timeout or cancellation.
	queryCanceledCode = "57014"

	// tooManyConnectionsCode is returned when the server connection limit
	// is reached.
	tooManyConnectionsCode = "53300"
)

// MapError maps a database error to the store's transient/fatal taxonomy.
// It wraps the original error to preserve context for debugging.
// This function should be used in all database operations to ensure
// consistent error handling: retryable contention and connectivity problems
// become store.ErrTransient, everything else becomes store.ErrFatal.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrItemNotFound, err)
	}

	// Cancellation is not a store failure; keep it visible to callers so
	// worker shutdown is not misread as a fatal error.
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("operation cancelled: %w", err)
	}

	// Caller-enforced timeouts count as transient per the retry contract
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isTransientCode(pgErr.Code) {
			return fmt.Errorf("%w: %s: %v", store.ErrTransient, pgErr.Code, err)
		}
		return fmt.Errorf("%w: %s: %v", store.ErrFatal, pgErr.Code, err)
	}

	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	// Unknown errors are fatal; bounded retry at the worker would only
	// mask a real defect.
	return fmt.Errorf("%w: %v", store.ErrFatal, err)
}

// isTransientCode reports whether a PostgreSQL error code indicates a
// retryable condition.
func isTransientCode(code string) bool {
	if len(code) >= 2 && code[:2] == connectionExceptionClass {
		return true
	}
	switch code {
	case serializationFailureCode, deadlockDetectedCode,
		lockNotAvailableCode, queryCanceledCode, tooManyConnectionsCode:
		return true
	default:
		return false
	}
}

// IsSerializationFailure checks if the given error is a PostgreSQL
// serialization failure, which callers may retry immediately.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode
}
