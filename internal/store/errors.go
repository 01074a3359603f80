package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all queue store implementations.
var (
	// ErrTransient indicates a retryable store failure such as network
	// trouble, lock contention, or a statement timeout. Callers retry
	// with exponential backoff.
	ErrTransient = errors.New("transient store error")

	// ErrFatal indicates a non-retryable store failure such as a schema
	// violation or a closed connection pool. It terminates the owning
	// worker and triggers pool-wide cancellation.
	ErrFatal = errors.New("fatal store error")

	// ErrNotOwned is returned by CompleteItem when the item is not
	// currently owned by the calling worker, for example because it was
	// already completed or reclaimed after a lease timeout.
	ErrNotOwned = errors.New("item not owned by worker")

	// ErrItemNotFound is returned when a referenced queue item does not
	// exist in the store.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsTransient checks if the error is a retryable store error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal checks if the error is a non-retryable store error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsOwnership checks if the error is an ownership violation from
// CompleteItem. Workers log these and treat them as no-ops.
func IsOwnership(err error) bool {
	return errors.Is(err, ErrNotOwned)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "queue_item")
	Operation string // The operation that failed (e.g., "claim_batch")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
