package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	transient := fmt.Errorf("claim failed: %w", ErrTransient)
	fatal := fmt.Errorf("schema violation: %w", ErrFatal)
	notOwned := fmt.Errorf("complete rejected: %w", ErrNotOwned)

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(fatal))

	assert.True(t, IsFatal(fatal))
	assert.False(t, IsFatal(transient))

	assert.True(t, IsOwnership(notOwned))
	assert.False(t, IsOwnership(transient))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsOwnership(nil))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("queue_item", "claim_batch", "could not claim items", cause)

	assert.Contains(t, err.Error(), "claim_batch")
	assert.Contains(t, err.Error(), "queue_item")
	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("queue_item", "insert", "validation failed", nil)
	assert.Contains(t, bare.Error(), "insert operation on queue_item failed")
}

func TestStoreErrorWrapsTaxonomy(t *testing.T) {
	err := NewStoreError("queue_item", "complete_item", "stale worker", ErrNotOwned)
	assert.True(t, IsOwnership(err))
	assert.False(t, IsFatal(err))
}
