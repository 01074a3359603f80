package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mataresit/embedq/internal/domain"
)

// QueueStore defines the interface for the transactional backing store of
// the embedding queue. It is the only shared mutable resource between
// workers; all synchronization for item ownership is delegated to it, so a
// conforming implementation must guarantee atomic claim semantics even
// across multiple worker processes.
//
// Any method may return an error wrapping ErrTransient (retry with backoff)
// or ErrFatal (terminate the worker). Claimed-but-never-completed items must
// eventually become reclaimable via ReclaimExpired.
type QueueStore interface {
	// Insert persists a new pending queue item. Used by producers and by
	// load-test seeding; the queue core itself never inserts.
	Insert(ctx context.Context, item *domain.QueueItem) error

	// ClaimBatch atomically selects up to maxSize pending items in
	// priority-then-FIFO order, marks them processing with the given
	// worker ID and a claim timestamp, and returns them. It returns an
	// empty batch, not an error, when no pending items exist. No two
	// concurrent calls may return overlapping items.
	ClaimBatch(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error)

	// CompleteItem transitions an item from processing to completed or
	// failed. Returns an error wrapping ErrNotOwned if the item is not
	// currently owned by workerID; the transition is applied exactly once
	// by the claiming worker.
	CompleteItem(
		ctx context.Context,
		itemID uuid.UUID,
		workerID string,
		success bool,
		actualTokens int,
		errorMessage string,
	) error

	// GetStatistics returns a read-only snapshot of queue counts, active
	// workers, and rolling average processing time. Eventually consistent.
	GetStatistics(ctx context.Context) (*domain.QueueStats, error)

	// ReclaimExpired resets items that have been processing longer than
	// the lease timeout back to pending so another worker can claim them.
	// Returns the number of items reclaimed.
	ReclaimExpired(ctx context.Context, leaseTimeout time.Duration) (int, error)
}
