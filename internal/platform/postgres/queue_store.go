package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/platform/logger"
	"github.com/mataresit/embedq/internal/store"
)

// statsWindow bounds the rolling average processing time reported by
// GetStatistics.
const statsWindow = time.Hour

// PostgresQueueStore implements the store.QueueStore interface using
// PostgreSQL. Claim atomicity relies on FOR UPDATE SKIP LOCKED, so the
// store is safe under arbitrary concurrent callers, including workers in
// separate processes.
type PostgresQueueStore struct {
	db *sql.DB
}

// NewPostgresQueueStore creates a new PostgresQueueStore.
func NewPostgresQueueStore(db *sql.DB) *PostgresQueueStore {
	return &PostgresQueueStore{
		db: db,
	}
}

// Insert persists a new pending queue item.
func (s *PostgresQueueStore) Insert(ctx context.Context, item *domain.QueueItem) error {
	log := logger.FromContext(ctx)

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO embedding_queue
			(id, source_type, source_id, operation, priority, metadata,
			 estimated_tokens, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, query,
		item.ID,
		item.SourceType,
		item.SourceID,
		item.Operation,
		item.Priority,
		metadata,
		item.EstimatedTokens,
		domain.ItemStatusPending,
		now,
		now,
	)

	if err != nil {
		log.Error("failed to insert queue item",
			"item_id", item.ID,
			"source_type", item.SourceType,
			"error", err)
		return store.NewStoreError("queue_item", "insert", "database insert failed", MapError(err))
	}

	return nil
}

// ClaimBatch atomically claims up to maxSize pending items for the given
// worker. Items are selected priority-then-FIFO; SKIP LOCKED guarantees no
// two concurrent claims return overlapping items. Returns an empty slice
// when no pending items exist.
func (s *PostgresQueueStore) ClaimBatch(
	ctx context.Context,
	workerID string,
	maxSize int,
) ([]*domain.QueueItem, error) {
	log := logger.FromContext(ctx)

	if maxSize <= 0 {
		return []*domain.QueueItem{}, nil
	}

	query := `
		UPDATE embedding_queue
		SET status = $1, worker_id = $2, claimed_at = $3, updated_at = $3
		WHERE id IN (
			SELECT id
			FROM embedding_queue
			WHERE status = $4
			ORDER BY
				CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
				created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, source_type, source_id, operation, priority, metadata,
			estimated_tokens, status, worker_id, claimed_at, error_message,
			created_at, updated_at
	`

	now := time.Now().UTC()

	rows, err := s.db.QueryContext(ctx, query,
		domain.ItemStatusProcessing,
		workerID,
		now,
		domain.ItemStatusPending,
		maxSize,
	)
	if err != nil {
		log.Error("failed to claim batch",
			"worker_id", workerID,
			"max_size", maxSize,
			"error", err)
		return nil, store.NewStoreError("queue_item", "claim_batch", "claim query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	items, err := scanItems(rows)
	if err != nil {
		log.Error("failed to scan claimed batch",
			"worker_id", workerID,
			"error", err)
		return nil, fmt.Errorf("failed to scan claimed batch: %w", MapError(err))
	}

	// RETURNING does not guarantee ordering; restore priority-then-FIFO
	// so the worker processes the batch in claim order.
	sort.SliceStable(items, func(i, j int) bool {
		if ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// CompleteItem transitions an item from processing to completed or failed.
// The update matches on both item ID and worker ID so a stale worker can
// never overwrite the outcome of an item it no longer owns; when nothing
// matches, the item's current state decides between an ownership error and
// a not-found error.
func (s *PostgresQueueStore) CompleteItem(
	ctx context.Context,
	itemID uuid.UUID,
	workerID string,
	success bool,
	actualTokens int,
	errorMessage string,
) error {
	log := logger.FromContext(ctx)

	status := domain.ItemStatusCompleted
	if !success {
		status = domain.ItemStatusFailed
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			UPDATE embedding_queue
			SET status = $1, actual_tokens = $2, error_message = NULLIF($3, ''),
				updated_at = $4
			WHERE id = $5 AND worker_id = $6 AND status = $7
		`

		result, err := tx.ExecContext(ctx, query,
			status,
			actualTokens,
			errorMessage,
			time.Now().UTC(),
			itemID,
			workerID,
			domain.ItemStatusProcessing,
		)
		if err != nil {
			return MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return MapError(err)
		}
		if rowsAffected > 0 {
			return nil
		}

		// Nothing matched: classify without mutating state.
		return classifyCompletionMiss(ctx, tx, itemID, workerID)
	})

	if err != nil {
		if store.IsOwnership(err) {
			// Indicates a race already resolved elsewhere; callers log
			// and move on.
			return err
		}
		log.Error("failed to complete queue item",
			"item_id", itemID,
			"worker_id", workerID,
			"status", status,
			"error", err)
		return store.NewStoreError("queue_item", "complete_item", "completion update failed", err)
	}

	return nil
}

// classifyCompletionMiss decides why a completion update matched no rows:
// the item exists under another owner or status (ownership error) or it
// does not exist at all. Accepts any store.DBTX so it can run inside or
// outside a transaction.
func classifyCompletionMiss(
	ctx context.Context,
	q store.DBTX,
	itemID uuid.UUID,
	workerID string,
) error {
	var currentStatus domain.ItemStatus
	var currentWorker sql.NullString
	row := q.QueryRowContext(ctx,
		`SELECT status, worker_id FROM embedding_queue WHERE id = $1`, itemID)
	if err := row.Scan(&currentStatus, &currentWorker); err != nil {
		return MapError(err)
	}

	return fmt.Errorf("%w: item %s is %s (owner %q, caller %q)",
		store.ErrNotOwned, itemID, currentStatus, currentWorker.String, workerID)
}

// GetStatistics returns counts per status, active workers, token
// throughput, and a rolling average processing time over the last hour.
func (s *PostgresQueueStore) GetStatistics(ctx context.Context) (*domain.QueueStats, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(DISTINCT worker_id) FILTER (WHERE status = 'processing'),
			COALESCE(SUM(actual_tokens) FILTER (WHERE status = 'completed'), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - claimed_at)))
				FILTER (WHERE status = 'completed'
					AND claimed_at IS NOT NULL
					AND updated_at >= $1), 0)
		FROM embedding_queue
	`

	var stats domain.QueueStats
	var avgSeconds float64

	row := s.db.QueryRowContext(ctx, query, time.Now().UTC().Add(-statsWindow))
	if err := row.Scan(
		&stats.PendingItems,
		&stats.ProcessingItems,
		&stats.CompletedItems,
		&stats.FailedItems,
		&stats.ActiveWorkers,
		&stats.TotalTokens,
		&avgSeconds,
	); err != nil {
		log.Error("failed to read queue statistics", "error", err)
		return nil, store.NewStoreError("queue_item", "get_statistics", "aggregate query failed", MapError(err))
	}

	stats.AvgProcessingTime = time.Duration(avgSeconds * float64(time.Second))

	return &stats, nil
}

// ReclaimExpired resets items whose processing lease has expired back to
// pending so another worker can claim them.
func (s *PostgresQueueStore) ReclaimExpired(
	ctx context.Context,
	leaseTimeout time.Duration,
) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE embedding_queue
		SET status = $1, worker_id = NULL, claimed_at = NULL, updated_at = $2
		WHERE status = $3 AND claimed_at < $4
	`

	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusPending,
		now,
		domain.ItemStatusProcessing,
		now.Add(-leaseTimeout),
	)
	if err != nil {
		log.Error("failed to reclaim expired leases",
			"lease_timeout", leaseTimeout,
			"error", err)
		return 0, store.NewStoreError("queue_item", "reclaim_expired", "reclaim update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", MapError(err))
	}

	if rowsAffected > 0 {
		log.Info("reclaimed expired leases",
			"count", rowsAffected,
			"lease_timeout", leaseTimeout)
	}

	return int(rowsAffected), nil
}

// scanItems reads queue items from the given rows.
func scanItems(rows *sql.Rows) ([]*domain.QueueItem, error) {
	items := []*domain.QueueItem{}

	for rows.Next() {
		var item domain.QueueItem
		var metadata []byte
		var workerID sql.NullString
		var claimedAt sql.NullTime
		var errorMessage sql.NullString

		if err := rows.Scan(
			&item.ID,
			&item.SourceType,
			&item.SourceID,
			&item.Operation,
			&item.Priority,
			&metadata,
			&item.EstimatedTokens,
			&item.Status,
			&workerID,
			&claimedAt,
			&errorMessage,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item metadata: %w", err)
			}
		}

		item.WorkerID = workerID.String
		if claimedAt.Valid {
			t := claimedAt.Time
			item.ClaimedAt = &t
		}
		item.ErrorMessage = errorMessage.String

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
