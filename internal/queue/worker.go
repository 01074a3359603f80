package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/generation"
	"github.com/mataresit/embedq/internal/redact"
	"github.com/mataresit/embedq/internal/store"
)

// Worker is a single claim/process/complete loop. It owns no shared state:
// counters and samples are worker-local and read by the pool only after the
// worker goroutine has terminated. Item ownership synchronization is
// delegated entirely to the queue store.
type Worker struct {
	id       string
	store    store.QueueStore
	embedder generation.Embedder
	cfg      Config
	logger   *slog.Logger

	stats   WorkerStats
	samples Samples

	// completed tracks pool-wide terminal transitions; target bounds the
	// run when positive.
	completed *atomic.Int64
	target    int64
}

// newWorker creates a worker for one pool run.
func newWorker(
	id string,
	st store.QueueStore,
	embedder generation.Embedder,
	cfg Config,
	logger *slog.Logger,
	completed *atomic.Int64,
	target int64,
) *Worker {
	return &Worker{
		id:        id,
		store:     st,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger.With("worker_id", id),
		stats:     WorkerStats{WorkerID: id},
		completed: completed,
		target:    target,
	}
}

// run loops until the context is cancelled, the run target is reached, or
// a fatal store error occurs. Cancellation is observed between batches and
// between items, so exit latency is bounded by one idle interval or one
// item completion, whichever comes first.
func (w *Worker) run(ctx context.Context) error {
	w.logger.Debug("starting worker")

	for {
		if ctx.Err() != nil {
			w.logger.Debug("stopping worker, context cancelled")
			return nil
		}
		if w.targetReached() {
			w.logger.Debug("stopping worker, run target reached")
			return nil
		}

		claimStart := time.Now()
		var batch []*domain.QueueItem
		err := w.retryStore(ctx, "claim_batch", func(ctx context.Context) error {
			var claimErr error
			batch, claimErr = w.store.ClaimBatch(ctx, w.id, w.cfg.BatchSize)
			return claimErr
		})
		if err != nil {
			if isCancellation(err) {
				return nil
			}
			return err
		}

		if len(batch) == 0 {
			// Empty queue: back off rather than busy-spin the store.
			if w.targetReached() {
				return nil
			}
			if !sleepCtx(ctx, w.cfg.IdleInterval) {
				return nil
			}
			continue
		}

		w.samples.BatchRetrieval = append(w.samples.BatchRetrieval, time.Since(claimStart))
		w.stats.BatchesClaimed++

		w.logger.Debug("claimed batch", "batch_size", len(batch))

		for _, item := range batch {
			if ctx.Err() != nil {
				// Remaining claimed items stay processing; the lease
				// timeout makes them reclaimable.
				w.logger.Debug("stopping worker mid-batch, context cancelled",
					"abandoned_items", len(batch))
				return nil
			}

			if err := w.processItem(ctx, item); err != nil {
				if isCancellation(err) {
					return nil
				}
				return err
			}
		}
	}
}

// processItem runs the embedding operation for one item and reports the
// outcome to the store. Embedding failures become failed completions; only
// store-level failures propagate.
func (w *Worker) processItem(ctx context.Context, item *domain.QueueItem) error {
	start := time.Now()

	result, embErr := w.embedder.GenerateEmbedding(ctx, item)

	if embErr != nil && ctx.Err() != nil {
		// Cancelled mid-embedding: leave the item processing for reclaim
		// instead of recording a spurious failure.
		return ctx.Err()
	}

	success := embErr == nil
	actualTokens := 0
	errorMessage := ""
	if success {
		actualTokens = result.Tokens
	} else {
		// The message is persisted with the failed item; scrub anything
		// the client stack may have leaked into it.
		errorMessage = redact.Error(embErr)
		w.logger.Warn("embedding generation failed",
			"item_id", item.ID,
			"source_type", item.SourceType,
			"source_id", item.SourceID,
			"error", embErr)
	}

	err := w.retryStore(ctx, "complete_item", func(ctx context.Context) error {
		return w.store.CompleteItem(ctx, item.ID, w.id, success, actualTokens, errorMessage)
	})
	if err != nil {
		if store.IsOwnership(err) {
			// The race is already resolved (lease reclaim or duplicate
			// completion); log and move on.
			w.logger.Warn("completion rejected, item no longer owned",
				"item_id", item.ID,
				"error", err)
			return nil
		}
		return err
	}

	if success {
		w.stats.ItemsProcessed++
	} else {
		w.stats.ItemsFailed++
	}
	if w.completed != nil {
		w.completed.Add(1)
	}
	w.samples.ItemCompletion = append(w.samples.ItemCompletion, time.Since(start))

	return nil
}

// retryStore runs one store operation, retrying transient errors with
// exponential backoff. Retries exhausted escalate to a fatal error.
// Ownership errors pass through untouched for the caller to handle.
func (w *Worker) retryStore(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := w.cfg.Backoff.Initial

	for attempt := 0; ; attempt++ {
		w.stats.StoreCalls++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if store.IsOwnership(err) {
			return err
		}
		if isCancellation(err) {
			// Shutdown cut the call short; not a store failure.
			return err
		}

		w.stats.StoreErrors++

		if !store.IsTransient(err) {
			w.logger.Error("fatal store error",
				"op", op,
				"error", err)
			return err
		}

		if attempt >= w.cfg.Backoff.MaxRetries {
			w.logger.Error("transient store error retries exhausted",
				"op", op,
				"attempts", attempt+1,
				"error", err)
			return fmt.Errorf("%w: %s retries exhausted after %d attempts: %v",
				store.ErrFatal, op, attempt+1, err)
		}

		w.logger.Warn("transient store error, backing off",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextBackoff(delay, w.cfg.Backoff)
	}
}

// targetReached reports whether the pool-wide run target has been hit.
func (w *Worker) targetReached() bool {
	return w.target > 0 && w.completed != nil && w.completed.Load() >= w.target
}

// isCancellation reports whether the error only signals context
// cancellation or timeout rather than a store failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
