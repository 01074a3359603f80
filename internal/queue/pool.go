package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mataresit/embedq/internal/generation"
	"github.com/mataresit/embedq/internal/store"
)

// WorkerPool runs a fixed set of workers against one queue store, plus a
// background loop that returns expired leases to the queue. A pool value is
// reusable: each Run is an independent session with fresh workers.
type WorkerPool struct {
	store    store.QueueStore
	embedder generation.Embedder
	cfg      Config
	logger   *slog.Logger
}

// NewWorkerPool validates the collaborators and normalizes the config.
func NewWorkerPool(
	st store.QueueStore,
	embedder generation.Embedder,
	cfg Config,
	logger *slog.Logger,
) (*WorkerPool, error) {
	if st == nil {
		return nil, fmt.Errorf("queue store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg = cfg.normalize()

	return &WorkerPool{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run processes queue items until ctx is cancelled or, when target is
// positive, until target items have reached a terminal status across all
// workers. The first fatal worker error cancels the remaining workers and
// is reported in RunResult.Err; partial counters and samples are still
// merged and returned.
func (p *WorkerPool) Run(ctx context.Context, target int64) *RunResult {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var completed atomic.Int64

	workers := make([]*Worker, p.cfg.WorkerCount)
	for i := range workers {
		id := fmt.Sprintf("worker-%d-%s", i+1, uuid.NewString()[:8])
		workers[i] = newWorker(id, p.store, p.embedder, p.cfg, p.logger, &completed, target)
	}

	p.logger.Info("starting worker pool",
		"worker_count", len(workers),
		"batch_size", p.cfg.BatchSize,
		"target", target)

	errCh := make(chan error, len(workers))

	var workerWG sync.WaitGroup
	for _, w := range workers {
		workerWG.Add(1)
		go func(w *Worker) {
			defer workerWG.Done()
			if err := w.run(runCtx); err != nil {
				errCh <- fmt.Errorf("worker %s: %w", w.id, err)
				// Broadcast: one fatal worker stops the whole pool.
				cancel()
			}
		}(w)
	}

	reclaimDone := make(chan struct{})
	go func() {
		defer close(reclaimDone)
		p.reclaimLoop(runCtx)
	}()

	workerWG.Wait()
	cancel()
	<-reclaimDone
	close(errCh)

	result := &RunResult{Elapsed: time.Since(start)}
	for err := range errCh {
		if result.Err == nil {
			result.Err = err
		}
	}
	for _, w := range workers {
		result.ItemsProcessed += w.stats.ItemsProcessed
		result.ItemsFailed += w.stats.ItemsFailed
		result.StoreCalls += w.stats.StoreCalls
		result.StoreErrors += w.stats.StoreErrors
		result.Samples.merge(w.samples)
		result.Workers = append(result.Workers, w.stats)
	}

	p.logger.Info("worker pool finished",
		"items_processed", result.ItemsProcessed,
		"items_failed", result.ItemsFailed,
		"store_errors", result.StoreErrors,
		"elapsed", result.Elapsed,
		"fatal", result.Err != nil)

	return result
}

// reclaimLoop periodically returns items whose processing lease has expired
// to pending so another worker can claim them. Reclaim failures are logged
// and retried on the next tick; they never stop the pool.
func (p *WorkerPool) reclaimLoop(ctx context.Context) {
	// A zero lease timeout disables reclaim entirely; sweeping with a zero
	// cutoff would steal items that are still being processed.
	if p.cfg.LeaseTimeout <= 0 || p.cfg.ReclaimInterval <= 0 {
		return
	}

	ticker := time.NewTicker(p.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.store.ReclaimExpired(ctx, p.cfg.LeaseTimeout)
			if err != nil {
				if isCancellation(err) {
					return
				}
				p.logger.Warn("lease reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Info("reclaimed expired leases",
					"count", n,
					"lease_timeout", p.cfg.LeaseTimeout)
			}
		}
	}
}
