package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/mocks"
	"github.com/mataresit/embedq/internal/store"
)

func TestNewWorkerPoolValidation(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	embedder := &mocks.MockEmbedder{}

	_, err := NewWorkerPool(nil, embedder, DefaultConfig(), testLogger())
	assert.Error(t, err)

	_, err = NewWorkerPool(st, nil, DefaultConfig(), testLogger())
	assert.Error(t, err)

	_, err = NewWorkerPool(st, embedder, DefaultConfig(), nil)
	assert.Error(t, err)

	p, err := NewWorkerPool(st, embedder, Config{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, p.cfg.WorkerCount, "zero config normalizes to sane defaults")
	assert.Equal(t, DefaultConfig().BatchSize, p.cfg.BatchSize)
}

func TestPoolDrainsQueueWithInjectedErrors(t *testing.T) {
	t.Parallel()

	const totalItems = 200

	st := mocks.NewMockQueueStore(42)
	st.ErrorRate = 0.05
	for i := 0; i < totalItems; i++ {
		item, err := domain.NewQueueItem("receipts", fmt.Sprintf("rcpt-%d", i),
			domain.OperationInsert, domain.PriorityMedium, 50, nil)
		require.NoError(t, err)
		st.Add(item)
	}

	cfg := fastConfig()
	cfg.WorkerCount = 2
	cfg.BatchSize = 10
	cfg.LeaseTimeout = 0 // no reclaim sweep needed

	pool, err := NewWorkerPool(st, &mocks.MockEmbedder{}, cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := pool.Run(ctx, totalItems)
	require.NoError(t, result.Err)

	// Every item reaches a terminal status despite a 5% transient error
	// rate on store calls.
	assert.Equal(t, totalItems, result.TotalItems())
	assert.Equal(t, totalItems, st.CountByStatus(domain.ItemStatusCompleted))
	assert.Equal(t, 0, st.CountByStatus(domain.ItemStatusPending))
	assert.Equal(t, 0, st.CountByStatus(domain.ItemStatusProcessing))

	assert.Len(t, result.Workers, 2)
	assert.Len(t, result.Samples.ItemCompletion, totalItems)
	assert.GreaterOrEqual(t, result.StoreCalls, totalItems, "at least one call per item")

	// The observed store error rate should track the injected 5%.
	rate := float64(result.StoreErrors) / float64(result.StoreCalls) * 100
	assert.InDelta(t, 5.0, rate, 3.0, "error rate should be close to the injected rate")
}

func TestPoolFatalClaimErrorStopsAllWorkers(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	var claims atomic.Int64
	st.ClaimBatchFn = func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
		if claims.Add(1) == 3 {
			return nil, fmt.Errorf("%w: schema out of date", store.ErrFatal)
		}
		return nil, nil
	}

	cfg := fastConfig()
	cfg.WorkerCount = 4

	pool, err := NewWorkerPool(st, &mocks.MockEmbedder{}, cfg, testLogger())
	require.NoError(t, err)

	// Unbounded run: only the fatal error can stop it.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	result := pool.Run(ctx, 0)

	require.Error(t, result.Err)
	assert.True(t, store.IsFatal(result.Err))
	assert.Less(t, time.Since(start), 5*time.Second,
		"fatal error must cancel sibling workers promptly")
	assert.Len(t, result.Workers, 4)
}

func TestPoolWorkersHaveDistinctIDs(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	cfg := fastConfig()
	cfg.WorkerCount = 3

	pool, err := NewWorkerPool(st, &mocks.MockEmbedder{}, cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := pool.Run(ctx, 0)
	require.NoError(t, result.Err)

	seen := make(map[string]struct{})
	for _, w := range result.Workers {
		seen[w.WorkerID] = struct{}{}
	}
	assert.Len(t, seen, 3)
}

func TestPoolReclaimsExpiredLeases(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)

	// An item stuck processing under a dead worker's lease.
	item, err := domain.NewQueueItem("receipts", "rcpt-stuck",
		domain.OperationUpdate, domain.PriorityHigh, 50, nil)
	require.NoError(t, err)
	item.Status = domain.ItemStatusProcessing
	item.WorkerID = "worker-dead-" + uuid.NewString()[:8]
	staleClaim := time.Now().UTC().Add(-time.Hour)
	item.ClaimedAt = &staleClaim
	st.Add(item)

	cfg := fastConfig()
	cfg.LeaseTimeout = 50 * time.Millisecond
	cfg.ReclaimInterval = 10 * time.Millisecond

	pool, err := NewWorkerPool(st, &mocks.MockEmbedder{}, cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := pool.Run(ctx, 1)
	require.NoError(t, result.Err)

	assert.Equal(t, 1, result.ItemsProcessed)
	assert.Equal(t, 1, st.CountByStatus(domain.ItemStatusCompleted))
	assert.GreaterOrEqual(t, st.Calls.ReclaimExpired, 1)
}

func TestPoolZeroLeaseTimeoutDisablesReclaim(t *testing.T) {
	t.Parallel()

	const totalItems = 4

	st := mocks.NewMockQueueStore(1)
	for i := 0; i < totalItems; i++ {
		item, err := domain.NewQueueItem("receipts", fmt.Sprintf("rcpt-%d", i),
			domain.OperationInsert, domain.PriorityMedium, 50, nil)
		require.NoError(t, err)
		st.Add(item)
	}

	// Slow embeddings keep items in processing long enough that a sweep
	// with a zero cutoff would steal them mid-flight.
	embedder := &mocks.MockEmbedder{
		DurationFn: func(*domain.QueueItem) time.Duration { return 50 * time.Millisecond },
	}

	cfg := fastConfig()
	cfg.LeaseTimeout = 0
	cfg.ReclaimInterval = 5 * time.Millisecond

	pool, err := NewWorkerPool(st, embedder, cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := pool.Run(ctx, totalItems)
	require.NoError(t, result.Err)

	assert.Equal(t, 0, st.Calls.ReclaimExpired, "zero lease timeout must disable the sweep")
	assert.Equal(t, totalItems, st.CountByStatus(domain.ItemStatusCompleted))
	assert.Equal(t, 0, result.ItemsFailed)
}

func TestPoolMergesWorkerSamples(t *testing.T) {
	t.Parallel()

	const totalItems = 20

	st := mocks.NewMockQueueStore(7)
	for i := 0; i < totalItems; i++ {
		item, err := domain.NewQueueItem("receipts", fmt.Sprintf("rcpt-%d", i),
			domain.OperationInsert, domain.PriorityLow, 25, nil)
		require.NoError(t, err)
		st.Add(item)
	}

	cfg := fastConfig()
	cfg.WorkerCount = 2
	cfg.BatchSize = 5

	pool, err := NewWorkerPool(st, &mocks.MockEmbedder{}, cfg, testLogger())
	require.NoError(t, err)

	result := pool.Run(context.Background(), totalItems)
	require.NoError(t, result.Err)

	var perWorkerItems int
	for _, w := range result.Workers {
		perWorkerItems += w.ItemsProcessed + w.ItemsFailed
	}
	assert.Equal(t, result.TotalItems(), perWorkerItems,
		"merged totals must equal the sum of per-worker counters")
	assert.Len(t, result.Samples.ItemCompletion, totalItems)
}
