package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/mocks"
	"github.com/mataresit/embedq/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig keeps retry and idle delays small enough for unit tests.
func fastConfig() Config {
	return Config{
		WorkerCount:  1,
		BatchSize:    10,
		IdleInterval: time.Millisecond,
		Backoff: BackoffConfig{
			Initial:    time.Millisecond,
			Multiplier: 2.0,
			Max:        5 * time.Millisecond,
			MaxRetries: 3,
		},
	}
}

func pendingItems(t *testing.T, n int) []*domain.QueueItem {
	t.Helper()
	items := make([]*domain.QueueItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := domain.NewQueueItem("receipts", fmt.Sprintf("rcpt-%d", i), domain.OperationInsert, domain.PriorityMedium, 50, nil)
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func TestWorkerCompletesClaimedItems(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	st.Add(pendingItems(t, 3)...)
	embedder := &mocks.MockEmbedder{}

	var completed atomic.Int64
	w := newWorker("worker-test", st, embedder, fastConfig(), testLogger(), &completed, 3)

	err := w.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, w.stats.ItemsProcessed)
	assert.Equal(t, 0, w.stats.ItemsFailed)
	assert.Equal(t, 3, st.CountByStatus(domain.ItemStatusCompleted))
	assert.Equal(t, 3, embedder.CallCount())
	assert.Len(t, w.samples.ItemCompletion, 3)
	assert.NotEmpty(t, w.samples.BatchRetrieval)
}

func TestWorkerRecordsFailedEmbeddings(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	st.Add(pendingItems(t, 2)...)
	embedder := &mocks.MockEmbedder{
		Err: errors.New("model rejected input"),
	}

	var completed atomic.Int64
	w := newWorker("worker-test", st, embedder, fastConfig(), testLogger(), &completed, 2)

	err := w.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, w.stats.ItemsProcessed)
	assert.Equal(t, 2, w.stats.ItemsFailed)
	assert.Equal(t, 2, st.CountByStatus(domain.ItemStatusFailed))

	for _, item := range st.Snapshot() {
		assert.Equal(t, "model rejected input", item.ErrorMessage)
	}
}

func TestWorkerRetriesTransientClaimErrors(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	items := pendingItems(t, 1)

	var claims atomic.Int64
	inner := mocks.NewMockQueueStore(1)
	inner.Add(items...)
	st.ClaimBatchFn = func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
		if claims.Add(1) <= 2 {
			return nil, store.ErrTransient
		}
		return inner.ClaimBatch(ctx, workerID, maxSize)
	}
	st.CompleteItemFn = inner.CompleteItem

	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, fastConfig(), testLogger(), &completed, 1)

	err := w.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), claims.Load())
	assert.Equal(t, 2, w.stats.StoreErrors)
	assert.Equal(t, 1, w.stats.ItemsProcessed)
}

func TestWorkerEscalatesExhaustedRetries(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	st.ClaimBatchFn = func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
		return nil, store.ErrTransient
	}

	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, fastConfig(), testLogger(), &completed, 0)

	err := w.run(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsFatal(err), "exhausted retries must escalate to fatal: %v", err)

	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, 4, w.stats.StoreCalls)
	assert.Equal(t, 4, w.stats.StoreErrors)
}

func TestWorkerStopsOnFatalStoreError(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	st.ClaimBatchFn = func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
		return nil, store.ErrFatal
	}

	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, fastConfig(), testLogger(), &completed, 0)

	err := w.run(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsFatal(err))
	assert.Equal(t, 1, w.stats.StoreCalls)
}

func TestWorkerStopsOnCancellation(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1) // empty queue keeps the worker idling

	ctx, cancel := context.WithCancel(context.Background())
	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, fastConfig(), testLogger(), &completed, 0)

	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorkerCancellationCutsRetryBackoffShort(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	st.ClaimBatchFn = func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
		return nil, store.ErrTransient
	}

	cfg := fastConfig()
	cfg.Backoff.Initial = 10 * time.Second // would stall without cancellation

	ctx, cancel := context.WithCancel(context.Background())
	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, cfg, testLogger(), &completed, 0)

	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop while backing off")
	}
}

func TestWorkerTreatsOwnershipLossAsNoop(t *testing.T) {
	t.Parallel()

	st := mocks.NewMockQueueStore(1)
	inner := mocks.NewMockQueueStore(1)
	inner.Add(pendingItems(t, 1)...)
	st.ClaimBatchFn = inner.ClaimBatch
	st.CompleteItemFn = func(ctx context.Context, itemID uuid.UUID, workerID string, success bool, actualTokens int, errorMessage string) error {
		return store.ErrNotOwned
	}
	// Second claim sees an empty queue; bound the run with a context.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var completed atomic.Int64
	w := newWorker("worker-test", st, &mocks.MockEmbedder{}, fastConfig(), testLogger(), &completed, 0)

	err := w.run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, w.stats.ItemsProcessed)
	assert.Equal(t, 0, w.stats.ItemsFailed)
	assert.Equal(t, 0, w.stats.StoreErrors, "ownership loss is not a store outage")
}
