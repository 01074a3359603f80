package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/platform/postgres"
	"github.com/mataresit/embedq/internal/store"
	"github.com/mataresit/embedq/internal/testdb"
)

func seedPending(t *testing.T, s store.QueueStore, n int, priority domain.Priority) []*domain.QueueItem {
	t.Helper()

	ctx := context.Background()
	items := make([]*domain.QueueItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := domain.NewQueueItem("receipts", fmt.Sprintf("rcpt-%d", i),
			domain.OperationInsert, priority, 50, map[string]string{"content": "grocery receipt"})
		require.NoError(t, err)
		require.NoError(t, s.Insert(ctx, item))
		items = append(items, item)
	}
	return items
}

func TestIntegrationClaimCompleteLifecycle(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)
	ctx := context.Background()

	seedPending(t, s, 3, domain.PriorityMedium)

	claimed, err := s.ClaimBatch(ctx, "worker-a", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, item := range claimed {
		assert.Equal(t, domain.ItemStatusProcessing, item.Status)
		assert.Equal(t, "worker-a", item.WorkerID)
		require.NotNil(t, item.ClaimedAt)
	}

	require.NoError(t, s.CompleteItem(ctx, claimed[0].ID, "worker-a", true, 42, ""))
	require.NoError(t, s.CompleteItem(ctx, claimed[1].ID, "worker-a", false, 0, "model rejected input"))

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingItems)
	assert.Equal(t, 1, stats.CompletedItems)
	assert.Equal(t, 1, stats.FailedItems)
	assert.Equal(t, int64(42), stats.TotalTokens)
}

func TestIntegrationClaimOrdersByPriorityThenAge(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)
	ctx := context.Background()

	low, err := domain.NewQueueItem("receipts", "rcpt-low", domain.OperationInsert, domain.PriorityLow, 10, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, low))

	high, err := domain.NewQueueItem("receipts", "rcpt-high", domain.OperationInsert, domain.PriorityHigh, 10, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, high))

	claimed, err := s.ClaimBatch(ctx, "worker-a", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, high.ID, claimed[0].ID, "high priority claims first despite later insertion")
	assert.Equal(t, low.ID, claimed[1].ID)
}

func TestIntegrationNoDoubleClaim(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)
	ctx := context.Background()

	seedPending(t, s, 50, domain.PriorityMedium)

	const workers = 5
	var mu sync.Mutex
	seen := make(map[string]string)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for {
				batch, err := s.ClaimBatch(ctx, workerID, 5)
				assert.NoError(t, err)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, item := range batch {
					prev, dup := seen[item.ID.String()]
					assert.False(t, dup, "item %s claimed by both %s and %s", item.ID, prev, workerID)
					seen[item.ID.String()] = workerID
				}
				mu.Unlock()
			}
		}(fmt.Sprintf("worker-%d", i))
	}
	wg.Wait()

	assert.Len(t, seen, 50, "every item claimed exactly once")
}

func TestIntegrationOwnershipIntegrity(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)
	ctx := context.Background()

	seedPending(t, s, 1, domain.PriorityMedium)

	claimed, err := s.ClaimBatch(ctx, "worker-a", 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	err = s.CompleteItem(ctx, claimed[0].ID, "worker-b", true, 10, "")
	require.Error(t, err)
	assert.True(t, store.IsOwnership(err))

	// The failed completion must not have touched the item.
	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ProcessingItems)
	assert.Equal(t, 0, stats.CompletedItems)
}

func TestIntegrationReclaimExpiredLeases(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)
	ctx := context.Background()

	seedPending(t, s, 2, domain.PriorityMedium)

	claimed, err := s.ClaimBatch(ctx, "worker-a", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Backdate the leases so they look abandoned.
	_, err = db.Exec("UPDATE embedding_queue SET claimed_at = claimed_at - interval '1 hour'")
	require.NoError(t, err)

	n, err := s.ReclaimExpired(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Reclaimed items are claimable again.
	batch, err := s.ClaimBatch(ctx, "worker-b", 2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestIntegrationEmptyQueueClaimsNothing(t *testing.T) {
	db := testdb.Get(t)
	s := postgres.NewPostgresQueueStore(db)

	batch, err := s.ClaimBatch(context.Background(), "worker-a", 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}
