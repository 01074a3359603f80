package mocks

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/store"
)

// MockQueueStore implements store.QueueStore for testing. The default
// implementation keeps items in memory with the same priority-then-FIFO
// claim order and ownership checks as the real store, and supports
// deterministic fault injection: with a fixed seed and ErrorRate, the
// sequence of injected transient errors is reproducible.
type MockQueueStore struct {
	// Function fields for customizable behavior
	InsertFn         func(ctx context.Context, item *domain.QueueItem) error
	ClaimBatchFn     func(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error)
	CompleteItemFn   func(ctx context.Context, itemID uuid.UUID, workerID string, success bool, actualTokens int, errorMessage string) error
	GetStatisticsFn  func(ctx context.Context) (*domain.QueueStats, error)
	ReclaimExpiredFn func(ctx context.Context, leaseTimeout time.Duration) (int, error)

	// ErrorRate is the probability in [0, 1] that any default store call
	// fails with a transient error before touching state.
	ErrorRate float64

	// LatencyFn, when set, returns an artificial delay applied before each
	// default store call. The op argument is the operation name
	// ("insert", "claim_batch", "complete_item", "get_statistics",
	// "reclaim_expired").
	LatencyFn func(op string) time.Duration

	// Call tracking for verification
	Calls struct {
		Insert         int
		ClaimBatch     int
		CompleteItem   int
		GetStatistics  int
		ReclaimExpired int
		InjectedErrors int
	}

	mu    sync.Mutex
	rng   *rand.Rand
	items map[uuid.UUID]*domain.QueueItem
}

// Statically verify interface compliance.
var _ store.QueueStore = (*MockQueueStore)(nil)

// NewMockQueueStore creates a mock store whose fault injection draws from
// the given seed.
func NewMockQueueStore(seed int64) *MockQueueStore {
	return &MockQueueStore{
		rng:   rand.New(rand.NewSource(seed)),
		items: make(map[uuid.UUID]*domain.QueueItem),
	}
}

// Add places items into the store directly, bypassing fault injection and
// call counting. Nil items are ignored.
func (m *MockQueueStore) Add(items ...*domain.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if item != nil {
			m.items[item.ID] = item
		}
	}
}

// Snapshot returns a copy of every stored item, for test assertions.
func (m *MockQueueStore) Snapshot() []*domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueueItem, 0, len(m.items))
	for _, item := range m.items {
		cp := *item
		out = append(out, &cp)
	}
	return out
}

// CountByStatus returns how many stored items currently have the status.
func (m *MockQueueStore) CountByStatus(status domain.ItemStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Insert implements the QueueStore interface
func (m *MockQueueStore) Insert(ctx context.Context, item *domain.QueueItem) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, item)
	}
	m.sleep(ctx, "insert")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Insert++
	if err := m.maybeFail("insert"); err != nil {
		return err
	}

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

// ClaimBatch implements the QueueStore interface
func (m *MockQueueStore) ClaimBatch(ctx context.Context, workerID string, maxSize int) ([]*domain.QueueItem, error) {
	if m.ClaimBatchFn != nil {
		return m.ClaimBatchFn(ctx, workerID, maxSize)
	}
	m.sleep(ctx, "claim_batch")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.ClaimBatch++
	if err := m.maybeFail("claim_batch"); err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		return nil, nil
	}

	pending := make([]*domain.QueueItem, 0, maxSize)
	for _, item := range m.items {
		if item.Status == domain.ItemStatusPending {
			pending = append(pending, item)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := pending[i].Priority.Rank(), pending[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > maxSize {
		pending = pending[:maxSize]
	}

	now := time.Now().UTC()
	claimed := make([]*domain.QueueItem, 0, len(pending))
	for _, item := range pending {
		item.Status = domain.ItemStatusProcessing
		item.WorkerID = workerID
		claimedAt := now
		item.ClaimedAt = &claimedAt
		item.UpdatedAt = now

		cp := *item
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

// CompleteItem implements the QueueStore interface
func (m *MockQueueStore) CompleteItem(ctx context.Context, itemID uuid.UUID, workerID string, success bool, actualTokens int, errorMessage string) error {
	if m.CompleteItemFn != nil {
		return m.CompleteItemFn(ctx, itemID, workerID, success, actualTokens, errorMessage)
	}
	m.sleep(ctx, "complete_item")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.CompleteItem++
	if err := m.maybeFail("complete_item"); err != nil {
		return err
	}

	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("%w: item %s", store.ErrItemNotFound, itemID)
	}
	if item.Status != domain.ItemStatusProcessing || item.WorkerID != workerID {
		return fmt.Errorf("%w: item %s held by %q in status %q",
			store.ErrNotOwned, itemID, item.WorkerID, item.Status)
	}

	if success {
		item.Status = domain.ItemStatusCompleted
		item.ActualTokens = actualTokens
		item.ErrorMessage = ""
	} else {
		item.Status = domain.ItemStatusFailed
		item.ErrorMessage = errorMessage
	}
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// GetStatistics implements the QueueStore interface
func (m *MockQueueStore) GetStatistics(ctx context.Context) (*domain.QueueStats, error) {
	if m.GetStatisticsFn != nil {
		return m.GetStatisticsFn(ctx)
	}
	m.sleep(ctx, "get_statistics")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.GetStatistics++
	if err := m.maybeFail("get_statistics"); err != nil {
		return nil, err
	}

	stats := &domain.QueueStats{}
	workers := make(map[string]struct{})
	var totalProcessing time.Duration
	var completed int64
	for _, item := range m.items {
		switch item.Status {
		case domain.ItemStatusPending:
			stats.PendingItems++
		case domain.ItemStatusProcessing:
			stats.ProcessingItems++
			if item.WorkerID != "" {
				workers[item.WorkerID] = struct{}{}
			}
		case domain.ItemStatusCompleted:
			stats.CompletedItems++
			stats.TotalTokens += int64(item.ActualTokens)
			completed++
			totalProcessing += item.UpdatedAt.Sub(item.CreatedAt)
		case domain.ItemStatusFailed:
			stats.FailedItems++
		}
	}
	stats.ActiveWorkers = len(workers)
	if completed > 0 {
		stats.AvgProcessingTime = totalProcessing / time.Duration(completed)
	}
	return stats, nil
}

// ReclaimExpired implements the QueueStore interface
func (m *MockQueueStore) ReclaimExpired(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	if m.ReclaimExpiredFn != nil {
		return m.ReclaimExpiredFn(ctx, leaseTimeout)
	}
	m.sleep(ctx, "reclaim_expired")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.ReclaimExpired++
	if err := m.maybeFail("reclaim_expired"); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-leaseTimeout)
	reclaimed := 0
	for _, item := range m.items {
		if item.Status != domain.ItemStatusProcessing {
			continue
		}
		if item.ClaimedAt == nil || item.ClaimedAt.Before(cutoff) {
			item.Status = domain.ItemStatusPending
			item.WorkerID = ""
			item.ClaimedAt = nil
			item.UpdatedAt = time.Now().UTC()
			reclaimed++
		}
	}
	return reclaimed, nil
}

// maybeFail draws from the seeded generator and returns a transient error
// with probability ErrorRate. Must be called with mu held.
func (m *MockQueueStore) maybeFail(op string) error {
	if m.ErrorRate <= 0 {
		return nil
	}
	if m.rng.Float64() < m.ErrorRate {
		m.Calls.InjectedErrors++
		return fmt.Errorf("%w: injected %s failure", store.ErrTransient, op)
	}
	return nil
}

// sleep applies the configured artificial latency, respecting cancellation.
func (m *MockQueueStore) sleep(ctx context.Context, op string) {
	if m.LatencyFn == nil {
		return
	}
	d := m.LatencyFn(op)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
