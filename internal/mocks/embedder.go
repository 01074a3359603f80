package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/generation"
)

// MockEmbedder implements generation.Embedder for testing
type MockEmbedder struct {
	// GenerateEmbeddingFn allows test cases to mock the whole call
	GenerateEmbeddingFn func(ctx context.Context, item *domain.QueueItem) (*generation.EmbeddingResult, error)

	// FailFn, when set, decides per item whether the default
	// implementation returns an error instead of a result.
	FailFn func(item *domain.QueueItem) error

	// DurationFn, when set, returns an artificial processing delay per
	// item. Cancellation cuts the delay short and returns ctx.Err().
	DurationFn func(item *domain.QueueItem) time.Duration

	// Default response values
	Result *generation.EmbeddingResult
	Err    error

	// Call tracking for verification
	Calls struct {
		mu    sync.Mutex
		Count int
		Items []*domain.QueueItem
	}
}

// Statically verify interface compliance.
var _ generation.Embedder = (*MockEmbedder)(nil)

// GenerateEmbedding implements the generation.Embedder interface
func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, item *domain.QueueItem) (*generation.EmbeddingResult, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Items = append(m.Calls.Items, item)
	m.Calls.mu.Unlock()

	if m.GenerateEmbeddingFn != nil {
		return m.GenerateEmbeddingFn(ctx, item)
	}

	if m.DurationFn != nil {
		if d := m.DurationFn(item); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailFn != nil {
		if err := m.FailFn(item); err != nil {
			return nil, err
		}
	}

	if m.Result != nil {
		return m.Result, nil
	}
	return &generation.EmbeddingResult{
		Vector: []float32{0.1, 0.2, 0.3},
		Tokens: item.EstimatedTokens,
	}, nil
}

// CallCount returns how many times GenerateEmbedding was invoked.
func (m *MockEmbedder) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}
