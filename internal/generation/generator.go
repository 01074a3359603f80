package generation

import (
	"context"

	"github.com/mataresit/embedq/internal/domain"
)

// Embedder defines the interface for generating vector embeddings from
// queue items. This interface serves as a boundary between the queue core
// and external AI/LLM services: latency and failure characteristics are
// opaque, and callers are expected to enforce their own timeouts.
type Embedder interface {
	// GenerateEmbedding produces a vector embedding for the given queue
	// item's source content and returns it along with the number of
	// tokens consumed.
	//
	// Errors wrap one of the sentinel errors in errors.go; the queue
	// core converts any of them to a failed completion rather than
	// propagating them as a worker crash.
	GenerateEmbedding(ctx context.Context, item *domain.QueueItem) (*EmbeddingResult, error)
}

// EmbeddingResult holds the outcome of a successful embedding call.
type EmbeddingResult struct {
	// Vector is the embedding itself.
	Vector []float32

	// Tokens is the number of tokens the provider reported consuming,
	// recorded on completion as a cost heuristic.
	Tokens int
}
