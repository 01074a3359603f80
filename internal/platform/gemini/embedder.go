package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/mataresit/embedq/internal/config"
	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/generation"
	"google.golang.org/genai"
)

// contentMetadataKey is the metadata key under which producers place the
// text to embed. Falls back to the source coordinates when absent.
const contentMetadataKey = "content"

// embedFunc performs one embedding API call. Indirection exists so tests
// can exercise the retry logic without a live client.
type embedFunc func(ctx context.Context, model, text string) (*genai.EmbedContentResponse, error)

// GeminiEmbedder implements the generation.Embedder interface using
// Google's Gemini embedding API.
type GeminiEmbedder struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the embedding model to use
	model string

	// embed performs the API call; replaced in tests
	embed embedFunc
}

// NewGeminiEmbedder creates a new GeminiEmbedder with the provided
// dependencies. Returns an error if the configuration is invalid or the
// client cannot be created.
func NewGeminiEmbedder(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiEmbedder, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", generation.ErrInvalidConfig, err)
	}

	e := &GeminiEmbedder{
		logger: logger.With("component", "gemini_embedder", "model", cfg.ModelName),
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}
	e.embed = e.callAPI

	return e, nil
}

// GenerateEmbedding produces a vector embedding for the queue item's
// content, retrying transient API failures with exponential backoff.
func (e *GeminiEmbedder) GenerateEmbedding(
	ctx context.Context,
	item *domain.QueueItem,
) (*generation.EmbeddingResult, error) {
	text := itemContent(item)
	if text == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrEmptyContent, item.SourceType, item.SourceID)
	}

	resp, err := e.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: %w", generation.ErrInvalidResponse, ErrEmptyEmbedding)
	}

	return &generation.EmbeddingResult{
		Vector: resp.Embeddings[0].Values,
		Tokens: estimateTokens(text),
	}, nil
}

// embedWithRetry calls the embedding API with exponential backoff and
// jitter. Transient errors (rate limits, server errors, timeouts) are
// retried up to config.MaxRetries times; permanent errors return
// immediately.
func (e *GeminiEmbedder) embedWithRetry(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
	maxRetries := e.config.MaxRetries
	if maxRetries < 0 {
		e.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelaySeconds := e.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		e.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := e.embed(ctx, e.model, text)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransientAPIError(err) {
			e.logger.WarnContext(ctx, "permanent embedding error, not retrying", "error", err)
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}

		if attempt == maxRetries {
			break
		}

		// Exponential backoff with jitter
		delay := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitter := delay * 0.2 * rng.Float64()
		wait := time.Duration((delay + jitter) * float64(time.Second))

		e.logger.WarnContext(ctx, "transient embedding error, backing off",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"delay", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", generation.ErrTransientFailure, lastErr)
}

// callAPI performs the real Gemini embedding request.
func (e *GeminiEmbedder) callAPI(ctx context.Context, model, text string) (*genai.EmbedContentResponse, error) {
	return e.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
}

// isTransientAPIError reports whether an embedding API error is worth
// retrying: rate limits, server-side failures, and timeouts.
func isTransientAPIError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code == 408 || apiErr.Code >= 500
	}

	return false
}

// itemContent extracts the text to embed from a queue item.
func itemContent(item *domain.QueueItem) string {
	if item == nil {
		return ""
	}
	if content, ok := item.Metadata[contentMetadataKey]; ok && content != "" {
		return content
	}
	if item.SourceType != "" && item.SourceID != "" {
		return item.SourceType + ":" + item.SourceID
	}
	return ""
}

// estimateTokens approximates token usage for cost accounting when the
// API does not report it. Four characters per token is the provider's
// documented rule of thumb.
func estimateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
