package loadtest

import (
	"time"

	"github.com/mataresit/embedq/internal/queue"
)

// Scenario is one named load-test configuration: how the pool is shaped,
// how many items it must drain, and how the simulated store misbehaves.
type Scenario struct {
	Name string `json:"name"`

	// Workers is the concurrent worker count for this scenario.
	Workers int `json:"workers"`

	// BatchSize caps items per claim call.
	BatchSize int `json:"batch_size"`

	// TotalItems is how many pending items the scenario seeds and must
	// drive to a terminal state.
	TotalItems int `json:"total_items"`

	// Seed drives the store's fault injection for reproducible runs.
	Seed int64 `json:"seed"`

	// ErrorRate is the probability in [0, 1] that a simulated store call
	// fails with a transient error.
	ErrorRate float64 `json:"error_rate"`

	// MinStoreLatency and MaxStoreLatency bound the uniformly random
	// artificial delay applied to each simulated store call.
	MinStoreLatency time.Duration `json:"min_store_latency"`
	MaxStoreLatency time.Duration `json:"max_store_latency"`

	// EmbedLatency is the fixed artificial delay of the simulated
	// embedding call.
	EmbedLatency time.Duration `json:"embed_latency"`

	// Backoff overrides the worker retry behavior; zero values fall back
	// to the pool defaults.
	Backoff queue.BackoffConfig `json:"backoff"`

	// Timeout bounds the scenario's wall-clock duration. A run that does
	// not drain in time counts as an execution error.
	Timeout time.Duration `json:"timeout"`

	Thresholds Thresholds `json:"thresholds"`
}

// DefaultScenarios returns the standard light/moderate/heavy/stress
// progression, scaling concurrency, item count, and injected store
// misbehavior together.
func DefaultScenarios() []Scenario {
	backoff := queue.BackoffConfig{
		Initial:    25 * time.Millisecond,
		Multiplier: 2.0,
		Max:        time.Second,
		MaxRetries: 5,
	}

	return []Scenario{
		{
			Name:            "light",
			Workers:         2,
			BatchSize:       5,
			TotalItems:      50,
			Seed:            1,
			ErrorRate:       0,
			MinStoreLatency: time.Millisecond,
			MaxStoreLatency: 5 * time.Millisecond,
			EmbedLatency:    2 * time.Millisecond,
			Backoff:         backoff,
			Timeout:         time.Minute,
			Thresholds: Thresholds{
				MinThroughputPerMinute: 300,
				MaxErrorRatePercent:    1,
				MaxAvgProcessingTime:   250 * time.Millisecond,
				MaxBatchRetrieval:      500 * time.Millisecond,
			},
		},
		{
			Name:            "moderate",
			Workers:         4,
			BatchSize:       10,
			TotalItems:      200,
			Seed:            2,
			ErrorRate:       0.02,
			MinStoreLatency: 2 * time.Millisecond,
			MaxStoreLatency: 20 * time.Millisecond,
			EmbedLatency:    5 * time.Millisecond,
			Backoff:         backoff,
			Timeout:         2 * time.Minute,
			Thresholds: Thresholds{
				MinThroughputPerMinute: 300,
				MaxErrorRatePercent:    5,
				MaxAvgProcessingTime:   500 * time.Millisecond,
				MaxBatchRetrieval:      time.Second,
			},
		},
		{
			Name:            "heavy",
			Workers:         8,
			BatchSize:       20,
			TotalItems:      500,
			Seed:            3,
			ErrorRate:       0.05,
			MinStoreLatency: 5 * time.Millisecond,
			MaxStoreLatency: 50 * time.Millisecond,
			EmbedLatency:    10 * time.Millisecond,
			Backoff:         backoff,
			Timeout:         5 * time.Minute,
			Thresholds: Thresholds{
				MinThroughputPerMinute: 200,
				MaxErrorRatePercent:    10,
				MaxAvgProcessingTime:   time.Second,
				MaxBatchRetrieval:      2 * time.Second,
			},
		},
		{
			Name:            "stress",
			Workers:         16,
			BatchSize:       25,
			TotalItems:      1000,
			Seed:            4,
			ErrorRate:       0.10,
			MinStoreLatency: 10 * time.Millisecond,
			MaxStoreLatency: 100 * time.Millisecond,
			EmbedLatency:    20 * time.Millisecond,
			Backoff:         backoff,
			Timeout:         10 * time.Minute,
			Thresholds: Thresholds{
				MinThroughputPerMinute: 100,
				MaxErrorRatePercent:    15,
				MaxAvgProcessingTime:   3 * time.Second,
				MaxBatchRetrieval:      5 * time.Second,
			},
		},
	}
}
