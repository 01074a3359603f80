package queue

import (
	"time"

	"github.com/mataresit/embedq/internal/config"
)

// BackoffConfig controls retry behavior for transient store errors.
type BackoffConfig struct {
	// Initial is the first delay after a transient error.
	Initial time.Duration

	// Multiplier grows the delay on each consecutive transient error.
	Multiplier float64

	// Max caps the delay.
	Max time.Duration

	// MaxRetries bounds consecutive transient failures on one operation
	// before escalating to a fatal error.
	MaxRetries int
}

// Config holds the worker pool settings for one run.
type Config struct {
	// WorkerCount is the number of concurrent workers to start.
	WorkerCount int

	// BatchSize is the maximum number of items claimed per ClaimBatch call.
	BatchSize int

	// IdleInterval is how long a worker sleeps after an empty batch
	// before polling the store again.
	IdleInterval time.Duration

	// Backoff controls transient-error retry behavior.
	Backoff BackoffConfig

	// LeaseTimeout is how long a claimed item may stay processing before
	// it becomes reclaimable. Zero disables the reclaim sweep.
	LeaseTimeout time.Duration

	// ReclaimInterval is how often the pool sweeps for expired leases.
	ReclaimInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:  2,
		BatchSize:    10,
		IdleInterval: 100 * time.Millisecond,
		Backoff: BackoffConfig{
			Initial:    500 * time.Millisecond,
			Multiplier: 2.0,
			Max:        30 * time.Second,
			MaxRetries: 5,
		},
		LeaseTimeout:    5 * time.Minute,
		ReclaimInterval: time.Minute,
	}
}

// ConfigFromApp converts the application-level queue configuration into a
// pool Config.
func ConfigFromApp(cfg config.QueueConfig) Config {
	return Config{
		WorkerCount:  cfg.WorkerCount,
		BatchSize:    cfg.BatchSize,
		IdleInterval: time.Duration(cfg.IdleIntervalMs) * time.Millisecond,
		Backoff: BackoffConfig{
			Initial:    time.Duration(cfg.BackoffInitialMs) * time.Millisecond,
			Multiplier: cfg.BackoffMultiplier,
			Max:        time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
			MaxRetries: cfg.MaxRetries,
		},
		LeaseTimeout:    time.Duration(cfg.LeaseTimeoutSeconds) * time.Second,
		ReclaimInterval: time.Duration(cfg.ReclaimIntervalSeconds) * time.Second,
	}
}

// normalize applies defaults for invalid config values.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = def.IdleInterval
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = def.Backoff.Initial
	}
	if c.Backoff.Multiplier <= 1 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = def.Backoff.Max
	}
	if c.Backoff.MaxRetries <= 0 {
		c.Backoff.MaxRetries = def.Backoff.MaxRetries
	}
	return c
}
