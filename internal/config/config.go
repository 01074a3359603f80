package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
}

// ServerConfig contains the operational HTTP surface and logging settings.
type ServerConfig struct {
	// Port serves the /healthz and /stats endpoints.
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// LLMConfig contains the embedding provider settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}

// QueueConfig contains the worker pool and claim/backoff settings.
type QueueConfig struct {
	// WorkerCount is the number of concurrent workers claiming from the
	// shared queue.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// BatchSize is the maximum number of items claimed per ClaimBatch call.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`

	// IdleIntervalMs is how long a worker sleeps after an empty batch
	// before polling the store again.
	IdleIntervalMs int `mapstructure:"idle_interval_ms" validate:"required,gt=0"`

	// BackoffInitialMs is the first delay after a transient store error.
	BackoffInitialMs int `mapstructure:"backoff_initial_ms" validate:"required,gt=0"`

	// BackoffMultiplier grows the delay on each consecutive transient error.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" validate:"required,gt=1"`

	// BackoffMaxMs caps the backoff delay.
	BackoffMaxMs int `mapstructure:"backoff_max_ms" validate:"required,gt=0"`

	// MaxRetries is how many consecutive transient failures a worker
	// tolerates on one operation before escalating to a fatal error.
	MaxRetries int `mapstructure:"max_retries" validate:"required,gt=0"`

	// LeaseTimeoutSeconds is how long a claimed item may stay in
	// processing state before it becomes reclaimable.
	LeaseTimeoutSeconds int `mapstructure:"lease_timeout_seconds" validate:"required,gt=0"`

	// ReclaimIntervalSeconds is how often the pool sweeps for expired leases.
	ReclaimIntervalSeconds int `mapstructure:"reclaim_interval_seconds" validate:"required,gt=0"`
}
