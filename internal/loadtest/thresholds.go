package loadtest

import "time"

// Thresholds bound the metrics a scenario run must satisfy to pass.
// A zero value disables the corresponding check.
type Thresholds struct {
	// MinThroughputPerMinute is the lower bound on items driven to a
	// terminal state per minute.
	MinThroughputPerMinute float64 `json:"min_throughput_per_minute"`

	// MaxErrorRatePercent is the upper bound on the share of store calls
	// that returned an error.
	MaxErrorRatePercent float64 `json:"max_error_rate_percent"`

	// MaxAvgProcessingTime is the upper bound on the mean item
	// completion latency.
	MaxAvgProcessingTime time.Duration `json:"max_avg_processing_time"`

	// MaxBatchRetrieval bounds every single batch retrieval sample, not
	// just the average.
	MaxBatchRetrieval time.Duration `json:"max_batch_retrieval"`
}
