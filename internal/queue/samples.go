package queue

import "time"

// Samples collects per-operation latency measurements. Each worker owns a
// private Samples instance during a run; the pool merges them at join time,
// preserving every value so percentile computations stay exact.
type Samples struct {
	// BatchRetrieval holds one latency per ClaimBatch call that returned
	// a non-empty batch.
	BatchRetrieval []time.Duration

	// ItemCompletion holds one latency per item, covering the embedding
	// operation and the completion call.
	ItemCompletion []time.Duration
}

// merge appends the other sample set into s.
func (s *Samples) merge(other Samples) {
	s.BatchRetrieval = append(s.BatchRetrieval, other.BatchRetrieval...)
	s.ItemCompletion = append(s.ItemCompletion, other.ItemCompletion...)
}

// WorkerStats reports one worker's cumulative counters for a run.
// ItemsProcessed and ItemsFailed only ever increase during a run.
type WorkerStats struct {
	WorkerID string `json:"worker_id"`

	// ItemsProcessed counts items this worker completed successfully.
	ItemsProcessed int `json:"items_processed"`

	// ItemsFailed counts items this worker completed as failed.
	ItemsFailed int `json:"items_failed"`

	// BatchesClaimed counts non-empty batches this worker claimed.
	BatchesClaimed int `json:"batches_claimed"`

	// StoreCalls counts every store operation attempt the worker issued.
	StoreCalls int `json:"store_calls"`

	// StoreErrors counts store operation attempts that returned an error.
	StoreErrors int `json:"store_errors"`
}

// RunResult aggregates a whole pool run: merged samples, summed counters,
// per-worker stats, and the elapsed wall-clock duration. Err carries the
// fatal store error that aborted the run, if any.
type RunResult struct {
	ItemsProcessed int
	ItemsFailed    int
	StoreCalls     int
	StoreErrors    int
	Samples        Samples
	Workers        []WorkerStats
	Elapsed        time.Duration
	Err            error
}

// TotalItems returns the number of items driven to a terminal state
// during the run, successfully or as failures.
func (r *RunResult) TotalItems() int {
	return r.ItemsProcessed + r.ItemsFailed
}
