package domain

import "time"

// QueueStats is a read-only snapshot of queue health, used by dashboards
// and operational endpoints. Eventually consistent; never used for
// correctness decisions.
type QueueStats struct {
	PendingItems    int `json:"pending_items"`
	ProcessingItems int `json:"processing_items"`
	CompletedItems  int `json:"completed_items"`
	FailedItems     int `json:"failed_items"`

	// ActiveWorkers is the number of distinct worker IDs holding at least
	// one item in processing state.
	ActiveWorkers int `json:"active_workers"`

	// TotalTokens is the sum of actual token counts reported on completion,
	// a cost heuristic surfaced for dashboards.
	TotalTokens int64 `json:"total_tokens"`

	// AvgProcessingTime is a rolling average of item completion times.
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}
