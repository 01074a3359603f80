package loadtest

import (
	"fmt"
	"slices"
	"time"

	"github.com/mataresit/embedq/internal/queue"
)

// Metrics are the computed performance figures for one scenario run.
type Metrics struct {
	ThroughputPerMinute float64       `json:"throughput_per_minute"`
	ErrorRatePercent    float64       `json:"error_rate_percent"`
	AvgProcessingTime   time.Duration `json:"avg_processing_time"`
	P50ProcessingTime   time.Duration `json:"p50_processing_time"`
	P90ProcessingTime   time.Duration `json:"p90_processing_time"`
	P99ProcessingTime   time.Duration `json:"p99_processing_time"`
	MaxBatchRetrieval   time.Duration `json:"max_batch_retrieval"`
}

// Evaluation is the scored outcome of one scenario run.
type Evaluation struct {
	Metrics    Metrics  `json:"metrics"`
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// Evaluate scores a pool run against thresholds. It is a pure function of
// its inputs: the same result and thresholds always produce the same
// verdict and violation list.
func Evaluate(result *queue.RunResult, th Thresholds) Evaluation {
	m := computeMetrics(result)

	var violations []string

	if th.MinThroughputPerMinute > 0 && m.ThroughputPerMinute < th.MinThroughputPerMinute {
		violations = append(violations, fmt.Sprintf(
			"throughput %.1f items/min below minimum %.1f",
			m.ThroughputPerMinute, th.MinThroughputPerMinute))
	}

	if th.MaxErrorRatePercent > 0 && m.ErrorRatePercent > th.MaxErrorRatePercent {
		violations = append(violations, fmt.Sprintf(
			"error rate %.2f%% above maximum %.2f%%",
			m.ErrorRatePercent, th.MaxErrorRatePercent))
	}

	if th.MaxAvgProcessingTime > 0 && m.AvgProcessingTime > th.MaxAvgProcessingTime {
		violations = append(violations, fmt.Sprintf(
			"average processing time %s above maximum %s",
			m.AvgProcessingTime.Round(time.Millisecond), th.MaxAvgProcessingTime))
	}

	if th.MaxBatchRetrieval > 0 {
		// Per-sample check: one slow retrieval fails the scenario even
		// when the average looks healthy.
		slow := 0
		for _, s := range result.Samples.BatchRetrieval {
			if s > th.MaxBatchRetrieval {
				slow++
			}
		}
		if slow > 0 {
			violations = append(violations, fmt.Sprintf(
				"%d of %d batch retrievals above maximum %s (worst %s)",
				slow, len(result.Samples.BatchRetrieval), th.MaxBatchRetrieval,
				m.MaxBatchRetrieval.Round(time.Millisecond)))
		}
	}

	return Evaluation{
		Metrics:    m,
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}

func computeMetrics(result *queue.RunResult) Metrics {
	var m Metrics

	if secs := result.Elapsed.Seconds(); secs > 0 {
		m.ThroughputPerMinute = float64(result.TotalItems()) / secs * 60
	}
	if result.StoreCalls > 0 {
		m.ErrorRatePercent = float64(result.StoreErrors) / float64(result.StoreCalls) * 100
	}

	if n := len(result.Samples.ItemCompletion); n > 0 {
		sorted := slices.Clone(result.Samples.ItemCompletion)
		slices.Sort(sorted)

		var sum time.Duration
		for _, s := range sorted {
			sum += s
		}
		m.AvgProcessingTime = sum / time.Duration(n)
		m.P50ProcessingTime = sorted[percentileIndex(n, 50)]
		m.P90ProcessingTime = sorted[percentileIndex(n, 90)]
		m.P99ProcessingTime = sorted[percentileIndex(n, 99)]
	}

	for _, s := range result.Samples.BatchRetrieval {
		if s > m.MaxBatchRetrieval {
			m.MaxBatchRetrieval = s
		}
	}

	return m
}

// percentileIndex returns the index of the p-th percentile in a sorted
// slice of length n, using the nearest-rank method.
func percentileIndex(n, p int) int {
	if n <= 1 || p <= 0 {
		return 0
	}
	if p >= 100 {
		return n - 1
	}
	rank := (p*n + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return rank - 1
}
