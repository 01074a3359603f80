package loadtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"text/tabwriter"
	"time"

	"github.com/mataresit/embedq/internal/domain"
	"github.com/mataresit/embedq/internal/mocks"
	"github.com/mataresit/embedq/internal/queue"
)

// ScenarioResult is one scenario's outcome: its evaluation when the run
// executed, or the execution error when it did not. An execution error
// (fatal store error, scenario timeout) is reported distinctly from a
// threshold failure.
type ScenarioResult struct {
	Name           string        `json:"name"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsFailed    int           `json:"items_failed"`
	Elapsed        time.Duration `json:"elapsed"`
	Evaluation     Evaluation    `json:"evaluation"`
	ExecErr        error         `json:"-"`
}

// Passed reports whether the scenario executed cleanly and met every
// threshold.
func (r ScenarioResult) Passed() bool {
	return r.ExecErr == nil && r.Evaluation.Passed
}

// Driver runs an ordered set of scenarios sequentially, pausing between
// them so one scenario's load cannot bleed into the next measurement.
type Driver struct {
	scenarios []Scenario
	cooldown  time.Duration
	logger    *slog.Logger
}

// NewDriver creates a driver over the given scenarios.
func NewDriver(scenarios []Scenario, cooldown time.Duration, logger *slog.Logger) (*Driver, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("at least one scenario is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Driver{
		scenarios: scenarios,
		cooldown:  cooldown,
		logger:    logger,
	}, nil
}

// Run executes every scenario in order and returns the per-scenario
// results plus an overall verdict. A failing or erroring scenario never
// stops the run; the remaining scenarios still execute.
func (d *Driver) Run(ctx context.Context) ([]ScenarioResult, bool) {
	results := make([]ScenarioResult, 0, len(d.scenarios))
	allPassed := true

	for i, sc := range d.scenarios {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && d.cooldown > 0 {
			d.logger.Info("cooling down before next scenario", "cooldown", d.cooldown)
			if !sleepCtx(ctx, d.cooldown) {
				break
			}
		}

		d.logger.Info("running scenario",
			"scenario", sc.Name,
			"workers", sc.Workers,
			"batch_size", sc.BatchSize,
			"total_items", sc.TotalItems,
			"error_rate", sc.ErrorRate)

		result := d.runScenario(ctx, sc)
		results = append(results, result)

		if !result.Passed() {
			allPassed = false
		}

		if result.ExecErr != nil {
			d.logger.Error("scenario execution failed",
				"scenario", sc.Name,
				"error", result.ExecErr)
			continue
		}
		d.logger.Info("scenario finished",
			"scenario", sc.Name,
			"passed", result.Evaluation.Passed,
			"throughput_per_minute", result.Evaluation.Metrics.ThroughputPerMinute,
			"error_rate_percent", result.Evaluation.Metrics.ErrorRatePercent,
			"avg_processing_time", result.Evaluation.Metrics.AvgProcessingTime,
			"elapsed", result.Elapsed)
	}

	return results, allPassed
}

// runScenario seeds a fresh simulated store, drains it through a worker
// pool, and evaluates the run. Each scenario gets its own store instance,
// so claimed-but-incomplete items can never leak between scenarios.
func (d *Driver) runScenario(ctx context.Context, sc Scenario) ScenarioResult {
	st := mocks.NewMockQueueStore(sc.Seed)
	st.ErrorRate = sc.ErrorRate
	st.LatencyFn = jitterFn(sc.MinStoreLatency, sc.MaxStoreLatency)

	seedItems(st, sc)

	embedder := &mocks.MockEmbedder{}
	if sc.EmbedLatency > 0 {
		embedder.DurationFn = func(*domain.QueueItem) time.Duration { return sc.EmbedLatency }
	}

	cfg := queue.DefaultConfig()
	cfg.WorkerCount = sc.Workers
	cfg.BatchSize = sc.BatchSize
	cfg.Backoff = sc.Backoff
	// Single-process run: leases cannot go stale, so the reclaim sweep
	// stays off for the whole scenario.
	cfg.LeaseTimeout = 0
	cfg.ReclaimInterval = 0

	pool, err := queue.NewWorkerPool(st, embedder, cfg, d.logger.With("scenario", sc.Name))
	if err != nil {
		return ScenarioResult{Name: sc.Name, ExecErr: err}
	}

	runCtx := ctx
	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	run := pool.Run(runCtx, int64(sc.TotalItems))

	result := ScenarioResult{
		Name:           sc.Name,
		ItemsProcessed: run.ItemsProcessed,
		ItemsFailed:    run.ItemsFailed,
		Elapsed:        run.Elapsed,
	}

	switch {
	case run.Err != nil:
		result.ExecErr = run.Err
	case run.TotalItems() < sc.TotalItems:
		result.ExecErr = fmt.Errorf("scenario drained %d of %d items before the %s timeout",
			run.TotalItems(), sc.TotalItems, sc.Timeout)
	default:
		result.Evaluation = Evaluate(run, sc.Thresholds)
	}
	return result
}

// seedItems fills the store with pending items, cycling priorities so
// claim ordering stays exercised under load.
func seedItems(st *mocks.MockQueueStore, sc Scenario) {
	priorities := []domain.Priority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}
	operations := []domain.Operation{domain.OperationInsert, domain.OperationUpdate, domain.OperationDelete}

	for i := 0; i < sc.TotalItems; i++ {
		item, err := domain.NewQueueItem(
			"receipts",
			fmt.Sprintf("%s-item-%d", sc.Name, i),
			operations[i%len(operations)],
			priorities[i%len(priorities)],
			50,
			map[string]string{"content": fmt.Sprintf("scenario %s item %d", sc.Name, i)},
		)
		if err != nil {
			continue
		}
		st.Add(item)
	}
}

// jitterFn returns a latency function drawing uniformly from [min, max].
// The shared math/rand source is safe for concurrent workers; latency
// jitter does not need to be reproducible.
func jitterFn(lo, hi time.Duration) func(op string) time.Duration {
	if hi <= 0 {
		return nil
	}
	if hi < lo {
		hi = lo
	}
	span := int64(hi - lo)
	return func(string) time.Duration {
		if span <= 0 {
			return lo
		}
		return lo + time.Duration(rand.Int63n(span+1))
	}
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// WriteSummary renders the scenario results as an aligned text table.
func WriteSummary(w io.Writer, results []ScenarioResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "SCENARIO\tVERDICT\tITEMS\tTHROUGHPUT/MIN\tERROR RATE\tAVG LATENCY\tP99 LATENCY\tELAPSED")
	for _, r := range results {
		verdict := "PASS"
		switch {
		case r.ExecErr != nil:
			verdict = "ERROR"
		case !r.Evaluation.Passed:
			verdict = "FAIL"
		}

		if r.ExecErr != nil {
			fmt.Fprintf(tw, "%s\t%s\t%d\t-\t-\t-\t-\t%s\n",
				r.Name, verdict, r.ItemsProcessed+r.ItemsFailed, r.Elapsed.Round(time.Millisecond))
			continue
		}

		m := r.Evaluation.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.2f%%\t%s\t%s\t%s\n",
			r.Name, verdict, r.ItemsProcessed+r.ItemsFailed,
			m.ThroughputPerMinute, m.ErrorRatePercent,
			m.AvgProcessingTime.Round(time.Millisecond),
			m.P99ProcessingTime.Round(time.Millisecond),
			r.Elapsed.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range results {
		if r.ExecErr != nil {
			fmt.Fprintf(w, "\n%s: execution error: %v\n", r.Name, r.ExecErr)
		}
		for _, v := range r.Evaluation.Violations {
			fmt.Fprintf(w, "\n%s: %s\n", r.Name, v)
		}
	}
	return nil
}
