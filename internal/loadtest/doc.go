// Package loadtest runs named load scenarios against the queue worker pool
// and scores the observed performance against configured thresholds.
//
// A Scenario parametrizes the pool (worker count, batch size, item count)
// and the simulated store (error rate, call latency). The Driver runs
// scenarios sequentially with a cooldown pause between them, evaluates each
// run, and reports a summary table plus an overall verdict.
package loadtest
