// Package queue implements the worker-coordination core of the embedding
// pipeline: workers that claim batches from the shared queue store, process
// each item through the embedding operation, report completions, and a pool
// that coordinates worker lifecycles, aggregates performance samples, and
// enforces pool-wide cancellation.
package queue
