// Package runner executes optimisation runs asynchronously. A submitted run
// is persisted as pending, bred in its own goroutine under an overall
// deadline, and every evaluated generation is written to the store and
// fanned out to progress subscribers.
package runner
