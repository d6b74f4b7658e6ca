package objective

import (
	"context"
	"math"
	"time"
)

// Invalid is the fitness reported for a failed or unscorable evaluation.
var Invalid = math.Inf(1)

// Evaluator is the interface every objective must implement.
type Evaluator interface {
	// Evaluate scores a parameter vector. Lower is better; +Inf means the
	// vector could not be scored. Evaluate must always return a value.
	Evaluate(ctx context.Context, params []float64) float64
}

// Func adapts an ordinary function to the Evaluator interface.
type Func func(ctx context.Context, params []float64) float64

// Evaluate calls f(ctx, params).
func (f Func) Evaluate(ctx context.Context, params []float64) float64 {
	return f(ctx, params)
}

// Group averages the scores of its members. A single failing member makes
// the whole group invalid; an empty group scores 0.
type Group []Evaluator

// Evaluate runs every member in order and returns the mean score.
func (g Group) Evaluate(ctx context.Context, params []float64) float64 {
	if len(g) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, e := range g {
		v := e.Evaluate(ctx, params)
		if math.IsInf(v, 1) {
			return Invalid
		}
		sum += v
	}
	return sum / float64(len(g))
}

// WithDeadline bounds every evaluation of e by d. An evaluation that does
// not finish in time, or whose context is cancelled, scores Invalid.
func WithDeadline(e Evaluator, d time.Duration) Evaluator {
	if d <= 0 {
		return e
	}
	return Func(func(ctx context.Context, params []float64) float64 {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan float64, 1)
		go func() {
			done <- e.Evaluate(ctx, params)
		}()

		select {
		case v := <-done:
			return v
		case <-ctx.Done():
			return Invalid
		}
	})
}
