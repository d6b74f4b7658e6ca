package distributor

import (
	"context"
	"log/slog"
	"time"

	"github.com/seantiz/forge/internal/objective"
)

// Sequential evaluates every item on the calling goroutine in FIFO order.
// It is used when no remote workers are configured.
type Sequential struct {
	eval   objective.Evaluator
	logger *slog.Logger
	queue  queue
}

// NewSequential creates a Sequential distributor evaluating with eval.
func NewSequential(eval objective.Evaluator, logger *slog.Logger) *Sequential {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequential{eval: eval, logger: logger}
}

func (s *Sequential) Submit(item *WorkItem) {
	s.queue.pushBack(item)
}

func (s *Sequential) Cancel(key int) int {
	n := s.queue.cancel(key)
	cancelledTotal.Add(float64(n))
	return n
}

func (s *Sequential) Pending() int {
	return s.queue.len()
}

// Run evaluates queued items one at a time, calling obs right after each.
func (s *Sequential) Run(ctx context.Context, obs Observer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := s.queue.popFront()
		if item == nil {
			return nil
		}
		start := time.Now()
		fitness := s.eval.Evaluate(ctx, item.Data)
		localTotal.Inc()
		evaluationDuration.WithLabelValues(whereLocal).Observe(time.Since(start).Seconds())
		if obs != nil {
			obs(item, fitness)
		}
	}
}

// Shutdown is a no-op; Sequential holds no workers.
func (s *Sequential) Shutdown(context.Context) error {
	return nil
}
