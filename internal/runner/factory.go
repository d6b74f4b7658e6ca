package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/forge/internal/distributor"
	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/transport"
)

// DistributorFactory creates the distributor that evaluates one run.
// eval is the coordinator's local evaluator for objectiveName.
type DistributorFactory func(ctx context.Context, objectiveName string, eval objective.Evaluator) (distributor.Distributor, error)

// SequentialFactory evaluates every run in-process.
func SequentialFactory(logger *slog.Logger) DistributorFactory {
	return func(_ context.Context, _ string, eval objective.Evaluator) (distributor.Distributor, error) {
		return distributor.NewSequential(eval, logger), nil
	}
}

// PoolFactory dials addrs for each run and spreads evaluations over them.
// Evicted slots are redialed. With no addresses it falls back to
// SequentialFactory.
func PoolFactory(addrs []string, dispatchTimeout time.Duration, logger *slog.Logger) DistributorFactory {
	if len(addrs) == 0 {
		return SequentialFactory(logger)
	}
	return func(ctx context.Context, objectiveName string, eval objective.Evaluator) (distributor.Distributor, error) {
		conns, err := transport.DialAll(ctx, addrs, objectiveName)
		if err != nil {
			return nil, fmt.Errorf("dial workers: %w", err)
		}
		return distributor.NewPool(eval, conns, distributor.PoolConfig{
			DispatchTimeout: dispatchTimeout,
			Redial:          transport.Redialer(addrs, objectiveName),
			Logger:          logger,
		}), nil
	}
}
