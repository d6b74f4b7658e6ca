package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/seantiz/forge/internal/ga"
	"github.com/seantiz/forge/internal/model"
	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/store"
)

// DefaultTimeoutS is the run timeout in seconds when none is specified.
const DefaultTimeoutS = 300

// ErrNotActive is returned by Cancel for a run that is not executing.
var ErrNotActive = errors.New("run is not active")

// Option configures a Runner.
type Option func(*Runner)

// WithDistributorFactory sets how each run's distributor is created. The
// default evaluates in-process.
func WithDistributorFactory(f DistributorFactory) Option {
	return func(r *Runner) { r.factory = f }
}

// WithDefaultTimeout sets the timeout of runs that do not carry their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// Runner orchestrates asynchronous runs.
type Runner struct {
	store          store.Store
	registry       *objective.Registry
	logger         *slog.Logger
	factory        DistributorFactory
	defaultTimeout time.Duration
	broker         *Broker
	wg             sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner creates a runner persisting to s and resolving objectives
// through reg.
func NewRunner(s store.Store, reg *objective.Registry, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:          s,
		registry:       reg,
		logger:         logger,
		defaultTimeout: DefaultTimeoutS * time.Second,
		broker:         NewBroker(),
		cancels:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = SequentialFactory(logger)
	}
	return r
}

// Broker returns the progress broker for SSE subscription.
func (r *Runner) Broker() *Broker {
	return r.broker
}

// Submit stores run as pending and breeds it in a goroutine. The goroutine
// works on a copy of run.
func (r *Runner) Submit(ctx context.Context, run *model.Run) error {
	if err := r.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	timeout := r.defaultTimeout
	if run.TimeoutS != nil && *run.TimeoutS > 0 {
		timeout = time.Duration(*run.TimeoutS) * time.Second
	}
	runCtx, cancel := context.WithTimeout(context.Background(), timeout)

	r.mu.Lock()
	r.cancels[run.ID] = cancel
	r.mu.Unlock()

	runCopy := *run
	r.wg.Go(func() {
		defer r.release(runCopy.ID)
		r.execute(runCtx, &runCopy, timeout)
	})
	return nil
}

// Cancel stops an executing run. The run ends in the cancelled state.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotActive
	}
	cancel()
	return nil
}

// Active returns the number of runs still executing.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Wait blocks until every submitted run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every executing run and waits for them to finish.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
}

// execute drives one run: pending → running → completed/failed/cancelled.
func (r *Runner) execute(ctx context.Context, run *model.Run, timeout time.Duration) {
	defer r.broker.Close(run.ID)
	logger := r.logger.With("run_id", run.ID)

	if err := r.store.UpdateRunStatus(context.Background(), run.ID, model.StatusRunning); err != nil {
		logger.Error("failed to transition to running", "error", err)
		r.finish(run.ID, model.StatusFailed, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}

	start := time.Now().UTC()
	exp := run.Experiment

	eval, err := r.registry.Resolve(exp.Objective)
	if err != nil {
		r.finish(run.ID, model.StatusFailed, &start, fmt.Sprintf("resolve objective: %v", err))
		return
	}
	if exp.EvaluationDeadlineMS > 0 {
		eval = objective.WithDeadline(eval, time.Duration(exp.EvaluationDeadlineMS)*time.Millisecond)
	}

	dist, err := r.factory(ctx, exp.Objective, eval)
	if err != nil {
		r.finish(run.ID, model.StatusFailed, &start, fmt.Sprintf("create distributor: %v", err))
		return
	}
	defer func() {
		if err := dist.Shutdown(context.Background()); err != nil {
			logger.Warn("distributor shutdown", "error", err)
		}
	}()

	eng, err := NewEngine(&exp, dist,
		ga.WithLogger(logger),
		ga.WithReporter(r.reporter(ctx, run.ID, logger)),
	)
	if err != nil {
		r.finish(run.ID, model.StatusFailed, &start, err.Error())
		return
	}

	logger.Info("run started",
		"objective", exp.Objective,
		"population", exp.Population,
		"generations", exp.Generations,
	)

	if err := eng.Run(ctx, exp.Generations); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.finish(run.ID, model.StatusFailed, &start, fmt.Sprintf("run timed out after %s", timeout))
		case errors.Is(ctx.Err(), context.Canceled):
			r.finish(run.ID, model.StatusCancelled, &start, "run cancelled")
		default:
			r.finish(run.ID, model.StatusFailed, &start, err.Error())
		}
		return
	}

	now := time.Now().UTC()
	dur := int(now.Sub(start).Milliseconds())
	fitness, vars := BestVariables(eng)
	completed := &model.Run{
		ID:          run.ID,
		Status:      model.StatusCompleted,
		BestFitness: fitness,
		BestVars:    vars,
		Generations: eng.Generation(),
		DurationMS:  &dur,
		StartedAt:   &start,
		FinishedAt:  &now,
	}
	if err := r.store.UpdateRun(context.Background(), completed); err != nil {
		logger.Error("failed to update completed run", "error", err)
		return
	}
	logger.Info("run completed", "generations", completed.Generations, "duration_ms", dur)
}

// reporter persists each generation and publishes it as a JSON line.
func (r *Runner) reporter(ctx context.Context, runID string, logger *slog.Logger) ga.Reporter {
	return func(rep ga.Report) {
		rec := model.GenerationRecord{
			RunID:         runID,
			Generation:    rep.Generation,
			MeanFitness:   rep.Mean,
			StdDevFitness: rep.StdDev,
			ValidCount:    rep.Valid,
			Size:          rep.Size,
			CreatedAt:     time.Now().UTC(),
		}
		if rep.BestAssigned && !math.IsInf(rep.BestFitness, 0) {
			best := rep.BestFitness
			rec.BestFitness = &best
		}

		if err := r.store.InsertGeneration(ctx, &rec); err != nil {
			logger.Error("failed to persist generation", "generation", rep.Generation, "error", err)
		}

		line, err := json.Marshal(rec)
		if err != nil {
			logger.Error("failed to encode progress", "generation", rep.Generation, "error", err)
			return
		}
		r.broker.Publish(runID, string(line))
	}
}

// finish records a run that ended without completing. startedAt is nil when
// the run never started.
func (r *Runner) finish(id, status string, startedAt *time.Time, errMsg string) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(now.Sub(*startedAt).Milliseconds())
	}

	run := &model.Run{
		ID:         id,
		Status:     status,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}
	if err := r.store.UpdateRun(context.Background(), run); err != nil {
		r.logger.Error("failed to update finished run", "run_id", id, "status", status, "error", err)
	}
}
