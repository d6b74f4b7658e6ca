package distributor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/forge/internal/objective"
)

// DefaultDispatchTimeout bounds a single remote evaluation when the Pool
// config leaves DispatchTimeout unset.
const DefaultDispatchTimeout = 30 * time.Second

const (
	// DefaultMaxSlotFailures is how many consecutive failures retire a slot.
	DefaultMaxSlotFailures = 3
	// DefaultRedialBackoff is the pause after the first redial of a slot.
	// It doubles with each further consecutive failure.
	DefaultRedialBackoff = 100 * time.Millisecond
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// DispatchTimeout bounds each remote evaluation. Zero means
	// DefaultDispatchTimeout.
	DispatchTimeout time.Duration
	// Redial, if set, is called to replace the connection of an evicted
	// slot. When it fails the slot is retired.
	Redial func(ctx context.Context, slot int) (Conn, error)
	// MaxSlotFailures retires a slot after that many consecutive failed
	// evaluations, even when Redial keeps succeeding. Zero means
	// DefaultMaxSlotFailures.
	MaxSlotFailures int
	// RedialBackoff keeps a redialed slot idle before it takes work again.
	// Zero means DefaultRedialBackoff.
	RedialBackoff time.Duration
	Logger        *slog.Logger
}

type slot struct {
	id       int
	conn     Conn
	item     *WorkItem
	retired  bool
	failures int
	readyAt  time.Time
}

type result struct {
	slot    int
	fitness float64
	err     error
	elapsed time.Duration
}

// Pool distributes items across a fixed table of remote worker slots. The
// coordinator evaluates items itself whenever every slot is busy.
type Pool struct {
	local  objective.Evaluator
	cfg    PoolConfig
	logger *slog.Logger
	queue  queue

	mu      sync.Mutex
	slots   []*slot
	busy    int
	results chan result
}

// NewPool creates a Pool over conns. local is used for the coordinator's
// own evaluations.
func NewPool(local objective.Evaluator, conns []Conn, cfg PoolConfig) *Pool {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.MaxSlotFailures <= 0 {
		cfg.MaxSlotFailures = DefaultMaxSlotFailures
	}
	if cfg.RedialBackoff <= 0 {
		cfg.RedialBackoff = DefaultRedialBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	slots := make([]*slot, len(conns))
	for i, c := range conns {
		slots[i] = &slot{id: i, conn: c}
	}

	return &Pool{
		local:   local,
		cfg:     cfg,
		logger:  logger,
		slots:   slots,
		results: make(chan result, len(conns)),
	}
}

func (p *Pool) Submit(item *WorkItem) {
	p.queue.pushBack(item)
}

func (p *Pool) Cancel(key int) int {
	n := p.queue.cancel(key)
	cancelledTotal.Add(float64(n))
	return n
}

func (p *Pool) Pending() int {
	p.mu.Lock()
	busy := p.busy
	p.mu.Unlock()
	return p.queue.len() + busy
}

// Workers reports how many slots are still usable.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if !s.retired {
			n++
		}
	}
	return n
}

// Run drives the queue to completion. While items are queued each one goes
// to an idle slot, or is evaluated locally when none is idle, and finished
// workers are polled without blocking. Once the queue is empty Run waits
// for every busy slot. Failed or expired slots are evicted and their item
// is requeued at the front.
func (p *Pool) Run(ctx context.Context, obs Observer) error {
	for {
		if err := ctx.Err(); err != nil {
			p.drain(ctx, obs)
			return err
		}

		if item := p.queue.popFront(); item != nil {
			if s := p.idleSlot(); s != nil {
				p.dispatch(ctx, s, item)
			} else {
				p.evaluateLocal(ctx, item, obs)
			}
			p.poll(ctx, obs)
			continue
		}

		if p.inFlight() == 0 {
			return nil
		}

		select {
		case r := <-p.results:
			p.handle(ctx, r, obs)
		case <-ctx.Done():
		}
	}
}

// Shutdown closes every slot's connection.
func (p *Pool) Shutdown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, s := range p.slots {
		if s.conn == nil {
			continue
		}
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close slot %d: %w", s.id, err))
		}
		s.conn = nil
		s.retired = true
	}
	return errors.Join(errs...)
}

// idleSlot returns a usable slot with no work that is not backing off.
func (p *Pool) idleSlot() *slot {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if !s.retired && s.item == nil && !now.Before(s.readyAt) {
			return s
		}
	}
	return nil
}

func (p *Pool) inFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Pool) dispatch(ctx context.Context, s *slot, item *WorkItem) {
	item.Context = time.Now()

	p.mu.Lock()
	s.item = item
	p.busy++
	conn := s.conn
	p.mu.Unlock()

	dispatchedTotal.Inc()
	inFlightGauge.Inc()

	dctx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	go func(id int, params []float64) {
		defer cancel()
		start := time.Now()

		type answer struct {
			fitness float64
			err     error
		}
		done := make(chan answer, 1)
		go func() {
			f, err := conn.Evaluate(dctx, params)
			done <- answer{f, err}
		}()

		var r result
		select {
		case a := <-done:
			r = result{slot: id, fitness: a.fitness, err: a.err}
			if a.err != nil {
				if errors.Is(dctx.Err(), context.DeadlineExceeded) {
					r.err = fmt.Errorf("%w: %v", ErrWorkerTimeout, a.err)
				} else {
					r.err = fmt.Errorf("%w: %v", ErrWorkerFailed, a.err)
				}
			}
		case <-dctx.Done():
			if errors.Is(dctx.Err(), context.DeadlineExceeded) {
				r = result{slot: id, err: fmt.Errorf("%w after %s", ErrWorkerTimeout, p.cfg.DispatchTimeout)}
			} else {
				r = result{slot: id, err: fmt.Errorf("%w: %v", ErrWorkerFailed, dctx.Err())}
			}
		}
		r.elapsed = time.Since(start)
		p.results <- r
	}(s.id, item.Data)
}

func (p *Pool) evaluateLocal(ctx context.Context, item *WorkItem, obs Observer) {
	start := time.Now()
	fitness := p.local.Evaluate(ctx, item.Data)
	localTotal.Inc()
	evaluationDuration.WithLabelValues(whereLocal).Observe(time.Since(start).Seconds())
	if obs != nil {
		obs(item, fitness)
	}
}

// poll handles at most one finished worker without blocking.
func (p *Pool) poll(ctx context.Context, obs Observer) {
	select {
	case r := <-p.results:
		p.handle(ctx, r, obs)
	default:
	}
}

// drain waits for every in-flight dispatch. Their contexts derive from the
// run context, so they finish promptly once it is done.
func (p *Pool) drain(ctx context.Context, obs Observer) {
	for p.inFlight() > 0 {
		p.handle(ctx, <-p.results, obs)
	}
}

func (p *Pool) handle(ctx context.Context, r result, obs Observer) {
	p.mu.Lock()
	s := p.slots[r.slot]
	item := s.item
	s.item = nil
	p.busy--
	if r.err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
	p.mu.Unlock()

	inFlightGauge.Dec()

	if r.err != nil {
		reason := reasonError
		if errors.Is(r.err, ErrWorkerTimeout) {
			reason = reasonTimeout
		}
		failuresTotal.WithLabelValues(reason).Inc()
		p.logger.Warn("worker evaluation failed, requeueing item",
			"slot", r.slot,
			"key", item.Key,
			"error", r.err,
		)
		p.queue.pushFront(item)
		p.evict(ctx, s)
		return
	}

	completedTotal.Inc()
	evaluationDuration.WithLabelValues(whereRemote).Observe(r.elapsed.Seconds())
	if obs != nil {
		obs(item, r.fitness)
	}
}

// evict closes a slot's connection and tries to replace it. A slot that
// has failed MaxSlotFailures times in a row is retired without a redial.
func (p *Pool) evict(ctx context.Context, s *slot) {
	p.mu.Lock()
	old := s.conn
	s.conn = nil
	s.retired = true
	failures := s.failures
	p.mu.Unlock()

	evictionsTotal.Inc()
	if old != nil {
		if err := old.Close(); err != nil {
			p.logger.Debug("close evicted worker", "slot", s.id, "error", err)
		}
	}

	if p.cfg.Redial == nil || ctx.Err() != nil {
		p.logger.Warn("worker slot retired", "slot", s.id)
		return
	}
	if failures >= p.cfg.MaxSlotFailures {
		p.logger.Warn("worker slot retired after repeated failures",
			"slot", s.id,
			"failures", failures,
		)
		return
	}

	conn, err := p.cfg.Redial(ctx, s.id)
	if err != nil {
		p.logger.Warn("worker slot retired, redial failed", "slot", s.id, "error", err)
		return
	}

	backoff := p.cfg.RedialBackoff << (failures - 1)

	p.mu.Lock()
	s.conn = conn
	s.retired = false
	s.readyAt = time.Now().Add(backoff)
	p.mu.Unlock()
	p.logger.Info("worker slot replaced", "slot", s.id, "backoff", backoff)
}
