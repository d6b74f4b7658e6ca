// Package worker implements the remote evaluation agent. A worker accepts
// connections from a coordinator, scores every parameter vector it receives
// with a registered objective, and answers on the same connection.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/transport"
)

// Agent serves evaluation requests on a listener.
type Agent struct {
	listener         net.Listener
	registry         *objective.Registry
	defaultObjective string
	evalTimeout      time.Duration
	logger           *slog.Logger

	wg sync.WaitGroup
}

// Option configures an Agent.
type Option func(*Agent)

// WithDefaultObjective sets the objective used when a request names none.
func WithDefaultObjective(name string) Option {
	return func(a *Agent) { a.defaultObjective = name }
}

// WithEvaluationTimeout bounds each evaluation; a vector that takes longer
// is reported invalid.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(a *Agent) { a.evalTimeout = d }
}

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates a worker agent serving objectives from registry on listener.
func New(listener net.Listener, registry *objective.Registry, opts ...Option) *Agent {
	a := &Agent{
		listener: listener,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Serve accepts connections until ctx is done or the listener fails. It
// waits for open connections to finish before returning.
func (a *Agent) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		a.listener.Close()
	})
	defer stop()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			a.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection answers requests on conn until the coordinator sends a
// quit request or the connection closes.
func (a *Agent) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := a.logger.With("remote", conn.RemoteAddr().String())
	logger.Debug("coordinator connected")

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	served := 0
	for {
		var req transport.Request
		if err := transport.ReadMessage(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn("read request", "error", err)
			}
			return
		}

		switch req.Type {
		case transport.MsgTypeQuit:
			logger.Debug("coordinator quit", "served", served)
			return
		case transport.MsgTypeEvaluate:
			resp := a.evaluate(ctx, &req)
			if err := transport.WriteMessage(conn, &resp); err != nil {
				logger.Warn("write response", "error", err)
				return
			}
			served++
		default:
			resp := transport.Response{Error: fmt.Sprintf("unknown request type: %q", req.Type)}
			if err := transport.WriteMessage(conn, &resp); err != nil {
				logger.Warn("write response", "error", err)
				return
			}
		}
	}
}

// evaluate scores one request. Non-finite scores travel as Invalid.
func (a *Agent) evaluate(ctx context.Context, req *transport.Request) transport.Response {
	name := req.Objective
	if name == "" {
		name = a.defaultObjective
	}

	eval, err := a.registry.Resolve(name)
	if err != nil {
		return transport.Response{Error: err.Error()}
	}
	eval = objective.WithDeadline(eval, a.evalTimeout)

	fitness := eval.Evaluate(ctx, req.Params)
	if math.IsInf(fitness, 0) || math.IsNaN(fitness) {
		return transport.Response{Invalid: true}
	}
	return transport.Response{Fitness: fitness}
}
