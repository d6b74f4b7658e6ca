package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"time"
)

// quitTimeout bounds the best-effort quit frame sent on Close.
const quitTimeout = time.Second

// RemoteConn is a connection to one worker. It implements distributor.Conn.
type RemoteConn struct {
	conn      net.Conn
	reader    io.Reader
	objective string
	addr      string

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newRemoteConn(conn net.Conn, reader io.Reader) *RemoteConn {
	return &RemoteConn{conn: conn, reader: reader}
}

// Addr returns the address the connection was dialed with.
func (c *RemoteConn) Addr() string {
	return c.addr
}

// Evaluate sends params to the worker and waits for its score. The
// context's deadline and cancellation apply to the whole exchange.
func (c *RemoteConn) Evaluate(ctx context.Context, params []float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	req := Request{Type: MsgTypeEvaluate, Objective: c.objective, Params: params}
	if err := WriteMessage(c.conn, &req); err != nil {
		return 0, c.wrap(ctx, fmt.Errorf("send request: %w", err))
	}

	var resp Response
	if err := ReadMessage(c.reader, &resp); err != nil {
		return 0, c.wrap(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.Error != "" {
		return 0, fmt.Errorf("worker %s: %s", c.addr, resp.Error)
	}
	if resp.Invalid {
		return math.Inf(1), nil
	}
	return resp.Fitness, nil
}

func (c *RemoteConn) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.Join(context.DeadlineExceeded, err)
	}
	return err
}

// Close tells the worker to stop serving this connection and closes it.
func (c *RemoteConn) Close() error {
	c.closeOnce.Do(func() {
		c.conn.SetDeadline(time.Now().Add(quitTimeout))
		WriteMessage(c.conn, &Request{Type: MsgTypeQuit})
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
