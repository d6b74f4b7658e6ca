package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mdlayher/vsock"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/forge/internal/distributor"
)

// Retry defaults for worker connection establishment.
const (
	dialMaxRetries  = 5
	dialBaseBackoff = 100 * time.Millisecond
)

// Dial connects to a worker, retrying with exponential backoff. Every
// evaluation on the returned connection asks for the named objective.
func Dial(ctx context.Context, network, addr, objective string) (*RemoteConn, error) {
	var lastErr error
	backoff := dialBaseBackoff

	for attempt := range dialMaxRetries {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial worker: %w", ctx.Err())
		default:
		}

		rc, err := dialOnce(ctx, network, addr)
		if err != nil {
			lastErr = err
			if attempt < dialMaxRetries-1 {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, fmt.Errorf("dial worker: %w", ctx.Err())
				}
				backoff *= 2
			}
			continue
		}

		rc.objective = objective
		rc.addr = network + "://" + addr
		return rc, nil
	}

	return nil, fmt.Errorf("dial worker %s://%s after %d attempts: %w", network, addr, dialMaxRetries, lastErr)
}

func dialOnce(ctx context.Context, network, addr string) (*RemoteConn, error) {
	switch network {
	case NetworkTCP, NetworkUnix:
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("connect to %s %s: %w", network, addr, err)
		}
		return newRemoteConn(conn, conn), nil

	case NetworkVsock:
		cidStr, port, err := splitPort(addr)
		if err != nil {
			return nil, err
		}
		cid, err := strconv.ParseUint(cidStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock context id %q: %w", cidStr, err)
		}
		conn, err := vsock.Dial(uint32(cid), port, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to vsock %d:%d: %w", cid, port, err)
		}
		return newRemoteConn(conn, conn), nil

	case NetworkVsockUDS:
		path, port, err := splitPort(addr)
		if err != nil {
			return nil, err
		}
		return dialVsockUDS(ctx, path, port)

	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

// dialVsockUDS connects to a Firecracker vsock bridge socket and performs
// the CONNECT handshake: send "CONNECT <port>\n", receive "OK <host_port>\n".
// The buffered reader is kept for every later read so bytes read ahead
// during the handshake are not lost.
func dialVsockUDS(ctx context.Context, udsPath string, port uint32) (*RemoteConn, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", udsPath)
	if err != nil {
		return nil, fmt.Errorf("connect to UDS %s: %w", udsPath, err)
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %d\n", port); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	reader := bufio.NewReader(conn)
	response, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}

	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "OK ") {
		conn.Close()
		return nil, fmt.Errorf("vsock CONNECT failed: %s", response)
	}

	return newRemoteConn(conn, reader), nil
}

// DialAll connects to every address concurrently. If any dial fails the
// connections already made are closed and the first error is returned.
func DialAll(ctx context.Context, addrs []string, objective string) ([]distributor.Conn, error) {
	remotes := make([]*RemoteConn, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range addrs {
		g.Go(func() error {
			network, addr, err := ParseAddress(a)
			if err != nil {
				return err
			}
			rc, err := Dial(gctx, network, addr, objective)
			if err != nil {
				return err
			}
			remotes[i] = rc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, rc := range remotes {
			if rc != nil {
				rc.Close()
			}
		}
		return nil, err
	}

	conns := make([]distributor.Conn, len(remotes))
	for i, rc := range remotes {
		conns[i] = rc
	}
	return conns, nil
}

// Redialer returns a function that reconnects the worker at addrs[slot].
// It is meant for distributor.PoolConfig.Redial.
func Redialer(addrs []string, objective string) func(ctx context.Context, slot int) (distributor.Conn, error) {
	return func(ctx context.Context, slot int) (distributor.Conn, error) {
		if slot < 0 || slot >= len(addrs) {
			return nil, fmt.Errorf("no worker address for slot %d", slot)
		}
		network, addr, err := ParseAddress(addrs[slot])
		if err != nil {
			return nil, err
		}
		return Dial(ctx, network, addr, objective)
	}
}
