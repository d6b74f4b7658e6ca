package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// Supported networks.
const (
	NetworkTCP      = "tcp"
	NetworkUnix     = "unix"
	NetworkVsock    = "vsock"
	NetworkVsockUDS = "vsock-uds"
)

// ParseAddress splits a worker address of the form scheme://rest into a
// network and an address. Addresses without a scheme are treated as TCP.
//
//	tcp://10.0.0.5:7070
//	unix:///run/forge/worker.sock
//	vsock://3:1024              (context id and port)
//	vsock-uds:///run/fc/v.sock:1024  (Firecracker vsock bridge and guest port)
func ParseAddress(s string) (network, addr string, err error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		if s == "" {
			return "", "", fmt.Errorf("empty worker address")
		}
		return NetworkTCP, s, nil
	}
	if rest == "" {
		return "", "", fmt.Errorf("worker address %q has no target", s)
	}

	switch scheme {
	case NetworkTCP, NetworkUnix:
		return scheme, rest, nil
	case NetworkVsock, NetworkVsockUDS:
		if _, _, err := splitPort(rest); err != nil {
			return "", "", fmt.Errorf("worker address %q: %w", s, err)
		}
		return scheme, rest, nil
	default:
		return "", "", fmt.Errorf("worker address %q: unsupported scheme %q", s, scheme)
	}
}

// splitPort splits "host:port" at the last colon and parses the port as a
// 32-bit vsock port.
func splitPort(s string) (string, uint32, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("missing port in %q", s)
	}
	port, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return s[:i], uint32(port), nil
}

// Listen opens a listener for a worker. For vsock the address is the port
// to listen on, optionally prefixed by a context id which is ignored.
func Listen(network, addr string) (net.Listener, error) {
	switch network {
	case NetworkTCP, NetworkUnix:
		l, err := net.Listen(network, addr)
		if err != nil {
			return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
		}
		return l, nil
	case NetworkVsock:
		portStr := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			portStr = addr[i+1:]
		}
		port, err := strconv.ParseUint(portStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock port %q: %w", addr, err)
		}
		l, err := vsock.Listen(uint32(port), nil)
		if err != nil {
			return nil, fmt.Errorf("listen vsock port %d: %w", port, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("cannot listen on network %q", network)
	}
}
