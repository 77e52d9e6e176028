package wait

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// PortStrategy waits until a TCP connection to one of the target's ports
// succeeds.
type PortStrategy struct {
	port           int
	timeout        time.Duration
	interval       time.Duration
	connectTimeout time.Duration
}

// ForPort returns a strategy that waits for the given container port to
// accept TCP connections. Panics if port is out of range.
func ForPort(port int) *PortStrategy {
	validatePort(port)
	return &PortStrategy{
		port:           port,
		timeout:        DefaultPortTimeout,
		interval:       DefaultPortInterval,
		connectTimeout: DefaultConnectTimeout,
	}
}

// WithTimeout returns a copy with the overall budget set to d.
// Panics if d is not positive.
func (s *PortStrategy) WithTimeout(d time.Duration) *PortStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

// WithPollInterval returns a copy polling every d. Panics if d is not
// positive.
func (s *PortStrategy) WithPollInterval(d time.Duration) *PortStrategy {
	validatePositive("poll interval", d)
	c := *s
	c.interval = d
	return &c
}

// WithConnectTimeout returns a copy using d as the per-attempt dial
// timeout. Panics if d is not positive.
func (s *PortStrategy) WithConnectTimeout(d time.Duration) *PortStrategy {
	validatePositive("connect timeout", d)
	c := *s
	c.connectTimeout = d
	return &c
}

func (s *PortStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return run(ctx, target.Name(), s.timeout, s.interval, func(pollCtx context.Context) error {
		host, port, err := target.Endpoint(pollCtx, s.port)
		if err != nil {
			return MarkTransient(fmt.Errorf("resolving endpoint for port %d: %w", s.port, err))
		}
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := net.DialTimeout("tcp", addr, s.connectTimeout)
		if err != nil {
			return MarkTransient(fmt.Errorf("connecting to %s: %w", addr, err))
		}
		return conn.Close()
	})
}
