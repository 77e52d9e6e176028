package wait

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStrategy waits until an HTTP request against the target returns one
// of the accepted status codes.
type HTTPStrategy struct {
	path        string
	port        int
	method      string
	tls         bool
	statusCodes map[int]struct{}
	timeout     time.Duration
	interval    time.Duration
	readTimeout time.Duration
}

// ForHTTP returns a strategy probing path on the given container port. A
// missing leading slash is added. By default it issues GET over plain HTTP
// and accepts 200, 201, 202 and 204. Panics if port is out of range.
func ForHTTP(path string, port int) *HTTPStrategy {
	validatePort(port)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPStrategy{
		path:   path,
		port:   port,
		method: http.MethodGet,
		statusCodes: map[int]struct{}{
			http.StatusOK:        {},
			http.StatusCreated:   {},
			http.StatusAccepted:  {},
			http.StatusNoContent: {},
		},
		timeout:     DefaultHTTPTimeout,
		interval:    DefaultHTTPInterval,
		readTimeout: DefaultReadTimeout,
	}
}

func (s *HTTPStrategy) clone() *HTTPStrategy {
	c := *s
	c.statusCodes = make(map[int]struct{}, len(s.statusCodes))
	for code := range s.statusCodes {
		c.statusCodes[code] = struct{}{}
	}
	return &c
}

// WithTimeout returns a copy with the overall budget set to d.
// Panics if d is not positive.
func (s *HTTPStrategy) WithTimeout(d time.Duration) *HTTPStrategy {
	validatePositive("timeout", d)
	c := s.clone()
	c.timeout = d
	return c
}

// WithPollInterval returns a copy polling every d. Panics if d is not
// positive.
func (s *HTTPStrategy) WithPollInterval(d time.Duration) *HTTPStrategy {
	validatePositive("poll interval", d)
	c := s.clone()
	c.interval = d
	return c
}

// WithReadTimeout returns a copy using d as the per-request timeout.
// Panics if d is not positive.
func (s *HTTPStrategy) WithReadTimeout(d time.Duration) *HTTPStrategy {
	validatePositive("read timeout", d)
	c := s.clone()
	c.readTimeout = d
	return c
}

// WithMethod returns a copy issuing requests with the given HTTP method.
func (s *HTTPStrategy) WithMethod(method string) *HTTPStrategy {
	c := s.clone()
	c.method = method
	return c
}

// UsingTLS returns a copy probing over HTTPS instead of plain HTTP.
func (s *HTTPStrategy) UsingTLS() *HTTPStrategy {
	c := s.clone()
	c.tls = true
	return c
}

// ForStatusCode returns a copy accepting only the given status code,
// replacing the default set.
func (s *HTTPStrategy) ForStatusCode(code int) *HTTPStrategy {
	return s.ForStatusCodes(code)
}

// ForStatusCodes returns a copy accepting only the given status codes,
// replacing the default set.
func (s *HTTPStrategy) ForStatusCodes(codes ...int) *HTTPStrategy {
	c := s.clone()
	c.statusCodes = make(map[int]struct{}, len(codes))
	for _, code := range codes {
		c.statusCodes[code] = struct{}{}
	}
	return c
}

func (s *HTTPStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	client := &http.Client{Timeout: s.readTimeout}
	return run(ctx, target.Name(), s.timeout, s.interval, func(pollCtx context.Context) error {
		host, port, err := target.Endpoint(pollCtx, s.port)
		if err != nil {
			return MarkTransient(fmt.Errorf("resolving endpoint for port %d: %w", s.port, err))
		}
		scheme := "http"
		if s.tls {
			scheme = "https"
		}
		url := scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port)) + s.path
		req, err := http.NewRequestWithContext(pollCtx, s.method, url, nil)
		if err != nil {
			return fmt.Errorf("building %s request for %s: %w", s.method, url, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return MarkTransient(fmt.Errorf("requesting %s: %w", url, err))
		}
		defer resp.Body.Close()
		if _, ok := s.statusCodes[resp.StatusCode]; !ok {
			return MarkTransient(fmt.Errorf("%s returned status %d", url, resp.StatusCode))
		}
		return nil
	})
}
