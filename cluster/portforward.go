package cluster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"

	"github.com/giantswarm/testpods/internal/netutil"
	"github.com/giantswarm/testpods/internal/sentinel"
)

// ErrNoPods is returned when no pod backs the service being forwarded to.
const ErrNoPods = sentinel.Error("no pods found for workload")

// PortForward reaches services by opening a port-forward stream to the
// first pod backing them. It works against any cluster the client can talk
// to, which makes it the default access strategy.
//
// Forward sessions and their local ports stay open until Release; repeated
// Endpoint calls for the same (namespace, name, port) return the cached
// endpoint.
type PortForward struct {
	registry *netutil.PortRegistry

	mu        sync.Mutex
	sessions  map[string]*forwardSession
	endpoints map[string]HostPort
}

type forwardSession struct {
	localPort int
	stopCh    chan struct{}
}

// NewPortForward creates the strategy. A nil registry gets a private one;
// passing a shared registry lets several strategies coexist in one process.
func NewPortForward(registry *netutil.PortRegistry) *PortForward {
	if registry == nil {
		registry = netutil.NewPortRegistry(nil)
	}
	return &PortForward{
		registry:  registry,
		sessions:  make(map[string]*forwardSession),
		endpoints: make(map[string]HostPort),
	}
}

// Endpoint opens (or reuses) a forward to the first pod labeled app=<name>
// and returns the loopback endpoint of the local side.
func (p *PortForward) Endpoint(ctx context.Context, c *Cluster, namespace, name string, port int) (HostPort, error) {
	key := forwardKey(namespace, name, port)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ep, ok := p.endpoints[key]; ok {
		return ep, nil
	}

	pod, err := c.FirstPod(ctx, namespace, name)
	if err != nil {
		return HostPort{}, err
	}

	localPort, err := p.registry.AllocatePort()
	if err != nil {
		return HostPort{}, fmt.Errorf("allocate local port: %w", err)
	}

	session, err := p.openForward(ctx, c, namespace, pod.Name, localPort, port)
	if err != nil {
		p.registry.Release(localPort)
		return HostPort{}, fmt.Errorf("port-forward %s/%s: %w", namespace, pod.Name, err)
	}

	ep := Localhost(localPort)
	p.sessions[key] = session
	p.endpoints[key] = ep
	return ep, nil
}

// Release closes every forward session opened for the named workload and
// returns their local ports to the registry.
func (p *PortForward) Release(namespace, name string) error {
	prefix := namespace + "/" + name + ":"

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, session := range p.sessions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		close(session.stopCh)
		p.registry.Release(session.localPort)
		delete(p.sessions, key)
		delete(p.endpoints, key)
	}
	return nil
}

func (p *PortForward) openForward(ctx context.Context, c *Cluster, namespace, podName string, localPort, remotePort int) (*forwardSession, error) {
	cfg := c.RESTConfig()
	if cfg == nil {
		return nil, fmt.Errorf("cluster has no rest config, port-forward unavailable")
	}

	roundTripper, upgrader, err := spdy.RoundTripperFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("build spdy transport: %w", err)
	}

	req := c.Client().CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(podName).
		SubResource("portforward")
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: roundTripper}, http.MethodPost, req.URL())

	stopCh := make(chan struct{})
	readyCh := make(chan struct{})
	fw, err := portforward.New(dialer,
		[]string{fmt.Sprintf("%d:%d", localPort, remotePort)},
		stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("create forwarder: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- fw.ForwardPorts()
	}()

	select {
	case <-readyCh:
		return &forwardSession{localPort: localPort, stopCh: stopCh}, nil
	case err := <-errCh:
		return nil, fmt.Errorf("forward ports: %w", err)
	case <-ctx.Done():
		close(stopCh)
		return nil, ctx.Err()
	}
}

func forwardKey(namespace, name string, port int) string {
	return fmt.Sprintf("%s/%s:%d", namespace, name, port)
}
