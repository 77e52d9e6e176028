package cluster

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Defaults for waiting on load-balancer ingress assignment.
const (
	DefaultLoadBalancerTimeout  = 2 * time.Minute
	DefaultLoadBalancerInterval = 2 * time.Second
)

// LoadBalancerAccess reaches services through their load-balancer ingress.
// Requires a cloud provider or MetalLB to assign external addresses.
type LoadBalancerAccess struct {
	timeout  time.Duration
	interval time.Duration
}

// NewLoadBalancerAccess creates the strategy with default ingress-wait
// settings.
func NewLoadBalancerAccess() *LoadBalancerAccess {
	return &LoadBalancerAccess{
		timeout:  DefaultLoadBalancerTimeout,
		interval: DefaultLoadBalancerInterval,
	}
}

// WithTimeout returns a copy with a different ingress-wait timeout.
// Panics if d <= 0.
func (a *LoadBalancerAccess) WithTimeout(d time.Duration) *LoadBalancerAccess {
	if d <= 0 {
		panic(fmt.Sprintf("testpods: load-balancer timeout must be greater than 0, got %v", d))
	}
	return &LoadBalancerAccess{timeout: d, interval: a.interval}
}

// Endpoint polls the service until an ingress address is assigned and
// returns (ingress, servicePort).
func (a *LoadBalancerAccess) Endpoint(ctx context.Context, c *Cluster, namespace, name string, port int) (HostPort, error) {
	var ep HostPort
	err := wait.PollUntilContextTimeout(ctx, a.interval, a.timeout, true,
		func(pollCtx context.Context) (bool, error) {
			svc, err := c.Client().CoreV1().Services(namespace).Get(pollCtx, name, metav1.GetOptions{})
			if err != nil {
				return false, fmt.Errorf("%w: %s/%s: %v", ErrServiceNotFound, namespace, name, err)
			}
			for _, ing := range svc.Status.LoadBalancer.Ingress {
				host := ing.IP
				if host == "" {
					host = ing.Hostname
				}
				if host == "" {
					continue
				}
				for _, p := range svc.Spec.Ports {
					if int(p.Port) == port {
						ep = HostPort{Host: host, Port: port}
						return true, nil
					}
				}
			}
			return false, nil
		})
	if err != nil {
		return HostPort{}, fmt.Errorf("wait for load-balancer ingress on %s/%s: %w", namespace, name, err)
	}
	return ep, nil
}

// Release is a no-op; load-balancer access holds no per-service state.
func (a *LoadBalancerAccess) Release(string, string) error {
	return nil
}
