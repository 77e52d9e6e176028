package cluster

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/internal/sentinel"
)

// Sentinel errors returned by the node-port access strategy.
const (
	// ErrServiceNotFound is returned when the service to reach does not exist.
	ErrServiceNotFound = sentinel.Error("service not found")

	// ErrNoNodePort is returned when the service has no node port assigned
	// for the requested container port.
	ErrNoNodePort = sentinel.Error("no node port assigned")
)

// NodePortAccess reaches services through the node port assigned to them.
// The cluster's nodes must be routable from the machine running the tests
// (true for minikube and most single-node dev clusters).
type NodePortAccess struct {
	mu     sync.Mutex
	nodeIP string
}

// NewNodePortAccess creates the strategy. nodeIP may be empty, in which
// case the first node's InternalIP is detected on first use, falling back
// to 127.0.0.1 when the node list is empty.
func NewNodePortAccess(nodeIP string) *NodePortAccess {
	return &NodePortAccess{nodeIP: nodeIP}
}

// Endpoint looks up the service and returns (nodeIP, nodePort) for the
// given container port.
func (a *NodePortAccess) Endpoint(ctx context.Context, c *Cluster, namespace, name string, port int) (HostPort, error) {
	svc, err := c.Client().CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return HostPort{}, fmt.Errorf("%w: %s/%s: %v", ErrServiceNotFound, namespace, name, err)
	}

	nodePort := 0
	for _, p := range svc.Spec.Ports {
		if int(p.Port) == port && p.NodePort != 0 {
			nodePort = int(p.NodePort)
			break
		}
	}
	if nodePort == 0 {
		return HostPort{}, fmt.Errorf("%w: port %d on service %s/%s (is the service of type NodePort?)",
			ErrNoNodePort, port, namespace, name)
	}

	ip, err := a.resolveNodeIP(ctx, c)
	if err != nil {
		return HostPort{}, err
	}
	return HostPort{Host: ip, Port: nodePort}, nil
}

// Release is a no-op; node-port access holds no per-service state.
func (a *NodePortAccess) Release(string, string) error {
	return nil
}

func (a *NodePortAccess) resolveNodeIP(ctx context.Context, c *Cluster) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nodeIP != "" {
		return a.nodeIP, nil
	}

	nodes, err := c.Client().CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list nodes: %w", err)
	}
	if len(nodes.Items) > 0 {
		for _, addr := range nodes.Items[0].Status.Addresses {
			if addr.Type == corev1.NodeInternalIP {
				a.nodeIP = addr.Address
				return a.nodeIP, nil
			}
		}
	}

	// No internal IP published. Loopback works for minikube with a tunnel.
	a.nodeIP = "127.0.0.1"
	return a.nodeIP, nil
}
