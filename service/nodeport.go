package service

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// NodePortOption adjusts a NodePort manager during construction.
type NodePortOption func(*NodePort)

// WithStaticPort reserves the given node port instead of letting the
// cluster choose one. Panics if port is out of range.
func WithStaticPort(port int) NodePortOption {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: node port must be between 1 and 65535, got %d", port))
	}
	return func(s *NodePort) {
		s.staticPort = port
	}
}

// NodePort exposes a workload on a port reserved on every cluster node.
// Without WithStaticPort the cluster assigns the port dynamically;
// NodePort() returns the effective value after Create.
type NodePort struct {
	base
	staticPort int
}

var _ Manager = (*NodePort)(nil)

// NewNodePort returns an unstarted NodePort manager for the given config.
func NewNodePort(config Config, opts ...NodePortOption) *NodePort {
	s := &NodePort{base: base{config: config}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NodePort) Kind() string { return "node-port" }

func (s *NodePort) Create(ctx context.Context, c *cluster.Cluster, namespace string, selector map[string]string) error {
	service := s.config.build(corev1.ServiceTypeNodePort, selector)
	if s.staticPort != 0 {
		service.Spec.Ports[0].NodePort = int32(s.staticPort)
	}
	return s.createService(ctx, c, namespace, service)
}

// NodePort returns the node port the service is reachable on, or 0 before
// Create.
func (s *NodePort) NodePort() int {
	handle := s.Handle()
	if handle == nil || len(handle.Spec.Ports) == 0 {
		return 0
	}
	return int(handle.Spec.Ports[0].NodePort)
}
