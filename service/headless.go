package service

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// Headless exposes a workload without a virtual address; DNS resolves
// directly to the backing replica addresses. Required when the workload
// needs stable per-replica network identity.
type Headless struct {
	base
}

var _ Manager = (*Headless)(nil)

// NewHeadless returns an unstarted Headless manager for the given config.
func NewHeadless(config Config) *Headless {
	return &Headless{base: base{config: config}}
}

func (s *Headless) Kind() string { return "headless" }

func (s *Headless) Create(ctx context.Context, c *cluster.Cluster, namespace string, selector map[string]string) error {
	service := s.config.build(corev1.ServiceTypeClusterIP, selector)
	service.Spec.ClusterIP = corev1.ClusterIPNone
	return s.createService(ctx, c, namespace, service)
}
