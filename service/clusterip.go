package service

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// ClusterIP exposes a workload on a single in-cluster virtual address with
// selector-based routing to its replicas.
type ClusterIP struct {
	base
}

var _ Manager = (*ClusterIP)(nil)

// NewClusterIP returns an unstarted ClusterIP manager for the given
// config.
func NewClusterIP(config Config) *ClusterIP {
	return &ClusterIP{base: base{config: config}}
}

func (s *ClusterIP) Kind() string { return "cluster-ip" }

func (s *ClusterIP) Create(ctx context.Context, c *cluster.Cluster, namespace string, selector map[string]string) error {
	return s.createService(ctx, c, namespace, s.config.build(corev1.ServiceTypeClusterIP, selector))
}
