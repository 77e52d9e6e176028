// Package service exposes a workload's network endpoint. Variants cover
// in-cluster virtual addresses (ClusterIP), per-replica DNS without a
// virtual address (Headless) and externally reachable static ports
// (NodePort); Composite groups several exposures for one workload.
//
// Managers are single-use: Create may be called once, Delete is idempotent
// and safe on managers that never created anything.
package service

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/sentinel"
)

// ErrAlreadyCreated is returned when Create is called twice on the same
// manager instance.
const ErrAlreadyCreated = sentinel.Error("service already created")

// State tracks where a manager is in its lifecycle.
type State int

const (
	StateUncreated State = iota
	StateCreated
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateUncreated:
		return "uncreated"
	case StateCreated:
		return "created"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Manager creates and deletes one exposure resource. The selector routing
// traffic to the workload's pods is passed at creation time because it is
// owned by the workload config.
type Manager interface {
	// Create submits the service to the cluster. Calling it twice on the
	// same instance returns ErrAlreadyCreated.
	Create(ctx context.Context, c *cluster.Cluster, namespace string, selector map[string]string) error

	// Delete removes the service. It is a no-op on a manager that never
	// created anything and tolerates a resource already gone.
	Delete(ctx context.Context, c *cluster.Cluster, namespace string) error

	// Name returns the service name.
	Name() string

	// Kind returns a stable discriminator for diagnostics, such as
	// "cluster-ip", "headless", "node-port" or "composite".
	Kind() string

	// State returns the manager's lifecycle state.
	State() State

	// Handle returns the service as created by the cluster, or nil before
	// Create.
	Handle() *corev1.Service
}
