// Package storage attaches volumes to a workload: ephemeral scratch space,
// persistent claims, and configuration projected from ConfigMaps or
// Secrets. A manager contributes pod volumes and container mounts, plus
// claim templates when the workload clones storage per replica.
//
// Managers are single-use: Create may be called once, Delete is idempotent
// and safe on managers that never created anything. Variants that need no
// cluster resources of their own treat Create and Delete as state-only
// transitions.
package storage

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/sentinel"
)

// ErrAlreadyCreated is returned when Create is called twice on the same
// manager instance.
const ErrAlreadyCreated = sentinel.Error("storage already created")

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

// Manager provisions the storage behind one volume of a workload.
type Manager interface {
	// Create submits any standalone cluster resources the storage needs,
	// before the workload referencing them is created. Calling it twice on
	// the same instance returns ErrAlreadyCreated.
	Create(ctx context.Context, c *cluster.Cluster, namespace string) error

	// Delete removes the resources Create made. It is a no-op on a manager
	// that never created anything and tolerates resources already gone.
	Delete(ctx context.Context, c *cluster.Cluster, namespace string) error

	// Volumes returns the pod volumes to add to the workload spec.
	Volumes() []corev1.Volume

	// Mounts returns the container volume mounts.
	Mounts() []corev1.VolumeMount

	// ClaimTemplates returns claim templates for workloads that clone
	// storage per replica. Non-empty only for persistent storage in
	// template mode.
	ClaimTemplates() []corev1.PersistentVolumeClaim

	// Name returns the storage name.
	Name() string

	// Kind returns a stable discriminator for diagnostics, such as
	// "empty-dir", "persistent", "config-map", "secret" or "composite".
	Kind() string

	// State returns the manager's lifecycle state.
	State() State
}
