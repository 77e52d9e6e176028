// Package workload manages the running replicas of a dependency under
// test. Two variants exist: Deployment for stateless single or
// multi-replica workloads and StatefulSet for workloads needing stable
// per-replica identity and storage.
//
// Managers are single-use: Create may be called once, Delete is idempotent
// and safe on managers that never created anything. The cluster handle is
// passed per call because it is resolved only when the owning pod starts.
package workload

import (
	"context"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/sentinel"
)

// ErrAlreadyCreated is returned when Create is called twice on the same
// manager instance.
const ErrAlreadyCreated = sentinel.Error("workload already created")

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

// Manager creates and deletes one workload resource.
type Manager interface {
	// Create submits the workload to the cluster. Calling it twice on the
	// same instance returns ErrAlreadyCreated.
	Create(ctx context.Context, c *cluster.Cluster, namespace string) error

	// Delete removes the workload. It is a no-op on a manager that never
	// created anything and tolerates a resource already gone.
	Delete(ctx context.Context, c *cluster.Cluster, namespace string) error

	// Running reports whether every requested replica is ready.
	Running(ctx context.Context, c *cluster.Cluster, namespace string) (bool, error)

	// Name returns the workload name.
	Name() string

	// Kind returns a stable discriminator for diagnostics, such as
	// "deployment" or "statefulset".
	Kind() string

	// State returns the manager's lifecycle state.
	State() State
}
