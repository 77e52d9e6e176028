package testpods

import (
	"fmt"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/sentinel"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain
// comparison.
const (
	// ErrNotStarted is returned by accessors that need a running pod, such
	// as ExternalHost, when the pod has not reached the ready state.
	ErrNotStarted = sentinel.Error("pod not started")

	// ErrAlreadyStarted is returned by Start when the pod left the
	// unstarted state before, including pods that failed to provision.
	ErrAlreadyStarted = sentinel.Error("pod already started")

	// ErrNotStoppable is returned by Stop when the pod is neither ready
	// nor failed.
	ErrNotStoppable = sentinel.Error("pod is not in a stoppable state")

	// ErrNoCluster is returned when no Kubernetes cluster connection is
	// configured and none can be discovered.
	ErrNoCluster = cluster.ErrNoCluster
)

// StartError reports a failed Start. By the time it is returned, cleanup
// of whatever was created has already been attempted.
type StartError struct {
	// Pod is the name of the pod that failed to start.
	Pod string

	// Err is the causing error.
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start pod %q: %v", e.Pod, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
