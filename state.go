package testpods

// State is a pod's position in its lifecycle. Pods move Unstarted →
// Provisioning → Ready → Stopping → Stopped; a provisioning failure moves
// the pod to Failed instead, from which only Stop is valid.
type State int

const (
	StateUnstarted State = iota
	StateProvisioning
	StateReady
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
