package cluster

import "context"

// AccessStrategy resolves how test code reaches a service running in the
// cluster. Different cluster setups need different mechanisms: a local kind
// cluster has no routable node IPs (port-forward), minikube exposes node
// ports, cloud clusters assign load-balancer ingress.
//
// Endpoint resolves the externally reachable (host, port) for the given
// service's container port. Implementations may hold per-service state
// (e.g., an open forward session); Release tears that state down when the
// resource stops.
type AccessStrategy interface {
	Endpoint(ctx context.Context, c *Cluster, namespace, name string, port int) (HostPort, error)
	Release(namespace, name string) error
}
