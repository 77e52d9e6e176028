package testpods

import (
	"strings"

	"github.com/giantswarm/testpods/service"
	"github.com/giantswarm/testpods/wait"
	"github.com/giantswarm/testpods/workload"
)

// NewGenericPod declares a stateless dependency pod backed by a
// Deployment. With a port declared, the pod gets a ClusterIP exposure and
// waits for TCP reachability of that port by default; without one it waits
// for the workload's readiness condition. Panics if image is empty.
func NewGenericPod(image string, opts ...Option) *Pod {
	p := newPod(image, opts...)
	p.buildWorkload = func(cfg workload.Config) workload.Manager {
		return workload.NewDeployment(cfg)
	}
	p.defaultWait = func() wait.Strategy {
		if port := p.primaryPort(); port != 0 {
			return wait.ForPort(port)
		}
		return wait.ForReadiness()
	}
	p.defaultServices = func() service.Manager {
		port := p.primaryPort()
		if port == 0 {
			return nil
		}
		return service.NewClusterIP(service.NewConfig(p.name, port))
	}
	return p
}

// deriveNameFromImage turns a container image reference into a workload
// name: the last path segment with tag and digest stripped.
func deriveNameFromImage(image string) string {
	name := image
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
