package testpods

import (
	"github.com/giantswarm/testpods/service"
	"github.com/giantswarm/testpods/wait"
	"github.com/giantswarm/testpods/workload"
)

// HeadlessSuffix is appended to the pod name to form the name of the
// headless service governing a stateful pod's per-replica DNS.
const HeadlessSuffix = "-headless"

// NewStatefulPod declares a dependency pod with stable per-replica
// identity, backed by a StatefulSet. It gets two exposures by default: a
// ClusterIP service under the pod name and a headless service under the
// pod name plus HeadlessSuffix, so both load-balanced and per-replica
// addressing work. Storage managers in claim-template mode contribute
// per-replica claim templates to the StatefulSet.
//
// The default readiness strategy is the workload's own readiness
// condition, bounded by the two minute readiness default, since stateful
// workloads routinely open their port before replication is settled.
// Panics if image is empty.
func NewStatefulPod(image string, opts ...Option) *Pod {
	p := newPod(image, opts...)
	p.buildWorkload = func(cfg workload.Config) workload.Manager {
		workloadOpts := []workload.StatefulSetOption{
			workload.WithServiceName(p.name + HeadlessSuffix),
		}
		if templates := p.storage.ClaimTemplates(); len(templates) > 0 {
			workloadOpts = append(workloadOpts, workload.WithClaimTemplates(templates...))
		}
		return workload.NewStatefulSet(cfg, workloadOpts...)
	}
	p.defaultWait = func() wait.Strategy {
		return wait.ForReadiness()
	}
	p.defaultServices = func() service.Manager {
		port := p.primaryPort()
		if port == 0 {
			return nil
		}
		return service.NewComposite(
			service.NewClusterIP(service.NewConfig(p.name, port)),
			service.NewHeadless(service.NewConfig(p.name+HeadlessSuffix, port)),
		)
	}
	return p
}
