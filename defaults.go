package testpods

import (
	"context"
	"maps"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// Defaults is a configuration snapshot consulted when a pod does not carry
// an explicit value. Two tiers exist: one snapshot attached to a context
// via WithDefaults, and one process-wide snapshot set via
// SetGlobalDefaults. Resolution order is context snapshot, then global
// snapshot, then the built-in fallback (cluster auto-discovery, a
// generated namespace per pod).
//
// Snapshots are copied whenever they cross a boundary: WithDefaults stores
// an independent deep copy, and readers receive copies. Mutating a
// Defaults value after handing it over is never observable elsewhere, so a
// snapshot inherited by a goroutine (by passing the context) is isolated
// from its parent.
type Defaults struct {
	// Cluster is a ready connection to use for every pod.
	Cluster *cluster.Cluster

	// ClusterSupplier produces the connection lazily, on first use.
	// Ignored when Cluster is set.
	ClusterSupplier func(ctx context.Context) (*cluster.Cluster, error)

	// Namespace is a fixed namespace name shared by all pods resolving
	// against this snapshot.
	Namespace string

	// NamespaceSupplier produces a namespace name per pod. Ignored when
	// Namespace is set.
	NamespaceSupplier func() string

	// Labels are added to every workload the pods create.
	Labels map[string]string

	// ImagePullPolicy applies to workload containers that do not set one.
	ImagePullPolicy corev1.PullPolicy
}

// clone returns an independent deep copy.
func (d Defaults) clone() Defaults {
	c := d
	c.Labels = maps.Clone(d.Labels)
	return c
}

// hasCluster reports whether the snapshot supplies a cluster connection,
// eagerly or lazily.
func (d Defaults) hasCluster() bool {
	return d.Cluster != nil || d.ClusterSupplier != nil
}

var (
	globalMu       sync.Mutex
	globalDefaults Defaults
)

// SetGlobalDefaults replaces the process-wide defaults. Typically called
// once at startup, for example in TestMain. Concurrent writers are safe;
// the last write wins.
func SetGlobalDefaults(d Defaults) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDefaults = d.clone()
}

// GlobalDefaults returns a copy of the process-wide defaults.
func GlobalDefaults() Defaults {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalDefaults.clone()
}

type defaultsKey struct{}

// WithDefaults returns a context carrying an independent copy of d.
// Pods started with the returned context resolve their configuration
// against that copy before falling back to the global defaults.
func WithDefaults(ctx context.Context, d Defaults) context.Context {
	snapshot := d.clone()
	return context.WithValue(ctx, defaultsKey{}, &snapshot)
}

// ScopedDefaults returns a copy of the defaults attached to ctx and
// whether any are attached.
func ScopedDefaults(ctx context.Context) (Defaults, bool) {
	d, ok := ctx.Value(defaultsKey{}).(*Defaults)
	if !ok || d == nil {
		return Defaults{}, false
	}
	return d.clone(), true
}

// ClearScoped returns a context without scoped defaults, leaving the
// global tier untouched. Test-framework glue calls this at the end of a
// test scope so reused worker contexts do not leak configuration.
func ClearScoped(ctx context.Context) context.Context {
	return context.WithValue(ctx, defaultsKey{}, (*Defaults)(nil))
}

// HasCluster reports whether the scoped or global tier supplies a cluster
// connection. It never triggers auto-discovery.
func HasCluster(ctx context.Context) bool {
	if d, ok := ScopedDefaults(ctx); ok && d.hasCluster() {
		return true
	}
	return GlobalDefaults().hasCluster()
}

// resolveCluster finds the cluster connection for a pod: scoped defaults,
// then global defaults, then auto-discovery.
func resolveCluster(ctx context.Context) (*cluster.Cluster, error) {
	tiers := make([]Defaults, 0, 2)
	if d, ok := ScopedDefaults(ctx); ok {
		tiers = append(tiers, d)
	}
	tiers = append(tiers, GlobalDefaults())

	for _, d := range tiers {
		if d.Cluster != nil {
			return d.Cluster, nil
		}
		if d.ClusterSupplier != nil {
			return d.ClusterSupplier(ctx)
		}
	}
	return cluster.Discover()
}

// resolveNamespace finds the namespace name for a pod: scoped defaults,
// then global defaults, then a generated name derived from the pod name.
func resolveNamespace(ctx context.Context, podName string) string {
	tiers := make([]Defaults, 0, 2)
	if d, ok := ScopedDefaults(ctx); ok {
		tiers = append(tiers, d)
	}
	tiers = append(tiers, GlobalDefaults())

	for _, d := range tiers {
		if d.Namespace != "" {
			return d.Namespace
		}
		if d.NamespaceSupplier != nil {
			return d.NamespaceSupplier()
		}
	}
	return cluster.GenerateName(podName)
}

// resolveLabels merges the default labels of both tiers, scoped tier
// winning on conflicts.
func resolveLabels(ctx context.Context) map[string]string {
	labels := GlobalDefaults().Labels
	if labels == nil {
		labels = map[string]string{}
	}
	if d, ok := ScopedDefaults(ctx); ok {
		maps.Copy(labels, d.Labels)
	}
	return labels
}

// resolveImagePullPolicy returns the first configured pull policy, scoped
// tier first, or "" when neither tier sets one.
func resolveImagePullPolicy(ctx context.Context) corev1.PullPolicy {
	if d, ok := ScopedDefaults(ctx); ok && d.ImagePullPolicy != "" {
		return d.ImagePullPolicy
	}
	return GlobalDefaults().ImagePullPolicy
}
