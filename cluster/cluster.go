package cluster

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/giantswarm/testpods/internal/sentinel"
)

// Labels applied to every resource this library creates. Purge relies on
// the managed-by label to find namespaces left behind by crashed runs.
const (
	LabelApp       = "app"
	LabelManagedBy = "managed-by"
	ManagedByValue = "testpods"
)

// ErrNoCluster is returned by Discover when no kubeconfig context and no
// in-cluster configuration can be found.
const ErrNoCluster = sentinel.Error("no kubernetes cluster found")

// Cluster is a handle to a Kubernetes cluster: the API client, the REST
// configuration it was built from, and the strategy used to reach services
// in the cluster from outside.
type Cluster struct {
	client     kubernetes.Interface
	restConfig *rest.Config
	access     AccessStrategy
}

// Option configures a Cluster during construction.
type Option func(*Cluster)

// WithAccessStrategy replaces the default port-forward access strategy.
// Panics if s is nil.
func WithAccessStrategy(s AccessStrategy) Option {
	if s == nil {
		panic("testpods: access strategy must not be nil")
	}
	return func(c *Cluster) {
		c.access = s
	}
}

// New creates a Cluster from an existing clientset. restConfig may be nil
// when the access strategy does not open SPDY streams (e.g., node-port
// access, or a fake clientset in tests). Panics if client is nil.
func New(client kubernetes.Interface, restConfig *rest.Config, opts ...Option) *Cluster {
	if client == nil {
		panic("testpods: client must not be nil")
	}
	c := &Cluster{
		client:     client,
		restConfig: restConfig,
		access:     NewPortForward(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromKubeconfig connects using the kubeconfig at path. An empty path means
// the standard loading rules (KUBECONFIG, then ~/.kube/config).
func FromKubeconfig(path string, opts ...Option) (*Cluster, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules, &clientcmd.ConfigOverrides{},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}
	return New(client, cfg, opts...), nil
}

// Discover finds an available cluster connection.
//
// Discovery order:
//  1. The standard kubeconfig loading rules (current context).
//  2. In-cluster configuration, for tests running inside a pod.
//
// Returns ErrNoCluster (wrapped) when neither yields a connection.
func Discover(opts ...Option) (*Cluster, error) {
	c, kubeconfigErr := FromKubeconfig("", opts...)
	if kubeconfigErr == nil {
		return c, nil
	}

	cfg, inClusterErr := rest.InClusterConfig()
	if inClusterErr != nil {
		return nil, fmt.Errorf("%w: kubeconfig: %v; in-cluster: %v",
			ErrNoCluster, kubeconfigErr, inClusterErr)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}
	return New(client, cfg, opts...), nil
}

// Client returns the Kubernetes API client.
func (c *Cluster) Client() kubernetes.Interface {
	return c.client
}

// FirstPod returns the first pod carrying the app label of the named
// workload. Test workloads run one replica in the common case, so
// first-match is the intended behavior. Returns ErrNoPods (wrapped) when
// nothing matches.
func (c *Cluster) FirstPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pods, err := c.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: LabelApp + "=" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods for %s/%s: %w", namespace, name, err)
	}
	if len(pods.Items) == 0 {
		return nil, fmt.Errorf("%w: %s=%s in namespace %s", ErrNoPods, LabelApp, name, namespace)
	}
	return &pods.Items[0], nil
}

// RESTConfig returns the rest.Config the client was built from, or nil when
// the Cluster was constructed without one.
func (c *Cluster) RESTConfig() *rest.Config {
	return c.restConfig
}

// Access returns the external-access strategy.
func (c *Cluster) Access() AccessStrategy {
	return c.access
}
