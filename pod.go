package testpods

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
	"github.com/giantswarm/testpods/internal/sentinel"
	"github.com/giantswarm/testpods/service"
	"github.com/giantswarm/testpods/storage"
	"github.com/giantswarm/testpods/wait"
	"github.com/giantswarm/testpods/workload"
)

// ErrNoPorts is returned by the external-access accessors of a pod that
// was declared without ports.
const ErrNoPorts = sentinel.Error("pod has no ports configured")

// Pod is one ephemeral dependency instance: a workload plus its exposures
// and storage, sequenced through a single lifecycle. Construct one with
// NewGenericPod or NewStatefulPod; the two differ only in the workload
// variant they build and the readiness strategy they default to.
//
// A Pod is single-use. Start may be called once; after Stop the pod is
// spent.
type Pod struct {
	name       string
	image      string
	ports      []int
	env        map[string]string
	labels     map[string]string
	command    []string
	args       []string
	replicas   int
	pullPolicy corev1.PullPolicy

	explicitNamespace string
	explicitCluster   *cluster.Cluster
	waitFor           wait.Strategy
	storage           storage.Manager
	services          service.Manager
	workloadOpts      []workload.ConfigOption

	// Injected by the variant constructor.
	buildWorkload   func(cfg workload.Config) workload.Manager
	defaultWait     func() wait.Strategy
	defaultServices func() service.Manager

	mu        sync.Mutex
	state     State
	cluster   *cluster.Cluster
	namespace *cluster.Namespace
	workload  workload.Manager
	endpoint  cluster.HostPort
}

// Option configures a Pod during construction.
type Option func(*Pod)

// WithName overrides the name derived from the image. Panics if name is
// empty.
func WithName(name string) Option {
	if name == "" {
		panic("testpods: pod name must not be empty")
	}
	return func(p *Pod) {
		p.name = name
	}
}

// WithPort declares the primary container port, used for the default
// exposure, the default readiness strategy and the external-access
// accessors. Panics if port is out of range.
func WithPort(port int) Option {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
	}
	return func(p *Pod) {
		p.ports = append([]int{port}, p.ports...)
	}
}

// WithAdditionalPorts declares container ports beyond the primary one.
// Panics if any port is out of range.
func WithAdditionalPorts(ports ...int) Option {
	for _, port := range ports {
		if port < 1 || port > 65535 {
			panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
		}
	}
	return func(p *Pod) {
		p.ports = append(p.ports, ports...)
	}
}

// WithEnv sets environment variables on the workload container.
func WithEnv(env map[string]string) Option {
	return func(p *Pod) {
		if p.env == nil {
			p.env = make(map[string]string, len(env))
		}
		maps.Copy(p.env, env)
	}
}

// WithLabels adds labels to every resource the pod creates.
func WithLabels(labels map[string]string) Option {
	return func(p *Pod) {
		if p.labels == nil {
			p.labels = make(map[string]string, len(labels))
		}
		maps.Copy(p.labels, labels)
	}
}

// WithCommand overrides the container entrypoint.
func WithCommand(command ...string) Option {
	return func(p *Pod) {
		p.command = command
	}
}

// WithArgs sets the container arguments.
func WithArgs(args ...string) Option {
	return func(p *Pod) {
		p.args = args
	}
}

// WithReplicas sets the replica count. Panics if n is not positive.
func WithReplicas(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("testpods: replicas must be greater than 0, got %d", n))
	}
	return func(p *Pod) {
		p.replicas = n
	}
}

// WithImagePullPolicy sets the image pull policy, overriding any
// configured default.
func WithImagePullPolicy(policy corev1.PullPolicy) Option {
	return func(p *Pod) {
		p.pullPolicy = policy
	}
}

// WithWorkloadOptions passes workload config options through to the
// workload built during Start, for container customizations the pod
// options do not cover: init containers, sidecars, kubelet probes,
// resource requests and limits, secret-sourced env. They apply after the
// options the pod derives from its own declaration. Panics if an option is
// nil.
func WithWorkloadOptions(opts ...workload.ConfigOption) Option {
	for _, opt := range opts {
		if opt == nil {
			panic("testpods: workload option must not be nil")
		}
	}
	return func(p *Pod) {
		p.workloadOpts = append(p.workloadOpts, opts...)
	}
}

// WithWaitStrategy replaces the variant's default readiness strategy.
// Panics if s is nil.
func WithWaitStrategy(s wait.Strategy) Option {
	if s == nil {
		panic("testpods: wait strategy must not be nil")
	}
	return func(p *Pod) {
		p.waitFor = s
	}
}

// WithStorage attaches storage managers to the pod.
func WithStorage(managers ...storage.Manager) Option {
	return func(p *Pod) {
		p.storage = storage.NewComposite(managers...)
	}
}

// WithServices replaces the variant's default exposures.
func WithServices(managers ...service.Manager) Option {
	return func(p *Pod) {
		p.services = service.NewComposite(managers...)
	}
}

// WithNamespace pins the pod to a namespace, overriding any configured
// default and the generated per-pod namespace. Panics if name is empty.
func WithNamespace(name string) Option {
	if name == "" {
		panic("testpods: namespace must not be empty")
	}
	return func(p *Pod) {
		p.explicitNamespace = name
	}
}

// WithCluster pins the pod to a cluster connection, overriding any
// configured default and auto-discovery. Panics if c is nil.
func WithCluster(c *cluster.Cluster) Option {
	if c == nil {
		panic("testpods: cluster must not be nil")
	}
	return func(p *Pod) {
		p.explicitCluster = c
	}
}

// newPod builds the variant-independent parts of a Pod. Panics if image is
// empty.
func newPod(image string, opts ...Option) *Pod {
	if image == "" {
		panic("testpods: image must not be empty")
	}
	p := &Pod{
		image:    image,
		replicas: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = deriveNameFromImage(image)
	}
	if p.storage == nil {
		p.storage = storage.NewComposite()
	}
	return p
}

// primaryPort is the port external access targets, 0 when none declared.
func (p *Pod) primaryPort() int {
	if len(p.ports) == 0 {
		return 0
	}
	return p.ports[0]
}

// Name returns the pod name.
func (p *Pod) Name() string { return p.name }

// State returns the pod's lifecycle state.
func (p *Pod) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Namespace returns the namespace the pod runs in, or "" before Start
// resolved it.
func (p *Pod) Namespace() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.namespace == nil {
		return ""
	}
	return p.namespace.Name()
}

// Cluster returns the resolved cluster connection, or nil before Start.
func (p *Pod) Cluster() *cluster.Cluster {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cluster
}

// Workload returns the workload manager, or nil before Start built it.
// Intended for advanced assertions in tests.
func (p *Pod) Workload() workload.Manager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workload
}

// Services returns the exposure manager, or nil when the pod has none.
func (p *Pod) Services() service.Manager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.services
}

// Storage returns the storage manager. Never nil; pods without storage
// carry an empty composite.
func (p *Pod) Storage() storage.Manager { return p.storage }

// Start provisions the pod: it resolves the effective configuration,
// ensures the namespace, creates storage, workload and exposures in that
// order, waits for readiness and resolves the external endpoint. On
// failure it tears down whatever was created, in reverse order, and
// returns a *StartError wrapping the cause.
func (p *Pod) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateUnstarted {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("pod %q in state %s: %w", p.name, state, ErrAlreadyStarted)
	}
	p.state = StateProvisioning
	p.mu.Unlock()

	if err := p.provision(ctx); err != nil {
		p.setState(StateFailed)
		// Cleanup proceeds even when the caller's context is the reason
		// provisioning failed.
		if cleanupErr := p.teardown(context.WithoutCancel(ctx)); cleanupErr != nil {
			core.Logger().Warn("cleanup after failed start", "pod", p.name, "error", cleanupErr)
		}
		return &StartError{Pod: p.name, Err: err}
	}
	p.setState(StateReady)
	return nil
}

func (p *Pod) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pod) provision(ctx context.Context) error {
	c := p.explicitCluster
	if c == nil {
		var err error
		if c, err = resolveCluster(ctx); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.cluster = c
	p.mu.Unlock()

	namespaceName := p.explicitNamespace
	if namespaceName == "" {
		namespaceName = resolveNamespace(ctx, p.name)
	}
	namespace := cluster.NewNamespace(c, namespaceName)
	if err := namespace.EnsureCreated(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	p.namespace = namespace
	p.mu.Unlock()
	if namespace.Created() {
		recordNamespace(ctx, namespaceName)
	}

	if err := p.storage.Create(ctx, c, namespaceName); err != nil {
		return err
	}

	cfg := p.workloadConfig(ctx)
	w := p.buildWorkload(cfg)
	p.mu.Lock()
	p.workload = w
	p.mu.Unlock()
	if err := w.Create(ctx, c, namespaceName); err != nil {
		return err
	}

	if p.services == nil {
		p.mu.Lock()
		p.services = p.defaultServices()
		p.mu.Unlock()
	}
	if p.services != nil {
		if err := p.services.Create(ctx, c, namespaceName, cfg.Selector()); err != nil {
			return err
		}
	}

	strategy := p.waitFor
	if strategy == nil {
		strategy = p.defaultWait()
	}
	if err := strategy.WaitUntilReady(ctx, podTarget{p}); err != nil {
		return err
	}

	if port := p.primaryPort(); port != 0 {
		endpoint, err := c.Access().Endpoint(ctx, c, namespaceName, p.name, port)
		if err != nil {
			return fmt.Errorf("resolving external endpoint: %w", err)
		}
		p.mu.Lock()
		p.endpoint = endpoint
		p.mu.Unlock()
	}
	return nil
}

// workloadConfig assembles the workload config from the pod's declaration,
// the resolved defaults and the storage contributions.
func (p *Pod) workloadConfig(ctx context.Context) workload.Config {
	labels := resolveLabels(ctx)
	maps.Copy(labels, p.labels)

	pullPolicy := p.pullPolicy
	if pullPolicy == "" {
		pullPolicy = resolveImagePullPolicy(ctx)
	}

	opts := []workload.ConfigOption{
		workload.WithReplicas(p.replicas),
		workload.WithLabels(labels),
	}
	if len(p.ports) > 0 {
		opts = append(opts, workload.WithPorts(p.ports...))
	}
	if len(p.env) > 0 {
		opts = append(opts, workload.WithEnv(p.env))
	}
	if len(p.command) > 0 {
		opts = append(opts, workload.WithCommand(p.command...))
	}
	if len(p.args) > 0 {
		opts = append(opts, workload.WithArgs(p.args...))
	}
	if pullPolicy != "" {
		opts = append(opts, workload.WithImagePullPolicy(pullPolicy))
	}
	if volumes := p.storage.Volumes(); len(volumes) > 0 {
		opts = append(opts, workload.WithVolumes(volumes...))
	}
	if mounts := p.storage.Mounts(); len(mounts) > 0 {
		opts = append(opts, workload.WithVolumeMounts(mounts...))
	}
	opts = append(opts, p.workloadOpts...)
	return workload.NewConfig(p.name, p.image, opts...)
}

// Stop tears the pod down in reverse creation order: external access,
// exposures, workload, storage, then the namespace if the pod created it.
// Every deletion is attempted; failures are aggregated. Stop is only valid
// from the ready and failed states.
func (p *Pod) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateReady && p.state != StateFailed {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("pod %q in state %s: %w", p.name, state, ErrNotStoppable)
	}
	p.state = StateStopping
	p.mu.Unlock()

	err := p.teardown(ctx)
	p.setState(StateStopped)
	return err
}

// teardown deletes whatever provisioning created, in reverse order,
// attempting every step and aggregating failures.
func (p *Pod) teardown(ctx context.Context) error {
	p.mu.Lock()
	c := p.cluster
	namespace := p.namespace
	w := p.workload
	p.mu.Unlock()

	if c == nil || namespace == nil {
		return nil
	}
	namespaceName := namespace.Name()

	var errs []error
	if err := c.Access().Release(namespaceName, p.name); err != nil {
		errs = append(errs, fmt.Errorf("releasing external access: %w", err))
	}
	if p.services != nil {
		if err := p.services.Delete(ctx, c, namespaceName); err != nil {
			errs = append(errs, err)
		}
	}
	if w != nil {
		if err := w.Delete(ctx, c, namespaceName); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.storage.Delete(ctx, c, namespaceName); err != nil {
		errs = append(errs, err)
	}
	created := namespace.Created()
	if err := namespace.Delete(ctx); err != nil {
		errs = append(errs, err)
	} else if created {
		forgetNamespace(ctx, namespaceName)
	}
	return errors.Join(errs...)
}

// ExternalHost returns the host a test connects to from outside the
// cluster. It is resolved once during Start and cached; calling it on a
// pod that is not ready returns ErrNotStarted.
func (p *Pod) ExternalHost() (string, error) {
	endpoint, err := p.ExternalEndpoint()
	if err != nil {
		return "", err
	}
	return endpoint.Host, nil
}

// ExternalPort returns the port a test connects to from outside the
// cluster. Like ExternalHost, it never re-probes the cluster.
func (p *Pod) ExternalPort() (int, error) {
	endpoint, err := p.ExternalEndpoint()
	if err != nil {
		return 0, err
	}
	return endpoint.Port, nil
}

// ExternalEndpoint returns the cached external access coordinate.
func (p *Pod) ExternalEndpoint() (cluster.HostPort, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return cluster.HostPort{}, fmt.Errorf("pod %q in state %s: %w", p.name, p.state, ErrNotStarted)
	}
	if p.endpoint == (cluster.HostPort{}) {
		return cluster.HostPort{}, fmt.Errorf("pod %q: %w", p.name, ErrNoPorts)
	}
	return p.endpoint, nil
}

// InternalHost returns the cluster-internal DNS name other pods use to
// reach this one. Returns ErrNotStarted before the pod is ready.
func (p *Pod) InternalHost() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return "", fmt.Errorf("pod %q in state %s: %w", p.name, p.state, ErrNotStarted)
	}
	return fmt.Sprintf("%s.%s.svc.cluster.local", p.name, p.namespace.Name()), nil
}

// podTarget adapts a Pod to the wait.Target the readiness strategies
// probe.
type podTarget struct {
	p *Pod
}

var _ wait.Target = podTarget{}

func (t podTarget) Name() string { return t.p.name }

func (t podTarget) Endpoint(ctx context.Context, port int) (string, int, error) {
	p := t.p
	endpoint, err := p.cluster.Access().Endpoint(ctx, p.cluster, p.namespace.Name(), p.name, port)
	if err != nil {
		return "", 0, err
	}
	return endpoint.Host, endpoint.Port, nil
}

func (t podTarget) Logs(ctx context.Context) (string, error) {
	return t.p.logs(ctx)
}

func (t podTarget) Exec(ctx context.Context, command ...string) (int, string, string, error) {
	result, err := t.p.exec(ctx, command...)
	if err != nil {
		return 0, "", "", err
	}
	return result.ExitCode, result.Stdout, result.Stderr, nil
}

func (t podTarget) Ready(ctx context.Context) (bool, error) {
	p := t.p
	return p.workload.Running(ctx, p.cluster, p.namespace.Name())
}
