package workload

import (
	"fmt"
	"maps"
	"slices"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
)

// ConfigOption adjusts a workload Config during construction via NewConfig.
//
// Several With* functions panic on invalid input (out-of-range ports,
// non-positive replica counts). These panics are intentional: the values
// are typically compile-time constants in test code, so an invalid value
// indicates a programmer error rather than a runtime condition.
type ConfigOption func(*Config)

// Config describes the container and replica shape of one workload. Build
// it with NewConfig; required fields are validated eagerly so mistakes
// surface where the resource is declared, not when it is created.
type Config struct {
	name            string
	image           string
	ports           []int
	env             map[string]string
	labels          map[string]string
	command         []string
	args            []string
	imagePullPolicy corev1.PullPolicy
	replicas        int32
	volumes         []corev1.Volume
	mounts          []corev1.VolumeMount

	initContainers []corev1.Container
	sidecars       []corev1.Container
	readinessProbe *corev1.Probe
	livenessProbe  *corev1.Probe
	resources      corev1.ResourceRequirements
	envFrom        []corev1.EnvFromSource
	envValueFrom   []corev1.EnvVar
	mutators       []func(*corev1.PodTemplateSpec)
}

// NewConfig builds a workload Config for the given name and container
// image. Panics if either is empty.
func NewConfig(name, image string, opts ...ConfigOption) Config {
	if name == "" {
		panic("testpods: workload name must not be empty")
	}
	if image == "" {
		panic("testpods: workload image must not be empty")
	}
	c := Config{
		name:     name,
		image:    image,
		replicas: 1,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithPorts sets the container ports. Panics if any port is out of range.
func WithPorts(ports ...int) ConfigOption {
	for _, port := range ports {
		if port < 1 || port > 65535 {
			panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
		}
	}
	return func(c *Config) {
		c.ports = slices.Clone(ports)
	}
}

// WithEnv sets environment variables on the container.
func WithEnv(env map[string]string) ConfigOption {
	return func(c *Config) {
		c.env = maps.Clone(env)
	}
}

// WithLabels adds labels to the workload and its pods, in addition to the
// selector and bookkeeping labels every workload carries.
func WithLabels(labels map[string]string) ConfigOption {
	return func(c *Config) {
		c.labels = maps.Clone(labels)
	}
}

// WithCommand overrides the container entrypoint.
func WithCommand(command ...string) ConfigOption {
	return func(c *Config) {
		c.command = slices.Clone(command)
	}
}

// WithArgs sets the container arguments.
func WithArgs(args ...string) ConfigOption {
	return func(c *Config) {
		c.args = slices.Clone(args)
	}
}

// WithImagePullPolicy sets the image pull policy. The cluster default
// applies when unset.
func WithImagePullPolicy(policy corev1.PullPolicy) ConfigOption {
	return func(c *Config) {
		c.imagePullPolicy = policy
	}
}

// WithReplicas sets the replica count. Panics if n is not positive.
func WithReplicas(n int) ConfigOption {
	if n <= 0 {
		panic(fmt.Sprintf("testpods: replicas must be greater than 0, got %d", n))
	}
	return func(c *Config) {
		c.replicas = int32(n)
	}
}

// WithVolumes adds pod volumes, typically supplied by a storage manager.
func WithVolumes(volumes ...corev1.Volume) ConfigOption {
	return func(c *Config) {
		c.volumes = append(c.volumes, volumes...)
	}
}

// WithVolumeMounts adds container volume mounts, typically supplied by a
// storage manager.
func WithVolumeMounts(mounts ...corev1.VolumeMount) ConfigOption {
	return func(c *Config) {
		c.mounts = append(c.mounts, mounts...)
	}
}

// WithInitContainers adds init containers run to completion, in order,
// before the main container starts. Panics if a container lacks a name or
// image.
func WithInitContainers(containers ...corev1.Container) ConfigOption {
	requireNamedContainers("init container", containers)
	return func(c *Config) {
		c.initContainers = append(c.initContainers, containers...)
	}
}

// WithSidecars adds containers running alongside the main container in the
// same pod. Panics if a container lacks a name or image.
func WithSidecars(containers ...corev1.Container) ConfigOption {
	requireNamedContainers("sidecar", containers)
	return func(c *Config) {
		c.sidecars = append(c.sidecars, containers...)
	}
}

// WithReadinessProbe sets the kubelet readiness probe on the main
// container. Panics if p has no handler.
func WithReadinessProbe(p Probe) ConfigOption {
	requireProbeHandler(p)
	return func(c *Config) {
		c.readinessProbe = p.build()
	}
}

// WithLivenessProbe sets the kubelet liveness probe on the main container.
// Panics if p has no handler.
func WithLivenessProbe(p Probe) ConfigOption {
	requireProbeHandler(p)
	return func(c *Config) {
		c.livenessProbe = p.build()
	}
}

// WithResourceRequests sets the main container's cpu and memory requests.
// Pass "" to leave one of them unset. Panics on an unparseable quantity.
func WithResourceRequests(cpu, memory string) ConfigOption {
	requests := parseResourceList(cpu, memory)
	return func(c *Config) {
		c.resources.Requests = requests
	}
}

// WithResourceLimits sets the main container's cpu and memory limits. Pass
// "" to leave one of them unset. Panics on an unparseable quantity.
func WithResourceLimits(cpu, memory string) ConfigOption {
	limits := parseResourceList(cpu, memory)
	return func(c *Config) {
		c.resources.Limits = limits
	}
}

// WithSecretEnv sets an environment variable sourced from a key of a
// Secret, keeping the value itself out of the workload spec. Panics if any
// argument is empty.
func WithSecretEnv(name, secretName, key string) ConfigOption {
	if name == "" || secretName == "" || key == "" {
		panic("testpods: secret env name, secret name and key must not be empty")
	}
	return func(c *Config) {
		c.envValueFrom = append(c.envValueFrom, corev1.EnvVar{
			Name: name,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
					Key:                  key,
				},
			},
		})
	}
}

// WithEnvFromSecret populates environment variables from every key of a
// Secret. Panics if name is empty.
func WithEnvFromSecret(name string) ConfigOption {
	if name == "" {
		panic("testpods: secret name must not be empty")
	}
	return func(c *Config) {
		c.envFrom = append(c.envFrom, corev1.EnvFromSource{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: name},
			},
		})
	}
}

// WithEnvFromConfigMap populates environment variables from every key of a
// ConfigMap. Panics if name is empty.
func WithEnvFromConfigMap(name string) ConfigOption {
	if name == "" {
		panic("testpods: config map name must not be empty")
	}
	return func(c *Config) {
		c.envFrom = append(c.envFrom, corev1.EnvFromSource{
			ConfigMapRef: &corev1.ConfigMapEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: name},
			},
		})
	}
}

// WithMutators adds functions applied to the assembled pod template after
// all other options, as an escape hatch for spec fields no option covers.
// Panics if a mutator is nil.
func WithMutators(mutators ...func(*corev1.PodTemplateSpec)) ConfigOption {
	for _, m := range mutators {
		if m == nil {
			panic("testpods: mutator must not be nil")
		}
	}
	return func(c *Config) {
		c.mutators = append(c.mutators, mutators...)
	}
}

func requireNamedContainers(kind string, containers []corev1.Container) {
	for _, container := range containers {
		if container.Name == "" || container.Image == "" {
			panic(fmt.Sprintf("testpods: %s name and image must not be empty", kind))
		}
	}
}

func requireProbeHandler(p Probe) {
	if p.handler == (corev1.ProbeHandler{}) {
		panic("testpods: probe must be built with TCPProbe, HTTPProbe or ExecProbe")
	}
}

func parseResourceList(cpu, memory string) corev1.ResourceList {
	list := corev1.ResourceList{}
	if cpu != "" {
		quantity, err := resource.ParseQuantity(cpu)
		if err != nil {
			panic(fmt.Sprintf("testpods: invalid cpu quantity %q: %v", cpu, err))
		}
		list[corev1.ResourceCPU] = quantity
	}
	if memory != "" {
		quantity, err := resource.ParseQuantity(memory)
		if err != nil {
			panic(fmt.Sprintf("testpods: invalid memory quantity %q: %v", memory, err))
		}
		list[corev1.ResourceMemory] = quantity
	}
	if len(list) == 0 {
		panic("testpods: at least one of cpu and memory must be set")
	}
	return list
}

// Name returns the workload name.
func (c Config) Name() string { return c.name }

// Image returns the container image.
func (c Config) Image() string { return c.image }

// Selector returns the label selector routing traffic to this workload's
// pods.
func (c Config) Selector() map[string]string {
	return map[string]string{cluster.LabelApp: c.name}
}

// Labels returns the full label set applied to the workload and its pods:
// user labels plus the selector and bookkeeping labels.
func (c Config) Labels() map[string]string {
	labels := make(map[string]string, len(c.labels)+2)
	maps.Copy(labels, c.labels)
	labels[cluster.LabelApp] = c.name
	labels[cluster.LabelManagedBy] = cluster.ManagedByValue
	return labels
}

func (c Config) container() corev1.Container {
	container := corev1.Container{
		Name:            c.name,
		Image:           c.image,
		ImagePullPolicy: c.imagePullPolicy,
		Command:         c.command,
		Args:            c.args,
		VolumeMounts:    c.mounts,
		ReadinessProbe:  c.readinessProbe,
		LivenessProbe:   c.livenessProbe,
		Resources:       c.resources,
		EnvFrom:         c.envFrom,
	}
	for _, port := range c.ports {
		container.Ports = append(container.Ports, corev1.ContainerPort{
			ContainerPort: int32(port),
		})
	}
	for _, name := range slices.Sorted(maps.Keys(c.env)) {
		container.Env = append(container.Env, corev1.EnvVar{
			Name:  name,
			Value: c.env[name],
		})
	}
	container.Env = append(container.Env, c.envValueFrom...)
	return container
}

func (c Config) podTemplate() corev1.PodTemplateSpec {
	template := corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels: c.Labels(),
		},
		Spec: corev1.PodSpec{
			InitContainers: c.initContainers,
			Containers:     append([]corev1.Container{c.container()}, c.sidecars...),
			Volumes:        c.volumes,
		},
	}
	for _, mutate := range c.mutators {
		mutate(&template)
	}
	return template
}
