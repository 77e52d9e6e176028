package service

import (
	"fmt"
	"maps"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/giantswarm/testpods/cluster"
)

// ConfigOption adjusts a service Config during construction via NewConfig.
type ConfigOption func(*Config)

// Config describes one exposure. Build it with NewConfig; required fields
// are validated eagerly so mistakes surface where the resource is
// declared.
type Config struct {
	name       string
	port       int
	targetPort int
	labels     map[string]string
	mutators   []func(*corev1.Service)
}

// NewConfig builds a service Config for the given name and port. The
// target port defaults to the service port. Panics if name is empty or
// port is out of range.
func NewConfig(name string, port int, opts ...ConfigOption) Config {
	if name == "" {
		panic("testpods: service name must not be empty")
	}
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
	}
	c := Config{
		name:       name,
		port:       port,
		targetPort: port,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithTargetPort sets the container port traffic is routed to when it
// differs from the service port. Panics if port is out of range.
func WithTargetPort(port int) ConfigOption {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: target port must be between 1 and 65535, got %d", port))
	}
	return func(c *Config) {
		c.targetPort = port
	}
}

// WithLabels adds labels to the service, in addition to the bookkeeping
// labels every service carries.
func WithLabels(labels map[string]string) ConfigOption {
	return func(c *Config) {
		c.labels = maps.Clone(labels)
	}
}

// WithMutators registers functions applied to the built service object
// right before creation, for adjustments the options do not cover.
func WithMutators(mutators ...func(*corev1.Service)) ConfigOption {
	return func(c *Config) {
		c.mutators = append(c.mutators, mutators...)
	}
}

// Name returns the service name.
func (c Config) Name() string { return c.name }

// Port returns the service port.
func (c Config) Port() int { return c.port }

// build assembles the service object common to all variants and runs the
// registered mutators.
func (c Config) build(serviceType corev1.ServiceType, selector map[string]string) *corev1.Service {
	labels := make(map[string]string, len(c.labels)+1)
	maps.Copy(labels, c.labels)
	labels[cluster.LabelManagedBy] = cluster.ManagedByValue

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:   c.name,
			Labels: labels,
		},
		Spec: corev1.ServiceSpec{
			Type:     serviceType,
			Selector: maps.Clone(selector),
			Ports: []corev1.ServicePort{
				{
					Port:       int32(c.port),
					TargetPort: intstr.FromInt32(int32(c.targetPort)),
				},
			},
		},
	}
	for _, mutate := range c.mutators {
		mutate(service)
	}
	return service
}
