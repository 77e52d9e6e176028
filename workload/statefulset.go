package workload

import (
	"context"
	"fmt"
	"sync"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
)

// StatefulSetOption adjusts a StatefulSet manager during construction.
type StatefulSetOption func(*StatefulSet)

// WithServiceName sets the governing headless service name used for stable
// per-replica DNS. Defaults to the workload name. Panics if name is empty.
func WithServiceName(name string) StatefulSetOption {
	if name == "" {
		panic("testpods: service name must not be empty")
	}
	return func(s *StatefulSet) {
		s.serviceName = name
	}
}

// WithClaimTemplates sets persistent volume claim templates cloned per
// replica.
func WithClaimTemplates(templates ...corev1.PersistentVolumeClaim) StatefulSetOption {
	return func(s *StatefulSet) {
		s.claimTemplates = append(s.claimTemplates, templates...)
	}
}

// StatefulSet manages a workload with stable per-replica identity and
// storage, backed by an apps/v1 StatefulSet.
type StatefulSet struct {
	config         Config
	serviceName    string
	claimTemplates []corev1.PersistentVolumeClaim

	mu     sync.Mutex
	state  State
	handle *appsv1.StatefulSet
}

var _ Manager = (*StatefulSet)(nil)

// NewStatefulSet returns an unstarted StatefulSet manager for the given
// config.
func NewStatefulSet(config Config, opts ...StatefulSetOption) *StatefulSet {
	s := &StatefulSet{
		config:      config,
		serviceName: config.name,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StatefulSet) Name() string { return s.config.name }

func (s *StatefulSet) Kind() string { return "statefulset" }

// ServiceName returns the governing headless service name, needed by
// callers wiring up per-replica DNS.
func (s *StatefulSet) ServiceName() string { return s.serviceName }

func (s *StatefulSet) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the StatefulSet as created by the cluster, or nil before
// Create.
func (s *StatefulSet) Handle() *appsv1.StatefulSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *StatefulSet) Create(ctx context.Context, c *cluster.Cluster, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUncreated {
		return fmt.Errorf("creating statefulset %q: %w", s.config.name, ErrAlreadyCreated)
	}

	statefulSet := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:   s.config.name,
			Labels: s.config.Labels(),
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    &s.config.replicas,
			ServiceName: s.serviceName,
			Selector: &metav1.LabelSelector{
				MatchLabels: s.config.Selector(),
			},
			Template:             s.config.podTemplate(),
			VolumeClaimTemplates: s.claimTemplates,
		},
	}

	created, err := c.Client().AppsV1().StatefulSets(namespace).Create(ctx, statefulSet, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("creating statefulset %q: %w", s.config.name, err)
	}
	s.handle = created
	s.state = StateCreated
	core.Logger().Debug("created statefulset", "name", s.config.name, "namespace", namespace)
	return nil
}

func (s *StatefulSet) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return nil
	}

	err := c.Client().AppsV1().StatefulSets(namespace).Delete(ctx, s.config.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting statefulset %q: %w", s.config.name, err)
	}
	s.state = StateDeleted
	core.Logger().Debug("deleted statefulset", "name", s.config.name, "namespace", namespace)
	return nil
}

func (s *StatefulSet) Running(ctx context.Context, c *cluster.Cluster, namespace string) (bool, error) {
	statefulSet, err := c.Client().AppsV1().StatefulSets(namespace).Get(ctx, s.config.name, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("getting statefulset %q: %w", s.config.name, err)
	}
	return statefulSet.Status.ReadyReplicas == s.config.replicas, nil
}
