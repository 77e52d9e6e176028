package cluster

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Namespace is a Kubernetes namespace owned by a test run. Creation is
// idempotent; deletion tolerates an already-absent namespace.
type Namespace struct {
	cluster *Cluster
	name    string

	mu      sync.Mutex
	ensured bool
	created bool
}

// NewNamespace binds a namespace name to a cluster without touching the
// API. Panics if c is nil or name is empty.
func NewNamespace(c *Cluster, name string) *Namespace {
	if c == nil {
		panic("testpods: cluster must not be nil")
	}
	if name == "" {
		panic("testpods: namespace name must not be empty")
	}
	return &Namespace{cluster: c, name: name}
}

// EnsureCreated creates the namespace if it does not already exist. A
// namespace created here carries the managed-by label so leftover instances
// can be found by the purge helper; a pre-existing namespace is adopted
// as-is and stays out of Delete's reach.
func (n *Namespace) EnsureCreated(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ensured {
		return nil
	}

	_, err := n.cluster.Client().CoreV1().Namespaces().Get(ctx, n.name, metav1.GetOptions{})
	switch {
	case err == nil:
		n.ensured = true
		return nil
	case !apierrors.IsNotFound(err):
		return fmt.Errorf("get namespace %s: %w", n.name, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   n.name,
			Labels: map[string]string{LabelManagedBy: ManagedByValue},
		},
	}
	if _, err := n.cluster.Client().CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			n.ensured = true
			return nil
		}
		return fmt.Errorf("create namespace %s: %w", n.name, err)
	}
	n.ensured = true
	n.created = true
	return nil
}

// Delete removes the namespace if this instance created it. Deleting an
// adopted or already-gone namespace is a no-op.
func (n *Namespace) Delete(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.created {
		return nil
	}
	err := n.cluster.Client().CoreV1().Namespaces().Delete(ctx, n.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete namespace %s: %w", n.name, err)
	}
	n.created = false
	return nil
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// Cluster returns the cluster this namespace belongs to.
func (n *Namespace) Cluster() *Cluster {
	return n.cluster
}

// Created reports whether this instance created the namespace, as opposed
// to adopting one that already existed.
func (n *Namespace) Created() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.created
}
