package service

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
)

// base carries the state and API plumbing shared by the concrete service
// variants.
type base struct {
	config Config

	mu     sync.Mutex
	state  State
	handle *corev1.Service
}

func (b *base) Name() string { return b.config.name }

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) Handle() *corev1.Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

func (b *base) createService(ctx context.Context, c *cluster.Cluster, namespace string, service *corev1.Service) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateUncreated {
		return fmt.Errorf("creating service %q: %w", b.config.name, ErrAlreadyCreated)
	}

	created, err := c.Client().CoreV1().Services(namespace).Create(ctx, service, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("creating service %q: %w", b.config.name, err)
	}
	b.handle = created
	b.state = StateCreated
	core.Logger().Debug("created service", "name", b.config.name, "namespace", namespace, "type", service.Spec.Type)
	return nil
}

func (b *base) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateCreated {
		return nil
	}

	err := c.Client().CoreV1().Services(namespace).Delete(ctx, b.config.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting service %q: %w", b.config.name, err)
	}
	b.state = StateDeleted
	core.Logger().Debug("deleted service", "name", b.config.name, "namespace", namespace)
	return nil
}
