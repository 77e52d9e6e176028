package workload

import (
	"context"
	"fmt"
	"sync"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
)

// Deployment manages a stateless workload backed by an apps/v1 Deployment.
type Deployment struct {
	config Config

	mu     sync.Mutex
	state  State
	handle *appsv1.Deployment
}

var _ Manager = (*Deployment)(nil)

// NewDeployment returns an unstarted Deployment manager for the given
// config.
func NewDeployment(config Config) *Deployment {
	return &Deployment{config: config}
}

func (d *Deployment) Name() string { return d.config.name }

func (d *Deployment) Kind() string { return "deployment" }

func (d *Deployment) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Handle returns the Deployment as created by the cluster, or nil before
// Create.
func (d *Deployment) Handle() *appsv1.Deployment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

func (d *Deployment) Create(ctx context.Context, c *cluster.Cluster, namespace string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateUncreated {
		return fmt.Errorf("creating deployment %q: %w", d.config.name, ErrAlreadyCreated)
	}

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:   d.config.name,
			Labels: d.config.Labels(),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &d.config.replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: d.config.Selector(),
			},
			Template: d.config.podTemplate(),
		},
	}

	created, err := c.Client().AppsV1().Deployments(namespace).Create(ctx, deployment, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("creating deployment %q: %w", d.config.name, err)
	}
	d.handle = created
	d.state = StateCreated
	core.Logger().Debug("created deployment", "name", d.config.name, "namespace", namespace)
	return nil
}

func (d *Deployment) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateCreated {
		return nil
	}

	err := c.Client().AppsV1().Deployments(namespace).Delete(ctx, d.config.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting deployment %q: %w", d.config.name, err)
	}
	d.state = StateDeleted
	core.Logger().Debug("deleted deployment", "name", d.config.name, "namespace", namespace)
	return nil
}

func (d *Deployment) Running(ctx context.Context, c *cluster.Cluster, namespace string) (bool, error) {
	deployment, err := c.Client().AppsV1().Deployments(namespace).Get(ctx, d.config.name, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("getting deployment %q: %w", d.config.name, err)
	}
	return deployment.Status.ReadyReplicas == d.config.replicas, nil
}
