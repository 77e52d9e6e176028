package workload

import (
	"context"
	"errors"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/giantswarm/testpods/cluster"
)

func TestDeploymentCreate(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	config := NewConfig("postgres", "postgres:16",
		WithPorts(5432),
		WithEnv(map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_DB": "app"}),
		WithLabels(map[string]string{"team": "data"}),
	)
	manager := NewDeployment(config)

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	if got := manager.State(); got != StateCreated {
		t.Errorf("State() = %v, want %v", got, StateCreated)
	}

	deployment, err := c.Client().AppsV1().Deployments("testing").Get(context.Background(), "postgres", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting deployment: %v", err)
	}
	if got := deployment.Labels[cluster.LabelApp]; got != "postgres" {
		t.Errorf("app label = %q, want %q", got, "postgres")
	}
	if got := deployment.Labels[cluster.LabelManagedBy]; got != cluster.ManagedByValue {
		t.Errorf("managed-by label = %q, want %q", got, cluster.ManagedByValue)
	}
	if got := deployment.Labels["team"]; got != "data" {
		t.Errorf("team label = %q, want %q", got, "data")
	}
	if got := deployment.Spec.Selector.MatchLabels[cluster.LabelApp]; got != "postgres" {
		t.Errorf("selector = %q, want %q", got, "postgres")
	}
	if got := *deployment.Spec.Replicas; got != 1 {
		t.Errorf("replicas = %d, want 1", got)
	}

	container := deployment.Spec.Template.Spec.Containers[0]
	if container.Image != "postgres:16" {
		t.Errorf("image = %q, want %q", container.Image, "postgres:16")
	}
	if got := container.Ports[0].ContainerPort; got != 5432 {
		t.Errorf("container port = %d, want 5432", got)
	}
	// Env vars are emitted in sorted order so created objects are stable.
	if got := container.Env[0].Name; got != "POSTGRES_DB" {
		t.Errorf("first env var = %q, want %q", got, "POSTGRES_DB")
	}

	if manager.Handle() == nil {
		t.Error("Handle() = nil after Create")
	}
}

func TestDeploymentDoubleCreate(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewDeployment(NewConfig("redis", "redis:7"))

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	err := manager.Create(context.Background(), c, "testing")
	if !errors.Is(err, ErrAlreadyCreated) {
		t.Errorf("second Create() = %v, want %v", err, ErrAlreadyCreated)
	}
}

func TestDeploymentDeleteNeverCreated(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewDeployment(NewConfig("redis", "redis:7"))

	for range 3 {
		if err := manager.Delete(context.Background(), c, "testing"); err != nil {
			t.Fatalf("Delete() = %v, want nil", err)
		}
	}
	if got := manager.State(); got != StateUncreated {
		t.Errorf("State() = %v, want %v", got, StateUncreated)
	}
}

func TestDeploymentDeleteAlreadyGone(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewDeployment(NewConfig("redis", "redis:7"))

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	if err := c.Client().AppsV1().Deployments("testing").Delete(context.Background(), "redis", metav1.DeleteOptions{}); err != nil {
		t.Fatalf("deleting out of band: %v", err)
	}

	if err := manager.Delete(context.Background(), c, "testing"); err != nil {
		t.Errorf("Delete() = %v, want nil for an already absent resource", err)
	}
	if got := manager.State(); got != StateDeleted {
		t.Errorf("State() = %v, want %v", got, StateDeleted)
	}
}

func TestDeploymentRunning(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewDeployment(NewConfig("redis", "redis:7", WithReplicas(2)))

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	running, err := manager.Running(context.Background(), c, "testing")
	if err != nil {
		t.Fatalf("Running() = %v, want nil", err)
	}
	if running {
		t.Error("Running() = true before any replica is ready")
	}

	deployment, err := c.Client().AppsV1().Deployments("testing").Get(context.Background(), "redis", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting deployment: %v", err)
	}
	deployment.Status.ReadyReplicas = 2
	if _, err := c.Client().AppsV1().Deployments("testing").UpdateStatus(context.Background(), deployment, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("updating status: %v", err)
	}

	running, err = manager.Running(context.Background(), c, "testing")
	if err != nil {
		t.Fatalf("Running() = %v, want nil", err)
	}
	if !running {
		t.Error("Running() = false with all replicas ready")
	}
}
