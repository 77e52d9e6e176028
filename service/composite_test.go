package service

import (
	"context"
	"errors"
	"testing"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/giantswarm/testpods/cluster"
)

func TestCompositeAccessors(t *testing.T) {
	t.Parallel()

	headless := NewHeadless(NewConfig("kafka-headless", 9092))
	nodePort := NewNodePort(NewConfig("kafka", 9092), WithStaticPort(30092))
	composite := NewComposite(headless, nodePort)

	if got := composite.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
	if got := composite.Manager(0); got != Manager(headless) {
		t.Errorf("Manager(0) = %v, want the headless manager", got)
	}
	if got := composite.Manager(-1); got != nil {
		t.Errorf("Manager(-1) = %v, want nil", got)
	}
	if got := composite.Manager(2); got != nil {
		t.Errorf("Manager(2) = %v, want nil", got)
	}
	if got := composite.Service(5); got != nil {
		t.Errorf("Service(5) = %v, want nil", got)
	}
}

func TestCompositeCreateOrder(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset()
	c := cluster.New(clientset, nil)
	composite := NewComposite(
		NewClusterIP(NewConfig("kafka", 9092)),
		NewHeadless(NewConfig("kafka-headless", 9092)),
	)

	if err := composite.Create(context.Background(), c, "testing", testSelector); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	var created []string
	for _, action := range clientset.Actions() {
		if create, ok := action.(k8stesting.CreateAction); ok {
			created = append(created, create.GetObject().(interface{ GetName() string }).GetName())
		}
	}
	want := []string{"kafka", "kafka-headless"}
	if len(created) != len(want) {
		t.Fatalf("created %v, want %v", created, want)
	}
	for i := range want {
		if created[i] != want[i] {
			t.Errorf("created[%d] = %q, want %q", i, created[i], want[i])
		}
	}
}

func TestCompositeDeleteReverseOrder(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset()
	c := cluster.New(clientset, nil)
	composite := NewComposite(
		NewClusterIP(NewConfig("kafka", 9092)),
		NewHeadless(NewConfig("kafka-headless", 9092)),
	)

	if err := composite.Create(context.Background(), c, "testing", testSelector); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	clientset.ClearActions()

	if err := composite.Delete(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Delete() = %v, want nil", err)
	}

	var deleted []string
	for _, action := range clientset.Actions() {
		if del, ok := action.(k8stesting.DeleteAction); ok {
			deleted = append(deleted, del.GetName())
		}
	}
	want := []string{"kafka-headless", "kafka"}
	if len(deleted) != len(want) {
		t.Fatalf("deleted %v, want %v", deleted, want)
	}
	for i := range want {
		if deleted[i] != want[i] {
			t.Errorf("deleted[%d] = %q, want %q", i, deleted[i], want[i])
		}
	}
}

func TestCompositeCreateFailsFast(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset()
	clientset.PrependReactor("create", "services", func(action k8stesting.Action) (bool, runtime.Object, error) {
		create := action.(k8stesting.CreateAction)
		if create.GetObject().(interface{ GetName() string }).GetName() == "broken" {
			return true, nil, errors.New("admission denied")
		}
		return false, nil, nil
	})
	c := cluster.New(clientset, nil)

	first := NewClusterIP(NewConfig("ok", 80))
	second := NewClusterIP(NewConfig("broken", 80))
	third := NewClusterIP(NewConfig("never", 80))
	composite := NewComposite(first, second, third)

	err := composite.Create(context.Background(), c, "testing", testSelector)
	if err == nil {
		t.Fatal("Create() = nil, want error")
	}
	if got := first.State(); got != StateCreated {
		t.Errorf("first manager state = %v, want %v", got, StateCreated)
	}
	if got := third.State(); got != StateUncreated {
		t.Errorf("third manager state = %v, want %v", got, StateUncreated)
	}

	// Delete cleans up the partially created state.
	if err := composite.Delete(context.Background(), c, "testing"); err != nil {
		t.Errorf("Delete() = %v, want nil", err)
	}
	if got := first.State(); got != StateDeleted {
		t.Errorf("first manager state after Delete = %v, want %v", got, StateDeleted)
	}
}

func TestCompositeEmpty(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	composite := NewComposite()

	if got := composite.Size(); got != 0 {
		t.Errorf("Size() = %d, want 0", got)
	}
	if got := composite.Name(); got != "" {
		t.Errorf("Name() = %q, want empty", got)
	}
	if err := composite.Create(context.Background(), c, "testing", testSelector); err != nil {
		t.Errorf("Create() = %v, want nil", err)
	}
	if err := composite.Delete(context.Background(), c, "testing"); err != nil {
		t.Errorf("Delete() = %v, want nil", err)
	}
}
