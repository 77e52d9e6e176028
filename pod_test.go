package testpods

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/service"
	"github.com/giantswarm/testpods/storage"
	"github.com/giantswarm/testpods/wait"
	"github.com/giantswarm/testpods/workload"
)

// staticAccess resolves every endpoint to a fixed loopback address and
// counts resolutions, so tests can assert accessors never re-probe.
type staticAccess struct {
	mu    sync.Mutex
	calls int
}

func (a *staticAccess) Endpoint(_ context.Context, _ *cluster.Cluster, _, _ string, port int) (cluster.HostPort, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return cluster.HostPort{Host: "127.0.0.1", Port: 30000 + port}, nil
}

func (a *staticAccess) Release(_, _ string) error { return nil }

func (a *staticAccess) endpointCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// immediateReady skips readiness polling; fake clusters never run pods.
type immediateReady struct{}

func (immediateReady) WaitUntilReady(context.Context, wait.Target) error { return nil }

func testCluster(t *testing.T) (*cluster.Cluster, *fake.Clientset, *staticAccess) {
	t.Helper()

	clientset := fake.NewClientset()
	access := &staticAccess{}
	c := cluster.New(clientset, nil, cluster.WithAccessStrategy(access))
	return c, clientset, access
}

func TestGenericPodStart(t *testing.T) {
	t.Parallel()

	c, clientset, _ := testCluster(t)
	pod := NewGenericPod("postgres:16",
		WithPort(5432),
		WithCluster(c),
		WithWaitStrategy(immediateReady{}),
	)

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	t.Cleanup(func() { pod.Stop(context.Background()) })

	if got := pod.State(); got != StateReady {
		t.Errorf("State() = %v, want %v", got, StateReady)
	}
	namespace := pod.Namespace()
	if !strings.HasPrefix(namespace, "testpods-postgres-") {
		t.Errorf("Namespace() = %q, want a generated testpods-postgres- name", namespace)
	}

	if _, err := clientset.AppsV1().Deployments(namespace).Get(context.Background(), "postgres", metav1.GetOptions{}); err != nil {
		t.Errorf("deployment missing: %v", err)
	}
	svc, err := clientset.CoreV1().Services(namespace).Get(context.Background(), "postgres", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("default service missing: %v", err)
	}
	if got := svc.Spec.Ports[0].Port; got != 5432 {
		t.Errorf("service port = %d, want 5432", got)
	}

	host, err := pod.ExternalHost()
	if err != nil {
		t.Fatalf("ExternalHost() = %v, want nil", err)
	}
	if host != "127.0.0.1" {
		t.Errorf("ExternalHost() = %q, want %q", host, "127.0.0.1")
	}
	port, err := pod.ExternalPort()
	if err != nil {
		t.Fatalf("ExternalPort() = %v, want nil", err)
	}
	if port != 35432 {
		t.Errorf("ExternalPort() = %d, want 35432", port)
	}

	internal, err := pod.InternalHost()
	if err != nil {
		t.Fatalf("InternalHost() = %v, want nil", err)
	}
	if want := "postgres." + namespace + ".svc.cluster.local"; internal != want {
		t.Errorf("InternalHost() = %q, want %q", internal, want)
	}
}

func TestStatefulPodLifecycleOrder(t *testing.T) {
	t.Parallel()

	c, clientset, _ := testCluster(t)
	pod := NewStatefulPod("apache/kafka:3.8.0",
		WithPort(9092),
		WithStorage(storage.NewPersistent("kafka", "1Gi", storage.AsClaimTemplate())),
		WithCluster(c),
		WithNamespace("kafka-test"),
		WithWaitStrategy(immediateReady{}),
	)

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}

	type step struct{ verb, resource, name string }
	var created []step
	for _, action := range clientset.Actions() {
		create, ok := action.(k8stesting.CreateAction)
		if !ok {
			continue
		}
		name := create.GetObject().(interface{ GetName() string }).GetName()
		created = append(created, step{"create", action.GetResource().Resource, name})
	}
	wantCreated := []step{
		{"create", "namespaces", "kafka-test"},
		{"create", "statefulsets", "kafka"},
		{"create", "services", "kafka"},
		{"create", "services", "kafka-headless"},
	}
	if len(created) != len(wantCreated) {
		t.Fatalf("created %v, want %v", created, wantCreated)
	}
	for i := range wantCreated {
		if created[i] != wantCreated[i] {
			t.Errorf("created[%d] = %v, want %v", i, created[i], wantCreated[i])
		}
	}

	statefulSet, err := clientset.AppsV1().StatefulSets("kafka-test").Get(context.Background(), "kafka", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting statefulset: %v", err)
	}
	if got := statefulSet.Spec.ServiceName; got != "kafka-headless" {
		t.Errorf("serviceName = %q, want %q", got, "kafka-headless")
	}
	if got := len(statefulSet.Spec.VolumeClaimTemplates); got != 1 {
		t.Errorf("claim templates = %d, want 1", got)
	}

	clientset.ClearActions()
	if err := pod.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}

	var deleted []step
	for _, action := range clientset.Actions() {
		del, ok := action.(k8stesting.DeleteAction)
		if !ok {
			continue
		}
		deleted = append(deleted, step{"delete", action.GetResource().Resource, del.GetName()})
	}
	wantDeleted := []step{
		{"delete", "services", "kafka-headless"},
		{"delete", "services", "kafka"},
		{"delete", "statefulsets", "kafka"},
		{"delete", "namespaces", "kafka-test"},
	}
	if len(deleted) != len(wantDeleted) {
		t.Fatalf("deleted %v, want %v", deleted, wantDeleted)
	}
	for i := range wantDeleted {
		if deleted[i] != wantDeleted[i] {
			t.Errorf("deleted[%d] = %v, want %v", i, deleted[i], wantDeleted[i])
		}
	}
	if got := pod.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
}

func TestExternalAccessBeforeReady(t *testing.T) {
	t.Parallel()

	c, _, access := testCluster(t)
	pod := NewGenericPod("redis:7",
		WithPort(6379),
		WithCluster(c),
		WithWaitStrategy(immediateReady{}),
	)

	_, err := pod.ExternalHost()
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("ExternalHost() before start = %v, want %v", err, ErrNotStarted)
	}
	if !strings.Contains(err.Error(), "redis") {
		t.Errorf("error %q does not name the pod", err)
	}

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	t.Cleanup(func() { pod.Stop(context.Background()) })

	resolved := access.endpointCalls()
	for range 3 {
		if _, err := pod.ExternalHost(); err != nil {
			t.Fatalf("ExternalHost() = %v, want nil", err)
		}
		if _, err := pod.ExternalPort(); err != nil {
			t.Fatalf("ExternalPort() = %v, want nil", err)
		}
	}
	if got := access.endpointCalls(); got != resolved {
		t.Errorf("accessors re-resolved the endpoint: %d calls, want %d", got, resolved)
	}
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	c, _, _ := testCluster(t)
	pod := NewGenericPod("redis:7",
		WithPort(6379),
		WithCluster(c),
		WithWaitStrategy(immediateReady{}),
	)

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	t.Cleanup(func() { pod.Stop(context.Background()) })

	err := pod.Start(context.Background())
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	pod := NewGenericPod("redis:7", WithPort(6379))
	err := pod.Stop(context.Background())
	if !errors.Is(err, ErrNotStoppable) {
		t.Errorf("Stop() before start = %v, want %v", err, ErrNotStoppable)
	}
}

func TestStartFailureCleansUp(t *testing.T) {
	t.Parallel()

	c, clientset, _ := testCluster(t)
	clientset.PrependReactor("create", "deployments", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("quota exceeded")
	})

	pod := NewGenericPod("redis:7",
		WithPort(6379),
		WithCluster(c),
		WithNamespace("doomed"),
		WithWaitStrategy(immediateReady{}),
	)

	err := pod.Start(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Start() = %v, want *StartError", err)
	}
	if startErr.Pod != "redis" {
		t.Errorf("StartError.Pod = %q, want %q", startErr.Pod, "redis")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error %q does not include the cause", err)
	}
	if got := pod.State(); got != StateFailed {
		t.Errorf("State() = %v, want %v", got, StateFailed)
	}

	// The namespace created during the failed start is gone again.
	if _, err := clientset.CoreV1().Namespaces().Get(context.Background(), "doomed", metav1.GetOptions{}); err == nil {
		t.Error("namespace still present after failed start")
	}

	// Stop is valid from the failed state and finds nothing left to do.
	if err := pod.Stop(context.Background()); err != nil {
		t.Errorf("Stop() after failed start = %v, want nil", err)
	}
}

func TestExplicitServicesReplaceDefaults(t *testing.T) {
	t.Parallel()

	c, clientset, _ := testCluster(t)
	pod := NewGenericPod("web:latest",
		WithName("web"),
		WithPort(80),
		WithServices(service.NewNodePort(service.NewConfig("web", 80), service.WithStaticPort(30080))),
		WithCluster(c),
		WithNamespace("web-test"),
		WithWaitStrategy(immediateReady{}),
	)

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	t.Cleanup(func() { pod.Stop(context.Background()) })

	svc, err := clientset.CoreV1().Services("web-test").Get(context.Background(), "web", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting service: %v", err)
	}
	if got := svc.Spec.Ports[0].NodePort; got != 30080 {
		t.Errorf("node port = %d, want exactly the configured 30080", got)
	}
}

func TestWorkloadOptionsCustomizeContainers(t *testing.T) {
	t.Parallel()

	c, clientset, _ := testCluster(t)
	pod := NewGenericPod("app:1",
		WithName("app"),
		WithPort(8080),
		WithWorkloadOptions(
			workload.WithInitContainers(corev1.Container{Name: "migrate", Image: "app:1"}),
			workload.WithSidecars(corev1.Container{Name: "proxy", Image: "envoy:1.30"}),
			workload.WithReadinessProbe(workload.TCPProbe(8080)),
			workload.WithResourceLimits("", "256Mi"),
		),
		WithCluster(c),
		WithNamespace("custom"),
		WithWaitStrategy(immediateReady{}),
	)

	if err := pod.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	t.Cleanup(func() { pod.Stop(context.Background()) })

	deployment, err := clientset.AppsV1().Deployments("custom").Get(context.Background(), "app", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting deployment: %v", err)
	}
	spec := deployment.Spec.Template.Spec
	if got := len(spec.InitContainers); got != 1 {
		t.Fatalf("init containers = %d, want 1", got)
	}
	if got := len(spec.Containers); got != 2 {
		t.Fatalf("containers = %d, want 2", got)
	}
	main := spec.Containers[0]
	if main.Name != "app" || spec.Containers[1].Name != "proxy" {
		t.Errorf("container order = [%s, %s], want [app, proxy]", main.Name, spec.Containers[1].Name)
	}
	if main.ReadinessProbe == nil || main.ReadinessProbe.TCPSocket == nil {
		t.Error("main container has no TCP readiness probe")
	}
	if _, ok := main.Resources.Limits[corev1.ResourceMemory]; !ok {
		t.Error("main container has no memory limit")
	}
}

func TestDeriveNameFromImage(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		image string
		want  string
	}{
		"bare image":    {image: "postgres", want: "postgres"},
		"with tag":      {image: "postgres:16", want: "postgres"},
		"with path":     {image: "apache/kafka:3.8.0", want: "kafka"},
		"with registry": {image: "ghcr.io/acme/widget:v2", want: "widget"},
		"with digest":   {image: "redis@sha256:deadbeef", want: "redis"},
		"upper case":    {image: "acme/Widget:v2", want: "widget"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := deriveNameFromImage(tc.image); got != tc.want {
				t.Errorf("deriveNameFromImage(%q) = %q, want %q", tc.image, got, tc.want)
			}
		})
	}
}

func TestPodOptionValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]func(){
		"empty image":       func() { NewGenericPod("") },
		"empty name":        func() { WithName("") },
		"port zero":         func() { WithPort(0) },
		"bad extra port":    func() { WithAdditionalPorts(80, 0) },
		"zero replicas":     func() { WithReplicas(0) },
		"nil wait strategy": func() { WithWaitStrategy(nil) },
		"empty namespace":   func() { WithNamespace("") },
		"nil cluster":       func() { WithCluster(nil) },
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}
