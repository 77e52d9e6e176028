package storage

import (
	"context"
	"errors"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/giantswarm/testpods/cluster"
)

func TestEmptyDir(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewEmptyDir("scratch", "/tmp/scratch")

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	volumes := manager.Volumes()
	if len(volumes) != 1 || volumes[0].EmptyDir == nil {
		t.Fatalf("Volumes() = %v, want one emptyDir volume", volumes)
	}
	mounts := manager.Mounts()
	if len(mounts) != 1 || mounts[0].MountPath != "/tmp/scratch" {
		t.Fatalf("Mounts() = %v, want one mount at /tmp/scratch", mounts)
	}
	if got := manager.ClaimTemplates(); got != nil {
		t.Errorf("ClaimTemplates() = %v, want nil", got)
	}
	if err := manager.Delete(context.Background(), c, "testing"); err != nil {
		t.Errorf("Delete() = %v, want nil", err)
	}
}

func TestPersistentStandalone(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewPersistent("postgres", "1Gi", WithStorageClass("fast"))

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	claim, err := c.Client().CoreV1().PersistentVolumeClaims("testing").Get(context.Background(), "postgres-data", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting claim: %v", err)
	}
	if got := claim.Spec.AccessModes[0]; got != corev1.ReadWriteOnce {
		t.Errorf("access mode = %q, want %q", got, corev1.ReadWriteOnce)
	}
	if got := *claim.Spec.StorageClassName; got != "fast" {
		t.Errorf("storage class = %q, want %q", got, "fast")
	}
	if got := claim.Spec.Resources.Requests[corev1.ResourceStorage]; got.String() != "1Gi" {
		t.Errorf("storage request = %s, want 1Gi", got.String())
	}

	volumes := manager.Volumes()
	if len(volumes) != 1 || volumes[0].PersistentVolumeClaim == nil {
		t.Fatalf("Volumes() = %v, want one claim-backed volume", volumes)
	}
	if got := volumes[0].PersistentVolumeClaim.ClaimName; got != "postgres-data" {
		t.Errorf("claim name = %q, want %q", got, "postgres-data")
	}
	if got := manager.Mounts()[0].MountPath; got != DefaultMountPath {
		t.Errorf("mount path = %q, want %q", got, DefaultMountPath)
	}
	if got := manager.ClaimTemplates(); got != nil {
		t.Errorf("ClaimTemplates() = %v, want nil in standalone mode", got)
	}

	if err := manager.Delete(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Delete() = %v, want nil", err)
	}
	if _, err := c.Client().CoreV1().PersistentVolumeClaims("testing").Get(context.Background(), "postgres-data", metav1.GetOptions{}); err == nil {
		t.Error("claim still present after Delete")
	}
}

func TestPersistentTemplateMode(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewPersistent("kafka", "10Gi", AsClaimTemplate())

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	// Template mode creates nothing; the workload owns the claims.
	claims, err := c.Client().CoreV1().PersistentVolumeClaims("testing").List(context.Background(), metav1.ListOptions{})
	if err != nil {
		t.Fatalf("listing claims: %v", err)
	}
	if len(claims.Items) != 0 {
		t.Errorf("found %d standalone claims in template mode, want 0", len(claims.Items))
	}

	templates := manager.ClaimTemplates()
	if len(templates) != 1 {
		t.Fatalf("ClaimTemplates() returned %d templates, want 1", len(templates))
	}
	if got := templates[0].Name; got != DefaultVolumeName {
		t.Errorf("template name = %q, want %q", got, DefaultVolumeName)
	}
	if got := manager.Volumes(); got != nil {
		t.Errorf("Volumes() = %v, want nil in template mode", got)
	}
	if got := manager.Mounts()[0].Name; got != DefaultVolumeName {
		t.Errorf("mount name = %q, want %q", got, DefaultVolumeName)
	}
}

func TestConfigMapStorage(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewConfigMap("postgres-init", map[string]string{"init.sql": "CREATE DATABASE app;"}, "/docker-entrypoint-initdb.d")

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	configMap, err := c.Client().CoreV1().ConfigMaps("testing").Get(context.Background(), "postgres-init", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting configmap: %v", err)
	}
	if got := configMap.Data["init.sql"]; got != "CREATE DATABASE app;" {
		t.Errorf("data = %q, want the init script", got)
	}
	if !manager.Mounts()[0].ReadOnly {
		t.Error("configmap mount is not read-only")
	}
}

func TestSecretStorage(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	manager := NewSecret("postgres-creds", map[string]string{"password": "secret"}, "/etc/creds")

	if err := manager.Create(context.Background(), c, "testing"); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	secret, err := c.Client().CoreV1().Secrets("testing").Get(context.Background(), "postgres-creds", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("getting secret: %v", err)
	}
	if got := secret.StringData["password"]; got != "secret" {
		t.Errorf("data = %q, want %q", got, "secret")
	}
	if volumes := manager.Volumes(); volumes[0].Secret == nil || volumes[0].Secret.SecretName != "postgres-creds" {
		t.Errorf("Volumes() = %v, want a secret volume", volumes)
	}
}

func TestDoubleCreate(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	managers := map[string]Manager{
		"empty-dir":  NewEmptyDir("scratch", "/tmp/scratch"),
		"persistent": NewPersistent("postgres", "1Gi"),
		"config-map": NewConfigMap("cfg", nil, "/etc/cfg"),
		"secret":     NewSecret("creds", nil, "/etc/creds"),
		"composite":  NewComposite(NewEmptyDir("scratch", "/tmp/scratch")),
	}

	for name, manager := range managers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if err := manager.Create(context.Background(), c, "testing-"+name); err != nil {
				t.Fatalf("Create() = %v, want nil", err)
			}
			err := manager.Create(context.Background(), c, "testing-"+name)
			if !errors.Is(err, ErrAlreadyCreated) {
				t.Errorf("second Create() = %v, want %v", err, ErrAlreadyCreated)
			}
		})
	}
}

func TestDeleteNeverCreated(t *testing.T) {
	t.Parallel()

	c := cluster.New(fake.NewClientset(), nil)
	managers := map[string]Manager{
		"empty-dir":  NewEmptyDir("scratch", "/tmp/scratch"),
		"persistent": NewPersistent("postgres", "1Gi"),
		"config-map": NewConfigMap("cfg", nil, "/etc/cfg"),
		"secret":     NewSecret("creds", nil, "/etc/creds"),
		"composite":  NewComposite(),
	}

	for name, manager := range managers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for range 3 {
				if err := manager.Delete(context.Background(), c, "testing"); err != nil {
					t.Fatalf("Delete() = %v, want nil", err)
				}
			}
		})
	}
}

func TestCompositeAggregates(t *testing.T) {
	t.Parallel()

	composite := NewComposite(
		NewEmptyDir("scratch", "/tmp/scratch"),
		NewPersistent("kafka", "10Gi", AsClaimTemplate()),
		NewConfigMap("cfg", nil, "/etc/cfg"),
	)

	if got := composite.Size(); got != 3 {
		t.Errorf("Size() = %d, want 3", got)
	}
	if got := composite.Manager(3); got != nil {
		t.Errorf("Manager(3) = %v, want nil", got)
	}
	if got := len(composite.Volumes()); got != 2 {
		t.Errorf("Volumes() returned %d volumes, want 2", got)
	}
	if got := len(composite.Mounts()); got != 3 {
		t.Errorf("Mounts() returned %d mounts, want 3", got)
	}
	if got := len(composite.ClaimTemplates()); got != 1 {
		t.Errorf("ClaimTemplates() returned %d templates, want 1", got)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]func(){
		"empty dir name":       func() { NewEmptyDir("", "/tmp") },
		"empty mount path":     func() { NewEmptyDir("scratch", "") },
		"empty claim name":     func() { NewPersistent("", "1Gi") },
		"bad size":             func() { NewPersistent("postgres", "lots") },
		"empty volume name":    func() { WithVolumeName("") },
		"empty storage class":  func() { WithStorageClass("") },
		"empty configmap path": func() { NewConfigMap("cfg", nil, "") },
		"empty secret name":    func() { NewSecret("", nil, "/etc/creds") },
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
