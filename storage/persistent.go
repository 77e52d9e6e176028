package storage

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
)

// Defaults for persistent storage.
const (
	DefaultVolumeName = "data"
	DefaultMountPath  = "/data"
)

// PersistentOption adjusts a Persistent manager during construction.
type PersistentOption func(*Persistent)

// WithVolumeName overrides the volume name. Panics if name is empty.
func WithVolumeName(name string) PersistentOption {
	if name == "" {
		panic("testpods: volume name must not be empty")
	}
	return func(s *Persistent) {
		s.volumeName = name
	}
}

// WithMountPath overrides the mount path. Panics if path is empty.
func WithMountPath(path string) PersistentOption {
	if path == "" {
		panic("testpods: mount path must not be empty")
	}
	return func(s *Persistent) {
		s.mountPath = path
	}
}

// WithStorageClass requests a specific storage class instead of the
// cluster default. Panics if class is empty.
func WithStorageClass(class string) PersistentOption {
	if class == "" {
		panic("testpods: storage class must not be empty")
	}
	return func(s *Persistent) {
		s.storageClass = &class
	}
}

// WithAccessModes overrides the access modes. The default is
// ReadWriteOnce.
func WithAccessModes(modes ...corev1.PersistentVolumeAccessMode) PersistentOption {
	return func(s *Persistent) {
		s.accessModes = modes
	}
}

// AsClaimTemplate switches the manager to template mode for workloads that
// clone one claim per replica. In template mode no standalone claim is
// created; the workload owns the claims through its template.
func AsClaimTemplate() PersistentOption {
	return func(s *Persistent) {
		s.template = true
	}
}

// Persistent provides a persistent volume claim, either as a standalone
// claim shared by the workload's pods or as a per-replica claim template.
type Persistent struct {
	base
	size         resource.Quantity
	volumeName   string
	mountPath    string
	storageClass *string
	accessModes  []corev1.PersistentVolumeAccessMode
	template     bool
}

var _ Manager = (*Persistent)(nil)

// NewPersistent returns a Persistent storage manager for the workload with
// the given name, requesting size (for example "1Gi"). Panics if name is
// empty or size does not parse as a quantity.
func NewPersistent(name, size string, opts ...PersistentOption) *Persistent {
	if name == "" {
		panic("testpods: storage name must not be empty")
	}
	s := &Persistent{
		base:        base{name: name},
		size:        resource.MustParse(size),
		volumeName:  DefaultVolumeName,
		mountPath:   DefaultMountPath,
		accessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Persistent) Kind() string { return "persistent" }

// claimName is the standalone claim's name, distinct from the volume name
// so several workloads can coexist in one namespace.
func (s *Persistent) claimName() string {
	return s.name + "-" + s.volumeName
}

func (s *Persistent) claimSpec() corev1.PersistentVolumeClaimSpec {
	return corev1.PersistentVolumeClaimSpec{
		AccessModes:      s.accessModes,
		StorageClassName: s.storageClass,
		Resources: corev1.VolumeResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceStorage: s.size,
			},
		},
	}
}

func (s *Persistent) Create(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if err := s.markCreated(); err != nil {
		return fmt.Errorf("creating claim %q: %w", s.claimName(), err)
	}
	if s.template {
		return nil
	}

	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name: s.claimName(),
			Labels: map[string]string{
				cluster.LabelApp:       s.name,
				cluster.LabelManagedBy: cluster.ManagedByValue,
			},
		},
		Spec: s.claimSpec(),
	}
	if _, err := c.Client().CoreV1().PersistentVolumeClaims(namespace).Create(ctx, claim, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating claim %q: %w", s.claimName(), err)
	}
	core.Logger().Debug("created claim", "name", s.claimName(), "namespace", namespace)
	return nil
}

func (s *Persistent) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if !s.markDeleted() || s.template {
		return nil
	}

	err := c.Client().CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, s.claimName(), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting claim %q: %w", s.claimName(), err)
	}
	core.Logger().Debug("deleted claim", "name", s.claimName(), "namespace", namespace)
	return nil
}

func (s *Persistent) Volumes() []corev1.Volume {
	if s.template {
		return nil
	}
	return []corev1.Volume{
		{
			Name: s.volumeName,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: s.claimName(),
				},
			},
		},
	}
}

func (s *Persistent) Mounts() []corev1.VolumeMount {
	return []corev1.VolumeMount{
		{Name: s.volumeName, MountPath: s.mountPath},
	}
}

func (s *Persistent) ClaimTemplates() []corev1.PersistentVolumeClaim {
	if !s.template {
		return nil
	}
	return []corev1.PersistentVolumeClaim{
		{
			ObjectMeta: metav1.ObjectMeta{Name: s.volumeName},
			Spec:       s.claimSpec(),
		},
	}
}
