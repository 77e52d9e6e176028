package storage

import (
	"context"
	"fmt"
	"maps"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
)

// Secret projects sensitive files into the workload's container from a
// Secret created alongside it.
type Secret struct {
	base
	data      map[string]string
	mountPath string
}

var _ Manager = (*Secret)(nil)

// NewSecret returns a Secret storage manager creating a Secret with the
// given data and mounting it at mountPath. Panics if name or mountPath is
// empty.
func NewSecret(name string, data map[string]string, mountPath string) *Secret {
	if name == "" {
		panic("testpods: storage name must not be empty")
	}
	if mountPath == "" {
		panic("testpods: mount path must not be empty")
	}
	return &Secret{
		base:      base{name: name},
		data:      maps.Clone(data),
		mountPath: mountPath,
	}
}

func (s *Secret) Kind() string { return "secret" }

func (s *Secret) Create(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if err := s.markCreated(); err != nil {
		return fmt.Errorf("creating secret %q: %w", s.name, err)
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name: s.name,
			Labels: map[string]string{
				cluster.LabelManagedBy: cluster.ManagedByValue,
			},
		},
		StringData: maps.Clone(s.data),
	}
	if _, err := c.Client().CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating secret %q: %w", s.name, err)
	}
	core.Logger().Debug("created secret", "name", s.name, "namespace", namespace)
	return nil
}

func (s *Secret) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if !s.markDeleted() {
		return nil
	}

	err := c.Client().CoreV1().Secrets(namespace).Delete(ctx, s.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting secret %q: %w", s.name, err)
	}
	core.Logger().Debug("deleted secret", "name", s.name, "namespace", namespace)
	return nil
}

func (s *Secret) Volumes() []corev1.Volume {
	return []corev1.Volume{
		{
			Name: s.name,
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{SecretName: s.name},
			},
		},
	}
}

func (s *Secret) Mounts() []corev1.VolumeMount {
	return []corev1.VolumeMount{
		{Name: s.name, MountPath: s.mountPath, ReadOnly: true},
	}
}

func (s *Secret) ClaimTemplates() []corev1.PersistentVolumeClaim { return nil }
