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

// ConfigMap projects configuration files into the workload's container
// from a ConfigMap created alongside it.
type ConfigMap struct {
	base
	data      map[string]string
	mountPath string
}

var _ Manager = (*ConfigMap)(nil)

// NewConfigMap returns a ConfigMap storage manager creating a ConfigMap
// with the given data and mounting it at mountPath. Panics if name or
// mountPath is empty.
func NewConfigMap(name string, data map[string]string, mountPath string) *ConfigMap {
	if name == "" {
		panic("testpods: storage name must not be empty")
	}
	if mountPath == "" {
		panic("testpods: mount path must not be empty")
	}
	return &ConfigMap{
		base:      base{name: name},
		data:      maps.Clone(data),
		mountPath: mountPath,
	}
}

func (s *ConfigMap) Kind() string { return "config-map" }

func (s *ConfigMap) Create(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if err := s.markCreated(); err != nil {
		return fmt.Errorf("creating configmap %q: %w", s.name, err)
	}

	configMap := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: s.name,
			Labels: map[string]string{
				cluster.LabelManagedBy: cluster.ManagedByValue,
			},
		},
		Data: maps.Clone(s.data),
	}
	if _, err := c.Client().CoreV1().ConfigMaps(namespace).Create(ctx, configMap, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating configmap %q: %w", s.name, err)
	}
	core.Logger().Debug("created configmap", "name", s.name, "namespace", namespace)
	return nil
}

func (s *ConfigMap) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	if !s.markDeleted() {
		return nil
	}

	err := c.Client().CoreV1().ConfigMaps(namespace).Delete(ctx, s.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting configmap %q: %w", s.name, err)
	}
	core.Logger().Debug("deleted configmap", "name", s.name, "namespace", namespace)
	return nil
}

func (s *ConfigMap) Volumes() []corev1.Volume {
	return []corev1.Volume{
		{
			Name: s.name,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: s.name},
				},
			},
		},
	}
}

func (s *ConfigMap) Mounts() []corev1.VolumeMount {
	return []corev1.VolumeMount{
		{Name: s.name, MountPath: s.mountPath, ReadOnly: true},
	}
}

func (s *ConfigMap) ClaimTemplates() []corev1.PersistentVolumeClaim { return nil }
