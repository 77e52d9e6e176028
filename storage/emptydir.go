package storage

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// EmptyDir mounts ephemeral scratch space that lives and dies with the
// pod. It needs no cluster resources of its own.
type EmptyDir struct {
	base
	mountPath string
}

var _ Manager = (*EmptyDir)(nil)

// NewEmptyDir returns an EmptyDir storage manager mounting a scratch
// volume with the given name at mountPath. Panics if either is empty.
func NewEmptyDir(name, mountPath string) *EmptyDir {
	if name == "" {
		panic("testpods: storage name must not be empty")
	}
	if mountPath == "" {
		panic("testpods: mount path must not be empty")
	}
	return &EmptyDir{base: base{name: name}, mountPath: mountPath}
}

func (s *EmptyDir) Kind() string { return "empty-dir" }

func (s *EmptyDir) Create(_ context.Context, _ *cluster.Cluster, _ string) error {
	if err := s.markCreated(); err != nil {
		return err
	}
	return nil
}

func (s *EmptyDir) Delete(_ context.Context, _ *cluster.Cluster, _ string) error {
	s.markDeleted()
	return nil
}

func (s *EmptyDir) Volumes() []corev1.Volume {
	return []corev1.Volume{
		{
			Name: s.name,
			VolumeSource: corev1.VolumeSource{
				EmptyDir: &corev1.EmptyDirVolumeSource{},
			},
		},
	}
}

func (s *EmptyDir) Mounts() []corev1.VolumeMount {
	return []corev1.VolumeMount{
		{Name: s.name, MountPath: s.mountPath},
	}
}

func (s *EmptyDir) ClaimTemplates() []corev1.PersistentVolumeClaim { return nil }
