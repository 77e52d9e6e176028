package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/testpods/cluster"
)

// Composite groups several exposure managers for one workload, creating
// them in declaration order and deleting them in reverse. An empty
// composite is valid and all operations are no-ops.
type Composite struct {
	managers []Manager

	mu      sync.Mutex
	created bool
}

var _ Manager = (*Composite)(nil)

// NewComposite returns a composite over the given managers. The composite
// owns them exclusively.
func NewComposite(managers ...Manager) *Composite {
	return &Composite{managers: append([]Manager(nil), managers...)}
}

// Name returns the first contained manager's name, or "" for an empty
// composite.
func (s *Composite) Name() string {
	if len(s.managers) == 0 {
		return ""
	}
	return s.managers[0].Name()
}

func (s *Composite) Kind() string { return "composite" }

// State reports StateCreated while any contained manager holds a created
// resource.
func (s *Composite) State() State {
	state := StateUncreated
	for _, m := range s.managers {
		switch m.State() {
		case StateCreated:
			return StateCreated
		case StateDeleted:
			state = StateDeleted
		}
	}
	return state
}

// Handle returns the first contained manager's service, or nil for an
// empty composite.
func (s *Composite) Handle() *corev1.Service {
	return s.Service(0)
}

// Size returns the number of contained managers.
func (s *Composite) Size() int { return len(s.managers) }

// Manager returns the i-th contained manager, or nil when i is out of
// range.
func (s *Composite) Manager(i int) Manager {
	if i < 0 || i >= len(s.managers) {
		return nil
	}
	return s.managers[i]
}

// Service returns the i-th contained manager's created service, or nil
// when i is out of range or the manager has not created anything.
func (s *Composite) Service(i int) *corev1.Service {
	m := s.Manager(i)
	if m == nil {
		return nil
	}
	return m.Handle()
}

// Create creates every contained manager in order, stopping at the first
// failure. Partially created state is cleaned up by Delete, which the
// caller owns.
func (s *Composite) Create(ctx context.Context, c *cluster.Cluster, namespace string, selector map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created {
		return fmt.Errorf("creating composite service: %w", ErrAlreadyCreated)
	}
	s.created = true

	for _, m := range s.managers {
		if err := m.Create(ctx, c, namespace, selector); err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes every contained manager in reverse creation order. A
// failed deletion does not stop the remaining ones; failures are
// aggregated.
func (s *Composite) Delete(ctx context.Context, c *cluster.Cluster, namespace string) error {
	var errs []error
	for i := len(s.managers) - 1; i >= 0; i-- {
		if err := s.managers[i].Delete(ctx, c, namespace); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
