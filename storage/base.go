package storage

import (
	"sync"
)

// base carries the lifecycle state shared by the storage variants.
type base struct {
	name string

	mu    sync.Mutex
	state State
}

func (b *base) Name() string { return b.name }

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// markCreated transitions to StateCreated, reporting ErrAlreadyCreated when
// the manager left StateUncreated before.
func (b *base) markCreated() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateUncreated {
		return ErrAlreadyCreated
	}
	b.state = StateCreated
	return nil
}

// markDeleted transitions to StateDeleted and reports whether the manager
// held a created resource.
func (b *base) markDeleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateCreated {
		return false
	}
	b.state = StateDeleted
	return true
}
