package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReadinessStrategy waits until the target's own readiness condition holds,
// for workloads that report one through their controller status.
type ReadinessStrategy struct {
	timeout  time.Duration
	interval time.Duration
}

// ForReadiness returns a strategy that waits for the target to report
// itself ready.
func ForReadiness() *ReadinessStrategy {
	return &ReadinessStrategy{
		timeout:  DefaultReadinessTimeout,
		interval: DefaultReadinessInterval,
	}
}

// WithTimeout returns a copy with the overall budget set to d.
// Panics if d is not positive.
func (s *ReadinessStrategy) WithTimeout(d time.Duration) *ReadinessStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

// WithPollInterval returns a copy polling every d. Panics if d is not
// positive.
func (s *ReadinessStrategy) WithPollInterval(d time.Duration) *ReadinessStrategy {
	validatePositive("poll interval", d)
	c := *s
	c.interval = d
	return &c
}

func (s *ReadinessStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	return run(ctx, target.Name(), s.timeout, s.interval, func(pollCtx context.Context) error {
		ready, err := target.Ready(pollCtx)
		if err != nil {
			return MarkTransient(fmt.Errorf("checking readiness: %w", err))
		}
		if !ready {
			return MarkTransient(errors.New("not ready"))
		}
		return nil
	})
}
