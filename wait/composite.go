package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// AllOfStrategy runs child strategies concurrently and is ready once every
// child is ready. The first fatal child failure cancels the rest.
type AllOfStrategy struct {
	children []Strategy
	timeout  time.Duration
}

// AllOf combines strategies so that all of them must pass. Each child keeps
// its own budget and cadence; the composite adds an overall ceiling on top.
// Panics if no children are given.
func AllOf(children ...Strategy) *AllOfStrategy {
	if len(children) == 0 {
		panic("testpods: at least one strategy is required")
	}
	return &AllOfStrategy{
		children: append([]Strategy(nil), children...),
		timeout:  DefaultCompositeTimeout,
	}
}

// WithTimeout returns a copy with the overall ceiling set to d.
// Panics if d is not positive.
func (s *AllOfStrategy) WithTimeout(d time.Duration) *AllOfStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

func (s *AllOfStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range s.children {
		g.Go(func() error {
			if err := child.WaitUntilReady(gctx, target); err != nil {
				return fmt.Errorf("strategy %d of %d: %w", i+1, len(s.children), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// AnyOfStrategy runs child strategies concurrently and is ready as soon as
// one child is ready; the remaining children are cancelled.
type AnyOfStrategy struct {
	children []Strategy
	timeout  time.Duration
}

// AnyOf combines strategies so that the first one to pass wins and the
// remaining children are cancelled. Panics if no children are given.
func AnyOf(children ...Strategy) *AnyOfStrategy {
	if len(children) == 0 {
		panic("testpods: at least one strategy is required")
	}
	return &AnyOfStrategy{
		children: append([]Strategy(nil), children...),
		timeout:  DefaultCompositeTimeout,
	}
}

// WithTimeout returns a copy with the overall ceiling set to d.
// Panics if d is not positive.
func (s *AnyOfStrategy) WithTimeout(d time.Duration) *AnyOfStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

// WaitUntilReady returns nil as soon as any child passes. Children passing
// in the same tick are resolved in arrival order; no winner identity is
// exposed, so the order is unobservable to callers.
func (s *AnyOfStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		index int
		err   error
	}
	results := make(chan result, len(s.children))
	for i, child := range s.children {
		go func() {
			results <- result{index: i, err: child.WaitUntilReady(ctx, target)}
		}()
	}

	failures := make([]error, 0, len(s.children))
	for range s.children {
		r := <-results
		if r.err != nil {
			failures = append(failures, fmt.Errorf("strategy %d of %d: %w", r.index+1, len(s.children), r.err))
			continue
		}
		cancel()
		return nil
	}
	return errors.Join(failures...)
}
