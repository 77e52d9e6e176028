package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	apiwait "k8s.io/apimachinery/pkg/util/wait"
)

// transientError marks a probe failure as retryable. It never escapes the
// poll loop; callers only ever see it unwrapped inside a TimeoutError.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so the poll loop retries instead of aborting.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with MarkTransient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// TimeoutError is returned when a strategy exhausts its budget without the
// target becoming ready. Last holds the most recent transient failure, if
// any probe ran at all.
type TimeoutError struct {
	Target  string
	Elapsed time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("target %q not ready after %s", e.Target, e.Elapsed.Round(time.Millisecond))
	if e.Last != nil {
		msg += fmt.Sprintf(": last error: %v", e.Last)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Last }

// run drives one probe until it succeeds, fails fatally, or the budget
// expires. A nil probe result means ready, a transient error means retry,
// anything else aborts immediately.
func run(ctx context.Context, name string, timeout, interval time.Duration, probe func(context.Context) error) error {
	start := time.Now()
	var last error
	err := apiwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(pollCtx context.Context) (bool, error) {
		err := probe(pollCtx)
		if err == nil {
			return true, nil
		}
		if IsTransient(err) {
			last = errors.Unwrap(err)
			return false, nil
		}
		return false, err
	})
	if err == nil {
		return nil
	}
	// Interrupted also matches a cancelled caller context; only the
	// strategy's own deadline counts as a timeout.
	if cause := ctx.Err(); cause != nil {
		return fmt.Errorf("waiting for target %q: %w", name, cause)
	}
	if apiwait.Interrupted(err) {
		return &TimeoutError{Target: name, Elapsed: time.Since(start), Last: last}
	}
	return err
}

func validatePositive(what string, d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("testpods: %s must be greater than 0, got %v", what, d))
	}
}

func validatePort(port int) {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
	}
}
