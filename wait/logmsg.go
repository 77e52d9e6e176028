package wait

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

const logSnippetLength = 500

// LogStrategy waits until the target's log output matches a pattern a
// required number of times.
type LogStrategy struct {
	pattern  *regexp.Regexp
	times    int
	timeout  time.Duration
	interval time.Duration
}

// ForLogMessage returns a strategy that waits for the target's logs to
// match the given regular expression at least once. Panics if the
// expression does not compile.
func ForLogMessage(expr string) *LogStrategy {
	pattern, err := regexp.Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("testpods: invalid log pattern %q: %v", expr, err))
	}
	return &LogStrategy{
		pattern:  pattern,
		times:    1,
		timeout:  DefaultLogTimeout,
		interval: DefaultLogInterval,
	}
}

// Times returns a copy requiring at least n matches. Panics if n is less
// than 1.
func (s *LogStrategy) Times(n int) *LogStrategy {
	if n < 1 {
		panic(fmt.Sprintf("testpods: times must be at least 1, got %d", n))
	}
	c := *s
	c.times = n
	return &c
}

// WithTimeout returns a copy with the overall budget set to d.
// Panics if d is not positive.
func (s *LogStrategy) WithTimeout(d time.Duration) *LogStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

// WithPollInterval returns a copy polling every d. Panics if d is not
// positive.
func (s *LogStrategy) WithPollInterval(d time.Duration) *LogStrategy {
	validatePositive("poll interval", d)
	c := *s
	c.interval = d
	return &c
}

func (s *LogStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	var lastLogs string
	err := run(ctx, target.Name(), s.timeout, s.interval, func(pollCtx context.Context) error {
		logs, err := target.Logs(pollCtx)
		if err != nil {
			return MarkTransient(fmt.Errorf("reading logs: %w", err))
		}
		lastLogs = logs
		found := len(s.pattern.FindAllStringIndex(logs, s.times))
		if found < s.times {
			return MarkTransient(fmt.Errorf("pattern %q matched %d of %d times", s.pattern, found, s.times))
		}
		return nil
	})
	var te *TimeoutError
	if errors.As(err, &te) && lastLogs != "" {
		return fmt.Errorf("%w\nlast log output:\n%s", te, tail(lastLogs, logSnippetLength))
	}
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
