package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const stderrSnippetLength = 200

// CommandStrategy waits until a command executed inside the target exits
// with status zero.
type CommandStrategy struct {
	command  []string
	timeout  time.Duration
	interval time.Duration
}

// ForCommand returns a strategy that repeatedly runs the given command
// inside the target's container until it succeeds. Panics if no command is
// given.
func ForCommand(command ...string) *CommandStrategy {
	if len(command) == 0 {
		panic("testpods: command must not be empty")
	}
	return &CommandStrategy{
		command:  command,
		timeout:  DefaultCommandTimeout,
		interval: DefaultCommandInterval,
	}
}

// WithTimeout returns a copy with the overall budget set to d.
// Panics if d is not positive.
func (s *CommandStrategy) WithTimeout(d time.Duration) *CommandStrategy {
	validatePositive("timeout", d)
	c := *s
	c.timeout = d
	return &c
}

// WithPollInterval returns a copy polling every d. Panics if d is not
// positive.
func (s *CommandStrategy) WithPollInterval(d time.Duration) *CommandStrategy {
	validatePositive("poll interval", d)
	c := *s
	c.interval = d
	return &c
}

func (s *CommandStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	var (
		lastExit   int
		lastStderr string
		ran        bool
	)
	err := run(ctx, target.Name(), s.timeout, s.interval, func(pollCtx context.Context) error {
		exitCode, _, stderr, err := target.Exec(pollCtx, s.command...)
		if err != nil {
			return MarkTransient(fmt.Errorf("running %v: %w", s.command, err))
		}
		ran = true
		lastExit = exitCode
		lastStderr = stderr
		if exitCode != 0 {
			return MarkTransient(fmt.Errorf("%v exited with status %d", s.command, exitCode))
		}
		return nil
	})
	var te *TimeoutError
	if errors.As(err, &te) && ran {
		detail := fmt.Sprintf(": last exit status %d", lastExit)
		if lastStderr != "" {
			detail += ", stderr: " + tail(lastStderr, stderrSnippetLength)
		}
		return fmt.Errorf("%w%s", te, detail)
	}
	return err
}
