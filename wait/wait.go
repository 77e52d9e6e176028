// Package wait decides when a provisioned test resource is usable.
//
// A Strategy polls one readiness signal (an open TCP port, an HTTP probe, a
// log line, a command exit code, the workload's own readiness condition)
// until it passes or a timeout expires. Strategies are immutable values;
// the With* methods return adjusted copies, so a strategy can be shared
// between resources safely.
//
// Inside a strategy's poll loop, errors marked transient mean "not ready
// yet" and are retried until the budget runs out; every other error is
// treated as fatal and aborts immediately. A strategy that exhausts its
// budget returns a *TimeoutError carrying the elapsed time and the last
// transient error observed.
//
// AllOf and AnyOf combine strategies; both are themselves strategies, so
// combinators nest.
package wait

import (
	"context"
	"time"
)

// Default budgets per strategy kind.
const (
	DefaultPortTimeout       = time.Minute
	DefaultPortInterval      = 500 * time.Millisecond
	DefaultConnectTimeout    = 5 * time.Second
	DefaultHTTPTimeout       = time.Minute
	DefaultHTTPInterval      = time.Second
	DefaultReadTimeout       = 5 * time.Second
	DefaultLogTimeout        = 2 * time.Minute
	DefaultLogInterval       = time.Second
	DefaultCommandTimeout    = time.Minute
	DefaultCommandInterval   = 500 * time.Millisecond
	DefaultReadinessTimeout  = 2 * time.Minute
	DefaultReadinessInterval = time.Second
	DefaultCompositeTimeout  = 5 * time.Minute
)

// Strategy waits until a target is ready according to one signal.
type Strategy interface {
	WaitUntilReady(ctx context.Context, target Target) error
}

// Target is the resource a strategy probes. The orchestrator adapts its pod
// type to this interface; tests substitute fakes.
type Target interface {
	// Name identifies the resource in error messages.
	Name() string

	// Endpoint resolves the externally reachable (host, port) for the
	// given container port.
	Endpoint(ctx context.Context, port int) (string, int, error)

	// Logs returns the current log output of the resource's container.
	Logs(ctx context.Context) (string, error)

	// Exec runs a command inside the resource's container.
	Exec(ctx context.Context, command ...string) (exitCode int, stdout, stderr string, err error)

	// Ready reports the orchestrator-native readiness condition.
	Ready(ctx context.Context) (bool, error)
}
