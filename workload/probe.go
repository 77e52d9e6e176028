package workload

import (
	"fmt"
	"slices"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Probe describes a container health probe managed by the kubelet, as
// opposed to the wait strategies this library polls itself. Attach one to
// the main container with WithReadinessProbe or WithLivenessProbe. Knobs
// left at zero defer to the cluster defaults.
type Probe struct {
	handler          corev1.ProbeHandler
	initialDelay     time.Duration
	period           time.Duration
	timeout          time.Duration
	failureThreshold int32
}

// TCPProbe probes by opening a TCP connection to the given container port.
// Panics if port is out of range.
func TCPProbe(port int) Probe {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
	}
	return Probe{handler: corev1.ProbeHandler{
		TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt32(int32(port))},
	}}
}

// HTTPProbe probes with an HTTP GET against the given container port and
// path. A missing leading slash on path is added. Panics if port is out of
// range.
func HTTPProbe(port int, path string) Probe {
	if port < 1 || port > 65535 {
		panic(fmt.Sprintf("testpods: port must be between 1 and 65535, got %d", port))
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Probe{handler: corev1.ProbeHandler{
		HTTPGet: &corev1.HTTPGetAction{Port: intstr.FromInt32(int32(port)), Path: path},
	}}
}

// ExecProbe probes by running a command inside the container; exit status
// zero passes. Panics if command is empty.
func ExecProbe(command ...string) Probe {
	if len(command) == 0 {
		panic("testpods: probe command must not be empty")
	}
	return Probe{handler: corev1.ProbeHandler{
		Exec: &corev1.ExecAction{Command: slices.Clone(command)},
	}}
}

// WithInitialDelay returns a copy waiting d before the first attempt.
// Panics if d is negative or not a whole second.
func (p Probe) WithInitialDelay(d time.Duration) Probe {
	p.initialDelay = wholeSeconds("initial delay", d)
	return p
}

// WithPeriod returns a copy probing every d. Panics if d is not a positive
// whole second.
func (p Probe) WithPeriod(d time.Duration) Probe {
	if d <= 0 {
		panic(fmt.Sprintf("testpods: period must be greater than 0, got %v", d))
	}
	p.period = wholeSeconds("period", d)
	return p
}

// WithTimeout returns a copy failing one attempt after d. Panics if d is
// not a positive whole second.
func (p Probe) WithTimeout(d time.Duration) Probe {
	if d <= 0 {
		panic(fmt.Sprintf("testpods: timeout must be greater than 0, got %v", d))
	}
	p.timeout = wholeSeconds("timeout", d)
	return p
}

// WithFailureThreshold returns a copy tolerating n consecutive failures
// before the probe counts as failed. Panics if n is not positive.
func (p Probe) WithFailureThreshold(n int) Probe {
	if n <= 0 {
		panic(fmt.Sprintf("testpods: failure threshold must be greater than 0, got %d", n))
	}
	p.failureThreshold = int32(n)
	return p
}

// wholeSeconds rejects sub-second durations eagerly because the kubelet
// API only carries whole seconds.
func wholeSeconds(field string, d time.Duration) time.Duration {
	if d < 0 || d%time.Second != 0 {
		panic(fmt.Sprintf("testpods: probe %s must be a non-negative whole second, got %v", field, d))
	}
	return d
}

func (p Probe) build() *corev1.Probe {
	probe := &corev1.Probe{
		ProbeHandler:        p.handler,
		InitialDelaySeconds: int32(p.initialDelay / time.Second),
		PeriodSeconds:       int32(p.period / time.Second),
		TimeoutSeconds:      int32(p.timeout / time.Second),
		FailureThreshold:    p.failureThreshold,
	}
	return probe
}
