package testpods

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/utils/exec"

	"github.com/giantswarm/testpods/cluster"
)

// ExecResult is the outcome of a command run inside the pod's container.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Logs returns the pod's current container log output. Available as soon
// as the workload is created, so readiness strategies can read logs while
// the pod is still provisioning.
func (p *Pod) Logs(ctx context.Context) (string, error) {
	return p.logs(ctx)
}

// Exec runs a command inside the pod's container and captures its output.
// A non-zero exit status is reported in the result, not as an error.
func (p *Pod) Exec(ctx context.Context, command ...string) (ExecResult, error) {
	return p.exec(ctx, command...)
}

// resolved returns the cluster handle and namespace name once Start has
// resolved them.
func (p *Pod) resolved() (*cluster.Cluster, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cluster == nil || p.namespace == nil {
		return nil, "", fmt.Errorf("pod %q: %w", p.name, ErrNotStarted)
	}
	return p.cluster, p.namespace.Name(), nil
}

func (p *Pod) logs(ctx context.Context) (string, error) {
	c, namespace, err := p.resolved()
	if err != nil {
		return "", err
	}
	pod, err := c.FirstPod(ctx, namespace, p.name)
	if err != nil {
		return "", err
	}
	raw, err := c.Client().CoreV1().Pods(namespace).
		GetLogs(pod.Name, &corev1.PodLogOptions{}).
		Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("reading logs of %s/%s: %w", namespace, pod.Name, err)
	}
	return string(raw), nil
}

func (p *Pod) exec(ctx context.Context, command ...string) (ExecResult, error) {
	if len(command) == 0 {
		return ExecResult{}, errors.New("command must not be empty")
	}
	c, namespace, err := p.resolved()
	if err != nil {
		return ExecResult{}, err
	}
	if c.RESTConfig() == nil {
		return ExecResult{}, errors.New("cluster has no rest config, exec unavailable")
	}
	pod, err := c.FirstPod(ctx, namespace, p.name)
	if err != nil {
		return ExecResult{}, err
	}

	req := c.Client().CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod.Name).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: p.name,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.RESTConfig(), http.MethodPost, req.URL())
	if err != nil {
		return ExecResult{}, fmt.Errorf("building executor: %w", err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	result := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr utilexec.CodeExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("exec in %s/%s: %w", namespace, pod.Name, err)
	}
	return result, nil
}
