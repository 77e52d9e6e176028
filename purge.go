package testpods

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/testpods/cluster"
	"github.com/giantswarm/testpods/internal/core"
	"github.com/giantswarm/testpods/internal/runlog"
)

// openRunLog lazily opens the shared run-log database recording which
// namespaces each test run created. Opening can fail on exotic setups
// (read-only temp dirs); callers treat that as a degraded mode, not an
// error.
var openRunLog = sync.OnceValues(func() (*runlog.Store, error) {
	return runlog.Open(context.Background(), runlog.DefaultPath(), core.Logger())
})

func recordNamespace(ctx context.Context, name string) {
	store, err := openRunLog()
	if err != nil {
		core.Logger().Warn("run log unavailable", "error", err)
		return
	}
	if err := store.Record(ctx, name); err != nil {
		core.Logger().Warn("recording namespace in run log", "namespace", name, "error", err)
	}
}

func forgetNamespace(ctx context.Context, name string) {
	store, err := openRunLog()
	if err != nil {
		return
	}
	if err := store.Forget(ctx, name); err != nil {
		core.Logger().Warn("removing namespace from run log", "namespace", name, "error", err)
	}
}

// Purge deletes namespaces left behind by earlier runs that crashed
// before their cleanup ran. It consults the shared run log for namespaces
// recorded by other runs and deletes only those still carrying this
// library's managed-by label; everything else is dropped from the log
// untouched. Call it at process start, before any pod is created.
func Purge(ctx context.Context, c *cluster.Cluster) error {
	store, err := openRunLog()
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	leftovers, err := store.Leftovers(ctx)
	if err != nil {
		return fmt.Errorf("listing leftover namespaces: %w", err)
	}

	var errs []error
	for _, name := range leftovers {
		namespace, err := c.Client().CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			forgetNamespace(ctx, name)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("checking namespace %q: %w", name, err))
			continue
		}
		if namespace.Labels[cluster.LabelManagedBy] != cluster.ManagedByValue {
			// Not ours anymore; never delete what we cannot vouch for.
			forgetNamespace(ctx, name)
			continue
		}
		err = c.Client().CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("deleting namespace %q: %w", name, err))
			continue
		}
		core.Logger().Info("purged leftover namespace", "namespace", name)
		forgetNamespace(ctx, name)
	}
	return errors.Join(errs...)
}
