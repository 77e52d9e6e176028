// Package testpods provisions ephemeral dependency pods (databases,
// brokers, generic services) in a real Kubernetes cluster for the duration
// of a test run, then tears them down.
//
// A pod bundles a workload, its exposures and its storage behind one
// lifecycle: Start creates the namespace and resources in order, waits for
// readiness and resolves an externally reachable endpoint; Stop deletes
// everything in reverse. Cluster connections are auto-discovered from the
// ambient kubeconfig unless configured explicitly.
//
// # Basic Usage
//
//	import "github.com/giantswarm/testpods"
//
//	ctx := context.Background()
//
//	pod := testpods.NewGenericPod("postgres:16",
//	    testpods.WithPort(5432),
//	    testpods.WithEnv(map[string]string{"POSTGRES_PASSWORD": "secret"}),
//	)
//	if err := pod.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pod.Stop(ctx)
//
//	host, _ := pod.ExternalHost()
//	port, _ := pod.ExternalPort()
//	// Connect to host:port...
//
// # Readiness
//
// Each pod waits for a readiness signal before Start returns. The default
// is TCP reachability of the primary port; the wait package provides HTTP,
// log-message, command and readiness-condition strategies plus combinators:
//
//	pod := testpods.NewGenericPod("postgres:16",
//	    testpods.WithPort(5432),
//	    testpods.WithWaitStrategy(
//	        wait.ForLogMessage("ready to accept connections").Times(2),
//	    ),
//	)
//
// # Parallel Testing
//
// Pods started by parallel tests are independent: each gets its own
// generated namespace and resolves its configuration from the context it
// was started with. Per-test defaults attach to the context and never leak
// into other tests:
//
//	ctx := testpods.WithDefaults(t.Context(), testpods.Defaults{
//	    Namespace: "team-a-fixtures",
//	})
//	if err := pod.Start(ctx); err != nil {
//	    t.Fatal(err)
//	}
//
// Process-wide defaults are set once at startup, typically in TestMain,
// with SetGlobalDefaults.
package testpods
