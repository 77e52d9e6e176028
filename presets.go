package testpods

import (
	"github.com/giantswarm/testpods/storage"
	"github.com/giantswarm/testpods/wait"
)

// Preset pods for dependencies that show up in most test suites. Each is
// plain data over the generic constructors; pass extra options to adjust
// them like any other pod.

// NewPostgresPod declares a PostgreSQL pod. The server logs its readiness
// line twice (once for the throwaway init server), so the default wait
// matches the second occurrence.
func NewPostgresPod(opts ...Option) *Pod {
	defaults := []Option{
		WithPort(5432),
		WithEnv(map[string]string{"POSTGRES_PASSWORD": "testpods"}),
		WithWaitStrategy(wait.ForLogMessage("database system is ready to accept connections").Times(2)),
	}
	return NewGenericPod("postgres:16", append(defaults, opts...)...)
}

// NewRedisPod declares a Redis pod waiting for TCP reachability of the
// default port.
func NewRedisPod(opts ...Option) *Pod {
	defaults := []Option{
		WithPort(6379),
	}
	return NewGenericPod("redis:7", append(defaults, opts...)...)
}

// NewKafkaPod declares a single-node Kafka pod in KRaft mode as a
// stateful pod, with a per-replica data claim.
func NewKafkaPod(opts ...Option) *Pod {
	defaults := []Option{
		WithPort(9092),
		WithStorage(storage.NewPersistent("kafka", "1Gi", storage.AsClaimTemplate())),
	}
	return NewStatefulPod("apache/kafka:3.8.0", append(defaults, opts...)...)
}
