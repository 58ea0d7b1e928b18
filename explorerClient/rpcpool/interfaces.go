package rpcpool

import (
	"context"
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// HealthChecker probes a single endpoint with a lightweight request.
// GraphQL uses an introspection query, RPC a status call.
type HealthChecker interface {
	CheckHealth(ctx context.Context, endpoint string) error
}

// HealthCheckerFunc adapts a function to HealthChecker
type HealthCheckerFunc func(ctx context.Context, endpoint string) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context, endpoint string) error {
	return f(ctx, endpoint)
}

// HealthObserver receives the outcome of every recovery probe
type HealthObserver interface {
	RecordHealthCheck(src source.Type, isHealthy bool, responseTime time.Duration, endpoint string)
}
