package datasource

import (
	"context"
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Target is where a single attempt is sent
type Target struct {
	Source   source.Type
	Endpoint string
}

// FetchFunc performs one attempt against target
type FetchFunc[T any] func(ctx context.Context, target Target) (T, error)

// Options override the configured fetch policy for one call. Zero values
// take the configured defaults.
type Options struct {
	Timeout         time.Duration
	Retries         *int
	ForceSource     source.Type
	FallbackOnError *bool
}

// FetchResult is the outcome of a successful fetch
type FetchResult[T any] struct {
	Data         T             `json:"data"`
	Source       source.Type   `json:"source"`
	Endpoint     string        `json:"endpoint,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Cached       bool          `json:"cached"`
	FallbackUsed bool          `json:"fallback_used"`
	Attempts     int           `json:"attempts"`
}

// SourceStatus is the source-level breaker state
type SourceStatus struct {
	IsHealthy       bool          `json:"is_healthy"`
	IsAvailable     bool          `json:"is_available"`
	LastCheck       time.Time     `json:"last_check"`
	FailureCount    int           `json:"failure_count"`
	ResponseTime    time.Duration `json:"response_time,omitempty"`
	CurrentEndpoint string        `json:"current_endpoint,omitempty"`
	ProbeFailures   int           `json:"probe_failures,omitempty"`
	NextProbe       time.Time     `json:"next_probe,omitempty"`
}

// Recorder receives fetch and probe outcomes. The monitoring service
// implements it.
type Recorder interface {
	RecordQuery(src source.Type, query string, duration time.Duration, success bool, endpoint string, metadata map[string]interface{})
	RecordError(src source.Type, err error, query, endpoint string, metadata map[string]interface{})
	RecordFallback(from, to source.Type, reason, query string, metadata map[string]interface{})
	RecordHealthCheck(src source.Type, isHealthy bool, responseTime time.Duration, endpoint string)
	RecordPerformance(src source.Type, operation string, duration time.Duration, metadata map[string]interface{})
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

type nopRecorder struct{}

func (nopRecorder) RecordQuery(source.Type, string, time.Duration, bool, string, map[string]interface{}) {
}

func (nopRecorder) RecordError(source.Type, error, string, string, map[string]interface{}) {}

func (nopRecorder) RecordFallback(source.Type, source.Type, string, string, map[string]interface{}) {
}

func (nopRecorder) RecordHealthCheck(source.Type, bool, time.Duration, string) {}

func (nopRecorder) RecordPerformance(source.Type, string, time.Duration, map[string]interface{}) {}
