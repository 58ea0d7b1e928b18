package api

import (
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	"github.com/tellor-io/layer-explorer/explorerClient/monitoring"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Overall health values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// QueryResponse wraps the data of a fetch with where it came from
type QueryResponse struct {
	Data           interface{} `json:"data"`
	Source         source.Type `json:"source"`
	Endpoint       string      `json:"endpoint,omitempty"`
	Cached         bool        `json:"cached"`
	FallbackUsed   bool        `json:"fallback_used"`
	Attempts       int         `json:"attempts"`
	ResponseTimeMs int64       `json:"response_time_ms"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SourceHealth is the health view of one source
type SourceHealth struct {
	Status datasource.SourceStatus `json:"status"`
	Health monitoring.HealthStatus `json:"health"`
}

// HealthResponse is the payload of /health
type HealthResponse struct {
	Status    string                       `json:"status"`
	Primary   source.Type                  `json:"primary"`
	Fallback  source.Type                  `json:"fallback"`
	Sources   map[source.Type]SourceHealth `json:"sources"`
	Timestamp time.Time                    `json:"timestamp"`
}

// StatusResponse is the payload of /api/v1/status
type StatusResponse struct {
	Sources   map[source.Type]datasource.SourceStatus `json:"sources"`
	Endpoints map[source.Type]*rpcpool.PoolStatus     `json:"endpoints"`
}

// MetricsResponse is the payload of /api/v1/metrics
type MetricsResponse struct {
	Metrics map[source.Type]monitoring.PerformanceMetrics `json:"metrics"`
	Summary monitoring.PerformanceSummary                 `json:"summary"`
}

// CustomEndpointRequest sets a user endpoint for a source
type CustomEndpointRequest struct {
	Endpoint string `json:"endpoint"`
}
