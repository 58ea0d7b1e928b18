package monitoring

import (
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// EventType classifies a monitoring event
type EventType string

const (
	EventQuery       EventType = "query"
	EventError       EventType = "error"
	EventFallback    EventType = "fallback"
	EventHealthCheck EventType = "health_check"
	EventPerformance EventType = "performance"
)

// ParseEventType accepts the lowercase event type names
func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(s); t {
	case EventQuery, EventError, EventFallback, EventHealthCheck, EventPerformance:
		return t, true
	default:
		return "", false
	}
}

// Event is an immutable monitoring record
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	Source    source.Type            `json:"source"`
	Endpoint  string                 `json:"endpoint,omitempty"`
	Query     string                 `json:"query,omitempty"`
	Duration  time.Duration          `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PerformanceMetrics are the rolling counters of one source. Response times
// are in milliseconds, rates in percent except FallbackRate.
type PerformanceMetrics struct {
	TotalQueries        int64     `json:"total_queries"`
	SuccessfulQueries   int64     `json:"successful_queries"`
	FailedQueries       int64     `json:"failed_queries"`
	AverageResponseTime float64   `json:"average_response_time_ms"`
	TotalResponseTime   float64   `json:"total_response_time_ms"`
	CacheHitRate        float64   `json:"cache_hit_rate"`
	FallbackRate        float64   `json:"fallback_rate"`
	ErrorRate           float64   `json:"error_rate"`
	LastUpdated         time.Time `json:"last_updated"`
}

// HealthStatus summarizes the health checks of one source
type HealthStatus struct {
	IsHealthy    bool      `json:"is_healthy"`
	LastCheck    time.Time `json:"last_check"`
	ResponseTime float64   `json:"response_time_ms"`
	ErrorCount   int64     `json:"error_count"`
	SuccessCount int64     `json:"success_count"`
	Uptime       float64   `json:"uptime"`
}

// OverallMetrics rolls up every source
type OverallMetrics struct {
	TotalQueries        int64   `json:"total_queries"`
	SuccessfulQueries   int64   `json:"successful_queries"`
	FailedQueries       int64   `json:"failed_queries"`
	AverageResponseTime float64 `json:"average_response_time_ms"`
	ErrorRate           float64 `json:"error_rate"`
	SuccessRate         float64 `json:"success_rate"`
	Uptime              float64 `json:"uptime"`
}

// PerformanceSummary combines per-source metrics and health with a roll-up
type PerformanceSummary struct {
	Sources map[source.Type]PerformanceMetrics `json:"sources"`
	Health  map[source.Type]HealthStatus       `json:"health"`
	Overall OverallMetrics                     `json:"overall"`
}

// Snapshot is a timestamped export for external renderers
type Snapshot struct {
	Timestamp   time.Time                          `json:"timestamp"`
	Metrics     map[source.Type]PerformanceMetrics `json:"metrics"`
	Health      map[source.Type]HealthStatus       `json:"health"`
	Summary     PerformanceSummary                 `json:"summary"`
	EventCounts map[source.Type]int                `json:"event_counts"`
}
