package config

import (
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Node home directory (default: ~/.lexplorer)

	// Endpoint registry, in priority order
	GraphQLEndpoints      []string `json:"graphql_endpoints"`
	RPCEndpoints          []string `json:"rpc_endpoints"`
	CustomGraphQLEndpoint string   `json:"custom_graphql_endpoint,omitempty"` // user override, tried before the list
	CustomRPCEndpoint     string   `json:"custom_rpc_endpoint,omitempty"`

	// Source selection
	PrimarySource  string `json:"primary_source"`          // default: graphql
	FallbackSource string `json:"fallback_source"`         // default: rpc
	AutoFallback   *bool  `json:"auto_fallback,omitempty"` // default: true

	// Fetch policy
	RequestTimeoutMs  int  `json:"request_timeout_ms"`   // per-attempt timeout (default: 10000)
	Retries           *int `json:"retries,omitempty"`    // retries per source after the first attempt (default: 3)
	RetryBackoffCapMs int  `json:"retry_backoff_cap_ms"` // cap for a single backoff step (default: 5000)
	MaxBackoffMs      int  `json:"max_backoff_ms"`       // cap for source recovery probe spacing (default: 32000)

	// Circuit breakers
	MaxFailures                  int `json:"max_failures"`                     // default: 5
	CircuitResetTimeMs           int `json:"circuit_reset_time_ms"`            // default: 60000
	RPCHealthCheckIntervalMs     int `json:"rpc_health_check_interval_ms"`     // default: 10000
	GraphQLHealthCheckIntervalMs int `json:"graphql_health_check_interval_ms"` // default: 30000
	SourceHealthCheckIntervalMs  int `json:"source_health_check_interval_ms"`  // default: 30000
	HealthCheckTimeoutMs         int `json:"health_check_timeout_ms"`          // default: 5000

	// UI-level fallback
	FallbackTimeoutMs int `json:"fallback_timeout_ms"` // default: 10000

	// Monitoring
	MaxEvents              int `json:"max_events"`               // per source (default: 1000)
	EventRetentionHours    int `json:"event_retention_hours"`    // default: 24
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes"` // default: 5

	// Response cache
	CacheTTLSeconds int `json:"cache_ttl_seconds"` // default: 15, negative disables the cache
	CacheSize       int `json:"cache_size"`        // default: 2048

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for HTTP query server (default: 8080)
}

// IsAutoFallback reports whether the fallback source is tried after the primary.
func (c *Config) IsAutoFallback() bool {
	return c.AutoFallback == nil || *c.AutoFallback
}

// GetRetries returns the configured retry count.
func (c *Config) GetRetries() int {
	if c.Retries == nil {
		return 0
	}
	return *c.Retries
}

// Primary returns the parsed primary source. Call after validation.
func (c *Config) Primary() source.Type {
	return source.Type(c.PrimarySource)
}

// Fallback returns the parsed fallback source. Call after validation.
func (c *Config) Fallback() source.Type {
	return source.Type(c.FallbackSource)
}

// Endpoints returns the configured endpoint list for a source.
func (c *Config) Endpoints(src source.Type) []string {
	switch src {
	case source.GraphQL:
		return c.GraphQLEndpoints
	case source.RPC:
		return c.RPCEndpoints
	default:
		return nil
	}
}

// CustomEndpoint returns the user override for a source, if any.
func (c *Config) CustomEndpoint(src source.Type) string {
	switch src {
	case source.GraphQL:
		return c.CustomGraphQLEndpoint
	case source.RPC:
		return c.CustomRPCEndpoint
	default:
		return ""
	}
}

// HealthCheckInterval returns the endpoint health-check period for a source.
func (c *Config) HealthCheckInterval(src source.Type) time.Duration {
	if src == source.RPC {
		return ms(c.RPCHealthCheckIntervalMs)
	}
	return ms(c.GraphQLHealthCheckIntervalMs)
}

func (c *Config) RequestTimeout() time.Duration     { return ms(c.RequestTimeoutMs) }
func (c *Config) RetryBackoffCap() time.Duration    { return ms(c.RetryBackoffCapMs) }
func (c *Config) MaxBackoff() time.Duration         { return ms(c.MaxBackoffMs) }
func (c *Config) CircuitResetTime() time.Duration   { return ms(c.CircuitResetTimeMs) }
func (c *Config) HealthCheckTimeout() time.Duration { return ms(c.HealthCheckTimeoutMs) }
func (c *Config) FallbackTimeout() time.Duration    { return ms(c.FallbackTimeoutMs) }
func (c *Config) CacheTTL() time.Duration           { return time.Duration(c.CacheTTLSeconds) * time.Second }
func (c *Config) EventRetention() time.Duration     { return time.Duration(c.EventRetentionHours) * time.Hour }

func (c *Config) SourceHealthCheckInterval() time.Duration {
	return ms(c.SourceHealthCheckIntervalMs)
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
