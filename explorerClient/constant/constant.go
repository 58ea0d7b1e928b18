package constant

import (
	"os"
	"time"
)

// <NodeDir>/                    (e.g., /home/explorer/.lexplorer)
// └── config/
//	└── explorer_config.json

const (
	NodeDir = ".lexplorer"

	ConfigSubdir   = "config"
	ConfigFileName = "explorer_config.json"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// Resilience defaults. Config values of zero fall back to these.
const (
	MaxFailures                = 5
	CircuitResetTime           = 60 * time.Second
	RPCHealthCheckInterval     = 10 * time.Second
	GraphQLHealthCheckInterval = 30 * time.Second
	SourceHealthCheckInterval  = 30 * time.Second
	HealthCheckTimeout         = 5 * time.Second
	RequestTimeout             = 10 * time.Second
	Retries                    = 3
	RetryInitialDelay          = 1 * time.Second
	RetryBackoffCap            = 5 * time.Second
	MaxBackoff                 = 32 * time.Second
	FallbackTimeout            = 10 * time.Second
	MaxEvents                  = 1000
	EventRetention             = 24 * time.Hour
	MonitoringCleanupInterval  = 5 * time.Minute
	CacheTTL                   = 15 * time.Second
	CacheSize                  = 2048
	QueryServerPort            = 8080
)

// Environment overrides for user-supplied endpoints.
const (
	EnvGraphQLEndpoint = "EXPLORER_GRAPHQL_ENDPOINT"
	EnvRPCEndpoint     = "EXPLORER_RPC_ENDPOINT"
)
