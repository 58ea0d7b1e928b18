package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tellor-io/layer-explorer/explorerClient/constant"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// Validate fills defaults for zero values and rejects inconsistent settings.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Endpoint registry defaults come from the embedded config
	if len(cfg.GraphQLEndpoints) == 0 || len(cfg.RPCEndpoints) == 0 {
		var defaultCfg Config
		if err := json.Unmarshal(defaultConfigJSON, &defaultCfg); err != nil {
			return fmt.Errorf("failed to unmarshal default config: %w", err)
		}
		if len(cfg.GraphQLEndpoints) == 0 {
			cfg.GraphQLEndpoints = defaultCfg.GraphQLEndpoints
		}
		if len(cfg.RPCEndpoints) == 0 {
			cfg.RPCEndpoints = defaultCfg.RPCEndpoints
		}
	}
	cfg.GraphQLEndpoints = cleanEndpoints(cfg.GraphQLEndpoints)
	cfg.RPCEndpoints = cleanEndpoints(cfg.RPCEndpoints)
	if len(cfg.GraphQLEndpoints) == 0 {
		return fmt.Errorf("at least one GraphQL endpoint is required")
	}
	if len(cfg.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	cfg.CustomGraphQLEndpoint = strings.TrimSpace(cfg.CustomGraphQLEndpoint)
	cfg.CustomRPCEndpoint = strings.TrimSpace(cfg.CustomRPCEndpoint)

	// Source selection
	if cfg.PrimarySource == "" {
		cfg.PrimarySource = string(source.GraphQL)
	}
	if cfg.FallbackSource == "" {
		cfg.FallbackSource = string(source.RPC)
	}
	if _, err := source.Parse(cfg.PrimarySource); err != nil {
		return fmt.Errorf("primary_source: %w", err)
	}
	if _, err := source.Parse(cfg.FallbackSource); err != nil {
		return fmt.Errorf("fallback_source: %w", err)
	}
	if cfg.PrimarySource == cfg.FallbackSource {
		return fmt.Errorf("primary_source and fallback_source must differ")
	}
	if cfg.AutoFallback == nil {
		autoFallback := true
		cfg.AutoFallback = &autoFallback
	}

	// Fetch policy
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = int(constant.RequestTimeout.Milliseconds())
	}
	if cfg.Retries == nil {
		retries := constant.Retries
		cfg.Retries = &retries
	}
	if *cfg.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if cfg.RetryBackoffCapMs == 0 {
		cfg.RetryBackoffCapMs = int(constant.RetryBackoffCap.Milliseconds())
	}
	if cfg.MaxBackoffMs == 0 {
		cfg.MaxBackoffMs = int(constant.MaxBackoff.Milliseconds())
	}

	// Circuit breakers
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = constant.MaxFailures
	}
	if cfg.CircuitResetTimeMs == 0 {
		cfg.CircuitResetTimeMs = int(constant.CircuitResetTime.Milliseconds())
	}
	if cfg.RPCHealthCheckIntervalMs == 0 {
		cfg.RPCHealthCheckIntervalMs = int(constant.RPCHealthCheckInterval.Milliseconds())
	}
	if cfg.GraphQLHealthCheckIntervalMs == 0 {
		cfg.GraphQLHealthCheckIntervalMs = int(constant.GraphQLHealthCheckInterval.Milliseconds())
	}
	if cfg.SourceHealthCheckIntervalMs == 0 {
		cfg.SourceHealthCheckIntervalMs = int(constant.SourceHealthCheckInterval.Milliseconds())
	}
	if cfg.HealthCheckTimeoutMs == 0 {
		cfg.HealthCheckTimeoutMs = int(constant.HealthCheckTimeout.Milliseconds())
	}
	if cfg.FallbackTimeoutMs == 0 {
		cfg.FallbackTimeoutMs = int(constant.FallbackTimeout.Milliseconds())
	}

	// Monitoring
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = constant.MaxEvents
	}
	if cfg.EventRetentionHours == 0 {
		cfg.EventRetentionHours = int(constant.EventRetention.Hours())
	}
	if cfg.CleanupIntervalMinutes == 0 {
		cfg.CleanupIntervalMinutes = int(constant.MonitoringCleanupInterval.Minutes())
	}

	// Response cache
	if cfg.CacheTTLSeconds == 0 {
		cfg.CacheTTLSeconds = int(constant.CacheTTL.Seconds())
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = constant.CacheSize
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = constant.QueryServerPort
	}

	if cfg.MaxFailures < 0 || cfg.MaxEvents < 0 || cfg.CacheSize < 0 {
		return fmt.Errorf("max_failures, max_events and cache_size must not be negative")
	}

	return nil
}

// ApplyEnv overrides custom endpoints from the process environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(constant.EnvGraphQLEndpoint)); v != "" {
		cfg.CustomGraphQLEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(constant.EnvRPCEndpoint)); v != "" {
		cfg.CustomRPCEndpoint = v
	}
}

// Save writes the given config to <NodeDir>/config/explorer_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads, validates and returns the config from <BasePath>/config/explorer_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return &cfg, nil
}

func cleanEndpoints(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, ep := range in {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		if _, dup := seen[ep]; dup {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}
