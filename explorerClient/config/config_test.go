package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellor-io/layer-explorer/explorerClient/constant"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config with all fields",
			config: &Config{
				LogLevel:         2,
				LogFormat:        "json",
				GraphQLEndpoints: []string{"https://gql.example.com/graphql"},
				RPCEndpoints:     []string{"https://rpc-a.example.com", "https://rpc-b.example.com"},
				PrimarySource:    "rpc",
				FallbackSource:   "graphql",
				AutoFallback:     boolPtr(false),
				RequestTimeoutMs: 2500,
				Retries:          intPtr(1),
				QueryServerPort:  9000,
			},
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, source.RPC, cfg.Primary())
				assert.Equal(t, source.GraphQL, cfg.Fallback())
				assert.False(t, cfg.IsAutoFallback())
				assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout())
				assert.Equal(t, 1, cfg.GetRetries())
			},
		},
		{
			name: "Config with defaults applied",
			config: &Config{
				LogLevel:  1,
				LogFormat: "console",
			},
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.NotEmpty(t, cfg.GraphQLEndpoints)
				assert.NotEmpty(t, cfg.RPCEndpoints)
				assert.Equal(t, source.GraphQL, cfg.Primary())
				assert.Equal(t, source.RPC, cfg.Fallback())
				assert.True(t, cfg.IsAutoFallback())
				assert.Equal(t, constant.Retries, cfg.GetRetries())
				assert.Equal(t, constant.RequestTimeout, cfg.RequestTimeout())
				assert.Equal(t, constant.MaxFailures, cfg.MaxFailures)
				assert.Equal(t, constant.CircuitResetTime, cfg.CircuitResetTime())
				assert.Equal(t, constant.RPCHealthCheckInterval, cfg.HealthCheckInterval(source.RPC))
				assert.Equal(t, constant.GraphQLHealthCheckInterval, cfg.HealthCheckInterval(source.GraphQL))
				assert.Equal(t, constant.MaxBackoff, cfg.MaxBackoff())
				assert.Equal(t, constant.RetryBackoffCap, cfg.RetryBackoffCap())
				assert.Equal(t, constant.FallbackTimeout, cfg.FallbackTimeout())
				assert.Equal(t, constant.MaxEvents, cfg.MaxEvents)
				assert.Equal(t, constant.EventRetention, cfg.EventRetention())
				assert.Equal(t, constant.MonitoringCleanupInterval, cfg.CleanupInterval())
				assert.Equal(t, 8080, cfg.QueryServerPort)
			},
		},
		{
			name: "Zero retries is kept",
			config: &Config{
				LogFormat: "json",
				Retries:   intPtr(0),
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0, cfg.GetRetries())
			},
		},
		{
			name: "Endpoints are trimmed and de-duplicated",
			config: &Config{
				LogFormat:        "json",
				GraphQLEndpoints: []string{" https://a/graphql ", "https://a/graphql", ""},
				RPCEndpoints:     []string{"https://rpc"},
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a/graphql"}, cfg.GraphQLEndpoints)
			},
		},
		{
			name: "Invalid log level (negative)",
			config: &Config{
				LogLevel:  -1,
				LogFormat: "json",
			},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name: "Invalid log format",
			config: &Config{
				LogLevel:  2,
				LogFormat: "xml",
			},
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name: "Unknown primary source",
			config: &Config{
				LogFormat:     "json",
				PrimarySource: "rest",
			},
			expectError: true,
			errorMsg:    "primary_source",
		},
		{
			name: "Primary equals fallback",
			config: &Config{
				LogFormat:      "json",
				PrimarySource:  "rpc",
				FallbackSource: "rpc",
			},
			expectError: true,
			errorMsg:    "must differ",
		},
		{
			name: "Negative retries",
			config: &Config{
				LogFormat: "json",
				Retries:   intPtr(-1),
			},
			expectError: true,
			errorMsg:    "retries must not be negative",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.config)

			if tc.expectError {
				assert.Error(t, err)
				if tc.errorMsg != "" {
					assert.Contains(t, err.Error(), tc.errorMsg)
				}
			} else {
				assert.NoError(t, err)
				if tc.validate != nil {
					tc.validate(t, tc.config)
				}
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Save and load valid config", func(t *testing.T) {
		cfg := &Config{
			LogLevel:          3,
			LogFormat:         "json",
			GraphQLEndpoints:  []string{"https://gql-1/graphql", "https://gql-2/graphql"},
			RPCEndpoints:      []string{"https://rpc-1", "https://rpc-2"},
			CustomRPCEndpoint: "https://my-node:26657",
			Retries:           intPtr(2),
			QueryServerPort:   8888,
		}

		err := Save(cfg, tempDir)
		require.NoError(t, err)

		configPath := filepath.Join(tempDir, constant.ConfigSubdir, constant.ConfigFileName)
		_, err = os.Stat(configPath)
		assert.NoError(t, err)

		loadedCfg, err := Load(tempDir)
		require.NoError(t, err)

		assert.Equal(t, cfg.LogLevel, loadedCfg.LogLevel)
		assert.Equal(t, cfg.GraphQLEndpoints, loadedCfg.GraphQLEndpoints)
		assert.Equal(t, cfg.RPCEndpoints, loadedCfg.RPCEndpoints)
		assert.Equal(t, "https://my-node:26657", loadedCfg.CustomEndpoint(source.RPC))
		assert.Equal(t, 2, loadedCfg.GetRetries())
		assert.Equal(t, 8888, loadedCfg.QueryServerPort)
	})

	t.Run("Save invalid config", func(t *testing.T) {
		cfg := &Config{
			LogLevel:  -1,
			LogFormat: "json",
		}

		err := Save(cfg, tempDir)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("Load from non-existent file", func(t *testing.T) {
		_, err := Load(filepath.Join(tempDir, "non_existent"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("Load invalid JSON", func(t *testing.T) {
		configDir := filepath.Join(tempDir, "invalid", constant.ConfigSubdir)
		require.NoError(t, os.MkdirAll(configDir, 0o750))
		configPath := filepath.Join(configDir, constant.ConfigFileName)
		require.NoError(t, os.WriteFile(configPath, []byte("{invalid json}"), 0o600))

		_, err := Load(filepath.Join(tempDir, "invalid"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal config")
	})
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Len(t, cfg.GraphQLEndpoints, 2)
	assert.Len(t, cfg.RPCEndpoints, 3)
	assert.Equal(t, source.GraphQL, cfg.Primary())
	assert.True(t, cfg.IsAutoFallback())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(constant.EnvGraphQLEndpoint, " https://custom/graphql ")
	t.Setenv(constant.EnvRPCEndpoint, "")

	cfg := &Config{CustomRPCEndpoint: "https://keep"}
	ApplyEnv(cfg)

	assert.Equal(t, "https://custom/graphql", cfg.CustomGraphQLEndpoint)
	assert.Equal(t, "https://keep", cfg.CustomRPCEndpoint)
}
