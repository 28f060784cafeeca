package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))

	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Upstream.BackoffDelay.Std())
	assert.Equal(t, 32, cfg.Walker.MaxDepth)
	assert.Equal(t, 1, cfg.Merge.Depth)
	assert.Equal(t, types.DriverDuckDB, cfg.Store.Driver)
	assert.Equal(t, types.EndpointTree, cfg.Upstream.Endpoints.Tree)
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantErr  bool
		validate func(*testing.T, *types.Config)
	}{
		{
			name: "json overrides some fields",
			file: "config.json",
			content: `{
				"upstream": {"base_url": "https://stat.example/ru/Api", "backoff_delay": "500ms"},
				"store": {"driver": "sqlite", "dsn": "cache.sqlite"},
				"merge": {"depth": -1}
			}`,
			validate: func(t *testing.T, cfg *types.Config) {
				assert.Equal(t, "https://stat.example/ru/Api", cfg.Upstream.BaseURL)
				assert.Equal(t, 500*time.Millisecond, cfg.Upstream.BackoffDelay.Std())
				assert.Equal(t, 3, cfg.Upstream.MaxAttempts, "unset fields keep defaults")
				assert.Equal(t, -1, cfg.Merge.Depth)
				assert.True(t, filepath.IsAbs(cfg.Store.DSN))
			},
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
upstream:
  base_url: https://stat.example/ru/Api
  max_attempts: 5
  backoff_delay: 1s
walker:
  concurrency: 8
  timeout: 2m
store:
  driver: postgres
  dsn: postgres://indextree@localhost/indextree
api:
  port: 9000
  allowed_origins: [https://a.example, https://b.example]
log:
  level: debug
  format: json
`,
			validate: func(t *testing.T, cfg *types.Config) {
				assert.Equal(t, 5, cfg.Upstream.MaxAttempts)
				assert.Equal(t, time.Second, cfg.Upstream.BackoffDelay.Std())
				assert.Equal(t, 8, cfg.Walker.Concurrency)
				assert.Equal(t, 2*time.Minute, cfg.Walker.Timeout.Std())
				assert.Equal(t, "postgres://indextree@localhost/indextree", cfg.Store.DSN, "postgres dsn is not a path")
				assert.Equal(t, 9000, cfg.API.Port)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
				assert.Equal(t, "json", cfg.Log.Format)
			},
		},
		{
			name:    "bad json",
			file:    "config.json",
			content: `{"upstream": `,
			wantErr: true,
		},
		{
			name:    "bad duration",
			file:    "config.json",
			content: `{"upstream": {"backoff_delay": "soon"}}`,
			wantErr: true,
		},
		{
			name:    "invalid values",
			file:    "config.json",
			content: `{"walker": {"concurrency": 0}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(writeFile(t, tt.file, tt.content))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*types.Config) {}},
		{name: "no base url", mutate: func(c *types.Config) { c.Upstream.BaseURL = " " }, wantErr: "base_url"},
		{name: "zero attempts", mutate: func(c *types.Config) { c.Upstream.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "negative backoff", mutate: func(c *types.Config) { c.Upstream.BackoffDelay = -1 }, wantErr: "backoff_delay"},
		{name: "negative rps", mutate: func(c *types.Config) { c.Upstream.RequestsPerSec = -1 }, wantErr: "requests_per_sec"},
		{name: "zero depth", mutate: func(c *types.Config) { c.Walker.MaxDepth = 0 }, wantErr: "max_depth"},
		{name: "zero nodes", mutate: func(c *types.Config) { c.Walker.MaxNodes = 0 }, wantErr: "max_nodes"},
		{name: "unknown driver", mutate: func(c *types.Config) { c.Store.Driver = "mysql" }, wantErr: "unsupported store driver"},
		{name: "postgres without dsn", mutate: func(c *types.Config) { c.Store.Driver, c.Store.DSN = types.DriverPostgres, "" }, wantErr: "dsn"},
		{name: "port too high", mutate: func(c *types.Config) { c.API.Port = 70000 }, wantErr: "port"},
		{name: "bad rate limit", mutate: func(c *types.Config) { c.API.BuildRateLimit = "lots" }, wantErr: "build_rate_limit"},
		{name: "disabled rate limit", mutate: func(c *types.Config) { c.API.BuildRateLimit = "" }},
		{name: "bad log format", mutate: func(c *types.Config) { c.Log.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Error(t, Validate(nil))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("INDEXTREE_UPSTREAM_BASE_URL", "https://env.example")
	t.Setenv("INDEXTREE_UPSTREAM_BACKOFF_DELAY", "250ms")
	t.Setenv("INDEXTREE_DB_DRIVER", "sqlite")
	t.Setenv("INDEXTREE_MERGE_DEPTH", "3")
	t.Setenv("INDEXTREE_API_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))

	assert.Equal(t, "https://env.example", cfg.Upstream.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.BackoffDelay.Std())
	assert.Equal(t, types.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Merge.Depth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 8086, cfg.API.Port, "unset variables keep their value")
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("INDEXTREE_LOG_LEVEL=debug\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("INDEXTREE_LOG_LEVEL") })

	n, err := LoadEnv([]string{envFile, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "debug", cfg.Log.Level)

	n, err = LoadEnv([]string{filepath.Join(dir, "missing")})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	path := writeFile(t, "config.json", `{"upstream": {"base_url": "https://file.example"}, "api": {"port": 9100}}`)
	t.Setenv("INDEXTREE_API_PORT", "9200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.Upstream.BaseURL)
	assert.Equal(t, 9200, cfg.API.Port, "environment wins over the file")
}

func TestConfigFileOperations(t *testing.T) {
	for _, name := range []string{"saved.json", "saved.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Upstream.BaseURL = "https://saved.example"
			cfg.Store.Driver = types.DriverSQLite
			cfg.Store.DSN = filepath.Join(t.TempDir(), "cache.sqlite")

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveToFile(&cfg, path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, *loaded)
		})
	}
}
