package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
	"gopkg.in/yaml.v3"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

// DefaultEnvFiles are loaded, when present, before environment variables are applied
var DefaultEnvFiles = []string{".env", ".env.local"}

// DefaultConfig returns the default configuration
func DefaultConfig() types.Config {
	return types.Config{
		Upstream: types.UpstreamConfig{
			BaseURL:         "http://localhost:8087",
			MaxAttempts:     3,
			BackoffDelay:    types.Duration(2 * time.Second),
			RequestTimeout:  types.Duration(30 * time.Second),
			RequestIDHeader: "X-Request-Id",
			Endpoints: types.EndpointNames{
				Tree:    types.EndpointTree,
				Periods: types.EndpointPeriods,
			},
		},
		Walker: types.WalkerConfig{
			MaxDepth:    32,
			MaxNodes:    100000,
			Concurrency: 4,
			Timeout:     types.Duration(5 * time.Minute),
		},
		Merge: types.MergeConfig{
			Depth: 1,
		},
		Store: types.StoreConfig{
			Driver: types.DriverDuckDB,
			DSN:    "./indextree.duckdb",
		},
		API: types.APIConfig{
			Host:           "localhost",
			Port:           8086,
			AllowedOrigins: []string{"*"},
			BuildRateLimit: "30-M",
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then the optional config file,
// then .env files, then INDEXTREE_* environment variables.
func Load(configPath string) (*types.Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		fileCfg, err := readFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *fileCfg
	}

	if _, err := LoadEnv(DefaultEnvFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file over the defaults
func LoadFromFile(configPath string) (*types.Config, error) {
	cfg, err := readFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the env files that exist and returns how many were loaded.
// Variables already set in the process environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// ApplyEnv overrides cfg with the INDEXTREE_* variables that are set
func ApplyEnv(cfg *types.Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

func readFile(configPath string) (*types.Config, error) {
	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if isYAML(configPath) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

func finalize(cfg *types.Config) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Ensure file-backed DSNs are absolute
	if cfg.Store.Driver != types.DriverPostgres && cfg.Store.DSN != "" && cfg.Store.DSN != ":memory:" && !filepath.IsAbs(cfg.Store.DSN) {
		absPath, err := filepath.Abs(cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("failed to resolve store path: %w", err)
		}
		cfg.Store.DSN = absPath
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "localhost"
	}
	if cfg.Upstream.Endpoints.Tree == "" {
		cfg.Upstream.Endpoints.Tree = types.EndpointTree
	}
	if cfg.Upstream.Endpoints.Periods == "" {
		cfg.Upstream.Endpoints.Periods = types.EndpointPeriods
	}
	return nil
}

// Validate checks that the configuration parameters are valid
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
		return fmt.Errorf("upstream base_url is required")
	}
	if cfg.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.Upstream.MaxAttempts)
	}
	if cfg.Upstream.BackoffDelay < 0 {
		return fmt.Errorf("backoff_delay must be non-negative, got %s", cfg.Upstream.BackoffDelay)
	}
	if cfg.Upstream.RequestsPerSec < 0 {
		return fmt.Errorf("requests_per_sec must be non-negative, got %f", cfg.Upstream.RequestsPerSec)
	}

	if cfg.Walker.MaxDepth < 1 {
		return fmt.Errorf("walker max_depth must be at least 1, got %d", cfg.Walker.MaxDepth)
	}
	if cfg.Walker.MaxNodes < 1 {
		return fmt.Errorf("walker max_nodes must be at least 1, got %d", cfg.Walker.MaxNodes)
	}
	if cfg.Walker.Concurrency < 1 {
		return fmt.Errorf("walker concurrency must be at least 1, got %d", cfg.Walker.Concurrency)
	}

	switch cfg.Store.Driver {
	case types.DriverDuckDB, types.DriverSQLite:
	case types.DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("postgres store requires a dsn")
		}
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535, got %d", cfg.API.Port)
	}
	if cfg.API.BuildRateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(cfg.API.BuildRateLimit); err != nil {
			return fmt.Errorf("invalid build_rate_limit %q: %w", cfg.API.BuildRateLimit, err)
		}
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}

// SaveToFile saves configuration as YAML or JSON depending on the extension
func SaveToFile(cfg *types.Config, configPath string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(configPath) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
