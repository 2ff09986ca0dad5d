// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSDK is the SDK tag sent to the transport engine.
const DefaultSDK = "go-0.1.0"

// Config is the root configuration structure.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Topology is a YAML topology fixture served by the loopback transport
	// in dev mode. Relative paths resolve against the config file.
	Topology string `yaml:"topology"`
}

// RuntimeConfig configures the transport engine and the dispatcher.
type RuntimeConfig struct {
	Dev        bool   `yaml:"dev"`
	Addr       string `yaml:"addr"`
	SDK        string `yaml:"sdk"`
	ConfigPath string `yaml:"config_path"` // app config parsed by the engine

	Workers       int `yaml:"workers"`        // 0 uses GOMAXPROCS
	EngineThreads int `yaml:"engine_threads"` // 0 leaves the engine default
	ErrorBuffer   int `yaml:"error_buffer"`

	// ShutdownTimeout bounds how long serve waits for in-flight handlers.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.Topology != "" && !filepath.IsAbs(cfg.Topology) {
		cfg.Topology = filepath.Join(filepath.Dir(path), cfg.Topology)
	}
	return cfg, nil
}

// Parse parses YAML configuration, expanding ${VAR} references and applying
// HFN_* overrides and defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	HFN_DEV               - Engine development mode (default: false)
//	HFN_ADDR              - Engine bind address (default: [::1]:3000)
//	HFN_SDK               - SDK tag (default: go-0.1.0)
//	HFN_CONFIG_PATH       - App config forwarded to the engine (default: hfn.json)
//	HFN_WORKERS           - Handler pool size (default: GOMAXPROCS)
//	HFN_ENGINE_THREADS    - Engine thread pool size
//	HFN_ERROR_BUFFER      - Handler error channel size (default: 64)
//	HFN_SHUTDOWN_TIMEOUT  - Wait for in-flight handlers (default: 10s)
//	HFN_TOPOLOGY          - Topology fixture for dev mode
//	HFN_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	HFN_LOG_FORMAT        - Log format: json or console (default: json)
//	HFN_METRICS_ENABLED   - Serve metrics (default: false)
//	HFN_METRICS_ADDR      - Metrics listen address (default: :9090)
//	HFN_METRICS_PATH      - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies HFN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HFN_DEV"); v != "" {
		cfg.Runtime.Dev = parseBool(v)
	}
	if v := os.Getenv("HFN_ADDR"); v != "" {
		cfg.Runtime.Addr = v
	}
	if v := os.Getenv("HFN_SDK"); v != "" {
		cfg.Runtime.SDK = v
	}
	if v := os.Getenv("HFN_CONFIG_PATH"); v != "" {
		cfg.Runtime.ConfigPath = v
	}
	if v := os.Getenv("HFN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.Workers = n
		}
	}
	if v := os.Getenv("HFN_ENGINE_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.EngineThreads = n
		}
	}
	if v := os.Getenv("HFN_ERROR_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.ErrorBuffer = n
		}
	}
	if v := os.Getenv("HFN_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Runtime.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("HFN_TOPOLOGY"); v != "" {
		cfg.Topology = v
	}

	if v := os.Getenv("HFN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HFN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("HFN_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("HFN_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("HFN_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Runtime.Addr == "" {
		cfg.Runtime.Addr = "[::1]:3000"
	}
	if cfg.Runtime.SDK == "" {
		cfg.Runtime.SDK = DefaultSDK
	}
	if cfg.Runtime.ConfigPath == "" {
		cfg.Runtime.ConfigPath = "hfn.json"
	}
	if cfg.Runtime.ErrorBuffer == 0 {
		cfg.Runtime.ErrorBuffer = 64
	}
	if cfg.Runtime.ShutdownTimeout == 0 {
		cfg.Runtime.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks a configuration that already has defaults applied.
func Validate(cfg *Config) error {
	if cfg.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must not be negative, got %d", cfg.Runtime.Workers)
	}
	if cfg.Runtime.EngineThreads < 0 {
		return fmt.Errorf("runtime.engine_threads must not be negative, got %d", cfg.Runtime.EngineThreads)
	}
	if cfg.Runtime.ErrorBuffer < 0 {
		return fmt.Errorf("runtime.error_buffer must not be negative, got %d", cfg.Runtime.ErrorBuffer)
	}
	if cfg.Runtime.ShutdownTimeout < 0 {
		return fmt.Errorf("runtime.shutdown_timeout must not be negative, got %s", cfg.Runtime.ShutdownTimeout)
	}
	if cfg.Runtime.Dev && cfg.Topology == "" {
		return fmt.Errorf("topology is required when runtime.dev is set")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
