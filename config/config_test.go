package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/hfn/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
runtime:
  dev: true
  addr: "127.0.0.1:4000"
  sdk: "go-test"
  config_path: "/etc/hfn/app.json"
  workers: 8
  engine_threads: 2
  error_buffer: 16
  shutdown_timeout: 3s

logging:
  level: debug
  format: console

metrics:
  enabled: true
  addr: "127.0.0.1:9100"
  path: /internal/metrics

topology: /srv/topology.yaml
`

	cfg := writeAndLoad(t, content)

	if !cfg.Runtime.Dev {
		t.Error("Runtime.Dev = false, want true")
	}
	if cfg.Runtime.Addr != "127.0.0.1:4000" {
		t.Errorf("Runtime.Addr = %s, want 127.0.0.1:4000", cfg.Runtime.Addr)
	}
	if cfg.Runtime.SDK != "go-test" {
		t.Errorf("Runtime.SDK = %s, want go-test", cfg.Runtime.SDK)
	}
	if cfg.Runtime.ConfigPath != "/etc/hfn/app.json" {
		t.Errorf("Runtime.ConfigPath = %s", cfg.Runtime.ConfigPath)
	}
	if cfg.Runtime.Workers != 8 || cfg.Runtime.EngineThreads != 2 || cfg.Runtime.ErrorBuffer != 16 {
		t.Errorf("Runtime pool settings = %+v", cfg.Runtime)
	}
	if cfg.Runtime.ShutdownTimeout != 3*time.Second {
		t.Errorf("Runtime.ShutdownTimeout = %v, want 3s", cfg.Runtime.ShutdownTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9100" || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Topology != "/srv/topology.yaml" {
		t.Errorf("Topology = %s, want /srv/topology.yaml", cfg.Topology)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Runtime.Dev {
		t.Error("Runtime.Dev = true, want false")
	}
	if cfg.Runtime.Addr != "[::1]:3000" {
		t.Errorf("Runtime.Addr = %s, want [::1]:3000", cfg.Runtime.Addr)
	}
	if cfg.Runtime.SDK != config.DefaultSDK {
		t.Errorf("Runtime.SDK = %s, want %s", cfg.Runtime.SDK, config.DefaultSDK)
	}
	if cfg.Runtime.ConfigPath != "hfn.json" {
		t.Errorf("Runtime.ConfigPath = %s, want hfn.json", cfg.Runtime.ConfigPath)
	}
	if cfg.Runtime.Workers != 0 {
		t.Errorf("Runtime.Workers = %d, want 0", cfg.Runtime.Workers)
	}
	if cfg.Runtime.ErrorBuffer != 64 {
		t.Errorf("Runtime.ErrorBuffer = %d, want 64", cfg.Runtime.ErrorBuffer)
	}
	if cfg.Runtime.ShutdownTimeout != 10*time.Second {
		t.Errorf("Runtime.ShutdownTimeout = %v, want 10s", cfg.Runtime.ShutdownTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Metrics.Addr != ":9090" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_HFN_ADDR", "10.0.0.1:3000")

	content := `
runtime:
  addr: "${TEST_HFN_ADDR}"
`
	cfg := writeAndLoad(t, content)

	if cfg.Runtime.Addr != "10.0.0.1:3000" {
		t.Errorf("Runtime.Addr = %s, want 10.0.0.1:3000", cfg.Runtime.Addr)
	}
}

func TestLoad_TopologyRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hfn.yaml")
	content := `
runtime:
  dev: true
topology: fixtures/topology.yaml
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if want := filepath.Join(dir, "fixtures", "topology.yaml"); cfg.Topology != want {
		t.Errorf("Topology = %s, want %s", cfg.Topology, want)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dev without topology", "runtime:\n  dev: true\n"},
		{"negative workers", "runtime:\n  workers: -1\n"},
		{"negative engine threads", "runtime:\n  engine_threads: -2\n"},
		{"negative error buffer", "runtime:\n  error_buffer: -1\n"},
		{"negative shutdown timeout", "runtime:\n  shutdown_timeout: -1s\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
		{"unknown log format", "logging:\n  format: xml\n"},
		{"relative metrics path", "metrics:\n  path: metrics\n"},
		{"invalid yaml", "runtime: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := writeAndLoadErr(t, tt.content); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/hfn.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HFN_DEV", "true")
	t.Setenv("HFN_TOPOLOGY", "/srv/topology.yaml")
	t.Setenv("HFN_ADDR", "0.0.0.0:3001")
	t.Setenv("HFN_WORKERS", "3")
	t.Setenv("HFN_ENGINE_THREADS", "5")
	t.Setenv("HFN_ERROR_BUFFER", "7")
	t.Setenv("HFN_SHUTDOWN_TIMEOUT", "250ms")
	t.Setenv("HFN_LOG_LEVEL", "debug")
	t.Setenv("HFN_METRICS_ENABLED", "true")
	t.Setenv("HFN_METRICS_ADDR", ":9200")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if !cfg.Runtime.Dev || cfg.Topology != "/srv/topology.yaml" {
		t.Errorf("dev settings = %v %s", cfg.Runtime.Dev, cfg.Topology)
	}
	if cfg.Runtime.Addr != "0.0.0.0:3001" {
		t.Errorf("Runtime.Addr = %s, want 0.0.0.0:3001", cfg.Runtime.Addr)
	}
	if cfg.Runtime.Workers != 3 || cfg.Runtime.EngineThreads != 5 || cfg.Runtime.ErrorBuffer != 7 {
		t.Errorf("Runtime = %+v", cfg.Runtime)
	}
	if cfg.Runtime.ShutdownTimeout != 250*time.Millisecond {
		t.Errorf("Runtime.ShutdownTimeout = %v, want 250ms", cfg.Runtime.ShutdownTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HFN_WORKERS", "12")
	t.Setenv("HFN_LOG_LEVEL", "error")

	content := `
runtime:
  workers: 2
  addr: "127.0.0.1:3000"
logging:
  level: info
`
	cfg := writeAndLoad(t, content)

	if cfg.Runtime.Workers != 12 {
		t.Errorf("Runtime.Workers = %d, want 12 (env override)", cfg.Runtime.Workers)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Runtime.Addr != "127.0.0.1:3000" {
		t.Errorf("Runtime.Addr = %s, want file value", cfg.Runtime.Addr)
	}
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("HFN_WORKERS", "many")
	t.Setenv("HFN_SHUTDOWN_TIMEOUT", "soon")

	content := `
runtime:
  workers: 4
  shutdown_timeout: 2s
`
	cfg := writeAndLoad(t, content)

	if cfg.Runtime.Workers != 4 {
		t.Errorf("Runtime.Workers = %d, want 4", cfg.Runtime.Workers)
	}
	if cfg.Runtime.ShutdownTimeout != 2*time.Second {
		t.Errorf("Runtime.ShutdownTimeout = %v, want 2s", cfg.Runtime.ShutdownTimeout)
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "hfn.yaml")
		if err := os.WriteFile(path, []byte("runtime:\n  addr: \"file:1\"\n"), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Runtime.Addr != "file:1" {
			t.Errorf("Runtime.Addr = %s, want file:1", cfg.Runtime.Addr)
		}
	})

	t.Run("env only", func(t *testing.T) {
		t.Setenv("HFN_ADDR", "env:1")

		cfg, err := config.LoadWithFallback("/nonexistent/hfn.yaml")
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Runtime.Addr != "env:1" {
			t.Errorf("Runtime.Addr = %s, want env:1", cfg.Runtime.Addr)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := config.LoadWithFallback(""); err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
	})
}

func TestParseBoolValues(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("HFN_METRICS_ENABLED", tt.value)

			cfg, err := config.LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv error: %v", err)
			}
			if cfg.Metrics.Enabled != tt.expected {
				t.Errorf("Metrics.Enabled = %v, want %v", cfg.Metrics.Enabled, tt.expected)
			}
		})
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
