package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/artpar/hfn/config"
	"github.com/rs/zerolog"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", got.Logging.Level)
	}
	if !filepath.IsAbs(h.Path()) {
		t.Errorf("Path() = %s, want absolute", h.Path())
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var received *config.Config
	var outcomes []error
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})
	h.OnReload(func(err error) {
		mu.Lock()
		outcomes = append(outcomes, err)
		mu.Unlock()
	})

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	if h.Get().Logging.Level != "debug" {
		t.Errorf("reloaded Logging.Level = %s, want debug", h.Get().Logging.Level)
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.Logging.Level != "debug" {
		t.Errorf("OnChange received %+v", received)
	}
	if len(outcomes) != 1 || outcomes[0] != nil {
		t.Errorf("OnReload outcomes = %v, want [nil]", outcomes)
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var changed bool
	var outcome error
	h.OnChange(func(*config.Config) { changed = true })
	h.OnReload(func(err error) { outcome = err })

	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}
	if h.Get().Logging.Level != "info" {
		t.Errorf("should keep old config, got Logging.Level = %s", h.Get().Logging.Level)
	}
	if changed {
		t.Error("OnChange should not run for a failed reload")
	}
	if outcome == nil {
		t.Error("OnReload should receive the failure")
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	reloaded := make(chan struct{}, 8)
	h.OnChange(func(*config.Config) {
		reloaded <- struct{}{}
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	// a write can arrive as several events; wait for the last one to land
	deadline := time.Now().Add(2 * time.Second)
	for h.Get().Logging.Level != "warn" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Get().Logging.Level != "warn" {
		t.Errorf("after file watch, Logging.Level = %s, want warn", h.Get().Logging.Level)
	}
}

func TestHolder_StopTwice(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}
	h.WatchSignals()

	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}

	wg.Wait()
}

func TestNewHolder_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "logging:\n  format: xml\n")

	_, err := config.NewHolder(path, zerolog.Nop())
	if err == nil {
		t.Fatal("NewHolder should fail for invalid config")
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		t.Errorf("NewHolder error = %v, want validation error", err)
	}
}

func TestReloadableFields(t *testing.T) {
	reloadable := config.ReloadableFields()
	nonReloadable := config.NonReloadableFields()

	if len(reloadable) == 0 || len(nonReloadable) == 0 {
		t.Fatal("field lists should not be empty")
	}

	seen := make(map[string]bool)
	for _, f := range reloadable {
		seen[f] = true
	}
	for _, f := range nonReloadable {
		if seen[f] {
			t.Errorf("%s listed as both reloadable and non-reloadable", f)
		}
	}
	if !seen["logging.level"] {
		t.Error("logging.level should be reloadable")
	}
}

// Helpers

func validConfig() string {
	return `
runtime:
  addr: "127.0.0.1:3000"
logging:
  level: info
`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
