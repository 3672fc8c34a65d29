// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "familiar.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configContent := `
ollama:
  host: "http://box:11434"
  default_model: "mistral"

servers:
  registry: "/etc/familiar/servers.json"
  endpoints:
    memory: "http://box:3100"
  transport: "http"
  pid_dir: "/run/familiar"
  log_dir: "/var/log/familiar"

watchdog:
  enabled: true
  poll_interval: "30s"

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ollama.Host != "http://box:11434" {
		t.Errorf("Ollama.Host = %q, want %q", cfg.Ollama.Host, "http://box:11434")
	}
	if cfg.Ollama.DefaultModel != "mistral" {
		t.Errorf("Ollama.DefaultModel = %q, want %q", cfg.Ollama.DefaultModel, "mistral")
	}

	if cfg.Servers.Registry != "/etc/familiar/servers.json" {
		t.Errorf("Servers.Registry = %q, want %q", cfg.Servers.Registry, "/etc/familiar/servers.json")
	}
	if cfg.Servers.Endpoints["memory"] != "http://box:3100" {
		t.Errorf("Servers.Endpoints[memory] = %q, want %q", cfg.Servers.Endpoints["memory"], "http://box:3100")
	}
	if cfg.Servers.PIDDir != "/run/familiar" {
		t.Errorf("Servers.PIDDir = %q, want %q", cfg.Servers.PIDDir, "/run/familiar")
	}

	if !cfg.Watchdog.Enabled {
		t.Error("Watchdog.Enabled = false, want true")
	}
	if cfg.Watchdog.PollInterval != 30*time.Second {
		t.Errorf("Watchdog.PollInterval = %v, want %v", cfg.Watchdog.PollInterval, 30*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	configContent := `
ollama:
  default_model: "mistral"

servers:
  endpoints:
    memory: "http://box:3100"
`
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("Ollama.Host = %q, want default", cfg.Ollama.Host)
	}
	if cfg.Ollama.DefaultModel != "mistral" {
		t.Errorf("Ollama.DefaultModel = %q, want %q", cfg.Ollama.DefaultModel, "mistral")
	}

	// A partial endpoints block merges over the defaults.
	if cfg.Servers.Endpoints["memory"] != "http://box:3100" {
		t.Errorf("Servers.Endpoints[memory] = %q, want override", cfg.Servers.Endpoints["memory"])
	}
	if cfg.Servers.Endpoints["fetch"] != "http://localhost:3101" {
		t.Errorf("Servers.Endpoints[fetch] = %q, want default", cfg.Servers.Endpoints["fetch"])
	}

	if cfg.Watchdog.PollInterval != 5*time.Second {
		t.Errorf("Watchdog.PollInterval = %v, want default 5s", cfg.Watchdog.PollInterval)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_OLLAMA_HOST", "http://expanded:11434")

	configContent := `
ollama:
  host: "${TEST_OLLAMA_HOST}"
  default_model: "llama3"
`
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.Host != "http://expanded:11434" {
		t.Errorf("Ollama.Host = %q, want expanded value", cfg.Ollama.Host)
	}
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	configContent := `
ollama:
  host: "${TEST_FAMILIAR_UNSET_VAR}"
`
	_, err := Load(writeConfig(t, configContent))
	if err == nil {
		t.Fatal("Load() error = nil, want validation failure for empty host")
	}
	if !strings.Contains(err.Error(), "ollama.host") {
		t.Errorf("error = %v, want mention of ollama.host", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configContent := `
watchdog:
  poll_interval: "soon"
`
	_, err := Load(writeConfig(t, configContent))
	if err == nil {
		t.Fatal("Load() error = nil, want duration parse failure")
	}
	if !strings.Contains(err.Error(), "poll_interval") {
		t.Errorf("error = %v, want mention of poll_interval", err)
	}
}

func TestLoad_InvalidTransport(t *testing.T) {
	configContent := `
servers:
  transport: "grpc"
`
	_, err := Load(writeConfig(t, configContent))
	if err == nil || !strings.Contains(err.Error(), "servers.transport") {
		t.Errorf("error = %v, want servers.transport failure", err)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	configContent := `
logging:
  level: "loud"
`
	_, err := Load(writeConfig(t, configContent))
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("error = %v, want logging.level failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want read failure")
	}
}

func TestValidate_WatchdogInterval(t *testing.T) {
	cfg := Default()
	cfg.Watchdog.Enabled = true
	cfg.Watchdog.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want poll_interval failure")
	}

	cfg.Watchdog.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with disabled watchdog error = %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("FAMILIAR_CONFIG", "/tmp/custom.yaml")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error = %v", err)
	}
	if path != "/tmp/custom.yaml" {
		t.Errorf("DefaultPath() = %q, want FAMILIAR_CONFIG value", path)
	}

	t.Setenv("FAMILIAR_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err = DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error = %v", err)
	}
	if path != filepath.Join("/tmp/xdg", "familiar", "familiar.yaml") {
		t.Errorf("DefaultPath() = %q, want XDG location", path)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandHome("~/x/y.json")
	if err != nil {
		t.Fatalf("ExpandHome() error = %v", err)
	}
	if got != filepath.Join(home, "x", "y.json") {
		t.Errorf("ExpandHome(~/x/y.json) = %q", got)
	}

	got, err = ExpandHome("/abs/path.json")
	if err != nil {
		t.Fatalf("ExpandHome() error = %v", err)
	}
	if got != "/abs/path.json" {
		t.Errorf("ExpandHome(/abs/path.json) = %q, want unchanged", got)
	}
}
