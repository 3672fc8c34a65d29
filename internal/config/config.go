// ABOUTME: Configuration loading and parsing for familiar
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete familiar configuration
type Config struct {
	Ollama   OllamaConfig   `yaml:"ollama"`
	Servers  ServersConfig  `yaml:"servers"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OllamaConfig holds the model backend configuration
type OllamaConfig struct {
	Host         string `yaml:"host"`
	DefaultModel string `yaml:"default_model"`
}

// ServersConfig locates the capability server registry and the host-side
// defaults applied to its entries
type ServersConfig struct {
	// Registry is the path of the JSON server registry document.
	Registry string `yaml:"registry"`

	// Endpoints maps capability server names to their HTTP base URLs.
	// Values from a config file merge over the built-in defaults.
	Endpoints map[string]string `yaml:"endpoints"`

	// Transport selects the dialect for servers that could speak either:
	// "http" supplies the default endpoints to command-bearing entries,
	// "stdio" withholds them so those servers run over stdio sessions.
	Transport string `yaml:"transport"`

	PIDDir string `yaml:"pid_dir"`
	LogDir string `yaml:"log_dir"`
}

// WatchdogConfig controls the supervised-server respawn loop
type WatchdogConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration familiar runs with when no file
// overrides it.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3",
		},
		Servers: ServersConfig{
			Registry: "~/.config/familiar/servers.json",
			Endpoints: map[string]string{
				"memory":              "http://localhost:3100",
				"fetch":               "http://localhost:3101",
				"puppeteer":           "http://localhost:3102",
				"sequential_thinking": "http://localhost:3103",
			},
			Transport: "http",
			PIDDir:    "~/.familiar/run",
			LogDir:    "~/.familiar/logs",
		},
		Watchdog: WatchdogConfig{
			Enabled:      true,
			PollInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Fields the file leaves out keep their Default() values; endpoint maps
// merge key by key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns where familiar looks for its config file:
// $FAMILIAR_CONFIG wins, then $XDG_CONFIG_HOME/familiar/familiar.yaml,
// then ~/.config/familiar/familiar.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("FAMILIAR_CONFIG"); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "familiar", "familiar.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "familiar", "familiar.yaml"), nil
}

// ExpandHome resolves a leading "~/" against the user's home directory.
// Paths without the prefix come back unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Ollama.Host == "" {
		return fmt.Errorf("ollama.host is required")
	}
	if c.Ollama.DefaultModel == "" {
		return fmt.Errorf("ollama.default_model is required")
	}
	if c.Servers.Registry == "" {
		return fmt.Errorf("servers.registry is required")
	}

	switch c.Servers.Transport {
	case "", "http", "stdio":
	default:
		return fmt.Errorf("servers.transport must be \"http\" or \"stdio\", got %q", c.Servers.Transport)
	}

	if c.Watchdog.Enabled && c.Watchdog.PollInterval <= 0 {
		return fmt.Errorf("watchdog.poll_interval must be positive when the watchdog is enabled")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Watchdog.PollIntervalRaw != "" {
		cfg.Watchdog.PollInterval, err = time.ParseDuration(cfg.Watchdog.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Watchdog.PollIntervalRaw, err)
		}
	}

	return nil
}
