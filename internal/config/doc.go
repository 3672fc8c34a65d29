// Package config handles configuration loading for familiar.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; a missing file is
// not an error at this layer, callers fall back to Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FAMILIAR_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/familiar/familiar.yaml
//  3. ~/.config/familiar/familiar.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	ollama:
//	  host: "${OLLAMA_HOST}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	watchdog:
//	  poll_interval: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Model backend:
//
//	ollama:
//	  host: "http://localhost:11434"
//	  default_model: "llama3"
//
// Capability servers:
//
//	servers:
//	  registry: "~/.config/familiar/servers.json"
//	  endpoints:
//	    memory: "http://localhost:3100"
//	    fetch: "http://localhost:3101"
//	    puppeteer: "http://localhost:3102"
//	    sequential_thinking: "http://localhost:3103"
//	  transport: "http"   # or "stdio"
//	  pid_dir: "~/.familiar/run"
//	  log_dir: "~/.familiar/logs"
//
// Watchdog:
//
//	watchdog:
//	  enabled: true
//	  poll_interval: "5s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Required backend fields (host, default model)
//   - Registry path presence
//   - Transport, log level, and log format values
//   - Duration format validity
//
// # Usage
//
// Load configuration from the default location:
//
//	path, _ := config.DefaultPath()
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
