// ABOUTME: Entry point for the familiar assistant CLI
// ABOUTME: Drives capability server lifecycle and the interactive chat loop

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/config"
	"github.com/2389/familiar/internal/daemon"
	"github.com/2389/familiar/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __                 _ _ _
 / _| __ _ _ __ ___ (_) (_) __ _ _ __
| |_ / _' | '_ ' _ \| | | |/ _' | '__|
|  _| (_| | | | | | | | | | (_| | |
|_|  \__,_|_| |_| |_|_|_|_|\__,_|_|
`

func main() {
	// A .env file can supply FAMILIAR_CONFIG and ${VAR} values referenced
	// from the config file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: familiar <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  chat            Start an interactive chat session")
		fmt.Println("  up              Start the configured capability servers")
		fmt.Println("  down            Stop the locally managed capability servers")
		fmt.Println("  status          Show capability server health")
		fmt.Println("  restart NAME    Restart one supervised server")
		fmt.Println("  init            Create a new config file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(ctx)
	case "up":
		err = runUp(ctx)
	case "down":
		err = runDown(ctx)
	case "status":
		err = runStatus(ctx)
	case "restart":
		err = runRestart(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to built-in defaults when
// no file exists yet. A file that exists but fails to parse or validate is
// an error.
func loadConfig() (*config.Config, string, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), path, nil
	}
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// loadRegistry reads the capability server registry named by the config,
// applying the host-side endpoint and directory defaults. Under stdio
// transport the endpoint defaults are withheld, so command-bearing entries
// run as stdio sessions instead of daemons.
func loadRegistry(cfg *config.Config) (*capability.Registry, error) {
	registryPath, err := config.ExpandHome(cfg.Servers.Registry)
	if err != nil {
		return nil, err
	}
	pidDir, err := config.ExpandHome(cfg.Servers.PIDDir)
	if err != nil {
		return nil, err
	}
	logDir, err := config.ExpandHome(cfg.Servers.LogDir)
	if err != nil {
		return nil, err
	}

	defaults := capability.Defaults{PIDDir: pidDir, LogDir: logDir}
	if cfg.Servers.Transport != "stdio" {
		defaults.Endpoints = cfg.Servers.Endpoints
	}

	return capability.Load(registryPath, defaults)
}

func runUp(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	orch := tools.New(reg, logger)

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Registry: %s servers (%s)\n", joinNames(reg.Names()), cfg.Servers.Transport)
	fmt.Println()

	outcomes := orch.StartAll(ctx)
	red := color.New(color.FgRed)
	for _, name := range reg.Names() {
		out, ok := outcomes[name]
		if !ok {
			gray.Printf("    - %s: remote, nothing to start\n", name)
			continue
		}
		if out.Err != nil {
			red.Printf("    ✗ %s: %v\n", name, out.Err)
			continue
		}
		green.Printf("    ✓ %s: %s\n", name, out.Result)
	}

	// Supervised daemons outlive this process. Stdio sessions cannot, so
	// say so instead of pretending they will still be up.
	if stdioNames := stdioServers(reg); len(stdioNames) > 0 {
		fmt.Println()
		gray.Printf("    stdio servers (%s) live only inside a chat session\n", joinNames(stdioNames))
	}
	return nil
}

func runDown(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	orch := tools.New(reg, logger)

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	stopped := 0
	for _, name := range reg.Names() {
		result, err := orch.Stop(ctx, name)
		switch {
		case errors.Is(err, tools.ErrUnmanaged):
			gray.Printf("    - %s: not locally managed\n", name)
		case err != nil:
			red.Printf("    ✗ %s: %v\n", name, err)
		case result == daemon.NotRunning:
			gray.Printf("    - %s: not running\n", name)
		default:
			green.Printf("    ✓ %s: %s\n", name, result)
			stopped++
		}
	}

	fmt.Printf("\n%d server(s) stopped\n", stopped)
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	orch := tools.New(reg, logger)

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	for _, st := range orch.Status(ctx) {
		desc, _ := reg.Get(st.Name)

		switch {
		case st.Healthy:
			green.Print("    ● ")
		case st.Err != nil:
			red.Print("    ✗ ")
		default:
			gray.Print("    ○ ")
		}

		fmt.Printf("%-20s %-7s", st.Name, serverMode(desc))

		switch {
		case st.Healthy:
			fmt.Printf(" healthy\n")
		case st.Err != nil:
			fmt.Printf(" unreachable: %v\n", st.Err)
		case desc.Supervised():
			fmt.Printf(" stopped\n")
		default:
			fmt.Printf(" not connected\n")
		}
	}
	return nil
}

func runRestart(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: familiar restart NAME")
	}
	name := os.Args[2]

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	orch := tools.New(reg, logger)

	result, err := orch.Restart(ctx, name)
	if err != nil {
		return fmt.Errorf("restarting %s: %w", name, err)
	}

	green := color.New(color.FgGreen)
	green.Printf("    ✓ %s: %s\n", name, result)
	return nil
}

// serverMode names how a registry entry is reached: a supervised daemon,
// a remote endpoint, or a stdio child.
func serverMode(desc *capability.Descriptor) string {
	switch {
	case desc.Supervised():
		return "daemon"
	case desc.Endpoint != "":
		return "remote"
	default:
		return "stdio"
	}
}

func stdioServers(reg *capability.Registry) []string {
	var names []string
	for _, desc := range reg.All() {
		if desc.Endpoint == "" {
			names = append(names, desc.Name)
		}
	}
	return names
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("familiar configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultPath, err := config.DefaultPath()
	if err != nil {
		return err
	}

	outputFile := prompt(reader, "Config file path", defaultPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Ollama Configuration ---")
	ollamaHost := prompt(reader, "Ollama host", "http://localhost:11434")
	defaultModel := prompt(reader, "Default model", "llama3")

	fmt.Println("\n--- Capability Servers ---")
	registryPath := prompt(reader, "Server registry path", "~/.config/familiar/servers.json")
	transport := prompt(reader, "Transport (http/stdio)", "http")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# familiar configuration\n")
	cfg.WriteString("# Generated by familiar init\n\n")

	cfg.WriteString("ollama:\n")
	cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", ollamaHost))
	cfg.WriteString(fmt.Sprintf("  default_model: \"%s\"\n", defaultModel))
	cfg.WriteString("\n")

	cfg.WriteString("servers:\n")
	cfg.WriteString(fmt.Sprintf("  registry: \"%s\"\n", registryPath))
	cfg.WriteString(fmt.Sprintf("  transport: \"%s\"\n", transport))
	cfg.WriteString("\n")

	cfg.WriteString("watchdog:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  poll_interval: \"5s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\n    ✓ Config written to %s\n", outputFile)

	// Seed a starter registry so chat works out of the box. An existing
	// registry is left alone.
	expandedRegistry, err := config.ExpandHome(registryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expandedRegistry); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(expandedRegistry), 0755); err != nil {
			return fmt.Errorf("creating registry directory: %w", err)
		}
		if err := os.WriteFile(expandedRegistry, []byte(starterRegistry(transport)), 0644); err != nil {
			return fmt.Errorf("writing server registry: %w", err)
		}
		green.Printf("    ✓ Server registry written to %s\n", expandedRegistry)
	} else {
		fmt.Printf("    Using existing registry: %s\n", expandedRegistry)
	}

	fmt.Println("\nTo start chatting:")
	fmt.Println("  familiar chat")

	return nil
}

// starterRegistry lists the four standard capability servers with their
// published launch commands. Daemon options only validate on supervised
// HTTP entries, so the stdio flavor carries bare commands.
func starterRegistry(transport string) string {
	if strings.ToLower(transport) == "stdio" {
		return starterRegistryStdio
	}
	return starterRegistryDaemon
}

const starterRegistryDaemon = `{
  "servers": {
    "memory": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-memory"],
      "daemon_enabled": true,
      "auto_restart": true
    },
    "fetch": {
      "command": "uvx",
      "args": ["mcp-server-fetch"],
      "daemon_enabled": true,
      "auto_restart": true
    },
    "puppeteer": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-puppeteer"],
      "daemon_enabled": true
    },
    "sequential_thinking": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-sequential-thinking"],
      "daemon_enabled": true
    }
  }
}
`

const starterRegistryStdio = `{
  "servers": {
    "memory": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-memory"]
    },
    "fetch": {
      "command": "uvx",
      "args": ["mcp-server-fetch"]
    },
    "puppeteer": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-puppeteer"]
    },
    "sequential_thinking": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-sequential-thinking"]
    }
  }
}
`

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
