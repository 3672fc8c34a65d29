// ABOUTME: Capability descriptors: static configuration for one capability server
// ABOUTME: Defines the closed set of capability kinds and per-server daemon options

package capability

import (
	"fmt"
	"time"
)

// Kind identifies one of the capability families this runtime knows how to
// talk to. The set is closed: dispatch is a lookup over these kinds, never
// attribute probing.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFetch    Kind = "fetch"
	KindBrowser  Kind = "browser"
	KindThinking Kind = "thinking"
)

// kindByServer maps well-known registry server names to their capability kind.
var kindByServer = map[string]Kind{
	"memory":              KindMemory,
	"fetch":               KindFetch,
	"puppeteer":           KindBrowser,
	"sequential_thinking": KindThinking,
}

// KindForServer returns the capability kind for a registry server name.
// The second return is false for names outside the known set.
func KindForServer(name string) (Kind, bool) {
	k, ok := kindByServer[name]
	return k, ok
}

// Descriptor is the static configuration for one capability server.
// Immutable after load: callers must not modify a Descriptor obtained
// from a Registry.
type Descriptor struct {
	Name string
	Kind Kind

	// Command is the executable to spawn. Empty means the server is
	// remote or already running and is reachable only via Endpoint.
	Command string
	Args    []string
	Env     map[string]string

	// Endpoint is the base URL for the HTTP dialect. Empty on a server
	// with a Command means the server speaks the stdio dialect and its
	// process belongs to the transport session, not a supervisor.
	Endpoint string

	// DaemonEnabled detaches the spawned process into its own process
	// group so it outlives interactive sessions. Requires a supervised
	// command and a log file.
	DaemonEnabled bool

	PIDFile    string
	LogFile    string
	WorkingDir string

	AutoRestart  bool
	RestartDelay time.Duration
}

// Supervised reports whether this server's process is owned by a
// supervisor: it has a command to spawn and an HTTP endpoint to reach
// it at. Stdio servers spawn inside their transport session instead.
func (d *Descriptor) Supervised() bool {
	return d.Command != "" && d.Endpoint != ""
}

// ConfigError reports an invalid server registry entry or document.
type ConfigError struct {
	Server string // registry key; empty for document-level problems
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Server == "" {
		return fmt.Sprintf("capability config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("capability config: server %q: %s: %s", e.Server, e.Field, e.Reason)
}

// validate checks a single descriptor after defaults have been applied.
func (d *Descriptor) validate() error {
	if d.Command == "" && d.Endpoint == "" {
		return &ConfigError{Server: d.Name, Field: "command", Reason: "either command or an endpoint is required"}
	}
	if d.DaemonEnabled && !d.Supervised() {
		return &ConfigError{Server: d.Name, Field: "daemon_enabled", Reason: "daemon mode requires a command and an endpoint"}
	}
	if d.AutoRestart && !d.Supervised() {
		return &ConfigError{Server: d.Name, Field: "auto_restart", Reason: "auto restart requires a supervised command"}
	}
	if d.RestartDelay < 0 {
		return &ConfigError{Server: d.Name, Field: "restart_delay", Reason: "must not be negative"}
	}
	if d.Supervised() && d.PIDFile == "" {
		return &ConfigError{Server: d.Name, Field: "pid_file", Reason: "required for supervised commands (no default pid directory configured)"}
	}
	if d.DaemonEnabled && d.LogFile == "" {
		return &ConfigError{Server: d.Name, Field: "log_file", Reason: "required in daemon mode (no default log directory configured)"}
	}
	return nil
}
