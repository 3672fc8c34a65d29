// Package capability defines the server registry: which capability servers
// exist, what kind of capability each provides, and how each one is launched
// and reached.
//
// # Descriptors
//
// A Descriptor is the static launch-and-connect record for one server:
//
//	type Descriptor struct {
//	    Name          string
//	    Kind          Kind
//	    Command       string
//	    Args          []string
//	    Env           map[string]string
//	    Endpoint      string
//	    DaemonEnabled bool
//	    PIDFile       string
//	    LogFile       string
//	    WorkingDir    string
//	    AutoRestart   bool
//	    RestartDelay  time.Duration
//	}
//
// A server is reachable one of three ways. A command plus an endpoint
// means a locally supervised process spoken to over HTTP. An endpoint
// alone means a remote server something else keeps alive. A command
// alone (or an explicit "transport": "stdio") means a child process
// spoken to over its stdin/stdout, owned by the transport session
// rather than a supervisor.
//
// # Kinds
//
// Kind is the closed set of capabilities the orchestrator knows how to
// drive: memory, fetch, browser, and thinking. The registry maps well-known
// server names to kinds at load time, so unknown server names fail fast
// instead of surfacing later as dispatch errors.
//
// # Registry
//
// Load reads a JSON registry file:
//
//	{
//	  "servers": {
//	    "memory": {
//	      "command": "mcp-server-memory",
//	      "daemon_enabled": true,
//	      "auto_restart": true,
//	      "restart_delay": 5
//	    }
//	  }
//	}
//
// Defaults supply the per-server endpoint plus the directories used to
// derive pid_file and log_file paths when a supervised server does not
// set its own. Every descriptor is validated before the registry is
// returned; a bad entry fails the whole load with a ConfigError naming
// the server and field.
package capability
