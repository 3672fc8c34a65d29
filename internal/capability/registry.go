// ABOUTME: Loads and validates the JSON server registry into capability descriptors
// ABOUTME: Registry is an explicit owned object - constructed once, immutable, passed around

package capability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Defaults supplies values the registry document leaves to the host
// application: HTTP endpoints per server name and the directories used
// when a daemon entry omits pid_file or log_file.
type Defaults struct {
	Endpoints map[string]string
	PIDDir    string
	LogDir    string
}

// Registry holds the validated descriptor set. It replaces any notion of a
// process-wide server table: construct one per orchestrator and pass it down.
type Registry struct {
	descriptors map[string]*Descriptor
	names       []string
}

// registryDoc mirrors the external JSON document. The shape is a published
// contract shared with the capability servers' own tooling.
type registryDoc struct {
	Servers map[string]serverSpec `json:"servers"`
}

type serverSpec struct {
	Command       string            `json:"command"`
	Args          []string          `json:"args"`
	Env           map[string]string `json:"env"`
	Endpoint      string            `json:"endpoint"`
	Transport     string            `json:"transport"` // "http", "stdio", or empty for auto
	DaemonEnabled bool              `json:"daemon_enabled"`
	PIDFile       string            `json:"pid_file"`
	LogFile       string            `json:"log_file"`
	WorkingDir    string            `json:"working_dir"`
	AutoRestart   bool              `json:"auto_restart"`
	RestartDelay  int               `json:"restart_delay"` // seconds
}

// Load reads the server registry document at path.
func Load(path string, defaults Defaults) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server registry: %w", err)
	}
	reg, err := Parse(data, defaults)
	if err != nil {
		return nil, fmt.Errorf("loading server registry %s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a Registry from raw registry JSON.
func Parse(data []byte, defaults Defaults) (*Registry, error) {
	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Field: "document", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(doc.Servers) == 0 {
		return nil, &ConfigError{Field: "servers", Reason: "no servers configured"}
	}

	reg := &Registry{descriptors: make(map[string]*Descriptor, len(doc.Servers))}
	for name, spec := range doc.Servers {
		if name == "" {
			return nil, &ConfigError{Field: "servers", Reason: "empty server name"}
		}
		d := &Descriptor{
			Name:          name,
			Command:       spec.Command,
			Args:          spec.Args,
			Env:           spec.Env,
			DaemonEnabled: spec.DaemonEnabled,
			PIDFile:       spec.PIDFile,
			LogFile:       spec.LogFile,
			WorkingDir:    spec.WorkingDir,
			AutoRestart:   spec.AutoRestart,
			RestartDelay:  time.Duration(spec.RestartDelay) * time.Second,
		}
		if kind, ok := KindForServer(name); ok {
			d.Kind = kind
		}

		d.Endpoint = spec.Endpoint
		if d.Endpoint == "" {
			d.Endpoint = defaults.Endpoints[name]
		}
		switch spec.Transport {
		case "", "http":
			// Auto mode: a command with no endpoint in reach means stdio.
		case "stdio":
			if spec.Endpoint != "" {
				return nil, &ConfigError{Server: name, Field: "transport", Reason: "stdio transport cannot use an endpoint"}
			}
			if spec.Command == "" {
				return nil, &ConfigError{Server: name, Field: "transport", Reason: "stdio transport requires a command"}
			}
			d.Endpoint = ""
		default:
			return nil, &ConfigError{Server: name, Field: "transport", Reason: fmt.Sprintf("unknown transport %q", spec.Transport)}
		}
		if spec.Transport == "http" && d.Endpoint == "" {
			return nil, &ConfigError{Server: name, Field: "transport", Reason: "http transport requires an endpoint"}
		}

		if d.Supervised() {
			if d.PIDFile == "" && defaults.PIDDir != "" {
				d.PIDFile = filepath.Join(defaults.PIDDir, name+".pid")
			}
			if d.LogFile == "" && defaults.LogDir != "" {
				d.LogFile = filepath.Join(defaults.LogDir, name+".log")
			}
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		reg.descriptors[name] = d
	}

	reg.names = make([]string, 0, len(reg.descriptors))
	for name := range reg.descriptors {
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)

	return reg, nil
}

// Get returns the descriptor for a server name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns all server names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns every descriptor in Names() order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Len returns the number of configured servers.
func (r *Registry) Len() int {
	return len(r.descriptors)
}
