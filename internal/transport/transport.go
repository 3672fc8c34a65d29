// ABOUTME: Transport abstracts how a capability server is reached
// ABOUTME: One dialect speaks JSON over HTTP, the other the subprocess tool protocol

package transport

import (
	"context"
	"fmt"
	"strings"
)

// Flavor identifies the wire dialect a transport speaks.
type Flavor int

const (
	FlavorHTTP Flavor = iota
	FlavorStdio
)

func (f Flavor) String() string {
	switch f {
	case FlavorHTTP:
		return "http"
	case FlavorStdio:
		return "stdio"
	default:
		return "unknown"
	}
}

// Op names one capability operation in both dialects.
type Op struct {
	Name string // label used in errors and logs
	Path string // HTTP request path
	Tool string // subprocess protocol tool name
}

// Transport executes capability operations against one server.
// Implementations establish their session lazily on first use and reuse
// it for every later call; a transport never holds two live sessions.
type Transport interface {
	// Call executes one operation. The reply is the decoded JSON object,
	// or {"content": text} when the server replied with plain text.
	Call(ctx context.Context, op Op, args map[string]any) (map[string]any, error)

	// CheckHealth reports whether the server is reachable and ready.
	CheckHealth(ctx context.Context) error

	// Flavor reports the wire dialect, for callers whose payload shapes
	// differ between dialects.
	Flavor() Flavor

	// Close releases the underlying session. Safe before first use and
	// safe to call twice.
	Close() error
}

// Error reports a failed capability call: an unreachable server, a
// non-success HTTP status, a malformed reply, or a tool-level failure.
type Error struct {
	Server string
	Op     string
	Status int // HTTP status code, zero when not applicable
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport %s: %s", e.Server, e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
