// ABOUTME: Stdio transport speaking the subprocess tool protocol via mcp-go
// ABOUTME: Spawns the server as a child on first use and reuses the session

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Stdio drives a capability server over the subprocess tool protocol.
// The child process is spawned and the handshake performed on first use;
// the session is then reused until Close.
type Stdio struct {
	server  string
	command string
	args    []string
	env     []string
	logger  *slog.Logger

	mu     sync.Mutex
	client *mcpclient.Client
}

// NewStdio builds a transport that launches command with args when first
// used. env entries are layered over the inherited environment by the
// protocol library.
func NewStdio(server, command string, args []string, env map[string]string, logger *slog.Logger) *Stdio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stdio{
		server:  server,
		command: command,
		args:    args,
		env:     envList(env),
		logger:  logger.With("component", "transport", "server", server, "flavor", FlavorStdio),
	}
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

func (t *Stdio) Flavor() Flavor { return FlavorStdio }

// Live reports whether the protocol session is currently established.
func (t *Stdio) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil
}

// Connect establishes the protocol session, spawning the child process.
// fresh reports whether this call created the session rather than
// finding one already live.
func (t *Stdio) Connect(ctx context.Context) (fresh bool, err error) {
	_, fresh, err = t.session(ctx)
	return fresh, err
}

// session returns the live protocol session, establishing it on first use.
func (t *Stdio) session(ctx context.Context) (*mcpclient.Client, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, false, nil
	}

	c, err := mcpclient.NewStdioMCPClient(t.command, t.env, t.args...)
	if err != nil {
		return nil, false, &Error{Server: t.server, Op: "initialize", Msg: "spawning server", Err: err}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "familiar", Version: "0.1.0"}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, false, &Error{Server: t.server, Op: "initialize", Err: err}
	}

	t.logger.Debug("session established", "command", t.command)
	t.client = c
	return c, true, nil
}

func (t *Stdio) Call(ctx context.Context, op Op, args map[string]any) (map[string]any, error) {
	c, _, err := t.session(ctx)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = op.Tool
	req.Params.Arguments = args

	t.logger.Debug("calling", "op", op.Name, "tool", op.Tool)

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Err: err}
	}

	text := flattenContent(res.Content)
	if res.IsError {
		return nil, &Error{Server: t.server, Op: op.Name, Msg: text}
	}
	return decodeToolText(text), nil
}

// CheckHealth verifies the session answers a protocol ping, establishing
// it first if needed.
func (t *Stdio) CheckHealth(ctx context.Context) error {
	c, _, err := t.session(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		return &Error{Server: t.server, Op: "health", Err: err}
	}
	return nil
}

// Close shuts down the protocol session and its child process.
func (t *Stdio) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	if err != nil {
		return fmt.Errorf("closing %s session: %w", t.server, err)
	}
	return nil
}

// flattenContent joins the text parts of a tool reply. Image parts
// contribute their base64 payload, which is how screenshot data travels.
func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case mcp.ImageContent:
			parts = append(parts, tc.Data)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeToolText maps a tool reply onto the object shape the HTTP dialect
// returns. JSON object replies decode as-is; anything else is exposed
// under "content".
func decodeToolText(text string) map[string]any {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var out map[string]any
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return map[string]any{"content": text}
}
