// ABOUTME: HTTP transport for capability servers speaking the JSON-over-HTTP dialect
// ABOUTME: POSTs operation payloads to {endpoint}{path} and decodes object replies

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	callTimeout   = 30 * time.Second
	healthTimeout = 5 * time.Second
	maxErrorBody  = 1024
)

// HTTP talks the JSON-over-HTTP dialect to one capability server.
type HTTP struct {
	server   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTP builds a transport bound to one server's endpoint.
func NewHTTP(server, endpoint string, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		server:   server,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: callTimeout},
		logger:   logger.With("component", "transport", "server", server, "flavor", FlavorHTTP),
	}
}

func (t *HTTP) Flavor() Flavor { return FlavorHTTP }

// Close is a no-op; this dialect holds no per-server session state.
func (t *HTTP) Close() error { return nil }

func (t *HTTP) Call(ctx context.Context, op Op, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Msg: "encoding payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+op.Path, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Msg: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	t.logger.Debug("calling", "op", op.Name, "path", op.Path)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Server: t.server, Op: op.Name, Status: resp.StatusCode, Msg: strings.TrimSpace(string(detail))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Msg: "reading reply", Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Server: t.server, Op: op.Name, Msg: "malformed reply", Err: err}
	}
	return out, nil
}

// CheckHealth issues a bounded GET to the server's health endpoint.
func (t *HTTP) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"/health", nil)
	if err != nil {
		return &Error{Server: t.server, Op: "health", Msg: "building request", Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &Error{Server: t.server, Op: "health", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Server: t.server, Op: "health", Status: resp.StatusCode}
	}
	return nil
}
