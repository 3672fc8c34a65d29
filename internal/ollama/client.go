// ABOUTME: HTTP client for the Ollama generation API
// ABOUTME: Covers exactly the two endpoints sessions use - generate and tags

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultHost is where a local Ollama daemon listens.
const DefaultHost = "http://localhost:11434"

const (
	// generateTimeout bounds one completion. Local models on modest
	// hardware can legitimately take a while.
	generateTimeout = 120 * time.Second

	listTimeout  = 10 * time.Second
	maxErrorBody = 1024
)

// Message is one conversation history entry forwarded to the model as
// generation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation history roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateRequest carries one turn to the model.
type GenerateRequest struct {
	Model   string
	Prompt  string
	System  string
	History []Message
}

// Client talks to one Ollama host.
type Client struct {
	host   string
	client *http.Client
	logger *slog.Logger
}

func New(host string, logger *slog.Logger) *Client {
	if host == "" {
		host = DefaultHost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: generateTimeout},
		logger: logger.With("component", "ollama"),
	}
}

// Host returns the base URL this client targets.
func (c *Client) Host() string { return c.host }

// generatePayload mirrors POST /api/generate.
type generatePayload struct {
	Model   string    `json:"model"`
	Prompt  string    `json:"prompt"`
	Stream  bool      `json:"stream"`
	System  string    `json:"system,omitempty"`
	Context []Message `json:"context,omitempty"`
}

type generateReply struct {
	Response string `json:"response"`
}

// Generate asks the model for one complete (non-streamed) reply.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(generatePayload{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  false,
		System:  req.System,
		Context: req.History,
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("generating", "model", req.Model, "history", len(req.History))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("generate", resp)
	}

	var reply generateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decoding generate reply: %w", err)
	}
	return reply.Response, nil
}

type tagsReply struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of the models the host serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building tags request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("tags", resp)
	}

	var reply tagsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding tags reply: %w", err)
	}
	names := make([]string, 0, len(reply.Models))
	for _, m := range reply.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("ollama %s: status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("ollama %s: status %d: %s", op, resp.StatusCode, msg)
}
