// ABOUTME: Per-user conversation sessions - history, model choice, capability helpers
// ABOUTME: All turns flow through ProcessMessage - one turn at a time, history is the source of truth

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/familiar/internal/ollama"
	"github.com/2389/familiar/internal/tools"
)

// historyCap bounds the retained conversation history. Five exchanges
// keeps the backend prompt from growing without bound.
const historyCap = 10

// memoryEntityType tags entities stored through CreateMemory.
const memoryEntityType = "UserMemory"

const (
	// initialTotalThoughts seeds the reasoning loop's step estimate. The
	// capability revises it as the chain progresses.
	initialTotalThoughts = 5

	// maxThoughtSteps caps the reasoning loop. A capability that never
	// clears NextNeeded would otherwise spin forever.
	maxThoughtSteps = 50
)

// ErrBusy reports a message submitted while another is still generating.
var ErrBusy = errors.New("session is processing another message")

// ErrThinkingStalled reports a reasoning chain that hit the step ceiling
// without the capability declaring it finished.
var ErrThinkingStalled = errors.New("reasoning did not converge")

// ValidationError reports session input rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Generator defines what a session needs from the model backend.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// MemoryWriter defines what a session needs from the memory capability.
type MemoryWriter interface {
	CreateEntity(ctx context.Context, name, entityType string, observations []string) error
}

// Thinker defines what a session needs from the sequential thinking
// capability.
type Thinker interface {
	Think(ctx context.Context, step tools.ThoughtStep) (tools.ThoughtStep, error)
}

// SystemSource supplies the operator-set system message; empty means
// none is set and the built-in prompt applies.
type SystemSource interface {
	SystemMessage() string
}

// Config assembles a session's collaborators. Backend is required; the
// capability fields may be nil when that capability is not configured.
type Config struct {
	UserID    string
	ModelName string

	Backend Generator
	Memory  MemoryWriter
	Thinker Thinker
	System  SystemSource
	Tools   *tools.Orchestrator

	Logger *slog.Logger
}

// Session holds one user's conversation state. A session is owned by its
// registry and safe for concurrent use, though only one ProcessMessage
// runs at a time.
type Session struct {
	userID         string
	conversationID string

	backend Generator
	memory  MemoryWriter
	thinker Thinker
	system  SystemSource
	orch    *tools.Orchestrator
	logger  *slog.Logger

	turn sync.Mutex // held for the whole of one ProcessMessage

	mu        sync.Mutex // guards modelName and history
	modelName string
	history   []ollama.Message
}

// New creates a session for one user.
func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session: backend generator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		userID:         cfg.UserID,
		conversationID: uuid.New().String(),
		backend:        cfg.Backend,
		memory:         cfg.Memory,
		thinker:        cfg.Thinker,
		system:         cfg.System,
		orch:           cfg.Tools,
		logger:         logger.With("component", "session", "user", cfg.UserID),
		modelName:      cfg.ModelName,
	}, nil
}

// UserID returns the owning user's identifier.
func (s *Session) UserID() string { return s.userID }

// ConversationID returns the id minted when the session was created.
func (s *Session) ConversationID() string { return s.conversationID }

// ModelName returns the model currently serving this session.
func (s *Session) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelName
}

// History returns a copy of the retained conversation history.
func (s *Session) History() []ollama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ollama.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Tools returns the capability orchestrator for direct passthrough
// dispatch, or nil when the session runs without one.
func (s *Session) Tools() *tools.Orchestrator { return s.orch }

// ProcessMessage runs one conversation turn: record the user message,
// generate a reply, record it, then trim history to the retention cap.
// The user message is recorded before the backend is called, so a failed
// generation still leaves it in the history. A second call while one is
// in flight returns ErrBusy.
func (s *Session) ProcessMessage(ctx context.Context, text string) (string, error) {
	if !s.turn.TryLock() {
		return "", ErrBusy
	}
	defer s.turn.Unlock()

	s.mu.Lock()
	s.history = append(s.history, ollama.Message{Role: ollama.RoleUser, Content: text})
	req := ollama.GenerateRequest{
		Model:   s.modelName,
		Prompt:  text,
		System:  s.systemMessage(),
		History: append([]ollama.Message(nil), s.history...),
	}
	s.mu.Unlock()

	reply, err := s.backend.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	s.mu.Lock()
	s.history = append(s.history, ollama.Message{Role: ollama.RoleAssistant, Content: reply})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.mu.Unlock()

	s.logger.Debug("turn complete", "model", req.Model, "history", len(req.History))
	return reply, nil
}

// systemMessage returns the operator-set system message when one exists,
// the built-in prompt otherwise. Callers hold s.mu or tolerate races.
func (s *Session) systemMessage() string {
	if s.system != nil {
		if msg := s.system.SystemMessage(); msg != "" {
			return msg
		}
	}
	return DefaultSystemPrompt
}

// SetModel switches the session to a model the backend actually serves.
// An unknown name is rejected and the current model stays in place.
func (s *Session) SetModel(ctx context.Context, name string) error {
	models, err := s.backend.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	found := false
	for _, m := range models {
		if m == name {
			found = true
			break
		}
	}
	if !found {
		return &ValidationError{Field: "model", Reason: fmt.Sprintf("%q is not served by the backend", name)}
	}

	s.mu.Lock()
	s.modelName = name
	s.mu.Unlock()

	s.logger.Info("model changed", "model", name)
	return nil
}

// CreateMemory stores content as a fresh memory entity and returns its
// generated id. Blank content is rejected before anything is called.
func (s *Session) CreateMemory(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if s.memory == nil {
		return "", fmt.Errorf("%w: no memory capability configured", tools.ErrNotAvailable)
	}

	id := uuid.New().String()
	if err := s.memory.CreateEntity(ctx, id, memoryEntityType, []string{content}); err != nil {
		return "", fmt.Errorf("storing memory: %w", err)
	}

	s.logger.Info("memory stored", "id", id)
	return id, nil
}

// SequentialThinking runs the reasoning protocol to completion: seed a
// first step from the problem statement, then keep submitting the
// capability's own replies until it clears NextNeeded. The final step is
// returned exactly as received.
func (s *Session) SequentialThinking(ctx context.Context, problem string) (tools.ThoughtStep, error) {
	if strings.TrimSpace(problem) == "" {
		return tools.ThoughtStep{}, &ValidationError{Field: "thought", Reason: "must not be empty"}
	}
	if s.thinker == nil {
		return tools.ThoughtStep{}, fmt.Errorf("%w: no thinking capability configured", tools.ErrNotAvailable)
	}

	step := tools.ThoughtStep{
		Thought:       problem,
		Number:        1,
		TotalEstimate: initialTotalThoughts,
		NextNeeded:    true,
	}
	for i := 0; i < maxThoughtSteps; i++ {
		next, err := s.thinker.Think(ctx, step)
		if err != nil {
			return tools.ThoughtStep{}, fmt.Errorf("thinking step %d: %w", step.Number, err)
		}
		step = next
		if !step.NextNeeded {
			s.logger.Debug("reasoning finished", "steps", i+1)
			return step, nil
		}
	}
	return tools.ThoughtStep{}, fmt.Errorf("%w after %d steps", ErrThinkingStalled, maxThoughtSteps)
}
