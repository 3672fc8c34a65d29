// ABOUTME: Registry hands out one session per user over shared collaborators
// ABOUTME: An explicit owned object - construct one per deployment, no package state

package session

import (
	"sync"
)

// Registry creates and retains sessions keyed by user id. All sessions
// share the registry's backend, capabilities, and default model; each
// gets its own history and conversation id.
type Registry struct {
	template Config

	mu     sync.Mutex
	byUser map[string]*Session
}

// NewRegistry validates the shared configuration once so Get can stay
// error-free. The template's UserID field is ignored.
func NewRegistry(template Config) (*Registry, error) {
	if _, err := New(template); err != nil {
		return nil, err
	}
	return &Registry{
		template: template,
		byUser:   make(map[string]*Session),
	}, nil
}

// Get returns the user's session, creating it on first sight.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byUser[userID]; ok {
		return s
	}
	cfg := r.template
	cfg.UserID = userID
	s, err := New(cfg)
	if err != nil {
		// NewRegistry validated the template; only UserID changed since.
		panic("session: registry template became invalid: " + err.Error())
	}
	r.byUser[userID] = s
	return s
}

// Drop forgets the user's session. The next Get starts a fresh
// conversation.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
