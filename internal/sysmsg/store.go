// ABOUTME: Persistent operator-set system message, one tiny JSON file
// ABOUTME: Absent or unreadable file means "not set" - never an error

package sysmsg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// defaultFileName sits in the user's home directory.
const defaultFileName = ".familiar_system_message.json"

// document is the file's JSON shape.
type document struct {
	SystemMessage string `json:"system_message"`
}

// Store reads and writes the system message file. The zero value is not
// usable; construct with New.
type Store struct {
	path   string
	logger *slog.Logger
}

// New builds a store over the given file path. An empty path selects
// the default location under the user's home directory.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, defaultFileName)
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "sysmsg"),
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the stored system message. A missing or corrupt file means
// no message is set and returns "" without an error.
func (s *Store) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading system message: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("system message file corrupt, treating as unset", "path", s.path)
		return "", nil
	}
	return doc.SystemMessage, nil
}

// Set stores the system message, creating the parent directory if needed.
func (s *Store) Set(message string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating system message directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(document{SystemMessage: message}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding system message: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing system message: %w", err)
	}
	return nil
}

// Clear removes the stored message. Clearing an unset message is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing system message: %w", err)
	}
	return nil
}

// SystemMessage returns the stored message, or "" when unset or
// unreadable. This is the form sessions consume each turn.
func (s *Store) SystemMessage() string {
	msg, err := s.Get()
	if err != nil {
		s.logger.Warn("reading system message", "error", err)
		return ""
	}
	return msg
}
