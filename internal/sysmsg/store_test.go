// ABOUTME: Tests for the system message file store
// ABOUTME: Absent and corrupt files read as unset; set/clear round-trips

package sysmsg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "system_message.json"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestGetAbsentFile(t *testing.T) {
	s := testStore(t)
	msg, err := s.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if msg != "" {
		t.Errorf("Get() = %q, want empty", msg)
	}
}

func TestSetThenGet(t *testing.T) {
	s := testStore(t)
	if err := s.Set("talk like a pirate"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	msg, err := s.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if msg != "talk like a pirate" {
		t.Errorf("Get() = %q, want %q", msg, "talk like a pirate")
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.Contains(string(data), `"system_message"`) {
		t.Errorf("file missing system_message key: %s", data)
	}
}

func TestGetCorruptFile(t *testing.T) {
	s := testStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	msg, err := s.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if msg != "" {
		t.Errorf("Get() = %q, want empty for corrupt file", msg)
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	if err := s.Set("something"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if msg, _ := s.Get(); msg != "" {
		t.Errorf("Get() after Clear() = %q, want empty", msg)
	}

	// Clearing twice is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestSystemMessage(t *testing.T) {
	s := testStore(t)
	if got := s.SystemMessage(); got != "" {
		t.Errorf("SystemMessage() = %q, want empty before Set", got)
	}
	if err := s.Set("be brief"); err != nil {
		t.Fatal(err)
	}
	if got := s.SystemMessage(); got != "be brief" {
		t.Errorf("SystemMessage() = %q, want %q", got, "be brief")
	}
}
