// ABOUTME: Tests for the process supervisor lifecycle
// ABOUTME: Spawns real sleep processes and drives them through start/stop/restart

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/2389/familiar/internal/capability"
)

func testDescriptor(t *testing.T, name string) *capability.Descriptor {
	t.Helper()
	dir := t.TempDir()
	return &capability.Descriptor{
		Name:          name,
		Kind:          capability.KindMemory,
		Command:       "/bin/sleep",
		Args:          []string{"60"},
		DaemonEnabled: true,
		PIDFile:       filepath.Join(dir, name+".pid"),
		LogFile:       filepath.Join(dir, name+".log"),
	}
}

func TestSupervisor_StartStopLifecycle(t *testing.T) {
	desc := testDescriptor(t, "memory")
	sup := New(desc, nil)
	ctx := context.Background()

	res, err := sup.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res != Started {
		t.Errorf("Start() = %v, want %v", res, Started)
	}
	if !sup.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	data, err := os.ReadFile(desc.PIDFile)
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file content %q is not an integer", data)
	}
	if h := sup.Handle(); h.PID != pid {
		t.Errorf("Handle().PID = %d, pid file has %d", h.PID, pid)
	}
	if h := sup.Handle(); h.State != StateRunning {
		t.Errorf("Handle().State = %v, want %v", h.State, StateRunning)
	}

	stopRes, err := sup.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if stopRes != Terminated {
		t.Errorf("Stop() = %v, want %v", stopRes, Terminated)
	}
	if sup.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if _, err := os.Stat(desc.PIDFile); !os.IsNotExist(err) {
		t.Errorf("pid file still present after Stop: %v", err)
	}
}

func TestSupervisor_StartWhileRunning(t *testing.T) {
	desc := testDescriptor(t, "memory")
	sup := New(desc, nil)
	ctx := context.Background()

	if _, err := sup.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	defer sup.Stop(ctx)

	res, err := sup.Start(ctx)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if res != AlreadyRunning {
		t.Errorf("second Start() = %v, want %v", res, AlreadyRunning)
	}
}

func TestSupervisor_StopWhileStopped(t *testing.T) {
	desc := testDescriptor(t, "memory")
	sup := New(desc, nil)

	res, err := sup.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if res != NotRunning {
		t.Errorf("Stop() = %v, want %v", res, NotRunning)
	}
}

func TestSupervisor_Restart(t *testing.T) {
	desc := testDescriptor(t, "memory")
	sup := New(desc, nil)
	ctx := context.Background()

	if _, err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	firstPID := sup.Handle().PID

	res, err := sup.Restart(ctx)
	if err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if res != Started {
		t.Errorf("Restart() = %v, want %v", res, Started)
	}
	if pid := sup.Handle().PID; pid == firstPID {
		t.Errorf("Restart() kept pid %d, want a new process", pid)
	}

	sup.Stop(ctx)
}

func TestSupervisor_StalePIDFile(t *testing.T) {
	desc := testDescriptor(t, "memory")
	// Way past pid_max on any Linux configuration.
	if err := os.WriteFile(desc.PIDFile, []byte("99999999"), 0644); err != nil {
		t.Fatal(err)
	}

	sup := New(desc, nil)
	if sup.IsRunning() {
		t.Error("IsRunning() = true for stale pid file")
	}
	if _, err := os.Stat(desc.PIDFile); !os.IsNotExist(err) {
		t.Error("stale pid file was not removed")
	}
}

func TestSupervisor_CorruptPIDFile(t *testing.T) {
	desc := testDescriptor(t, "memory")
	if err := os.WriteFile(desc.PIDFile, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}

	sup := New(desc, nil)
	if sup.IsRunning() {
		t.Error("IsRunning() = true for corrupt pid file")
	}
	if _, err := os.Stat(desc.PIDFile); !os.IsNotExist(err) {
		t.Error("corrupt pid file was not removed")
	}
}

func TestSupervisor_StartWithoutCommand(t *testing.T) {
	desc := &capability.Descriptor{
		Name:     "remote",
		Kind:     capability.KindFetch,
		Endpoint: "http://localhost:3101",
	}
	sup := New(desc, nil)

	_, err := sup.Start(context.Background())
	if err == nil {
		t.Fatal("Start() with no command succeeded, want error")
	}
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("Start() error = %T, want *ProcessError", err)
	}
	if procErr.Server != "remote" || procErr.Op != "start" {
		t.Errorf("ProcessError = %+v, want Server=remote Op=start", procErr)
	}
}

func TestSupervisor_StopEscalatesToKill(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kill escalation test in short mode")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "stubborn.sh")
	// Traps and ignores SIGTERM so only SIGKILL can end it.
	content := "#!/bin/sh\ntrap '' TERM\nwhile true; do sleep 1; done\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	desc := &capability.Descriptor{
		Name:    "stubborn",
		Kind:    capability.KindMemory,
		Command: script,
		PIDFile: filepath.Join(dir, "stubborn.pid"),
		LogFile: filepath.Join(dir, "stubborn.log"),
	}
	sup := New(desc, nil)
	ctx := context.Background()

	if _, err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Give the shell a moment to install its trap.
	time.Sleep(200 * time.Millisecond)

	res, err := sup.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if res != Killed {
		t.Errorf("Stop() = %v, want %v", res, Killed)
	}
	if sup.IsRunning() {
		t.Error("IsRunning() = true after forced kill")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateFailed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
