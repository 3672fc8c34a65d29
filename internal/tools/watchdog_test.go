// ABOUTME: Watchdog tests: dead supervised servers come back, abandoned ones stay down
// ABOUTME: Drives sweep directly against real /bin/sleep processes

package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/daemon"
)

func watchedRegistry(t *testing.T, command string, autoRestart bool) *capability.Registry {
	t.Helper()
	dir := t.TempDir()
	doc, err := json.Marshal(map[string]any{"servers": map[string]any{
		"memory": map[string]any{
			"command":      command,
			"args":         []string{"60"},
			"auto_restart": autoRestart,
		},
	}})
	require.NoError(t, err)
	return parseRegistry(t, string(doc), capability.Defaults{
		Endpoints: map[string]string{"memory": "http://127.0.0.1:3100"},
		PIDDir:    dir,
		LogDir:    dir,
	})
}

func waitStopped(t *testing.T, sup *daemon.Supervisor) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !sup.IsRunning() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server still running after kill")
}

func TestWatchdogRestartsDeadServer(t *testing.T) {
	reg := watchedRegistry(t, "/bin/sleep", true)
	o := New(reg, nil)
	ctx := t.Context()
	defer o.StopAll(ctx)

	_, err := o.Start(ctx, "memory")
	require.NoError(t, err)
	sup := o.supervisors["memory"]
	first := sup.Handle().PID

	require.NoError(t, syscall.Kill(first, syscall.SIGKILL))
	waitStopped(t, sup)

	w := NewWatchdog(o, time.Hour, nil)
	w.sweep(ctx)

	assert.True(t, sup.IsRunning())
	assert.NotEqual(t, first, sup.Handle().PID)
}

func TestWatchdogAbandonsAfterRepeatedFailures(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "server.sh")
	content := "#!/bin/sh\nexec sleep 60\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0755))

	reg := watchedRegistry(t, script, true)
	o := New(reg, nil)
	ctx := t.Context()
	defer o.StopAll(ctx)

	_, err := o.Start(ctx, "memory")
	require.NoError(t, err)
	sup := o.supervisors["memory"]
	pid := sup.Handle().PID

	// Kill the server and its binary so every restart attempt fails.
	require.NoError(t, os.Remove(script))
	require.NoError(t, syscall.Kill(pid, syscall.SIGKILL))
	waitStopped(t, sup)

	w := NewWatchdog(o, time.Hour, nil)
	for i := 0; i < 3; i++ {
		w.sweep(ctx)
	}
	assert.Equal(t, 3, w.failures["memory"])
	assert.True(t, w.abandoned["memory"])
	assert.False(t, sup.IsRunning())

	// Abandoned servers are skipped on later sweeps.
	w.sweep(ctx)
	assert.Equal(t, 3, w.failures["memory"])
}

func TestWatchdogSkipsDeliberatelyStoppedServer(t *testing.T) {
	reg := watchedRegistry(t, "/bin/sleep", true)
	o := New(reg, nil)
	ctx := t.Context()

	_, err := o.Start(ctx, "memory")
	require.NoError(t, err)
	_, err = o.Stop(ctx, "memory")
	require.NoError(t, err)

	w := NewWatchdog(o, time.Hour, nil)
	w.sweep(ctx)

	assert.False(t, o.supervisors["memory"].IsRunning())
}

func TestWatchdogIgnoresNonAutoRestartServers(t *testing.T) {
	reg := watchedRegistry(t, "/bin/sleep", false)
	o := New(reg, nil)
	ctx := t.Context()
	defer o.StopAll(ctx)

	_, err := o.Start(ctx, "memory")
	require.NoError(t, err)
	sup := o.supervisors["memory"]

	require.NoError(t, syscall.Kill(sup.Handle().PID, syscall.SIGKILL))
	waitStopped(t, sup)

	w := NewWatchdog(o, time.Hour, nil)
	w.sweep(ctx)

	assert.False(t, sup.IsRunning())
}

func TestWatchdogRunReturnsOnCancel(t *testing.T) {
	reg := parseRegistry(t, `{"servers": {"memory": {"endpoint": "http://127.0.0.1:3100"}}}`, capability.Defaults{})
	w := NewWatchdog(New(reg, nil), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop on cancel")
	}
}
