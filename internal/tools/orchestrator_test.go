// ABOUTME: Orchestrator tests: dispatch routing plus batch lifecycle over real processes
// ABOUTME: Supervised servers run /bin/sleep; HTTP dialect servers run against httptest

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/daemon"
)

func parseRegistry(t *testing.T, doc string, defaults capability.Defaults) *capability.Registry {
	t.Helper()
	reg, err := capability.Parse([]byte(doc), defaults)
	require.NoError(t, err)
	return reg
}

// sleepRegistry builds a registry of supervised servers that each run
// /bin/sleep, with pid and log files under a per-test directory.
func sleepRegistry(t *testing.T, names ...string) *capability.Registry {
	t.Helper()
	dir := t.TempDir()
	servers := make(map[string]any, len(names))
	endpoints := make(map[string]string, len(names))
	for i, name := range names {
		servers[name] = map[string]any{
			"command": "/bin/sleep",
			"args":    []string{"60"},
		}
		endpoints[name] = fmt.Sprintf("http://127.0.0.1:%d", 3100+i)
	}
	doc, err := json.Marshal(map[string]any{"servers": servers})
	require.NoError(t, err)
	return parseRegistry(t, string(doc), capability.Defaults{
		Endpoints: endpoints,
		PIDDir:    dir,
		LogDir:    dir,
	})
}

func TestDispatchRoutesToAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp_memory_retrieve_entity", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name": "note-1", "observations": ["buy milk"]}`)
	}))
	defer srv.Close()

	reg := parseRegistry(t, fmt.Sprintf(`{"servers": {"memory": {"endpoint": %q}}}`, srv.URL), capability.Defaults{})
	o := New(reg, nil)

	reply, err := o.Dispatch(t.Context(), "memory", OpRetrieveEntity, map[string]any{"name": "note-1"})
	require.NoError(t, err)
	assert.Equal(t, "note-1", reply["name"])
}

func TestDispatchUnknownCapability(t *testing.T) {
	reg := parseRegistry(t, `{"servers": {"memory": {"endpoint": "http://127.0.0.1:3100"}}}`, capability.Defaults{})
	o := New(reg, nil)

	_, err := o.Dispatch(t.Context(), "telemetry", OpRetrieveEntity, nil)
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestDispatchUnknownOperation(t *testing.T) {
	reg := parseRegistry(t, `{"servers": {"memory": {"endpoint": "http://127.0.0.1:3100"}}}`, capability.Defaults{})
	o := New(reg, nil)

	_, err := o.Dispatch(t.Context(), "memory", OpNavigate, map[string]any{"url": "https://example.com"})
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestTypedAccessors(t *testing.T) {
	reg := parseRegistry(t, `{"servers": {
		"memory": {"endpoint": "http://127.0.0.1:3100"},
		"fetch": {"endpoint": "http://127.0.0.1:3101"}
	}}`, capability.Defaults{})
	o := New(reg, nil)

	m, err := o.Memory()
	require.NoError(t, err)
	assert.Equal(t, "memory", m.Server())

	f, err := o.Fetch()
	require.NoError(t, err)
	assert.Equal(t, "fetch", f.Server())

	_, err = o.Browser()
	assert.ErrorIs(t, err, ErrNotAvailable)
	_, err = o.Thinking()
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestStartAllStopAll(t *testing.T) {
	reg := sleepRegistry(t, "memory", "fetch")
	o := New(reg, nil)
	ctx := t.Context()

	outcomes := o.StartAll(ctx)
	require.Len(t, outcomes, 2)
	assert.Equal(t, daemon.Started, outcomes["memory"].Result)
	assert.NoError(t, outcomes["memory"].Err)
	assert.Equal(t, daemon.Started, outcomes["fetch"].Result)
	assert.NoError(t, outcomes["fetch"].Err)

	desc, _ := reg.Get("memory")
	if _, err := os.Stat(desc.PIDFile); err != nil {
		t.Fatalf("pid file not written: %v", err)
	}

	stops := o.StopAll(ctx)
	require.Len(t, stops, 2)
	assert.Equal(t, daemon.Terminated, stops["memory"].Result)
	assert.Equal(t, daemon.Terminated, stops["fetch"].Result)
	assert.False(t, o.supervisors["memory"].IsRunning())

	if _, err := os.Stat(desc.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("pid file still present after stop: %v", err)
	}
}

func TestStartAllPartialFailure(t *testing.T) {
	dir := t.TempDir()
	doc := `{"servers": {
		"memory": {"command": "/bin/sleep", "args": ["60"]},
		"fetch": {"command": "/bin/sleep", "args": ["60"]},
		"puppeteer": {"command": "/nonexistent/capability-server"}
	}}`
	reg := parseRegistry(t, doc, capability.Defaults{
		Endpoints: map[string]string{
			"memory":    "http://127.0.0.1:3100",
			"fetch":     "http://127.0.0.1:3101",
			"puppeteer": "http://127.0.0.1:3102",
		},
		PIDDir: dir,
		LogDir: dir,
	})
	o := New(reg, nil)
	ctx := t.Context()

	outcomes := o.StartAll(ctx)
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes["memory"].Err)
	assert.NoError(t, outcomes["fetch"].Err)
	assert.Error(t, outcomes["puppeteer"].Err)

	// Only the servers that actually started get stopped.
	stops := o.StopAll(ctx)
	require.Len(t, stops, 2)
	assert.NotContains(t, stops, "puppeteer")
	assert.Equal(t, daemon.Terminated, stops["memory"].Result)
	assert.Equal(t, daemon.Terminated, stops["fetch"].Result)
}

func TestStopAllWithoutStart(t *testing.T) {
	reg := sleepRegistry(t, "memory")
	o := New(reg, nil)

	stops := o.StopAll(t.Context())
	assert.Empty(t, stops)
}

func TestUseStopsServersOnExit(t *testing.T) {
	reg := sleepRegistry(t, "memory")
	o := New(reg, nil)

	boom := errors.New("boom")
	err := o.Use(t.Context(), func(ctx context.Context) error {
		assert.True(t, o.supervisors["memory"].IsRunning())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, o.supervisors["memory"].IsRunning())
}

func TestRestartSupervised(t *testing.T) {
	reg := sleepRegistry(t, "memory")
	o := New(reg, nil)
	ctx := t.Context()
	defer o.StopAll(ctx)

	_, err := o.Start(ctx, "memory")
	require.NoError(t, err)
	first := o.supervisors["memory"].Handle().PID

	res, err := o.Restart(ctx, "memory")
	require.NoError(t, err)
	assert.Equal(t, daemon.Started, res)
	assert.NotEqual(t, first, o.supervisors["memory"].Handle().PID)
}

func TestLifecycleOfUnmanagedServer(t *testing.T) {
	reg := parseRegistry(t, `{"servers": {"fetch": {"endpoint": "http://127.0.0.1:3101"}}}`, capability.Defaults{})
	o := New(reg, nil)
	ctx := t.Context()

	_, err := o.Start(ctx, "fetch")
	assert.ErrorIs(t, err, ErrUnmanaged)
	_, err = o.Stop(ctx, "fetch")
	assert.ErrorIs(t, err, ErrUnmanaged)

	_, err = o.Start(ctx, "telemetry")
	assert.ErrorIs(t, err, ErrNotAvailable)

	// Remote servers never appear in batch outcomes either.
	assert.Empty(t, o.StartAll(ctx))
}

func TestStatus(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	ailing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ailing.Close()

	dir := t.TempDir()
	doc := fmt.Sprintf(`{"servers": {
		"memory": {"endpoint": %q},
		"fetch": {"endpoint": %q},
		"puppeteer": {"command": "/bin/sleep", "args": ["60"], "endpoint": "http://127.0.0.1:3102"}
	}}`, healthy.URL, ailing.URL)
	reg := parseRegistry(t, doc, capability.Defaults{PIDDir: dir, LogDir: dir})
	o := New(reg, nil)

	statuses := o.Status(t.Context())
	require.Len(t, statuses, 3)
	byName := make(map[string]ServerStatus, len(statuses))
	for _, st := range statuses {
		byName[st.Name] = st
	}

	assert.True(t, byName["memory"].Healthy)
	assert.NoError(t, byName["memory"].Err)

	assert.False(t, byName["fetch"].Healthy)
	assert.Error(t, byName["fetch"].Err)

	// Supervised but never started: reported stopped, not probed.
	assert.True(t, byName["puppeteer"].Supervised)
	assert.False(t, byName["puppeteer"].Running)
	assert.False(t, byName["puppeteer"].Healthy)
}
