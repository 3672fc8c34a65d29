// ABOUTME: Supervisor owns spawn/terminate/liveness for one capability server process
// ABOUTME: PID files are the durable liveness proxy; stop is graceful-then-forced

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/2389/familiar/internal/capability"
)

const (
	// stopGracePolls x stopPollInterval bounds the graceful shutdown window
	// before escalating to SIGKILL.
	stopGracePolls   = 10
	stopPollInterval = 500 * time.Millisecond

	healthCheckTimeout = 5 * time.Second
)

// State describes the supervisor's view of its child process.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StartResult reports what Start did. "Already running" is an outcome,
// not an error.
type StartResult int

const (
	Started StartResult = iota
	AlreadyRunning
)

func (r StartResult) String() string {
	switch r {
	case Started:
		return "started"
	case AlreadyRunning:
		return "already running"
	default:
		return "unknown"
	}
}

// StopResult reports what Stop did and how far it had to escalate.
type StopResult int

const (
	NotRunning StopResult = iota
	Terminated            // exited within the grace period
	Killed                // required SIGKILL
)

func (r StopResult) String() string {
	switch r {
	case NotRunning:
		return "not running"
	case Terminated:
		return "terminated"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// ProcessError wraps an OS-level spawn or terminate failure for one server.
type ProcessError struct {
	Server string
	Op     string // "start" or "stop"
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("daemon %s: %s: %v", e.Server, e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Handle is a snapshot of the supervised process.
type Handle struct {
	Descriptor *capability.Descriptor
	PID        int
	State      State
}

// Supervisor manages the lifecycle of one capability server's process.
// Start/Stop/Restart on the same Supervisor are serialized; independent
// supervisors do not coordinate.
type Supervisor struct {
	desc   *capability.Descriptor
	logger *slog.Logger

	mu    sync.Mutex
	pid   int
	state State

	healthClient *http.Client
}

// New creates a Supervisor for one descriptor.
func New(desc *capability.Descriptor, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		desc:         desc,
		logger:       logger.With("component", "daemon", "server", desc.Name),
		state:        StateStopped,
		healthClient: &http.Client{Timeout: healthCheckTimeout},
	}
}

// Descriptor returns the immutable descriptor this supervisor manages.
func (s *Supervisor) Descriptor() *capability.Descriptor { return s.desc }

// Handle returns a snapshot of the supervised process.
func (s *Supervisor) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return Handle{Descriptor: s.desc, PID: s.pid, State: s.state}
}

// Start spawns the server process unless it is already running.
// The descriptor's env is merged over the inherited environment, stdout and
// stderr are appended to the log file (the null device when none is
// configured), and the child PID is written to the PID file as decimal text.
// Daemon entries are detached into their own process group; other children
// stay in the caller's group and share its terminal signals.
func (s *Supervisor) Start(ctx context.Context) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(_ context.Context) (StartResult, error) {
	if s.desc.Command == "" {
		return 0, &ProcessError{Server: s.desc.Name, Op: "start", Err: errors.New("descriptor has no command")}
	}
	if s.isRunningLocked() {
		s.logger.Warn("server already running", "pid", s.pid)
		return AlreadyRunning, nil
	}

	// A second supervising process could pass the liveness check above
	// before either writes the PID file. The file lock closes that window.
	lock := flock.New(s.desc.PIDFile + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return 0, &ProcessError{Server: s.desc.Name, Op: "start", Err: fmt.Errorf("acquiring start lock: %w", err)}
	}
	if !locked {
		s.logger.Warn("start lock held by another process")
		return AlreadyRunning, nil
	}
	defer func() { _ = lock.Unlock() }()

	s.state = StateStarting

	cmd := exec.Command(s.desc.Command, s.desc.Args...)
	cmd.Dir = s.desc.WorkingDir
	cmd.Env = mergedEnv(s.desc.Env)
	if s.desc.DaemonEnabled {
		cmd.SysProcAttr = detachedProcAttr()
	}
	cmd.Stdin = nil

	logOut, err := openLogFile(s.desc.LogFile)
	if err != nil {
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "start", Err: err}
	}
	cmd.Stdout = logOut
	cmd.Stderr = logOut

	if err := cmd.Start(); err != nil {
		logOut.Close()
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "start", Err: err}
	}
	logOut.Close()

	pid := cmd.Process.Pid
	if err := writePIDFile(s.desc.PIDFile, pid); err != nil {
		// The child is up but untrackable; take it back down.
		_ = cmd.Process.Kill()
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "start", Err: err}
	}

	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	s.pid = pid
	s.state = StateRunning
	s.logger.Info("server started", "pid", pid, "command", s.desc.Command)
	return Started, nil
}

// Stop terminates the server process: SIGTERM, a bounded grace period of
// liveness polls, then SIGKILL. The PID file is removed once termination
// is confirmed. Calling Stop on a stopped server is a no-op.
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) (StopResult, error) {
	if !s.isRunningLocked() {
		return NotRunning, nil
	}

	pid := s.pid
	s.state = StateStopping

	proc, err := os.FindProcess(pid)
	if err != nil {
		s.finishStopLocked()
		return Terminated, nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			s.finishStopLocked()
			return Terminated, nil
		}
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "stop", Err: fmt.Errorf("sending SIGTERM: %w", err)}
	}

	for i := 0; i < stopGracePolls; i++ {
		if !processAlive(pid) {
			s.finishStopLocked()
			s.logger.Info("server stopped", "pid", pid)
			return Terminated, nil
		}
		select {
		case <-time.After(stopPollInterval):
		case <-ctx.Done():
			s.state = StateFailed
			return 0, &ProcessError{Server: s.desc.Name, Op: "stop", Err: ctx.Err()}
		}
	}

	s.logger.Warn("server did not exit in grace period, killing", "pid", pid)
	_ = proc.Signal(syscall.SIGKILL)

	select {
	case <-time.After(stopPollInterval):
	case <-ctx.Done():
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "stop", Err: ctx.Err()}
	}

	if processAlive(pid) {
		s.state = StateFailed
		return 0, &ProcessError{Server: s.desc.Name, Op: "stop", Err: fmt.Errorf("process %d survived SIGKILL", pid)}
	}

	s.finishStopLocked()
	s.logger.Info("server killed", "pid", pid)
	return Killed, nil
}

// Restart stops then starts the server as a single serialized unit.
func (s *Supervisor) Restart(ctx context.Context) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stopLocked(ctx); err != nil {
		return 0, err
	}
	return s.startLocked(ctx)
}

// IsRunning reports liveness from the PID file: absent file means not
// running; a present file is verified with a zero-signal probe, and stale
// files are removed on detection.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunningLocked()
}

func (s *Supervisor) isRunningLocked() bool {
	pid, err := readPIDFile(s.desc.PIDFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("removing unreadable pid file", "path", s.desc.PIDFile, "error", err)
			removePIDFile(s.desc.PIDFile)
		}
		s.markStoppedLocked()
		return false
	}

	if !processAlive(pid) {
		s.logger.Debug("removing stale pid file", "path", s.desc.PIDFile, "pid", pid)
		removePIDFile(s.desc.PIDFile)
		s.markStoppedLocked()
		return false
	}

	s.pid = pid
	if s.state != StateStopping && s.state != StateStarting {
		s.state = StateRunning
	}
	return true
}

// refreshLocked reconciles the cached state with the PID file probe.
func (s *Supervisor) refreshLocked() {
	if s.state == StateFailed {
		return
	}
	s.isRunningLocked()
}

func (s *Supervisor) markStoppedLocked() {
	if s.state != StateFailed {
		s.state = StateStopped
	}
	s.pid = 0
}

func (s *Supervisor) finishStopLocked() {
	removePIDFile(s.desc.PIDFile)
	s.state = StateStopped
	s.pid = 0
}

// CheckHealth probes the HTTP health endpoint of the capability server.
// It reports readiness only and never influences Start.
func (s *Supervisor) CheckHealth(ctx context.Context) error {
	if s.desc.Endpoint == "" {
		return fmt.Errorf("daemon %s: no endpoint to health check", s.desc.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.desc.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("daemon %s: building health request: %w", s.desc.Name, err)
	}

	resp, err := s.healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon %s: health check: %w", s.desc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon %s: health status %d", s.desc.Name, resp.StatusCode)
	}
	return nil
}

// mergedEnv layers the descriptor's env entries over the inherited
// environment. Later entries win on duplicate keys.
func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// openLogFile opens the server log for appending, or the null device when
// the descriptor has no log file configured.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
