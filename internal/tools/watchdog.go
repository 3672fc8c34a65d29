// ABOUTME: Watchdog respawns supervised servers that die while in use
// ABOUTME: Honors each descriptor's auto_restart flag and restart_delay

package tools

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is the watchdog sweep period when the caller
	// does not choose one.
	DefaultPollInterval = 10 * time.Second

	// maxRestartFailures is how many consecutive failed restart attempts
	// a server gets before the watchdog abandons it.
	maxRestartFailures = 3
)

// Watchdog polls the liveness of supervised servers and restarts the ones
// that declared auto_restart. Only servers the orchestrator actually
// started are watched: a server deliberately left down stays down.
type Watchdog struct {
	orch     *Orchestrator
	interval time.Duration
	logger   *slog.Logger

	failures  map[string]int
	abandoned map[string]bool
}

func NewWatchdog(orch *Orchestrator, interval time.Duration, logger *slog.Logger) *Watchdog {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		orch:      orch,
		interval:  interval,
		logger:    logger.With("component", "watchdog"),
		failures:  make(map[string]int),
		abandoned: make(map[string]bool),
	}
}

// Run sweeps until ctx is cancelled. It always returns ctx's error.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep checks every watched server once and restarts the dead ones.
func (w *Watchdog) sweep(ctx context.Context) {
	for name, sup := range w.orch.supervisors {
		desc := sup.Descriptor()
		if !desc.AutoRestart || w.abandoned[name] || !w.orch.isStarted(name) {
			continue
		}
		if sup.IsRunning() {
			w.failures[name] = 0
			continue
		}

		w.logger.Warn("server down, restarting", "server", name, "delay", desc.RestartDelay)
		if desc.RestartDelay > 0 {
			select {
			case <-time.After(desc.RestartDelay):
			case <-ctx.Done():
				return
			}
		}

		if _, err := sup.Restart(ctx); err != nil {
			w.failures[name]++
			w.logger.Error("restart failed", "server", name, "attempt", w.failures[name], "error", err)
			if w.failures[name] >= maxRestartFailures {
				w.abandoned[name] = true
				w.logger.Error("abandoning server after repeated restart failures", "server", name)
			}
			continue
		}
		w.failures[name] = 0
		w.logger.Info("server restarted", "server", name)
	}
}
