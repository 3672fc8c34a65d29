// ABOUTME: Orchestrator: single dispatch surface over all configured capabilities
// ABOUTME: Owns the adapter map plus per-server lifecycle, with best-effort batch start/stop

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/familiar/internal/capability"
	"github.com/2389/familiar/internal/daemon"
	"github.com/2389/familiar/internal/transport"
)

// ErrUnmanaged reports a lifecycle request against a server whose process
// is not ours to start or stop.
var ErrUnmanaged = errors.New("server is not locally managed")

// StartOutcome reports one server's fate during StartAll.
type StartOutcome struct {
	Result daemon.StartResult
	Err    error
}

// StopOutcome reports one server's fate during StopAll.
type StopOutcome struct {
	Result daemon.StopResult
	Err    error
}

// ServerStatus is one row of a Status report.
type ServerStatus struct {
	Name       string
	Kind       capability.Kind
	Supervised bool
	Running    bool
	Healthy    bool
	Err        error
}

// Orchestrator aggregates every configured capability behind one dispatch
// surface and owns the lifecycle of the locally managed servers. Build one
// per registry; orchestrators share no hidden state.
type Orchestrator struct {
	registry *capability.Registry
	logger   *slog.Logger

	adapters    map[string]Adapter
	supervisors map[string]*daemon.Supervisor
	stdios      map[string]*transport.Stdio

	mu      sync.Mutex
	started []string
}

// New wires adapters, transports, and supervisors for every descriptor in
// the registry. Servers outside the known capability set get lifecycle
// management but no adapter.
func New(registry *capability.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		registry:    registry,
		logger:      logger.With("component", "tools"),
		adapters:    make(map[string]Adapter),
		supervisors: make(map[string]*daemon.Supervisor),
		stdios:      make(map[string]*transport.Stdio),
	}

	for _, desc := range registry.All() {
		if desc.Supervised() {
			o.supervisors[desc.Name] = daemon.New(desc, logger)
		}

		var tr transport.Transport
		if desc.Endpoint != "" {
			tr = transport.NewHTTP(desc.Name, desc.Endpoint, logger)
		} else {
			st := transport.NewStdio(desc.Name, desc.Command, desc.Args, desc.Env, logger)
			o.stdios[desc.Name] = st
			tr = st
		}

		switch desc.Kind {
		case capability.KindMemory:
			o.adapters[desc.Name] = NewMemory(desc.Name, tr, logger)
		case capability.KindFetch:
			o.adapters[desc.Name] = NewFetch(desc.Name, tr, logger)
		case capability.KindBrowser:
			o.adapters[desc.Name] = NewBrowser(desc.Name, tr, logger)
		case capability.KindThinking:
			o.adapters[desc.Name] = NewThinking(desc.Name, tr, logger)
		default:
			o.logger.Warn("server has no capability adapter", "server", desc.Name)
		}
	}
	return o
}

// Servers returns the configured server names in sorted order.
func (o *Orchestrator) Servers() []string { return o.registry.Names() }

// StartAll starts every locally managed server: supervised servers are
// spawned, stdio servers get their protocol session established. One
// server's failure never stops the others; each failure lands in that
// server's outcome.
func (o *Orchestrator) StartAll(ctx context.Context) map[string]StartOutcome {
	outcomes := make(map[string]StartOutcome)
	for _, name := range o.registry.Names() {
		res, err := o.startOne(ctx, name)
		if errors.Is(err, ErrUnmanaged) {
			continue
		}
		outcomes[name] = StartOutcome{Result: res, Err: err}
		if err != nil {
			o.logger.Error("server failed to start", "server", name, "error", err)
		}
	}
	return outcomes
}

// Start starts one server by name.
func (o *Orchestrator) Start(ctx context.Context, name string) (daemon.StartResult, error) {
	return o.startOne(ctx, name)
}

func (o *Orchestrator) startOne(ctx context.Context, name string) (daemon.StartResult, error) {
	if sup, ok := o.supervisors[name]; ok {
		res, err := sup.Start(ctx)
		if err != nil {
			return 0, err
		}
		o.track(name)
		return res, nil
	}
	if st, ok := o.stdios[name]; ok {
		fresh, err := st.Connect(ctx)
		if err != nil {
			return 0, err
		}
		o.track(name)
		if fresh {
			return daemon.Started, nil
		}
		return daemon.AlreadyRunning, nil
	}
	if _, ok := o.registry.Get(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotAvailable, name)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnmanaged, name)
}

// StopAll stops every server tracked as started, in the order they were
// started, then closes every adapter transport. Safe to call twice and
// safe to call without a prior StartAll.
func (o *Orchestrator) StopAll(ctx context.Context) map[string]StopOutcome {
	o.mu.Lock()
	started := o.started
	o.started = nil
	o.mu.Unlock()

	outcomes := make(map[string]StopOutcome)
	for _, name := range started {
		res, err := o.stopOne(ctx, name)
		outcomes[name] = StopOutcome{Result: res, Err: err}
		if err != nil {
			o.logger.Error("server failed to stop", "server", name, "error", err)
		}
	}

	for name, a := range o.adapters {
		if err := a.Close(); err != nil {
			o.logger.Warn("closing adapter", "server", name, "error", err)
		}
	}
	return outcomes
}

// Stop stops one server by name.
func (o *Orchestrator) Stop(ctx context.Context, name string) (daemon.StopResult, error) {
	res, err := o.stopOne(ctx, name)
	if err == nil {
		o.untrack(name)
	}
	return res, err
}

func (o *Orchestrator) stopOne(ctx context.Context, name string) (daemon.StopResult, error) {
	if sup, ok := o.supervisors[name]; ok {
		return sup.Stop(ctx)
	}
	if st, ok := o.stdios[name]; ok {
		if !st.Live() {
			return daemon.NotRunning, nil
		}
		if err := st.Close(); err != nil {
			return 0, err
		}
		return daemon.Terminated, nil
	}
	if _, ok := o.registry.Get(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotAvailable, name)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnmanaged, name)
}

// Restart restarts one server by name as a single unit.
func (o *Orchestrator) Restart(ctx context.Context, name string) (daemon.StartResult, error) {
	if sup, ok := o.supervisors[name]; ok {
		res, err := sup.Restart(ctx)
		if err != nil {
			return 0, err
		}
		o.track(name)
		return res, nil
	}
	if st, ok := o.stdios[name]; ok {
		if err := st.Close(); err != nil {
			return 0, err
		}
		if _, err := st.Connect(ctx); err != nil {
			return 0, err
		}
		o.track(name)
		return daemon.Started, nil
	}
	if _, ok := o.registry.Get(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotAvailable, name)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnmanaged, name)
}

// Dispatch routes an operation to the named capability's adapter.
func (o *Orchestrator) Dispatch(ctx context.Context, capabilityName, operation string, args map[string]any) (map[string]any, error) {
	a, ok := o.adapters[capabilityName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, capabilityName)
	}
	return a.Call(ctx, operation, args)
}

// Use runs fn inside an orchestrated scope: all servers are started on
// entry and stopped on every exit path, including panics unwinding
// through fn.
func (o *Orchestrator) Use(ctx context.Context, fn func(context.Context) error) error {
	o.StartAll(ctx)
	defer o.StopAll(context.WithoutCancel(ctx))
	return fn(ctx)
}

// Status probes every configured server concurrently: process liveness
// for supervised ones, transport health for any server with an adapter.
// Stdio servers without a live session are reported stopped rather than
// probed, since probing would spawn them.
func (o *Orchestrator) Status(ctx context.Context) []ServerStatus {
	names := o.registry.Names()
	statuses := make([]ServerStatus, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = o.statusOf(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func (o *Orchestrator) statusOf(ctx context.Context, name string) ServerStatus {
	desc, _ := o.registry.Get(name)
	st := ServerStatus{Name: name, Kind: desc.Kind}

	if sup, ok := o.supervisors[name]; ok {
		st.Supervised = true
		st.Running = sup.IsRunning()
	}
	if stdio, ok := o.stdios[name]; ok {
		st.Running = stdio.Live()
		if !st.Running {
			return st
		}
	}
	if st.Supervised && !st.Running {
		return st
	}

	a, ok := o.adapters[name]
	if !ok {
		return st
	}
	if err := a.CheckHealth(ctx); err != nil {
		st.Err = err
		return st
	}
	st.Healthy = true
	return st
}

// Memory returns the memory adapter, or ErrNotAvailable when none is
// configured.
func (o *Orchestrator) Memory() (*Memory, error) {
	a, err := o.adapterOf(capability.KindMemory)
	if err != nil {
		return nil, err
	}
	return a.(*Memory), nil
}

// Fetch returns the fetch adapter, or ErrNotAvailable when none is
// configured.
func (o *Orchestrator) Fetch() (*Fetch, error) {
	a, err := o.adapterOf(capability.KindFetch)
	if err != nil {
		return nil, err
	}
	return a.(*Fetch), nil
}

// Browser returns the browser adapter, or ErrNotAvailable when none is
// configured.
func (o *Orchestrator) Browser() (*Browser, error) {
	a, err := o.adapterOf(capability.KindBrowser)
	if err != nil {
		return nil, err
	}
	return a.(*Browser), nil
}

// Thinking returns the sequential thinking adapter, or ErrNotAvailable
// when none is configured.
func (o *Orchestrator) Thinking() (*Thinking, error) {
	a, err := o.adapterOf(capability.KindThinking)
	if err != nil {
		return nil, err
	}
	return a.(*Thinking), nil
}

func (o *Orchestrator) adapterOf(kind capability.Kind) (Adapter, error) {
	for _, a := range o.adapters {
		if a.Kind() == kind {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s capability configured", ErrNotAvailable, kind)
}

func (o *Orchestrator) track(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range o.started {
		if n == name {
			return
		}
	}
	o.started = append(o.started, name)
}

func (o *Orchestrator) untrack(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, n := range o.started {
		if n == name {
			o.started = append(o.started[:i], o.started[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) isStarted(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range o.started {
		if n == name {
			return true
		}
	}
	return false
}
