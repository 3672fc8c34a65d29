// Package tools aggregates the capability servers behind one orchestrator.
//
// # Overview
//
// Four capability kinds are supported, each with a typed adapter over a
// transport: memory (knowledge-graph entities), fetch (web retrieval),
// browser (puppeteer automation), and thinking (step-by-step reasoning).
// The Orchestrator wires one adapter per configured server and owns the
// lifecycle of servers that run locally.
//
// # Orchestrator
//
//	reg, _ := capability.Load(path, defaults)
//	orch := tools.New(reg, logger)
//
// Key operations:
//
//   - StartAll(ctx): start every locally managed server, best-effort
//   - StopAll(ctx): stop what was started and close all transports
//   - Dispatch(ctx, name, op, args): route one operation by name
//   - Use(ctx, fn): run fn with servers up, guaranteed teardown
//   - Status(ctx): concurrent liveness and health report
//
// StartAll never fails as a whole. Each server's outcome (started,
// already running, or an error) is reported per name, and a failed
// server does not keep its siblings down. StopAll stops only servers
// tracked as started, so a partial start tears down cleanly.
//
// # Dispatch
//
// The capability set is closed. Dispatch looks the adapter up by server
// name and the adapter maps the operation over a fixed verb set:
//
//	reply, err := orch.Dispatch(ctx, "memory", tools.OpCreateEntity, args)
//
// An unconfigured name or an unknown operation yields ErrNotAvailable.
// Callers that know the capability at compile time should prefer the
// typed accessors (Memory, Fetch, Browser, Thinking) and their methods.
//
// # Server Lifecycle
//
// Supervised servers (command plus endpoint) are spawned through a
// process supervisor and show up in PID files. Stdio servers live and
// die with their protocol session: StartAll establishes the session,
// StopAll closes it. Remote servers (endpoint only) are never started
// or stopped here.
//
// # Watchdog
//
// A Watchdog polls supervised servers and respawns crashed ones that
// declared auto_restart, waiting each server's restart_delay first.
// After three consecutive failed restart attempts a server is abandoned
// until the next process start.
package tools
