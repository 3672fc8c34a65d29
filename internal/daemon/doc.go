// Package daemon supervises capability server processes.
//
// # Supervisor
//
// Each Supervisor owns exactly one server's lifecycle:
//
//	sup := daemon.New(descriptor, logger)
//	res, err := sup.Start(ctx)
//
// Key operations:
//
//   - Start(ctx): spawn the process, write the PID file
//   - Stop(ctx): SIGTERM, bounded grace period, then SIGKILL
//   - Restart(ctx): stop and start as one serialized unit
//   - IsRunning(): liveness from the PID file plus a signal-0 probe
//   - CheckHealth(ctx): GET the server's /health endpoint
//
// Operations on one Supervisor are serialized by an internal mutex.
// Supervisors for different servers are fully independent.
//
// # PID Files
//
// The PID file is the durable liveness record: a single decimal PID.
// IsRunning treats a missing file as "not running", verifies a present
// file by signaling the process with signal 0, and removes files that
// turn out to be stale or corrupt. A file lock beside the PID file keeps
// two supervising processes from spawning the same server concurrently.
//
// # Graceful Stop
//
// Stop sends SIGTERM, then polls liveness up to ten times at 500ms
// intervals. A process that exits in that window yields Terminated.
// One that does not is sent SIGKILL and yields Killed. The PID file is
// removed only once termination is confirmed, so a failed stop leaves
// the file describing a process that is in fact still alive.
//
// # Output
//
// Children run in their own process group with stdout and stderr
// appended to the descriptor's log file, or discarded when no log file
// is configured.
package daemon
