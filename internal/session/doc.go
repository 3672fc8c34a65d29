// Package session holds per-user conversation state and the helpers that
// bridge conversations to capabilities.
//
// # Turn Model
//
// A session runs one turn at a time. ProcessMessage appends the user
// message, asks the backend for a reply with the current system message
// and history, appends the reply, then trims history to the last ten
// entries. A second ProcessMessage while one is generating fails fast
// with ErrBusy rather than queueing; callers decide whether to retry.
//
// # History
//
// History is the source of truth for conversation context and is capped
// after each completed exchange, never in the middle of one. A failed
// generation leaves the user message in place so the next turn still
// carries it.
//
// # Capability Helpers
//
// CreateMemory and SequentialThinking validate their input before any
// network traffic, then drive the memory and thinking capabilities
// through narrow interfaces. SequentialThinking loops on the
// capability's own continuation flag with a hard step ceiling.
//
// # Registries
//
// A Registry owns the sessions for one deployment, creating them lazily
// per user id. There is no process-wide session table: construct a
// Registry and pass it to whoever routes users.
package session
