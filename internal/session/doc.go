// Package session manages long-lived connections to MCP tool servers and
// guarantees their orderly teardown at process exit.
//
// Each tool server runs as a subprocess that speaks MCP over stdio. Opening
// and closing such a connection is expensive and stateful, so connections are
// opened lazily on first use and then kept alive across many tool
// invocations instead of being re-established per call.
//
// # Components
//
//   - ManagedConnection: owns exactly one subprocess-backed tool channel with
//     idempotent Open and exactly-once Close semantics.
//   - ConnectionRegistry: process-wide table of live connections keyed by
//     owner, used for bulk teardown and leak sweeping.
//   - Manager: per-agent owner of a set of connections. EnsureReady opens
//     everything lazily, InvokeTool forwards calls, Shutdown tears down
//     idempotently with per-connection failure isolation.
//   - Coordinator: process-wide coordinator that funnels every termination
//     trigger (signal, normal exit, explicit exit command) into exactly one
//     shutdown sequence with a bounded time budget.
//
// # Shutdown handoff
//
// A termination signal arrives on a goroutine that must never perform
// connection teardown itself. Teardown is split into two phases:
//
//  1. The signal path calls Coordinator.RequestStop, which records the
//     request and returns immediately. Repeat signals are ignored.
//  2. The workload goroutine observes Coordinator.StopRequested and calls
//     Coordinator.Trigger from its own context, which drives every session's
//     Shutdown under the global timeout.
//
// Within a ManagedConnection the same discipline applies one level down:
// Close never releases the channel on the caller's goroutine. It signals the
// goroutine that took ownership of the channel at Open time and waits, with
// a bounded timeout, for that goroutine to finish the teardown.
package session
