// Package agent provides the user-facing facade over the session layer: a
// small Agent type that invokes tools with a bounded retry policy, and an
// interactive REPL for exploring and calling tools by hand.
//
// The facade never touches ManagedConnection directly. It goes through the
// session.Manager's EnsureReady/InvokeTool surface, and the only shutdown it
// ever initiates is a stop request to the Coordinator (the REPL's exit
// command); the actual teardown is always driven by the Coordinator.
package agent
