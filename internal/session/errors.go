package session

import (
	"fmt"
	"time"
)

// ConnectionOpenError indicates that the underlying channel to a tool server
// could not be established. The affected connection is marked failed and is
// never retried; callers must create a new instance.
type ConnectionOpenError struct {
	Name string
	Err  error
}

func (e *ConnectionOpenError) Error() string {
	return fmt.Sprintf("failed to open connection %q: %v", e.Name, e.Err)
}

func (e *ConnectionOpenError) Unwrap() error { return e.Err }

// NotReadyError indicates InvokeTool was called before EnsureReady succeeded.
// This is a programmer error and is surfaced immediately rather than
// triggering an implicit open.
type NotReadyError struct {
	Owner string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("session %s is not ready: EnsureReady must succeed before tools can be invoked", e.Owner)
}

// ShutdownTimeoutError records that a connection failed to close within its
// budget. It is logged during teardown, never propagated.
type ShutdownTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("connection %q did not close within %s", e.Name, e.Timeout)
}
