package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentdk/internal/config"
	"agentdk/pkg/logging"

	"github.com/google/uuid"
)

// ConnState is the lifecycle state of a ManagedConnection.
type ConnState int

const (
	StateUnopened ConnState = iota
	StateOpening
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ManagedConnection owns the subprocess-backed channel for one named tool
// server. Open succeeds at most once per instance; Close is idempotent and
// performs the underlying teardown exactly once, always on the goroutine
// that took ownership of the channel at Open time. A closed or failed
// connection is never reused.
type ManagedConnection struct {
	name         string
	spec         config.ServerSpec
	dial         Dialer
	closeTimeout time.Duration

	mu      sync.Mutex
	state   ConnState
	channel ToolChannel

	// owningContext identifies the goroutine that owns the channel;
	// teardownContext records which context actually released it. The two
	// must match: Close only ever hands off, never tears down in place.
	owningContext   string
	teardownContext string

	closeReq  chan struct{} // closed to request teardown from the owner
	closeDone chan struct{} // closed by the owner once teardown finished
	closeErr  error

	reqOnce  sync.Once
	doneOnce sync.Once
}

// NewManagedConnection creates a connection for the given launch spec. The
// channel is not established until Open is called.
func NewManagedConnection(spec config.ServerSpec, dial Dialer, closeTimeout time.Duration) *ManagedConnection {
	if closeTimeout <= 0 {
		closeTimeout = config.DefaultCloseTimeout
	}
	return &ManagedConnection{
		name:         spec.Name,
		spec:         spec,
		dial:         dial,
		closeTimeout: closeTimeout,
		state:        StateUnopened,
		closeReq:     make(chan struct{}),
		closeDone:    make(chan struct{}),
	}
}

// Name returns the logical tool server name.
func (c *ManagedConnection) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *ManagedConnection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OwningContext identifies the goroutine that owns the channel. Empty until
// Open succeeds.
func (c *ManagedConnection) OwningContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owningContext
}

// TeardownContext identifies the goroutine that released the channel. Empty
// until teardown has started.
func (c *ManagedConnection) TeardownContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teardownContext
}

// Channel returns the open channel, or an error if the connection is not in
// the open state.
func (c *ManagedConnection) Channel() (ToolChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, fmt.Errorf("connection %q is %s", c.name, c.state)
	}
	return c.channel, nil
}

// Open establishes the channel. Calling Open on an already open connection
// returns the existing channel without spawning anything. A connection that
// has been closed or has failed cannot be reopened.
func (c *ManagedConnection) Open(ctx context.Context) (ToolChannel, error) {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		ch := c.channel
		c.mu.Unlock()
		return ch, nil
	case StateOpening:
		c.mu.Unlock()
		return nil, &ConnectionOpenError{Name: c.name, Err: fmt.Errorf("open already in progress")}
	case StateClosing, StateClosed, StateFailed:
		state := c.state
		c.mu.Unlock()
		return nil, &ConnectionOpenError{Name: c.name, Err: fmt.Errorf("connection is %s and cannot be reopened", state)}
	}
	c.state = StateOpening
	c.mu.Unlock()

	ch, err := c.dial(ctx, c.spec)
	if err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		c.finishClose(nil) // unblock any closer that raced the failed open
		logging.Error("Connection", err, "Failed to open connection %s", c.name)
		return nil, &ConnectionOpenError{Name: c.name, Err: err}
	}

	// Hand the channel to its owner goroutine before publishing the open
	// state, so teardown always has a context to run in.
	ready := make(chan struct{})
	go c.own(ch, ready)
	<-ready

	c.mu.Lock()
	if c.state != StateOpening {
		// Close raced the open; the owner goroutine will service the
		// already-pending close request.
		c.mu.Unlock()
		return nil, &ConnectionOpenError{Name: c.name, Err: fmt.Errorf("connection was closed while opening")}
	}
	c.channel = ch
	c.state = StateOpen
	c.mu.Unlock()

	logging.Info("Connection", "Opened connection %s (%s %v)", c.name, c.spec.Command, c.spec.Args)
	return ch, nil
}

// own runs on the goroutine that owns the channel for its whole life. It
// waits for a close request and performs the actual teardown, so that the
// release never executes on an arbitrary caller's goroutine.
func (c *ManagedConnection) own(ch ToolChannel, ready chan<- struct{}) {
	token := uuid.NewString()
	c.mu.Lock()
	c.owningContext = token
	c.mu.Unlock()
	close(ready)

	<-c.closeReq

	c.mu.Lock()
	c.teardownContext = token
	c.mu.Unlock()

	c.finishClose(ch.Close())
}

func (c *ManagedConnection) finishClose(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		c.mu.Unlock()
		close(c.closeDone)
	})
}

func (c *ManagedConnection) requestClose() {
	c.reqOnce.Do(func() { close(c.closeReq) })
}

// Close releases the connection. It is a no-op on an already closed
// connection, and concurrent callers collapse into a single teardown that
// everyone waits on. Closing an unopened connection performs no teardown but
// still moves it to the closed state: an instance swept by shutdown before
// its first Open must not be openable afterwards, or the race would launch a
// subprocess that nothing closes. Failures (including a teardown that
// outlives the close budget) are logged, never returned: teardown must not
// throw past this boundary.
func (c *ManagedConnection) Close(ctx context.Context) {
	c.mu.Lock()
	switch c.state {
	case StateUnopened:
		c.state = StateClosed
		c.mu.Unlock()
		c.finishClose(nil)
		return
	case StateClosed, StateFailed:
		c.mu.Unlock()
		return
	case StateClosing:
		c.mu.Unlock()
		c.awaitClose(ctx)
		return
	}
	// StateOpen, or StateOpening when a shutdown races a slow open. Either
	// way the owner goroutine performs the teardown once it holds the
	// channel; we only signal and wait.
	c.state = StateClosing
	c.mu.Unlock()

	c.requestClose()
	c.awaitClose(ctx)
}

func (c *ManagedConnection) awaitClose(ctx context.Context) {
	timer := time.NewTimer(c.closeTimeout)
	defer timer.Stop()

	select {
	case <-c.closeDone:
		c.mu.Lock()
		err := c.closeErr
		if err != nil {
			c.state = StateFailed
		} else if c.state == StateClosing {
			c.state = StateClosed
		}
		c.mu.Unlock()
		if err != nil {
			logging.Error("Connection", err, "Error closing connection %s", c.name)
		} else {
			logging.Info("Connection", "Closed connection %s", c.name)
		}
	case <-timer.C:
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		logging.Error("Connection", &ShutdownTimeoutError{Name: c.name, Timeout: c.closeTimeout},
			"Timed out closing connection %s", c.name)
	case <-ctx.Done():
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		logging.Warn("Connection", "Close of connection %s abandoned: %v", c.name, ctx.Err())
	}
}
