package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"agentdk/internal/config"
	"agentdk/pkg/logging"
)

// Coordinator funnels every termination trigger into exactly one shutdown
// sequence. An OS signal, normal program exit, and an explicit exit command
// all end up in Trigger, but only the first call
// does any work.
//
// Signal handlers must call RequestStop, never Trigger: RequestStop only
// records the request, and the workload goroutine performs the actual
// teardown from its own context after observing StopRequested.
type Coordinator struct {
	registry *ConnectionRegistry
	timeout  time.Duration

	mu       sync.Mutex
	sessions map[ManagedSession]struct{}
	reason   string

	stopOnce sync.Once
	stopReq  chan struct{}

	fired atomic.Bool
	done  chan struct{}
}

// NewCoordinator creates a coordinator that sweeps the given registry as the
// last step of its shutdown sequence. timeout bounds the whole sequence;
// zero selects the default.
func NewCoordinator(registry *ConnectionRegistry, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	return &Coordinator{
		registry: registry,
		timeout:  timeout,
		sessions: make(map[ManagedSession]struct{}),
		stopReq:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register adds a session to the live set. Managers call this once their
// connections are open.
func (c *Coordinator) Register(s ManagedSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s] = struct{}{}
}

// Deregister removes a session; called from the session's own Shutdown.
func (c *Coordinator) Deregister(s ManagedSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, s)
}

// SessionCount returns the number of registered live sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// RequestStop records that the process should stop and returns immediately.
// It is the only coordinator method a signal handler may call: it touches
// nothing but the stop flag. Repeat requests are ignored.
func (c *Coordinator) RequestStop(reason string) {
	requested := false
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.stopReq)
		requested = true
	})
	if requested {
		logging.Info("Shutdown", "Stop requested: %s", reason)
	} else {
		logging.Debug("Shutdown", "Stop already requested, ignoring trigger: %s", reason)
	}
}

// StopRequested returns a channel that is closed once a stop has been
// requested. The workload goroutine selects on it and calls Trigger.
func (c *Coordinator) StopRequested() <-chan struct{} { return c.stopReq }

// StopReason returns the reason recorded by the first RequestStop.
func (c *Coordinator) StopReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Fired reports whether the shutdown sequence has started.
func (c *Coordinator) Fired() bool { return c.fired.Load() }

// Done returns a channel that is closed once the shutdown sequence has run
// to completion (or to its timeout).
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Trigger runs the shutdown sequence exactly once. Every registered session
// is shut down concurrently, each isolated from the failures of the others,
// under one global time budget. Sessions that outlive the budget are
// abandoned, not waited for: the process must neither exit mid-teardown nor
// hang forever on a stuck subprocess.
//
// Later calls observe that the sequence has already fired and return
// immediately without blocking. Trigger never returns an error: it is a
// best-effort, always-completes boundary. Deciding whether to exit the
// process afterwards belongs to the caller.
func (c *Coordinator) Trigger(ctx context.Context) {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	// Keep the stop flag consistent when Trigger is reached directly, e.g.
	// on the normal exit path.
	c.RequestStop("shutdown triggered")

	c.mu.Lock()
	sessions := make([]ManagedSession, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	logging.Info("Shutdown", "Shutdown started: %d sessions, budget %s", len(sessions), c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s ManagedSession) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logging.Error("Shutdown", fmt.Errorf("%v", r), "Session %s panicked during shutdown", s.OwnerID())
				}
			}()
			s.Shutdown(ctx)
		}(s)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		logging.Info("Shutdown", "All sessions shut down")
	case <-ctx.Done():
		logging.Warn("Shutdown", "Shutdown budget of %s exhausted, abandoning remaining sessions", c.timeout)
	}

	// Final sweep: close anything a session failed to deregister.
	if leftover := c.registry.DrainAll(); len(leftover) > 0 {
		logging.Warn("Shutdown", "Sweeping %d leaked connections", len(leftover))
		for _, conn := range leftover {
			conn.Close(ctx)
		}
	}

	close(c.done)
	logging.Info("Shutdown", "Shutdown complete")
}
