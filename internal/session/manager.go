package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentdk/internal/config"
	"agentdk/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// ManagerState is the lifecycle state of a Manager. There is no transition
// back out of ManagerShutDown.
type ManagerState int

const (
	ManagerUninitialized ManagerState = iota
	ManagerReady
	ManagerShuttingDown
	ManagerShutDown
)

func (s ManagerState) String() string {
	switch s {
	case ManagerUninitialized:
		return "uninitialized"
	case ManagerReady:
		return "ready"
	case ManagerShuttingDown:
		return "shutting-down"
	case ManagerShutDown:
		return "shut-down"
	default:
		return "unknown"
	}
}

// Manager owns the tool server connections for one agent instance. It opens
// them lazily on the first EnsureReady, keeps them alive across tool
// invocations, and tears them all down exactly once on Shutdown.
type Manager struct {
	ownerID      string
	specs        []config.ServerSpec
	dial         Dialer
	registry     *ConnectionRegistry
	coordinator  *Coordinator
	closeTimeout time.Duration

	mu           sync.Mutex
	state        ManagerState
	conns        map[string]*ManagedConnection
	opening      chan struct{} // non-nil while an open sequence is in flight
	openErr      error         // outcome of the most recent open sequence
	shutdownDone chan struct{} // closed once Shutdown has completed
}

// NewManager creates a Manager for the given tool server specs. Nothing is
// launched until EnsureReady is called.
func NewManager(specs []config.ServerSpec, dial Dialer, registry *ConnectionRegistry, coordinator *Coordinator, closeTimeout time.Duration) *Manager {
	if closeTimeout <= 0 {
		closeTimeout = config.DefaultCloseTimeout
	}
	return &Manager{
		ownerID:      uuid.NewString(),
		specs:        specs,
		dial:         dial,
		registry:     registry,
		coordinator:  coordinator,
		closeTimeout: closeTimeout,
		state:        ManagerUninitialized,
		conns:        make(map[string]*ManagedConnection),
	}
}

// OwnerID identifies this manager in the registry and in log lines.
func (m *Manager) OwnerID() string { return m.ownerID }

// State returns the current lifecycle state.
func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether EnsureReady has completed successfully.
func (m *Manager) Ready() bool {
	return m.State() == ManagerReady
}

// Connections returns a snapshot of the owned connections by server name.
func (m *Manager) Connections() map[string]*ManagedConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]*ManagedConnection, len(m.conns))
	for name, conn := range m.conns {
		snapshot[name] = conn
	}
	return snapshot
}

// EnsureReady opens a connection for every configured tool server and
// registers this manager for coordinated shutdown. It is idempotent, and
// concurrent callers before readiness share a single open sequence: the
// first caller opens, the rest wait and observe its outcome.
//
// If any server fails to open, connections already opened by the same
// attempt are closed again and the failure is returned; a later call starts
// a fresh attempt with fresh connection instances.
func (m *Manager) EnsureReady(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch m.state {
		case ManagerReady:
			m.mu.Unlock()
			return nil
		case ManagerShuttingDown, ManagerShutDown:
			m.mu.Unlock()
			return fmt.Errorf("session %s is %s and cannot be made ready", m.ownerID, m.state)
		}
		if m.opening != nil {
			wait := m.opening
			m.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return ctx.Err()
			}
			// Observe the outcome of the attempt we waited on.
			m.mu.Lock()
			err := m.openErr
			ready := m.state == ManagerReady
			m.mu.Unlock()
			if ready {
				return nil
			}
			return err
		}
		m.opening = make(chan struct{})
		m.mu.Unlock()
		break
	}

	err := m.openAll(ctx)

	m.mu.Lock()
	m.openErr = err
	if err == nil && m.state == ManagerUninitialized {
		m.state = ManagerReady
	}
	close(m.opening)
	m.opening = nil
	m.mu.Unlock()

	return err
}

func (m *Manager) openAll(ctx context.Context) error {
	opened := make([]*ManagedConnection, 0, len(m.specs))

	rollback := func() {
		for _, conn := range opened {
			conn.Close(ctx)
			m.registry.Deregister(m.ownerID, conn)
		}
	}

	for _, spec := range m.specs {
		conn := NewManagedConnection(spec, m.dial, m.closeTimeout)
		if _, err := conn.Open(ctx); err != nil {
			logging.Error("Session", err, "Session %s failed to open %s", m.ownerID, spec.Name)
			rollback()
			return err
		}
		m.registry.Register(m.ownerID, conn)
		opened = append(opened, conn)
	}

	m.mu.Lock()
	if m.state != ManagerUninitialized {
		// Shutdown raced the open sequence; do not publish the connections.
		m.mu.Unlock()
		rollback()
		return fmt.Errorf("session %s shut down during startup", m.ownerID)
	}
	for _, conn := range opened {
		m.conns[conn.Name()] = conn
	}
	m.mu.Unlock()

	m.coordinator.Register(m)
	logging.Info("Session", "Session %s ready with %d connections", m.ownerID, len(opened))
	return nil
}

// InvokeTool forwards a tool call to the named server's open connection. It
// requires a prior successful EnsureReady and performs no retries: retry
// policy is a business-level concern that belongs to the caller.
func (m *Manager) InvokeTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	conn, err := m.connection(server)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch.CallTool(ctx, tool, args)
}

// ListTools returns the tools currently exposed by the named server.
func (m *Manager) ListTools(ctx context.Context, server string) ([]mcp.Tool, error) {
	conn, err := m.connection(server)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch.ListTools(ctx)
}

func (m *Manager) connection(server string) (*ManagedConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ManagerReady {
		return nil, &NotReadyError{Owner: m.ownerID}
	}
	conn, ok := m.conns[server]
	if !ok {
		return nil, fmt.Errorf("no connection for tool server %q", server)
	}
	return conn, nil
}

// Shutdown closes every owned connection and deregisters the manager. It is
// idempotent: a second concurrent caller waits for the first to finish
// instead of re-running teardown. Individual connection failures are logged
// and isolated: one broken connection never blocks the closing of its
// siblings, and nothing propagates out of this boundary.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	switch m.state {
	case ManagerShutDown:
		m.mu.Unlock()
		return
	case ManagerShuttingDown:
		done := m.shutdownDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	m.state = ManagerShuttingDown
	m.shutdownDone = make(chan struct{})
	done := m.shutdownDone
	conns := make([]*ManagedConnection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	logging.Info("Session", "Session %s shutting down (%d connections)", m.ownerID, len(conns))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *ManagedConnection) {
			defer wg.Done()
			conn.Close(ctx) // logs its own failures, bounded by closeTimeout
			m.registry.Deregister(m.ownerID, conn)
		}(conn)
	}
	wg.Wait()

	m.coordinator.Deregister(m)

	m.mu.Lock()
	m.state = ManagerShutDown
	m.mu.Unlock()
	close(done)

	logging.Info("Session", "Session %s shut down", m.ownerID)
}
