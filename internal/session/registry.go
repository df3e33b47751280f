package session

import "sync"

// ConnectionRegistry is the process-wide table of live connections, keyed by
// owning session. It exists so the Coordinator can sweep anything a session
// failed to deregister, and so leaks are observable.
//
// The registry is constructed explicitly and injected rather than living as
// a package-level variable; tests build a fresh one per test.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	owners map[string]map[*ManagedConnection]struct{}
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		owners: make(map[string]map[*ManagedConnection]struct{}),
	}
}

// Register adds a connection under the given owner.
func (r *ConnectionRegistry) Register(ownerID string, conn *ManagedConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.owners[ownerID]
	if !ok {
		set = make(map[*ManagedConnection]struct{})
		r.owners[ownerID] = set
	}
	set[conn] = struct{}{}
}

// Deregister removes a connection. Removing an absent connection is a no-op,
// which keeps the idempotent close paths simple.
func (r *ConnectionRegistry) Deregister(ownerID string, conn *ManagedConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.owners[ownerID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.owners, ownerID)
	}
}

// AllFor returns a snapshot of the connections registered under an owner.
func (r *ConnectionRegistry) AllFor(ownerID string) []*ManagedConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.owners[ownerID]
	conns := make([]*ManagedConnection, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the total number of tracked connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, set := range r.owners {
		total += len(set)
	}
	return total
}

// DrainAll returns and clears every tracked connection across all owners.
// Only the Coordinator calls this, as the final sweep of its shutdown
// sequence.
func (r *ConnectionRegistry) DrainAll() []*ManagedConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conns []*ManagedConnection
	for _, set := range r.owners {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	r.owners = make(map[string]map[*ManagedConnection]struct{})
	return conns
}
