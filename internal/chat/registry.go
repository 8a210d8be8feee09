// Package chat implements the real-time chat subsystem: the room-scoped
// connection registry, the per-connection session state machine, and the
// fan-out engine that pushes persisted messages to live participants.
package chat

import "sync"

// Conn is a live connection as seen by the registry and the fan-out engine.
// TrySend must not block: it either queues the payload or reports why it
// could not.
type Conn interface {
	// TrySend queues the payload for delivery to the peer.
	TrySend(payload []byte) error
	// Kill tears down the underlying transport. It must be safe to call
	// multiple times and from any goroutine.
	Kill()
	// UserID identifies the authenticated peer, so fan-out can skip every
	// connection the sender holds.
	UserID() string
}

// Registry maps chat ids to the set of connections currently attached to
// them. A single lock guards the whole map; register, deregister, and
// snapshot are mutually exclusive per room as a consequence. The lock is
// never held across network I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[Conn]struct{})}
}

// Register attaches conn to the room, creating the room entry if absent.
// Registering an already-present connection is a no-op.
func (r *Registry) Register(chatID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[chatID]
	if !ok {
		set = make(map[Conn]struct{})
		r.rooms[chatID] = set
	}
	set[conn] = struct{}{}
}

// Deregister detaches conn from the room. The room entry is pruned once its
// last connection leaves. Absent rooms or connections are a no-op.
func (r *Registry) Deregister(chatID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[chatID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.rooms, chatID)
	}
}

// Snapshot returns an isolated copy of the room's connection set, safe to
// iterate while other goroutines mutate the registry.
func (r *Registry) Snapshot(chatID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[chatID]
	out := make([]Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// HasRoom reports whether any connection is registered for the room.
func (r *Registry) HasRoom(chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[chatID]
	return ok
}

// SnapshotAll returns an isolated copy of every registered connection,
// used during shutdown to close them all.
func (r *Registry) SnapshotAll() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, set := range r.rooms {
		for conn := range set {
			out = append(out, conn)
		}
	}
	return out
}

// ConnCount returns the number of live connections across all rooms.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.rooms {
		n += len(set)
	}
	return n
}
