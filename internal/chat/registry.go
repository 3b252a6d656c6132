package chat

import "sync"

// Identity is the (username, room) pair a connection joined as.
type Identity struct {
	Username string
	Room     string
}

// Unknown is the sentinel identity returned for unbound connections. It
// mirrors the default used for malformed events such as typing before join.
var Unknown = Identity{Username: "Unknown", Room: ""}

// Registry maps each live connection to the identity it joined as. It is the
// sole source of truth for "who is this connection" and is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	identities map[ConnID]Identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{identities: make(map[ConnID]Identity)}
}

// Bind records the identity for a connection, replacing any previous binding.
func (r *Registry) Bind(conn ConnID, username, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[conn] = Identity{Username: username, Room: room}
}

// Lookup returns the identity bound to a connection. Unbound connections get
// the Unknown sentinel and ok == false.
func (r *Registry) Lookup(conn ConnID) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identities[conn]
	if !ok {
		return Unknown, false
	}
	return id, true
}

// Unbind removes and returns the identity bound to a connection. It is a
// no-op for connections that were never bound.
func (r *Registry) Unbind(conn ConnID) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.identities[conn]
	if !ok {
		return Unknown, false
	}
	delete(r.identities, conn)
	return id, true
}
