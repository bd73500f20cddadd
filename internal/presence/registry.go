package presence

import "sync"

// Registry tracks which users are online: a user is online while they hold at
// least one active connection. One Registry exists per server process, created
// at startup and mutated only through the websocket hub's connection
// lifecycle. It keeps its own lock so tests can inspect it directly.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]bool // userID -> set of connection IDs
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]bool)}
}

// Add records a connection for the user. Returns true when this is the user's
// first active connection, i.e. the user just came online.
func (r *Registry) Add(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := len(r.conns[userID]) == 0
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]bool)
	}
	r.conns[userID][connID] = true
	return first
}

// Remove drops a connection for the user. Returns true when it was the user's
// last connection, i.e. the user just went offline. A user with several open
// tabs stays online until the last one drops.
func (r *Registry) Remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.conns[userID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user holds any active connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Online returns a snapshot of all online user IDs.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	return users
}
