package ws

import (
	"sync"
	"time"
)

// SessionRegistry maps identities to their live connections. A user may hold
// several connections at once (multiple tabs or devices); the identity is
// online iff it has at least one. This is the single shared structure every
// connection handler mutates, so all access is serialized behind one mutex
// and reads hand out copies.
type SessionRegistry struct {
	mu    sync.RWMutex
	conns map[int64]map[*Conn]struct{}
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{conns: make(map[int64]map[*Conn]struct{})}
}

// Register adds the connection under its identity and reports whether it is
// the identity's first live connection.
func (r *SessionRegistry) Register(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.info.UserID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.conns[c.info.UserID] = set
	}
	first := len(set) == 0
	set[c] = struct{}{}
	return first
}

// Unregister removes the connection. Reports the owning identity, whether
// its set became empty, and whether the connection was actually registered.
// Safe to call more than once; later calls report ok=false.
func (r *SessionRegistry) Unregister(c *Conn) (userID int64, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, found := r.conns[c.info.UserID]
	if !found {
		return c.info.UserID, false, false
	}
	if _, found = set[c]; !found {
		return c.info.UserID, false, false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.info.UserID)
		return c.info.UserID, true, true
	}
	return c.info.UserID, false, true
}

// ConnectionsFor returns a snapshot of the identity's live connections.
// Empty slice, not an error, when none exist.
func (r *SessionRegistry) ConnectionsFor(userID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Each calls fn for every live connection, iterating over a snapshot so fn
// may unregister connections.
func (r *SessionRegistry) Each(fn func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, set := range r.conns {
		for c := range set {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

// LatestActivity returns the most recent activity time across the identity's
// connections. Zero time when the identity has none.
func (r *SessionRegistry) LatestActivity(userID int64) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest time.Time
	for c := range r.conns[userID] {
		if t := c.lastActiveTime(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

// OnlineUsers returns the identities with at least one live connection.
func (r *SessionRegistry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.conns))
	for userID, set := range r.conns {
		if len(set) > 0 {
			out = append(out, userID)
		}
	}
	return out
}
