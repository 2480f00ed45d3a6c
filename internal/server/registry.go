package server

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every live connection, keyed by user then client ID.
// A user may hold several connections at once (multiple devices or
// tabs); presence derives from whether the set is non-empty.
type Registry struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[uuid.UUID]map[string]*Client)}
}

// Add inserts a connection and reports whether it is the user's first,
// i.e. the user just came online.
func (r *Registry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.userID]
	if !ok {
		conns = make(map[string]*Client)
		r.users[c.userID] = conns
	}
	conns[c.clientID] = c
	return len(conns) == 1
}

// Remove deletes exactly the given connection. Other connections of
// the same user are untouched. Returns (removed, last): last is true
// when the user has no connections left and just went offline.
func (r *Registry) Remove(c *Client) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.userID]
	if !ok {
		return false, false
	}
	if _, ok := conns[c.clientID]; !ok {
		return false, false
	}
	delete(conns, c.clientID)
	if len(conns) == 0 {
		delete(r.users, c.userID)
		return true, true
	}
	return true, false
}

// Connections returns the user's live connections; empty when offline.
func (r *Registry) Connections(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// Each calls fn for every connection, skipping all connections of
// excludeUser when it is non-nil.
func (r *Registry) Each(excludeUser uuid.UUID, fn func(*Client)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for userID, conns := range r.users {
		if userID == excludeUser {
			continue
		}
		for _, c := range conns {
			fn(c)
		}
	}
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conns := range r.users {
		n += len(conns)
	}
	return n
}
