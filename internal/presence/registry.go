// Package presence tracks which users currently hold a live, identified connection.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps a user id to its active connection handle.
// One connection per user: registering again replaces the previous handle.
type Registry[C comparable] struct {
	mu    sync.RWMutex
	conns map[string]C
}

// NewRegistry creates an empty registry.
func NewRegistry[C comparable]() *Registry[C] {
	return &Registry[C]{conns: make(map[string]C)}
}

// Register binds userID to conn and returns the handle it replaced, if any.
func (r *Registry[C]) Register(userID string, conn C) (C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.conns[userID]
	r.conns[userID] = conn
	return prev, replaced
}

// Unregister removes userID only while it is still bound to conn, so a late
// disconnect of a superseded connection cannot evict the newer one.
func (r *Registry[C]) Unregister(userID string, conn C) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the connection bound to userID.
func (r *Registry[C]) Lookup(userID string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Online lists the ids of present users in ascending order.
func (r *Registry[C]) Online() []string {
	r.mu.RLock()
	ids := lo.Keys(r.conns)
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of present users.
func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
