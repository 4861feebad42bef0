// Package registry indexes live connections by user identity, independent
// of any session membership.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// Registry maps a stable user identifier to its current connection.
// Registration is last-wins: a reconnect under the same identity simply
// overwrites the previous mapping.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]models.Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]models.Conn)}
}

// Register binds userID to conn, replacing any prior mapping.
func (r *Registry) Register(userID string, conn models.Conn) {
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()

	log.Debug().Str("user_id", userID).Str("conn_id", conn.ConnID()).Msg("connection registered")
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (models.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// Unregister removes the mapping for userID. No-op if absent.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// UnregisterConn removes the mapping only if it still points at conn.
// A disconnecting socket must not clobber the mapping a reconnect has
// already replaced. Reports whether the mapping was removed.
func (r *Registry) UnregisterConn(userID string, conn models.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current.ConnID() != conn.ConnID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Size returns the number of registered identities.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
