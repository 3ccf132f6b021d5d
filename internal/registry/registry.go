// Package registry is the single source of truth for which users are
// reachable right now. It owns the user -> live connection mapping and
// nothing else; session membership cleanup on disconnect belongs to the
// dispatcher.
package registry

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is the transport-side handle the registry hands out. The websocket
// adapter implements it; tests use in-memory fakes.
type Conn interface {
	Send(data []byte) error
	Close() error
}

type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	logger *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		logger: logger.Named("registry"),
	}
}

// Register binds conn to user, silently replacing any prior handle
// (last-write-wins). The replaced connection is closed. Returns the full
// online-id list so the caller can broadcast presence.
func (r *Registry) Register(user string, c Conn) []string {
	r.mu.Lock()
	prev := r.conns[user]
	r.conns[user] = c
	ids := r.onlineIDsLocked()
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
		r.logger.Info("connection replaced", zap.String("user", user))
	} else {
		r.logger.Info("user connected", zap.String("user", user), zap.Int("online", len(ids)))
	}
	return ids
}

// Unregister removes the mapping only if it still points at c, so a
// replaced connection tearing down late cannot evict its successor.
// The second return reports whether the mapping was actually removed.
func (r *Registry) Unregister(user string, c Conn) ([]string, bool) {
	r.mu.Lock()
	cur, ok := r.conns[user]
	if !ok || cur != c {
		ids := r.onlineIDsLocked()
		r.mu.Unlock()
		return ids, false
	}
	delete(r.conns, user)
	ids := r.onlineIDsLocked()
	r.mu.Unlock()

	r.logger.Info("user disconnected", zap.String("user", user), zap.Int("online", len(ids)))
	return ids, true
}

// Lookup returns the live connection for user, if any.
func (r *Registry) Lookup(user string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[user]
	return c, ok
}

func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineIDsLocked()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) onlineIDsLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
