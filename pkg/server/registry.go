package server

import (
	"errors"
	"sync"

	"github.com/NicolasHaas/chatroom/pkg/protocol"
)

// ErrAlreadyRegistered is returned when a username is already connected.
var ErrAlreadyRegistered = errors.New("server: username already connected")

// Registry is the shared mapping from authenticated username to that user's
// live outbound connection.
//
// Invariant: an entry exists if and only if a session has completed
// authentication and has not yet disconnected. Sessions insert their own
// entry and remove it on exit; no other component mutates the map.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*protocol.LineConn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*protocol.LineConn),
	}
}

// Register inserts an entry for username. A username that is already online
// is rejected outright; the new connection must not silently steal message
// routing from the session holding the name.
func (r *Registry) Register(username string, conn *protocol.LineConn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[username]; exists {
		return ErrAlreadyRegistered
	}
	r.conns[username] = conn
	return nil
}

// Unregister removes the entry for username, but only while it still maps
// to conn. Reports whether an entry was removed.
func (r *Registry) Unregister(username string, conn *protocol.LineConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[username]; !ok || current != conn {
		return false
	}
	delete(r.conns, username)
	return true
}

// Get retrieves the connection for username.
func (r *Registry) Get(username string) (*protocol.LineConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[username]
	return conn, ok
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns a point-in-time copy for broadcast iteration, so fan-out
// never races with concurrent register/unregister.
func (r *Registry) Snapshot() map[string]*protocol.LineConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*protocol.LineConn, len(r.conns))
	for username, conn := range r.conns {
		out[username] = conn
	}
	return out
}

// Clear removes every entry and returns the connections that were tracked.
// Used on shutdown only.
func (r *Registry) Clear() []*protocol.LineConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*protocol.LineConn, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	r.conns = make(map[string]*protocol.LineConn)
	return out
}
