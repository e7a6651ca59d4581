package realtime

import (
	"sync"

	"github.com/mcoot/bananaclick/internal/model"
)

// Conn is an authenticated connection frames can be delivered to
type Conn interface {
	ID() string
	Identity() model.Identity
	// Send queues a frame without blocking. It reports false when the frame
	// was dropped because the queue is full or the connection is closed.
	Send(frame []byte) bool
}

// Hub is the set of open connections. Broadcasts work on a snapshot so a
// connection joining or leaving mid-broadcast never races the iteration.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]Conn),
	}
}

// Add registers a connection
func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
}

// Remove drops a connection, reporting whether it was present
func (h *Hub) Remove(c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.ID()]; !ok {
		return false
	}
	delete(h.conns, c.ID())
	return true
}

// Get looks a connection up by id
func (h *Hub) Get(id string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// Snapshot returns the connections open right now
func (h *Hub) Snapshot() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of open connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
