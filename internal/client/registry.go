package client

import (
	"errors"
	"net"
	"sync"
)

// ErrServerFull is returned by Registry.Create when the live client
// count already equals the configured max_clients.
var ErrServerFull = errors.New("server full")

// Registry is the process-wide table of connected clients, guarded by
// a single dedicated mutex per spec §3/§5.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	max     int
}

// NewRegistry returns an empty registry admitting at most max clients.
func NewRegistry(max int) *Registry {
	return &Registry{
		clients: make(map[*Client]struct{}),
		max:     max,
	}
}

// Create admits a new connection, allocating and registering its
// Client record. It fails with ErrServerFull once the table is at
// capacity, matching client_create's active-count check.
func (r *Registry) Create(conn net.Conn) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.max {
		return nil, ErrServerFull
	}

	c := New(conn)
	r.clients[c] = struct{}{}
	return c, nil
}

// Remove evicts c from the table. Safe to call more than once.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

// Len returns the current live client count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep runs fn once for every registered client while holding the
// registry lock for the whole pass, matching the heartbeat thread's
// single critical section over g_clients in the original
// implementation. fn must not block on anything but a bounded socket
// write.
func (r *Registry) Sweep(fn func(*Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		fn(c)
	}
}
