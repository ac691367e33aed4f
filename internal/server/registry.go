package server

import (
	"errors"
	"sync"
)

var (
	// ErrConnectionClosed reports a send to a connection that already left
	// the registry. Callers treat it as a silent no-op.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull reports a connection whose outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Registry tracks every open connection regardless of identity. A client
// belongs to the registry from the moment it is added until Remove, after
// which its send channel is closed and it is marked closed for good.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

// Add registers a client and returns the number of open connections.
func (r *Registry) Add(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c] = struct{}{}
	return len(r.clients)
}

// Remove unregisters a client, marks it closed and closes its send channel.
// It reports false when the client was not registered.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	if _, ok := r.clients[c]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, c)
	c.closed.Store(true)
	r.mu.Unlock()

	// No sender can observe the client as registered any more, so the
	// channel can be closed outside the lock.
	close(c.send)
	return true
}

// Contains reports whether the client is registered.
func (r *Registry) Contains(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[c]
	return ok
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Snapshot returns the currently registered clients.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Send queues message on the client without blocking. The read lock is held
// for the whole send so Remove cannot close the channel underneath it.
func (r *Registry) Send(c *Client, message []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.clients[c]; !exists {
		return ErrConnectionClosed
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}
