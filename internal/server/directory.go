package server

import "sync"

// Directory maps user ids to the connection that announced them last.
//
// A binding is a weak reference: closing the connection removes it, never
// the other way around. Bind refuses connections already marked closed, so
// once the close path has unbound a connection it cannot be bound again.
type Directory struct {
	mu       sync.RWMutex
	bindings map[string]*Client
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{bindings: make(map[string]*Client)}
}

// Bind points userID at c, replacing any previous binding. It returns the
// connection previously bound to the user, and false when c is closed.
func (d *Directory) Bind(userID string, c *Client) (*Client, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.isClosed() {
		return nil, false
	}
	previous := d.bindings[userID]
	d.bindings[userID] = c
	return previous, true
}

// Lookup returns the connection bound to userID.
func (d *Directory) Lookup(userID string) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.bindings[userID]
	return c, ok
}

// UnbindConnection removes every binding that targets c and returns the
// user ids that were unbound. It scans all bindings; a reverse index from
// connection to user ids would make this constant time.
func (d *Directory) UnbindConnection(c *Client) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []string
	for userID, bound := range d.bindings {
		if bound == c {
			delete(d.bindings, userID)
			removed = append(removed, userID)
		}
	}
	return removed
}

// Len returns the number of bindings.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.bindings)
}
