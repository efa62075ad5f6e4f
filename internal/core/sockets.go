package core

import "sync"

// SocketRegistry tracks live-socket clients eligible for immediate push.
type SocketRegistry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	order   []*Client
}

// NewSocketRegistry constructs an empty registry.
func NewSocketRegistry() *SocketRegistry {
	return &SocketRegistry{
		clients: make(map[*Client]struct{}),
	}
}

// Add inserts a client. Returns true if newly added.
func (r *SocketRegistry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	r.order = append(r.order, c)
	return true
}

// Remove deletes a client and marks it closed. Returns true if removed.
func (r *SocketRegistry) Remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(c)
}

func (r *SocketRegistry) removeLocked(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	for i, other := range r.order {
		if other == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	c.Close()
	return true
}

// ForEachOpen calls fn for every client in the open state, in connection
// order. A client for which fn returns false is closed and dropped during the
// cleanup pass that follows the iteration. It returns the number of clients
// fn succeeded for.
func (r *SocketRegistry) ForEachOpen(fn func(*Client) bool) int {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.order))
	for _, c := range r.order {
		if c.Open() {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.Unlock()

	delivered := 0
	var failed []*Client
	for _, c := range snapshot {
		if fn(c) {
			delivered++
			continue
		}
		c.Close()
		failed = append(failed, c)
	}

	r.cleanup(failed)
	return delivered
}

// cleanup removes clients that failed a push or were closed elsewhere.
func (r *SocketRegistry) cleanup(failed []*Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range failed {
		r.removeLocked(c)
	}
	for _, c := range append([]*Client(nil), r.order...) {
		if !c.Open() {
			r.removeLocked(c)
		}
	}
}

// Len returns the number of registered clients.
func (r *SocketRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
