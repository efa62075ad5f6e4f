package core

import (
	"sync"
	"sync/atomic"
)

// clientBuffer bounds how far a socket may lag before pushes to it fail.
const clientBuffer = 32

// Client is a live-socket participant as seen by the core layer.
type Client struct {
	ID     string
	Addr   string
	Events chan *Event

	open      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs an open client with an initialized event channel.
func NewClient(id, addr string) *Client {
	c := &Client{
		ID:     id,
		Addr:   addr,
		Events: make(chan *Event, clientBuffer),
		done:   make(chan struct{}),
	}
	c.open.Store(true)
	return c
}

// Open reports whether the client still accepts pushes.
func (c *Client) Open() bool {
	return c.open.Load()
}

// Done is closed once the client stops accepting pushes.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client as no longer accepting pushes. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
}

// Push enqueues ev without blocking. It returns false when the client is
// closed or its buffer is full.
func (c *Client) Push(ev *Event) bool {
	if !c.Open() {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
