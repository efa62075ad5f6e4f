package core

import "github.com/vovakirdan/wirechat-relay/internal/store"

// EventKind is a notification the core pushes to live-socket clients.
type EventKind int

const (
	// EventNewMessage carries a freshly dispatched chat message.
	EventNewMessage EventKind = iota
	// EventHandshake greets a client right after the socket opens.
	EventHandshake
	// EventError notifies a client about a protocol error.
	EventError
	// EventPong answers a client ping.
	EventPong
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Message store.Message // EventNewMessage
	Text    string        // EventHandshake greeting
	Error   *CoreError    // EventError
}
