package store

import (
	"context"
	"errors"
)

// DefaultColor is used when a message is submitted without a display color.
const DefaultColor = "#000000"

// Driver names accepted by the store.driver config key.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned for an unsupported store.driver value.
var ErrUnknownDriver = errors.New("unknown store driver")

// Message represents a chat message kept in the log.
// Once appended it is immutable apart from the like/dislike counters.
type Message struct {
	ID        string
	Text      string
	Sender    string
	Timestamp int64 // epoch milliseconds
	Color     string
	Likes     int
	Dislikes  int
	Owner     string // opaque identity token of the poster
}

// Valid reports whether the message has the shape readers rely on:
// a string id, non-empty text and a positive timestamp.
func (m Message) Valid() bool {
	return m.ID != "" && m.Text != "" && m.Timestamp > 0 && m.Likes >= 0 && m.Dislikes >= 0
}

// MessageLog is an append-only, ordered log of chat messages.
type MessageLog interface {
	// Append adds msg to the end of the log.
	Append(ctx context.Context, msg *Message) error

	// Since returns, in insertion order, every message with a timestamp
	// strictly greater than ts. ts <= 0 returns the whole log.
	Since(ctx context.Context, ts int64) ([]Message, error)

	// ValidateAll reports whether every stored message passes Valid.
	ValidateAll(ctx context.Context) (bool, error)

	// Len returns the number of stored messages.
	Len(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
