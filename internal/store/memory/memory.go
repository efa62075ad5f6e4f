package memory

import (
	"context"
	"sync"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Log implements store.MessageLog on a slice kept for the process lifetime.
type Log struct {
	mu       sync.RWMutex
	messages []store.Message
}

// New creates an empty in-memory log.
func New() *Log {
	return &Log{}
}

// Append adds msg to the end of the log.
func (l *Log) Append(_ context.Context, msg *store.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, *msg)
	return nil
}

// Since returns messages newer than ts in insertion order.
func (l *Log) Since(_ context.Context, ts int64) ([]store.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]store.Message, 0)
	for _, msg := range l.messages {
		if msg.Timestamp > ts {
			result = append(result, msg)
		}
	}
	return result, nil
}

// ValidateAll reports whether every stored message has a valid shape.
func (l *Log) ValidateAll(_ context.Context) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.messages {
		if !l.messages[i].Valid() {
			return false, nil
		}
	}
	return true, nil
}

// Len returns the number of stored messages.
func (l *Log) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages), nil
}

// Close is a no-op; the log lives as long as the process.
func (l *Log) Close() error {
	return nil
}
