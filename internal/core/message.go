package core

import (
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// Submission is an already validated and sanitized message from the edge layer.
type Submission struct {
	Text   string
	Sender string
	Color  string
	Owner  string
}

// newMessage stamps a submission with a fresh id and the given timestamp.
func newMessage(sub Submission, ts int64) store.Message {
	color := sub.Color
	if color == "" {
		color = store.DefaultColor
	}
	return store.Message{
		ID:        utils.NewID(),
		Text:      sub.Text,
		Sender:    sub.Sender,
		Timestamp: ts,
		Color:     color,
		Owner:     sub.Owner,
	}
}
