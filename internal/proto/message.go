package proto

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const (
	// TypeNewMessage carries one freshly dispatched chat message.
	TypeNewMessage = "new-message"
	// TypeHandshake is sent once right after the socket opens.
	TypeHandshake = "handshake"
	// TypeError reports a protocol problem to the client.
	TypeError = "error"
	// TypePong answers an inbound ping.
	TypePong = "pong"

	// InboundTypePing asks the server for a pong.
	InboundTypePing = "ping"
)

// Message is the wire form of a chat message, shared by catch-up arrays and
// push envelopes.
type Message struct {
	ID        string `json:"messageId"`
	Text      string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	Color     string `json:"color"`
	Likes     int    `json:"likes"`
	Dislikes  int    `json:"dislikes"`
	UserID    string `json:"userId,omitempty"`
}

// Outbound is the envelope for everything pushed over a socket. Clients must
// ignore types they do not recognize.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Inbound is a frame received from a socket client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// FromStore converts a stored message into its wire form.
func FromStore(m store.Message) Message {
	return Message{
		ID:        m.ID,
		Text:      m.Text,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Color:     m.Color,
		Likes:     m.Likes,
		Dislikes:  m.Dislikes,
		UserID:    m.Owner,
	}
}

// CatchUp builds the catch-up shape: a bare ordered array, never null.
func CatchUp(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromStore(m))
	}
	return out
}

// Push builds the push envelope for one message.
func Push(m store.Message) Outbound {
	return Outbound{Type: TypeNewMessage, Data: FromStore(m)}
}

// Handshake builds the greeting frame.
func Handshake(greeting string) Outbound {
	return Outbound{Type: TypeHandshake, Data: greeting}
}

// Pong builds the reply to an inbound ping.
func Pong() Outbound {
	return Outbound{Type: TypePong}
}

// ErrorFrame builds an error frame.
func ErrorFrame(code, msg string) Outbound {
	return Outbound{Type: TypeError, Error: &Error{Code: code, Msg: msg}}
}
