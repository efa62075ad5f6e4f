package http

import (
	"errors"
	"net/http"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Push(event.Message)
	case core.EventHandshake:
		return proto.Handshake(event.Text)
	case core.EventPong:
		return proto.Pong()
	case core.EventError:
		if event.Error == nil {
			return proto.ErrorFrame("unknown", "unknown error")
		}
		return proto.ErrorFrame(event.Error.Code, event.Error.Message)
	default:
		return proto.Outbound{Type: "event"}
	}
}

// statusFromError maps core errors to an HTTP status and client-facing text.
func statusFromError(err error) (int, string) {
	if errors.Is(err, core.ErrClosed) {
		return http.StatusServiceUnavailable, "server is shutting down"
	}

	var ce *core.CoreError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, "internal server error"
	}
	switch ce.Code {
	case core.ErrCodeIntegrity, core.ErrCodeBadRequest:
		return http.StatusBadRequest, ce.Message
	case core.ErrCodeUnauthorized:
		return http.StatusUnauthorized, ce.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
