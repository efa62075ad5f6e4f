package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const invalidMessageInput = "Message and sender's name must be non-empty strings (max 300 chars for message, 50 for sender)"

// ChatHandlers serves the message log over plain HTTP.
type ChatHandlers struct {
	hub         *core.Hub
	pollTimeout time.Duration
	maxText     int
	maxSender   int
	log         *zerolog.Logger
}

// NewChatHandlers creates chat handlers backed by hub.
func NewChatHandlers(hub *core.Hub, cfg config.ChatConfig, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		hub:         hub,
		pollTimeout: cfg.LongPollTimeout,
		maxText:     cfg.MaxTextLen,
		maxSender:   cfg.MaxSenderLen,
		log:         logger,
	}
}

// PostMessageRequest is the raw body of POST /chat.
type PostMessageRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
	Color   string `json:"color"`
}

// postMessageInput is the normalized request checked by the validator.
type postMessageInput struct {
	Message string `binding:"required,notblank,max=300"`
	Sender  string `binding:"required,notblank,max=50"`
	Color   string `binding:"omitempty,iscolor"`
}

// PostMessageResponse acknowledges a stored message.
type PostMessageResponse struct {
	Message proto.Message `json:"message"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PostMessage validates, sanitizes and dispatches a new message.
// POST /chat
func (h *ChatHandlers) PostMessage(c *gin.Context) {
	owner := c.GetString(ContextKeyOwnerID)

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid chat request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: invalidMessageInput})
		return
	}

	in := postMessageInput{
		Message: normalizeInput(req.Message),
		Sender:  normalizeInput(req.Sender),
		Color:   normalizeInput(req.Color),
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		h.log.Debug().Err(err).Msg("chat request failed validation")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: invalidMessageInput})
		return
	}
	if utf8.RuneCountInString(in.Message) > h.maxText || utf8.RuneCountInString(in.Sender) > h.maxSender {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: invalidMessageInput})
		return
	}

	sub := core.Submission{
		Text:   sanitizeText(in.Message),
		Sender: sanitizePlain(in.Sender),
		Color:  sanitizePlain(in.Color),
		Owner:  owner,
	}
	// markup-only input sanitizes to nothing
	if sub.Text == "" || sub.Sender == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: invalidMessageInput})
		return
	}

	msg, err := h.hub.Dispatch(c.Request.Context(), sub)
	if err != nil {
		status, text := statusFromError(err)
		h.log.Error().Err(err).Str("owner_id", owner).Msg("failed to dispatch message")
		c.JSON(status, ErrorResponse{Error: text})
		return
	}

	c.JSON(http.StatusCreated, PostMessageResponse{Message: proto.FromStore(msg)})
}

// GetMessages returns the catch-up batch, or long-polls when since is given.
// GET /chat
// GET /chat?since=<ms>
func (h *ChatHandlers) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()

	raw, hasSince := c.GetQuery("since")
	if !hasSince {
		msgs, err := h.hub.CatchUp(ctx, 0)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, proto.CatchUp(msgs))
		return
	}

	// an empty value means from the beginning
	var since int64
	var err error
	if raw != "" {
		since, err = strconv.ParseInt(raw, 10, 64)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "since must be an integer timestamp"})
		return
	}

	res, err := h.hub.Poll(ctx, since, h.pollTimeout)
	if err != nil {
		if res.State == core.StateDisconnected {
			// the client is gone; nobody reads a reply
			c.Abort()
			return
		}
		h.writeError(c, err)
		return
	}

	h.log.Debug().Int64("since", since).Str("state", res.State.String()).Int("count", len(res.Messages)).Msg("poll answered")
	c.JSON(http.StatusOK, proto.CatchUp(res.Messages))
}

func (h *ChatHandlers) writeError(c *gin.Context, err error) {
	status, text := statusFromError(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, core.ErrClosed) {
		h.log.Error().Err(err).Msg("chat read failed")
	}
	c.JSON(status, ErrorResponse{Error: text})
}
