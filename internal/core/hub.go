package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Stats is a point-in-time view of the hub's shared state.
type Stats struct {
	Messages int
	Waiters  int
	Sockets  int
}

// Hub owns the message log and both recipient registries. A single Hub is
// shared by reference across all request handlers.
type Hub struct {
	// mu serializes dispatches with each other and with the
	// check-then-register step of Poll.
	mu      sync.Mutex
	log     store.MessageLog
	waiters *WaiterRegistry
	sockets *SocketRegistry
	logger  *zerolog.Logger

	now    func() time.Time
	lastTS int64
	closed bool
}

// NewHub creates a hub over the given message log.
func NewHub(log store.MessageLog, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		log:     log,
		waiters: NewWaiterRegistry(),
		sockets: NewSocketRegistry(),
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch appends a new message and delivers it to every waiter and every
// open socket. The stored message is returned as the poster's acknowledgement.
func (h *Hub) Dispatch(ctx context.Context, sub Submission) (store.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return store.Message{}, ErrClosed
	}

	ts := h.now().UnixMilli()
	if ts <= h.lastTS {
		ts = h.lastTS + 1
	}

	msg := newMessage(sub, ts)

	if err := h.log.Append(ctx, &msg); err != nil {
		return store.Message{}, coreError(ErrCodeInternal, "failed to store message", fmt.Errorf("%w: %w", ErrAppend, err))
	}
	h.lastTS = ts

	completed := 0
	for _, w := range h.waiters.DrainAll() {
		if h.waiters.Complete(w, []store.Message{msg}) {
			completed++
		}
	}

	event := &Event{Kind: EventNewMessage, Message: msg}
	pushed := h.sockets.ForEachOpen(func(c *Client) bool {
		if c.Push(event) {
			return true
		}
		h.logger.Debug().Str("client_id", c.ID).Str("message_id", msg.ID).Msg("push failed, dropping socket")
		return false
	})

	h.logger.Debug().
		Str("message_id", msg.ID).
		Int64("ts", msg.Timestamp).
		Int("waiters", completed).
		Int("sockets", pushed).
		Msg("message dispatched")

	return msg, nil
}

// CatchUp returns every message newer than since without waiting.
func (h *Hub) CatchUp(ctx context.Context, since int64) ([]store.Message, error) {
	return h.read(ctx, since)
}

// Poll is the long-poll read. It replies immediately when newer messages
// exist, otherwise it parks a waiter until a dispatch, the timeout, or ctx
// cancellation (client disconnect), whichever comes first.
func (h *Hub) Poll(ctx context.Context, since int64, timeout time.Duration) (PollResult, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return PollResult{}, ErrClosed
	}

	msgs, err := h.read(ctx, since)
	if err != nil {
		h.mu.Unlock()
		return PollResult{}, err
	}
	if len(msgs) > 0 {
		h.mu.Unlock()
		return PollResult{State: StateImmediate, Messages: msgs}, nil
	}

	w := h.waiters.Register(since, timeout)
	h.mu.Unlock()

	select {
	case res := <-w.Done():
		return res, nil
	case <-ctx.Done():
		if h.waiters.Deregister(w) {
			return PollResult{State: StateDisconnected}, ctx.Err()
		}
		// A dispatch or the timer took the waiter first; its result is on the way.
		return <-w.Done(), nil
	}
}

func (h *Hub) read(ctx context.Context, since int64) ([]store.Message, error) {
	ok, err := h.log.ValidateAll(ctx)
	if err != nil {
		return nil, coreError(ErrCodeInternal, "failed to validate messages", err)
	}
	if !ok {
		return nil, coreError(ErrCodeIntegrity, "Invalid message data", ErrIntegrity)
	}

	msgs, err := h.log.Since(ctx, since)
	if err != nil {
		return nil, coreError(ErrCodeInternal, "failed to read messages", err)
	}
	return msgs, nil
}

// RegisterClient admits a live-socket client to receive pushes.
func (h *Hub) RegisterClient(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.sockets.Add(c) {
		h.logger.Debug().Str("client_id", c.ID).Str("addr", c.Addr).Int("sockets", h.sockets.Len()).Msg("socket registered")
	}
	return nil
}

// UnregisterClient removes a live-socket client. Safe to call repeatedly.
func (h *Hub) UnregisterClient(c *Client) {
	if h.sockets.Remove(c) {
		h.logger.Debug().Str("client_id", c.ID).Int("sockets", h.sockets.Len()).Msg("socket unregistered")
	}
}

// Stats reports current sizes of the log and registries.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	n, err := h.log.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count messages: %w", err)
	}
	return Stats{
		Messages: n,
		Waiters:  h.waiters.Len(),
		Sockets:  h.sockets.Len(),
	}, nil
}

// Close stops accepting work, answers pending waiters with an empty batch and
// closes every live socket client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, w := range h.waiters.DrainAll() {
		w.finish(StateTimedOut, []store.Message{})
	}
	h.sockets.ForEachOpen(func(*Client) bool { return false })
}
