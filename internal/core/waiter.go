package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// DefaultPollTimeout is how long a long-poll waits for a new message.
const DefaultPollTimeout = 30 * time.Second

// PollState is the state of a read request in the long-poll state machine.
type PollState int32

const (
	// StateWaiting means a waiter is registered and not yet finished.
	StateWaiting PollState = iota
	// StateImmediate means matching messages existed when the request arrived.
	StateImmediate
	// StateTimedOut means the deadline passed before any dispatch.
	StateTimedOut
	// StateCompleted means a dispatch delivered the new message.
	StateCompleted
	// StateDisconnected means the client went away; no reply is sent.
	StateDisconnected
)

func (s PollState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateImmediate:
		return "immediate"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PollResult is what a finished read hands back to the transport.
type PollResult struct {
	State    PollState
	Messages []store.Message
}

// Waiter is one pending long-poll request.
type Waiter struct {
	Since    int64
	Deadline time.Time

	done  chan PollResult
	timer *time.Timer
	state atomic.Int32
}

// Done is the completion handle. It yields exactly one result unless the
// waiter ends disconnected, in which case nothing is ever sent.
func (w *Waiter) Done() <-chan PollResult {
	return w.done
}

// State returns the current state of the waiter.
func (w *Waiter) State() PollState {
	return PollState(w.state.Load())
}

// finish performs the single terminal transition. Only the party that
// removed w from the registry calls it.
func (w *Waiter) finish(state PollState, msgs []store.Message) bool {
	if !w.state.CompareAndSwap(int32(StateWaiting), int32(state)) {
		return false
	}
	if state != StateDisconnected {
		w.done <- PollResult{State: state, Messages: msgs}
	}
	return true
}

// WaiterRegistry tracks long-poll requests blocked awaiting new messages.
// Whoever removes a waiter from the registry owns its completion; that
// removal is what makes timer, dispatch and disconnect mutually exclusive.
type WaiterRegistry struct {
	mu      sync.Mutex
	waiters map[*Waiter]struct{}
}

// NewWaiterRegistry constructs an empty registry.
func NewWaiterRegistry() *WaiterRegistry {
	return &WaiterRegistry{
		waiters: make(map[*Waiter]struct{}),
	}
}

// Register inserts a waiter and arms its timeout. When the timer wins it
// completes the waiter with an empty batch.
func (r *WaiterRegistry) Register(since int64, timeout time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	w := &Waiter{
		Since:    since,
		Deadline: time.Now().Add(timeout),
		done:     make(chan PollResult, 1),
	}

	r.mu.Lock()
	r.waiters[w] = struct{}{}
	w.timer = time.AfterFunc(timeout, func() { r.expire(w) })
	r.mu.Unlock()

	return w
}

// expire is the timer path.
func (r *WaiterRegistry) expire(w *Waiter) bool {
	if !r.remove(w) {
		return false
	}
	return w.finish(StateTimedOut, []store.Message{})
}

// Deregister is the disconnect path: it cancels the timer and drops the
// waiter without completing it. Returns false if someone else already took it.
func (r *WaiterRegistry) Deregister(w *Waiter) bool {
	if !r.remove(w) {
		return false
	}
	w.timer.Stop()
	return w.finish(StateDisconnected, nil)
}

func (r *WaiterRegistry) remove(w *Waiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[w]; !ok {
		return false
	}
	delete(r.waiters, w)
	return true
}

// DrainAll swaps in an empty set and returns the former waiters with their
// timers stopped. Waiters registered afterwards land in the new set.
func (r *WaiterRegistry) DrainAll() []*Waiter {
	r.mu.Lock()
	drained := r.waiters
	r.waiters = make(map[*Waiter]struct{})
	r.mu.Unlock()

	out := make([]*Waiter, 0, len(drained))
	for w := range drained {
		w.timer.Stop()
		out = append(out, w)
	}
	return out
}

// Complete delivers msgs to a waiter previously returned by DrainAll.
func (r *WaiterRegistry) Complete(w *Waiter, msgs []store.Message) bool {
	return w.finish(StateCompleted, msgs)
}

// Len returns the number of pending waiters.
func (r *WaiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
