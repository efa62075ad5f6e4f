package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
)

func newTestHub(t *testing.T) (*Hub, *memory.Log) {
	t.Helper()

	log := memory.New()
	hub := NewHub(log, nil)
	t.Cleanup(hub.Close)
	return hub, log
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustResult(t *testing.T, w *Waiter) PollResult {
	t.Helper()

	select {
	case res := <-w.Done():
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter not completed, state %s", w.State())
		return PollResult{}
	}
}

func dispatch(t *testing.T, hub *Hub, text string) store.Message {
	t.Helper()

	msg, err := hub.Dispatch(context.Background(), Submission{Text: text, Sender: "tester", Owner: "owner"})
	if err != nil {
		t.Fatalf("dispatch %q: %v", text, err)
	}
	return msg
}
