package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func TestWaiterTimesOutWithEmptyBatch(t *testing.T) {
	r := NewWaiterRegistry()
	start := time.Now()
	w := r.Register(42, 50*time.Millisecond)
	assert.Equal(t, StateWaiting, w.State())
	assert.Equal(t, 1, r.Len())

	res := mustResult(t, w)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, StateTimedOut, res.State)
	assert.NotNil(t, res.Messages)
	assert.Empty(t, res.Messages)
	assert.Zero(t, r.Len())
}

func TestDrainAllEmptiesAndStopsTimers(t *testing.T) {
	r := NewWaiterRegistry()
	a := r.Register(0, 100*time.Millisecond)
	b := r.Register(0, 100*time.Millisecond)

	drained := r.DrainAll()
	require.Len(t, drained, 2)
	assert.Zero(t, r.Len())

	late := r.Register(0, time.Hour)
	assert.Equal(t, 1, r.Len(), "waiter registered after the drain stays registered")

	msg := []store.Message{{ID: "m", Text: "hi", Timestamp: 1}}
	for _, w := range drained {
		assert.True(t, r.Complete(w, msg))
	}

	// Give the stopped timers a chance to (not) fire.
	time.Sleep(150 * time.Millisecond)
	for _, w := range []*Waiter{a, b} {
		res := mustResult(t, w)
		assert.Equal(t, StateCompleted, res.State)
		assert.Equal(t, msg, res.Messages)
		select {
		case extra := <-w.Done():
			t.Fatalf("second completion delivered: %+v", extra)
		default:
		}
	}

	assert.True(t, r.Deregister(late))
}

func TestStaleTimerAfterDrainIsNoop(t *testing.T) {
	r := NewWaiterRegistry()
	w := r.Register(0, time.Hour)

	drained := r.DrainAll()
	require.Len(t, drained, 1)

	// Simulate the timer callback racing in after the drain.
	assert.False(t, r.expire(w))
	assert.True(t, r.Complete(w, []store.Message{{ID: "x", Text: "t", Timestamp: 1}}))
	assert.Equal(t, StateCompleted, mustResult(t, w).State)
}

func TestDeregisterPreventsCompletion(t *testing.T) {
	r := NewWaiterRegistry()
	w := r.Register(0, 20*time.Millisecond)

	assert.True(t, r.Deregister(w))
	assert.False(t, r.Deregister(w), "second deregister is a no-op")
	assert.Equal(t, StateDisconnected, w.State())
	assert.Empty(t, r.DrainAll())

	time.Sleep(50 * time.Millisecond)
	select {
	case res := <-w.Done():
		t.Fatalf("disconnected waiter received a reply: %+v", res)
	default:
	}
}

func TestDeregisterAfterTimeoutFails(t *testing.T) {
	r := NewWaiterRegistry()
	w := r.Register(0, 10*time.Millisecond)

	res := mustResult(t, w)
	assert.Equal(t, StateTimedOut, res.State)
	assert.False(t, r.Deregister(w))
	assert.Equal(t, StateTimedOut, w.State())
}

// TestExactlyOneTerminalTransition races the three terminal paths against
// each other for many waiters and checks each one finished exactly once.
func TestExactlyOneTerminalTransition(t *testing.T) {
	r := NewWaiterRegistry()
	const n = 500

	waiters := make([]*Waiter, n)
	for i := range waiters {
		waiters[i] = r.Register(0, time.Hour)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	wins := make([]int, n)
	var mu sync.Mutex

	record := func(i int, ok bool) {
		if !ok {
			return
		}
		mu.Lock()
		wins[i]++
		mu.Unlock()
	}

	// Dispatch path.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		for _, w := range r.DrainAll() {
			for i := range waiters {
				if waiters[i] == w {
					record(i, r.Complete(w, []store.Message{{ID: "m", Text: "t", Timestamp: 1}}))
				}
			}
		}
	}()

	// Timer and disconnect paths.
	for i, w := range waiters {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			record(i, r.expire(w))
		}()
		go func() {
			defer wg.Done()
			<-start
			record(i, r.Deregister(w))
		}()
	}

	close(start)
	wg.Wait()

	for i, w := range waiters {
		require.Equal(t, 1, wins[i], "waiter %d finished %d times", i, wins[i])
		state := w.State()
		require.NotEqual(t, StateWaiting, state)

		delivered := 0
		select {
		case <-w.Done():
			delivered++
		default:
		}
		if state == StateDisconnected {
			assert.Zero(t, delivered)
		} else {
			assert.Equal(t, 1, delivered)
		}
	}
}
