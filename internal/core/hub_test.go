package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
)

type failingLog struct {
	*memory.Log
}

func (failingLog) Append(context.Context, *store.Message) error {
	return errors.New("disk on fire")
}

func TestDispatchAcknowledgesWithoutRecipients(t *testing.T) {
	hub, _ := newTestHub(t)

	msg, err := hub.Dispatch(context.Background(), Submission{Text: "hi", Sender: "A", Owner: "tok"})
	require.NoError(t, err)

	_, err = uuid.Parse(msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "A", msg.Sender)
	assert.Equal(t, "tok", msg.Owner)
	assert.Equal(t, store.DefaultColor, msg.Color)
	assert.Zero(t, msg.Likes)
	assert.Zero(t, msg.Dislikes)
	assert.Positive(t, msg.Timestamp)

	all, err := hub.CatchUp(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []store.Message{msg}, all)
}

func TestDispatchClampsNonMonotonicClock(t *testing.T) {
	hub, _ := newTestHub(t)

	clock := time.UnixMilli(10_000)
	hub.now = func() time.Time { return clock }

	first := dispatch(t, hub, "one")
	second := dispatch(t, hub, "two")
	clock = time.UnixMilli(5_000)
	third := dispatch(t, hub, "three")

	assert.Equal(t, int64(10_000), first.Timestamp)
	assert.Equal(t, int64(10_001), second.Timestamp)
	assert.Equal(t, int64(10_002), third.Timestamp)
}

func TestAppendFailurePropagates(t *testing.T) {
	hub := NewHub(failingLog{memory.New()}, nil)
	defer hub.Close()

	client := NewClient("c", "")
	require.NoError(t, hub.RegisterClient(client))
	w := hub.waiters.Register(0, time.Hour)

	_, err := hub.Dispatch(context.Background(), Submission{Text: "x", Sender: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAppend)
	assert.Equal(t, ErrCodeInternal, ErrorCode(err))

	assert.Equal(t, StateWaiting, w.State(), "waiters are untouched when append fails")
	assert.Empty(t, client.Events)
}

func TestPollImmediateReply(t *testing.T) {
	hub, _ := newTestHub(t)
	first := dispatch(t, hub, "first")
	second := dispatch(t, hub, "second")

	res, err := hub.Poll(context.Background(), first.Timestamp, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StateImmediate, res.State)
	assert.Equal(t, []store.Message{second}, res.Messages)
}

func TestPollCompletedByDispatch(t *testing.T) {
	hub, _ := newTestHub(t)
	old := dispatch(t, hub, "old")

	type outcome struct {
		res     PollResult
		err     error
		elapsed time.Duration
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := hub.Poll(context.Background(), old.Timestamp, 30*time.Second)
		done <- outcome{res: res, err: err, elapsed: time.Since(start)}
	}()

	require.Eventually(t, func() bool { return hub.waiters.Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	fresh := dispatch(t, hub, "fresh")

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, StateCompleted, out.res.State)
		assert.Equal(t, []store.Message{fresh}, out.res.Messages)
		assert.Less(t, out.elapsed, time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("poll was not completed by dispatch")
	}
}

func TestPollTimesOutWithEmptyBatch(t *testing.T) {
	hub, _ := newTestHub(t)
	const timeout = 80 * time.Millisecond

	start := time.Now()
	res, err := hub.Poll(context.Background(), time.Now().UnixMilli(), timeout)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Equal(t, StateTimedOut, res.State)
	assert.NotNil(t, res.Messages)
	assert.Empty(t, res.Messages)
	assert.Zero(t, hub.waiters.Len())
}

func TestPollDisconnectReleasesWaiter(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	var res PollResult
	go func() {
		var err error
		res, err = hub.Poll(ctx, 0, time.Hour)
		done <- err
	}()

	require.Eventually(t, func() bool { return hub.waiters.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDisconnected, res.State)
	assert.Zero(t, hub.waiters.Len())

	// A later dispatch finds no one to complete.
	dispatch(t, hub, "after")
}

func TestPollCancelledAfterDispatchTookWaiter(t *testing.T) {
	hub, _ := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		res PollResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := hub.Poll(ctx, 0, time.Hour)
		done <- outcome{res, err}
	}()

	require.Eventually(t, func() bool { return hub.waiters.Len() == 1 }, time.Second, time.Millisecond)

	// same steps as Dispatch, with the cancel landing between drain and completion
	hub.mu.Lock()
	drained := hub.waiters.DrainAll()
	require.Len(t, drained, 1)
	cancel()
	time.Sleep(50 * time.Millisecond)
	msg := store.Message{ID: "m1", Text: "late", Sender: "A", Timestamp: 1}
	assert.True(t, hub.waiters.Complete(drained[0], []store.Message{msg}))
	hub.mu.Unlock()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, StateCompleted, out.res.State)
		assert.Equal(t, []store.Message{msg}, out.res.Messages)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not return the completed result")
	}
	assert.Equal(t, StateCompleted, drained[0].State())
	assert.False(t, hub.waiters.Deregister(drained[0]))
}

func TestIntegrityErrorOnRead(t *testing.T) {
	hub, log := newTestHub(t)
	dispatch(t, hub, "fine")
	require.NoError(t, log.Append(context.Background(), &store.Message{}))

	_, err := hub.CatchUp(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, ErrCodeIntegrity, ErrorCode(err))

	_, err = hub.Poll(context.Background(), 0, time.Hour)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Zero(t, hub.waiters.Len(), "no waiter is parked for a corrupt log")
}

func TestDispatchPushesToSocketsAndDropsSlowOnes(t *testing.T) {
	hub, _ := newTestHub(t)

	fast := NewClient("fast", "")
	slow := NewClient("slow", "")
	require.NoError(t, hub.RegisterClient(fast))
	require.NoError(t, hub.RegisterClient(slow))

	for range clientBuffer {
		require.True(t, slow.Push(&Event{Kind: EventHandshake}))
	}

	msg := dispatch(t, hub, "hello")

	ev := mustEvent(t, fast.Events, EventNewMessage)
	assert.Equal(t, msg, ev.Message)
	assert.False(t, slow.Open())
	assert.Equal(t, 1, hub.sockets.Len())
}

// TestRecipientsObserveAppendOrder dispatches concurrently and checks that
// sockets and a chained long-poller all see the log's order.
func TestRecipientsObserveAppendOrder(t *testing.T) {
	hub, _ := newTestHub(t)
	const n = 30

	sockets := []*Client{NewClient("s1", ""), NewClient("s2", "")}
	for _, c := range sockets {
		require.NoError(t, hub.RegisterClient(c))
	}

	polled := make(chan []string, 1)
	go func() {
		var ids []string
		var since int64
		for len(ids) < n {
			res, err := hub.Poll(context.Background(), since, 5*time.Second)
			if err != nil {
				break
			}
			for _, m := range res.Messages {
				ids = append(ids, m.ID)
				since = m.Timestamp
			}
		}
		polled <- ids
	}()

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := hub.Dispatch(context.Background(), Submission{Text: string(rune('a' + i)), Sender: "s"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logged, err := hub.CatchUp(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, logged, n)
	want := make([]string, 0, n)
	for i, m := range logged {
		want = append(want, m.ID)
		if i > 0 {
			require.Greater(t, m.Timestamp, logged[i-1].Timestamp)
		}
	}

	for _, c := range sockets {
		got := make([]string, 0, n)
		for range n {
			ev := mustEvent(t, c.Events, EventNewMessage)
			got = append(got, ev.Message.ID)
		}
		assert.Equal(t, want, got, "socket %s order", c.ID)
	}

	select {
	case ids := <-polled:
		assert.Equal(t, want, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not collect every message")
	}
}

func TestCloseAnswersWaitersAndRejectsWork(t *testing.T) {
	hub := NewHub(memory.New(), nil)
	client := NewClient("c", "")
	require.NoError(t, hub.RegisterClient(client))
	w := hub.waiters.Register(0, time.Hour)

	hub.Close()
	hub.Close()

	res := mustResult(t, w)
	assert.Equal(t, StateTimedOut, res.State)
	assert.False(t, client.Open())

	_, err := hub.Dispatch(context.Background(), Submission{Text: "x", Sender: "y"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = hub.Poll(context.Background(), 0, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, hub.RegisterClient(NewClient("d", "")), ErrClosed)
}

func TestStats(t *testing.T) {
	hub, _ := newTestHub(t)
	dispatch(t, hub, "one")
	require.NoError(t, hub.RegisterClient(NewClient("c", "")))
	hub.waiters.Register(0, time.Hour)

	stats, err := hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Messages: 1, Waiters: 1, Sockets: 1}, stats)
}
