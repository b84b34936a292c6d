package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorecard-insights-go/internal/logger"
)

// recordTimer fires immediately and remembers every wait it was asked for.
type recordTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *recordTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *recordTimer) Stop() {}

func (t *recordTimer) C() <-chan time.Time { return t.c }

type fakeStream struct {
	events chan Event
	err    error
}

func (s *fakeStream) Events() <-chan Event { return s.events }
func (s *fakeStream) Err() error           { return s.err }
func (s *fakeStream) Close() error         { return nil }

// closedStream delivers evs and then reports the channel as closed.
func closedStream(evs ...Event) *fakeStream {
	s := &fakeStream{events: make(chan Event, len(evs)), err: errors.New("connection reset")}
	for _, ev := range evs {
		s.events <- ev
	}
	close(s.events)
	return s
}

// openStream delivers evs and then stays open.
func openStream(evs ...Event) *fakeStream {
	s := &fakeStream{events: make(chan Event, len(evs))}
	for _, ev := range evs {
		s.events <- ev
	}
	return s
}

type step struct {
	stream Stream
	err    error
}

type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedSource) Subscribe(ctx context.Context) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		return nil, errors.New("no more steps")
	}
	return s.steps[i].stream, s.steps[i].err
}

func newTestFeed(src Source, retries int) (*Feed, *recordTimer) {
	f := NewFeed(src, FeedOptions{ReconnectBase: 2 * time.Second, MaxRetries: retries, SubscribeTimeout: time.Second}, logger.Discard())
	timer := &recordTimer{}
	f.timer = timer
	return f, timer
}

func TestFeed_RetriesExhausted(t *testing.T) {
	down := errors.New("connection refused")
	src := &scriptedSource{steps: []step{{err: down}, {err: down}, {err: down}, {err: down}, {err: down}}}
	f, timer := newTestFeed(src, 3)

	err := f.Run(context.Background(), func(context.Context, Event) { t.Fatal("unexpected event") })
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, timer.waits)
	assert.Equal(t, 4, src.calls)
}

func TestFeed_SuccessfulSubscribeResetsBudget(t *testing.T) {
	down := errors.New("connection refused")
	ev := Event{Table: "conversations", Op: "INSERT", ID: "c1"}
	src := &scriptedSource{steps: []step{
		{err: down},
		{err: down},
		{stream: closedStream(ev)},
		{err: down},
		{err: down},
		{err: down},
		{err: down},
	}}
	f, timer := newTestFeed(src, 3)

	var got []Event
	err := f.Run(context.Background(), func(_ context.Context, e Event) { got = append(got, e) })

	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second,
		2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, timer.waits)
	assert.Equal(t, []Event{ev}, got)
}

func TestFeed_ReconnectTriggersResync(t *testing.T) {
	ev1 := Event{Table: "conversations", Op: "UPDATE", ID: "c1"}
	ev2 := Event{Table: "products", Op: "INSERT", ID: "p9"}
	src := &scriptedSource{steps: []step{
		{stream: closedStream(ev1)},
		{stream: openStream(ev2)},
	}}
	f, timer := newTestFeed(src, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []Event
	err := f.Run(ctx, func(_ context.Context, e Event) {
		got = append(got, e)
		if e == ev2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Event{ev1, {Op: OpResync}, ev2}, got)
	assert.Equal(t, []time.Duration{2 * time.Second}, timer.waits)
}

type hangingSource struct{}

func (hangingSource) Subscribe(ctx context.Context) (Stream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFeed_SubscribeTimeout(t *testing.T) {
	f := NewFeed(hangingSource{}, FeedOptions{SubscribeTimeout: 10 * time.Millisecond, MaxRetries: 0}, logger.Discard())

	err := f.Run(context.Background(), func(context.Context, Event) {})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), ErrSubscribeTimeout.Error())
}

func TestFeed_CancelledWhileSubscribing(t *testing.T) {
	f := NewFeed(hangingSource{}, FeedOptions{SubscribeTimeout: time.Minute, MaxRetries: 3}, logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.Run(ctx, func(context.Context, Event) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestParseNotification(t *testing.T) {
	ev, err := ParseNotification(`{"table":"conversations","op":"DELETE","id":"7b0c"}`)
	require.NoError(t, err)
	assert.Equal(t, Event{Table: "conversations", Op: "DELETE", ID: "7b0c"}, ev)

	ev, err = ParseNotification(`{"table":"products","op":"INSERT","id":42}`)
	require.NoError(t, err)
	assert.Equal(t, "42", ev.ID)

	ev, err = ParseNotification(`{"table":"products","op":"UPDATE","id":null}`)
	require.NoError(t, err)
	assert.Empty(t, ev.ID)

	_, err = ParseNotification(`{"op":"INSERT"}`)
	assert.Error(t, err)
	_, err = ParseNotification(`nope`)
	assert.Error(t, err)
}

func TestHub_BroadcastReachesAllowedClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub([]string{"https://dash.example.com"}, logger.Discard())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "u1")
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": {"https://dash.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Message{Type: "conversations_changed", Generation: 7, State: "ready"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "conversations_changed", msg.Type)
	assert.Equal(t, uint64(7), msg.Generation)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub([]string{"https://dash.example.com"}, logger.Discard())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "u1")
	}))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
