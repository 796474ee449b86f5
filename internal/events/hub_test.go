package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := hub.Subscribe(4)
	b := hub.Subscribe(4)
	defer a.Close()
	defer b.Close()

	hub.Publish(Event{Type: CycleStarted, CycleID: "c1"})

	for _, sub := range []*Subscription{a, b} {
		select {
		case e := <-sub.C():
			assert.Equal(t, CycleStarted, e.Type)
			assert.Equal(t, "c1", e.CycleID)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(1)
	defer sub.Close()

	hub.Publish(Event{Type: CycleStarted})
	hub.Publish(Event{Type: CycleCompleted})
	hub.Publish(Event{Type: CycleFailed})

	assert.Equal(t, uint64(2), hub.Dropped())
	e := <-sub.C()
	assert.Equal(t, CycleStarted, e.Type)
}

func TestHub_CloseSubscription(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(0)
	assert.Equal(t, 1, hub.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	_, ok := <-sub.C()
	assert.False(t, ok)

	// 无订阅者时发布不会阻塞
	hub.Publish(Event{Type: SourceFailed})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(1)
	hub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Close()
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	got := parseTypes("cycle_started, cycle_failed,,")
	assert.Equal(t, map[Type]bool{CycleStarted: true, CycleFailed: true}, got)
}

// --- WebSocket ---

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandler_StreamsEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(Handler(hub, zap.NewNop()))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv)+"?types=checkpoint_matched", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: CycleStarted, CycleID: "c1"})
	hub.Publish(Event{Type: CheckpointMatched, CycleID: "c1", ItemID: "task-1", Checkpoint: "urgent"})

	var got Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, CheckpointMatched, got.Type)
	assert.Equal(t, "task-1", got.ItemID)
	assert.Equal(t, "urgent", got.Checkpoint)
}

func TestHandler_UnsubscribesOnClientClose(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(Handler(hub, nil))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
