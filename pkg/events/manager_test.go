package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListener records LISTEN/UNLISTEN calls that change its state.
// When unlistenGate is set, UNLISTEN signals unlistenStarted and blocks
// until the gate is closed.
type fakeListener struct {
	mu           sync.Mutex
	listening    map[string]bool
	listens      []string
	unlistens    []string
	subscribeErr error

	unlistenStarted chan struct{}
	unlistenGate    chan struct{}
}

func (f *fakeListener) Subscribe(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	if f.listening[channel] {
		return nil
	}
	if f.listening == nil {
		f.listening = make(map[string]bool)
	}
	f.listening[channel] = true
	f.listens = append(f.listens, channel)
	return nil
}

func (f *fakeListener) Unsubscribe(_ context.Context, channel string) error {
	if f.unlistenGate != nil {
		f.unlistenStarted <- struct{}{}
		<-f.unlistenGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.listening[channel] {
		return nil
	}
	delete(f.listening, channel)
	f.unlistens = append(f.unlistens, channel)
	return nil
}

func (f *fakeListener) isListening(channel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening[channel]
}

func (f *fakeListener) calls() (listens, unlistens []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listens...), append([]string(nil), f.unlistens...)
}

func receive(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestConnectionManager_BroadcastInOrder(t *testing.T) {
	m := NewConnectionManager(8, 0, nil)
	a, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)
	b, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)
	other, err := m.Subscribe(t.Context(), "other")
	require.NoError(t, err)

	m.Broadcast("c", []byte("1"))
	m.Broadcast("c", []byte("2"))

	for _, sub := range []*Subscription{a, b} {
		assert.Equal(t, "1", string(receive(t, sub)))
		assert.Equal(t, "2", string(receive(t, sub)))
	}
	assert.Empty(t, other.C())
	assert.Equal(t, 2, m.SubscriberCount("c"))
}

func TestConnectionManager_LateSubscriberMissesEarlierMessages(t *testing.T) {
	m := NewConnectionManager(8, 0, nil)
	early, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)

	m.Broadcast("c", []byte("before"))
	late, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)
	m.Broadcast("c", []byte("after"))

	assert.Equal(t, "before", string(receive(t, early)))
	assert.Equal(t, "after", string(receive(t, early)))
	assert.Equal(t, "after", string(receive(t, late)))
	assert.Empty(t, late.C())
}

func TestConnectionManager_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	m := NewConnectionManager(1, 0, nil)
	slow, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.Broadcast("c", []byte("1"))
		m.Broadcast("c", []byte("2"))
		m.Broadcast("c", []byte("3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	assert.Equal(t, "1", string(receive(t, slow)))
	assert.Empty(t, slow.C())
}

func TestConnectionManager_ListenOnFirstUnlistenOnLast(t *testing.T) {
	l := &fakeListener{}
	m := NewConnectionManager(8, 0, nil)
	m.SetListener(l)

	first, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)
	second, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)

	listens, _ := l.calls()
	assert.Equal(t, []string{"c"}, listens)

	m.Unsubscribe(first)
	m.Unsubscribe(second)

	require.Eventually(t, func() bool {
		_, unlistens := l.calls()
		return len(unlistens) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.SubscriberCount("c"))

	_, ok := <-first.C()
	assert.False(t, ok, "unsubscribe closes the channel")
	assert.NotPanics(t, func() { m.Unsubscribe(first) })
}

func TestConnectionManager_ResubscribeDuringUnlisten(t *testing.T) {
	l := &fakeListener{
		unlistenStarted: make(chan struct{}, 1),
		unlistenGate:    make(chan struct{}),
	}
	m := NewConnectionManager(8, 0, nil)
	m.SetListener(l)

	first, err := m.Subscribe(t.Context(), "c")
	require.NoError(t, err)
	m.Unsubscribe(first)

	select {
	case <-l.unlistenStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("UNLISTEN was not issued")
	}

	type result struct {
		sub *Subscription
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := m.Subscribe(context.Background(), "c")
		done <- result{sub, err}
	}()

	close(l.unlistenGate)
	var second result
	select {
	case second = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resubscribe did not complete")
	}
	require.NoError(t, second.err)
	defer m.Unsubscribe(second.sub)

	assert.True(t, l.isListening("c"), "the new subscriber must still be listened for")
	listens, unlistens := l.calls()
	assert.Equal(t, []string{"c", "c"}, listens)
	assert.Equal(t, []string{"c"}, unlistens)
}

func TestConnectionManager_ListenFailureRollsBack(t *testing.T) {
	l := &fakeListener{subscribeErr: errors.New("connection lost")}
	m := NewConnectionManager(8, 0, nil)
	m.SetListener(l)

	sub, err := m.Subscribe(t.Context(), "c")
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, 0, m.SubscriberCount("c"))
}

func setupWebSocket(t *testing.T, authorize AuthorizeFunc) (*ConnectionManager, *websocket.Conn) {
	t.Helper()

	manager := NewConnectionManager(8, 5*time.Second, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn, authorize)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+server.URL[len("http"):], nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	msg := readJSON(t, conn)
	require.Equal(t, MessageTypeConnected, msg["type"])
	require.NotEmpty(t, msg["connection_id"])
	return manager, conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestConnectionManager_WebSocketSubscribeAndReceive(t *testing.T) {
	manager, conn := setupWebSocket(t, nil)

	writeJSON(t, conn, ClientMessage{Action: ActionSubscribe, TaskID: "task-1"})
	msg := readJSON(t, conn)
	assert.Equal(t, "subscription.confirmed", msg["type"])
	assert.Equal(t, "task-1", msg["task_id"])

	manager.Broadcast(ChannelName("task-1"), []byte(`{"type":"activity","agent_name":"data_profiler"}`))
	msg = readJSON(t, conn)
	assert.Equal(t, MessageTypeActivity, msg["type"])
	assert.Equal(t, "data_profiler", msg["agent_name"])

	writeJSON(t, conn, ClientMessage{Action: ActionUnsubscribe, TaskID: "task-1"})
	require.Eventually(t, func() bool {
		return manager.SubscriberCount(ChannelName("task-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionManager_WebSocketAuthorization(t *testing.T) {
	authorize := func(_ context.Context, taskID string) error {
		if taskID == "mine" {
			return nil
		}
		return errors.New("not owner")
	}
	manager, conn := setupWebSocket(t, authorize)

	writeJSON(t, conn, ClientMessage{Action: ActionSubscribe, TaskID: "theirs"})
	msg := readJSON(t, conn)
	assert.Equal(t, "subscription.error", msg["type"])
	assert.Equal(t, 0, manager.SubscriberCount(ChannelName("theirs")))

	writeJSON(t, conn, ClientMessage{Action: ActionSubscribe, TaskID: "mine"})
	msg = readJSON(t, conn)
	assert.Equal(t, "subscription.confirmed", msg["type"])
	assert.Equal(t, 1, manager.SubscriberCount(ChannelName("mine")))
}

func TestConnectionManager_WebSocketControlMessages(t *testing.T) {
	_, conn := setupWebSocket(t, nil)

	writeJSON(t, conn, ClientMessage{Action: ActionPing})
	assert.Equal(t, "pong", readJSON(t, conn)["type"])

	writeJSON(t, conn, ClientMessage{Action: ActionSubscribe})
	assert.Equal(t, MessageTypeError, readJSON(t, conn)["type"])

	writeJSON(t, conn, ClientMessage{Action: "dance"})
	assert.Equal(t, MessageTypeError, readJSON(t, conn)["type"])
}

func TestConnectionManager_DisconnectReleasesSubscriptions(t *testing.T) {
	manager, conn := setupWebSocket(t, nil)

	writeJSON(t, conn, ClientMessage{Action: ActionSubscribe, TaskID: "task-1"})
	readJSON(t, conn)
	require.Equal(t, 1, manager.SubscriberCount(ChannelName("task-1")))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return manager.SubscriberCount(ChannelName("task-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
