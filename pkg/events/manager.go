package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/adaa/pkg/metrics"
)

// listenTimeout bounds how long a LISTEN may block a subscribing client.
const listenTimeout = 10 * time.Second

// DefaultSubscriberBuffer is the per-subscriber queue used when none is configured.
const DefaultSubscriberBuffer = 64

// Stream transports, used as the metrics label.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Listener starts and stops cross-process delivery for a channel. Both
// calls must be idempotent. Implemented by NotifyListener.
type Listener interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
}

// AuthorizeFunc decides whether the caller may watch a task.
type AuthorizeFunc func(ctx context.Context, taskID string) error

// Subscription is one subscriber's view of a channel. Messages arrive on
// C in broadcast order; C is closed on Unsubscribe.
type Subscription struct {
	ID      string
	Channel string
	ch      chan []byte
}

// C returns the message channel.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// ConnectionManager fans channel messages out to local subscribers.
// Each process has one.
type ConnectionManager struct {
	// channel → subscription id → subscription
	channels  map[string]map[string]*Subscription
	channelMu sync.RWMutex

	listener   Listener
	listenerMu sync.RWMutex
	// serializes listener LISTEN/UNLISTEN calls
	syncMu sync.Mutex

	buffer       int
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewConnectionManager creates a manager. buffer bounds each subscriber's
// pending messages; a subscriber whose buffer is full misses the message.
func NewConnectionManager(buffer int, writeTimeout time.Duration, m *metrics.Metrics) *ConnectionManager {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &ConnectionManager{
		channels:     make(map[string]map[string]*Subscription),
		buffer:       buffer,
		writeTimeout: writeTimeout,
		metrics:      m,
		logger:       slog.Default().With("component", "connection-manager"),
	}
}

// SetListener installs the cross-process listener. Called once at startup.
func (m *ConnectionManager) SetListener(l Listener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

func (m *ConnectionManager) currentListener() Listener {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return m.listener
}

// Subscribe registers a new subscriber on channel. It returns once the
// listener delivers the channel; if LISTEN fails the subscription is
// rolled back.
func (m *ConnectionManager) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	sub := &Subscription{
		ID:      uuid.New().String(),
		Channel: channel,
		ch:      make(chan []byte, m.buffer),
	}

	m.channelMu.Lock()
	subs, exists := m.channels[channel]
	if !exists {
		subs = make(map[string]*Subscription)
		m.channels[channel] = subs
	}
	subs[sub.ID] = sub
	m.channelMu.Unlock()

	if l := m.currentListener(); l != nil {
		listenCtx, cancel := context.WithTimeout(ctx, listenTimeout)
		defer cancel()
		if err := m.syncListener(listenCtx, l, channel); err != nil {
			m.logger.Error("Failed to LISTEN on channel", "channel", channel, "error", err)
			m.remove(sub)
			return nil, err
		}
	}
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its message channel. The
// last subscriber of a channel stops LISTEN.
func (m *ConnectionManager) Unsubscribe(sub *Subscription) {
	if sub == nil || !m.remove(sub) {
		return
	}
	if m.SubscriberCount(sub.Channel) > 0 {
		return
	}
	l := m.currentListener()
	if l == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), listenTimeout)
		defer cancel()
		if err := m.syncListener(ctx, l, sub.Channel); err != nil {
			m.logger.Error("Failed to UNLISTEN channel", "channel", sub.Channel, "error", err)
		}
	}()
}

// syncListener brings the listener in line with whether channel has local
// subscribers at the time of the call. Calls are serialized, so the last
// one sees the latest subscriber set.
func (m *ConnectionManager) syncListener(ctx context.Context, l Listener, channel string) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	if m.SubscriberCount(channel) > 0 {
		return l.Subscribe(ctx, channel)
	}
	return l.Unsubscribe(ctx, channel)
}

// remove deletes sub and closes its channel. It reports false if sub was
// already removed.
func (m *ConnectionManager) remove(sub *Subscription) bool {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()
	subs, ok := m.channels[sub.Channel]
	if !ok {
		return false
	}
	if _, ok := subs[sub.ID]; !ok {
		return false
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(m.channels, sub.Channel)
	}
	close(sub.ch)
	return true
}

// Broadcast delivers payload to every current subscriber of channel without
// blocking. Subscribers with a full buffer miss the message.
func (m *ConnectionManager) Broadcast(channel string, payload []byte) {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	for _, sub := range m.channels[channel] {
		select {
		case sub.ch <- payload:
		default:
			m.logger.Warn("Subscriber buffer full, dropping message",
				"channel", channel, "subscription_id", sub.ID)
		}
	}
}

// SubscriberCount returns the number of subscribers on channel.
func (m *ConnectionManager) SubscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

// HandleConnection serves one WebSocket client until it disconnects.
// Each subscribe action is checked with authorize before the client is
// attached to the task channel.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, authorize AuthorizeFunc) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	m.metrics.StreamOpened(TransportWebSocket)
	defer m.metrics.StreamClosed(TransportWebSocket)

	// task id → subscription; only touched by this goroutine
	subs := make(map[string]*Subscription)
	var pumps sync.WaitGroup
	defer func() {
		for _, sub := range subs {
			m.Unsubscribe(sub)
		}
		pumps.Wait()
	}()

	m.sendJSON(ctx, conn, ConnectedMessage{Type: MessageTypeConnected, ConnectionID: connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("Invalid WebSocket message", "connection_id", connID, "error", err)
			m.sendJSON(ctx, conn, ErrorMessage{Type: MessageTypeError, Message: "invalid message"})
			continue
		}

		switch msg.Action {
		case ActionSubscribe:
			if msg.TaskID == "" {
				m.sendJSON(ctx, conn, ErrorMessage{Type: MessageTypeError, Message: "task_id is required for subscribe"})
				continue
			}
			if _, ok := subs[msg.TaskID]; ok {
				m.sendJSON(ctx, conn, subscriptionReply{Type: "subscription.confirmed", TaskID: msg.TaskID})
				continue
			}
			if authorize != nil {
				if err := authorize(ctx, msg.TaskID); err != nil {
					m.sendJSON(ctx, conn, subscriptionReply{Type: "subscription.error", TaskID: msg.TaskID, Message: "not allowed"})
					continue
				}
			}
			sub, err := m.Subscribe(ctx, ChannelName(msg.TaskID))
			if err != nil {
				m.sendJSON(ctx, conn, subscriptionReply{Type: "subscription.error", TaskID: msg.TaskID, Message: "failed to subscribe"})
				continue
			}
			subs[msg.TaskID] = sub
			pumps.Add(1)
			go func() {
				defer pumps.Done()
				m.pump(ctx, conn, sub)
			}()
			m.sendJSON(ctx, conn, subscriptionReply{Type: "subscription.confirmed", TaskID: msg.TaskID})

		case ActionUnsubscribe:
			if sub, ok := subs[msg.TaskID]; ok {
				delete(subs, msg.TaskID)
				m.Unsubscribe(sub)
			}

		case ActionPing:
			m.sendJSON(ctx, conn, map[string]string{"type": "pong"})

		default:
			m.sendJSON(ctx, conn, ErrorMessage{Type: MessageTypeError, Message: "unknown action"})
		}
	}
}

type subscriptionReply struct {
	Type    string `json:"type"`
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

// pump forwards a subscription to the socket until the subscription is
// closed or the connection ends.
func (m *ConnectionManager) pump(ctx context.Context, conn *websocket.Conn, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := m.write(ctx, conn, payload); err != nil {
				if !errors.Is(err, context.Canceled) {
					m.logger.Warn("Failed to send to WebSocket client",
						"subscription_id", sub.ID, "error", err)
				}
				return
			}
		}
	}
}

func (m *ConnectionManager) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	if m.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.writeTimeout)
		defer cancel()
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (m *ConnectionManager) sendJSON(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := m.write(ctx, conn, data); err != nil {
		m.logger.Debug("Failed to send WebSocket message", "error", err)
	}
}
