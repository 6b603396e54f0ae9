package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

const (
	// DefaultQueueSize is the bridge capacity when none is configured.
	DefaultQueueSize = 256

	publishTimeout = 5 * time.Second
)

// Bridge turns synchronous agent callbacks into asynchronous publishes.
// Emit never blocks; one drain goroutine publishes queued events in order.
type Bridge struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.ActivityEvent
	done   chan struct{}
}

// NewBridge starts a bridge with the given queue capacity.
func NewBridge(publisher Publisher, queueSize int, m *metrics.Metrics) *Bridge {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bridge{
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "event-bridge"),
		queue:     make(chan models.ActivityEvent, queueSize),
		done:      make(chan struct{}),
	}
	go b.drain()
	return b
}

// Emit enqueues an event for publishing. When the queue is full, or the
// bridge is closed, the event is dropped and counted. Emit has the
// agent.EventCallback signature.
func (b *Bridge) Emit(e models.ActivityEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.metrics.IncBridge(metrics.BridgeDropped)
		return
	}
	select {
	case b.queue <- e:
	default:
		b.metrics.IncBridge(metrics.BridgeDropped)
		b.logger.Warn("Event queue full, dropping activity event",
			"task_id", e.TaskID, "agent", e.AgentName, "action", e.Action)
	}
}

// Close stops accepting events and waits until the queued ones are
// published or ctx is done.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) drain() {
	defer close(b.done)
	for e := range b.queue {
		b.publish(e)
	}
}

// publish sends one event. Failures are logged and counted, never returned.
func (b *Bridge) publish(e models.ActivityEvent) {
	payload, err := json.Marshal(NewActivityMessage(e))
	if err != nil {
		b.metrics.IncBridge(metrics.BridgeFailed)
		b.logger.Warn("Failed to marshal activity event", "task_id", e.TaskID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, ChannelName(e.TaskID), payload); err != nil {
		b.metrics.IncBridge(metrics.BridgeFailed)
		b.logger.Warn("Failed to publish activity event",
			"task_id", e.TaskID, "agent", e.AgentName, "error", err)
		return
	}
	b.metrics.IncBridge(metrics.BridgePublished)
}
