package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// recordingBroadcaster captures broadcasts in order.
type recordingBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (r *recordingBroadcaster) Broadcast(channel string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channel)
	r.payloads = append(r.payloads, payload)
}

func (r *recordingBroadcaster) snapshot() ([]string, [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.channels...), append([][]byte(nil), r.payloads...)
}

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through a small payload", func(t *testing.T) {
		payload, _ := json.Marshal(NewActivityMessage(models.ActivityEvent{TaskID: "abc-123", Message: "hi"}))

		result, err := truncateIfNeeded(payload)
		require.NoError(t, err)
		assert.Equal(t, string(payload), result)
	})

	t.Run("replaces an oversized payload with routing fields", func(t *testing.T) {
		payload, _ := json.Marshal(NewActivityMessage(models.ActivityEvent{
			TaskID:    "abc-123",
			AgentName: "visualization",
			Action:    models.ActionProgress,
			Message:   strings.Repeat("a", 9000),
		}))

		result, err := truncateIfNeeded(payload)
		require.NoError(t, err)
		assert.Less(t, len(result), notifyPayloadLimit)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(result), &decoded))
		assert.Equal(t, MessageTypeActivity, decoded["type"])
		assert.Equal(t, "abc-123", decoded["task_id"])
		assert.Equal(t, "visualization", decoded["agent_name"])
		assert.Equal(t, "progress", decoded["action"])
		assert.Equal(t, true, decoded["truncated"])
		assert.NotContains(t, decoded, "message")
	})

	t.Run("rejects oversized invalid JSON", func(t *testing.T) {
		_, err := truncateIfNeeded([]byte(strings.Repeat("x", notifyPayloadLimit+1)))
		assert.Error(t, err)
	})
}

func TestMemoryBroker_Publish(t *testing.T) {
	rec := &recordingBroadcaster{}
	broker := NewMemoryBroker(rec)

	require.NoError(t, broker.Publish(t.Context(), "c", []byte("one")))
	require.NoError(t, broker.Publish(t.Context(), "c", []byte("two")))

	channels, payloads := rec.snapshot()
	assert.Equal(t, []string{"c", "c"}, channels)
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, payloads)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, broker.Publish(ctx, "c", []byte("three")), context.Canceled)
}

func TestPublishStatus(t *testing.T) {
	rec := &recordingBroadcaster{}

	err := PublishStatus(t.Context(), NewMemoryBroker(rec), "t1", models.JobFailed, "boom")
	require.NoError(t, err)

	channels, payloads := rec.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, "analysis_events:t1", channels[0])

	var msg StatusMessage
	require.NoError(t, json.Unmarshal(payloads[0], &msg))
	assert.Equal(t, MessageTypeStatus, msg.Type)
	assert.Equal(t, "t1", msg.TaskID)
	assert.Equal(t, models.JobFailed, msg.Status)
	assert.Equal(t, "boom", msg.Error)
	assert.False(t, msg.Timestamp.IsZero())
}
