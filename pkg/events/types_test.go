package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

func TestChannelName(t *testing.T) {
	tests := []struct {
		name   string
		taskID string
		want   string
	}{
		{name: "plain id", taskID: "abc-123", want: "analysis_events:abc-123"},
		{name: "uuid", taskID: "550e8400-e29b-41d4-a716-446655440000", want: "analysis_events:550e8400-e29b-41d4-a716-446655440000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChannelName(tt.taskID)
			assert.Equal(t, tt.want, got)

			id, ok := TaskIDFromChannel(got)
			assert.True(t, ok)
			assert.Equal(t, tt.taskID, id)
		})
	}
}

func TestTaskIDFromChannel_Rejects(t *testing.T) {
	for _, ch := range []string{"", "analysis_events:", "session:abc"} {
		_, ok := TaskIDFromChannel(ch)
		assert.False(t, ok, ch)
	}
}

func TestActivityMessage_FlattensEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewActivityMessage(models.ActivityEvent{
		TaskID:    "t1",
		AgentName: "data_profiler",
		Action:    models.ActionStarted,
		Timestamp: ts,
		Status:    models.AgentStatusRunning,
		Detail:    map[string]any{"rows": 10},
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, MessageTypeActivity, decoded["type"])
	assert.Equal(t, "t1", decoded["task_id"])
	assert.Equal(t, "data_profiler", decoded["agent_name"])
	assert.Equal(t, "started", decoded["action"])
	assert.Equal(t, "running", decoded["status"])
	assert.Equal(t, map[string]any{"rows": float64(10)}, decoded["detail"])
}
