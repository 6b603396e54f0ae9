// Package events moves agent activity from a running analysis to the
// clients watching it.
//
// Agents emit ActivityEvents synchronously; the Bridge queues them and a
// single drain goroutine publishes each one as JSON on the task's channel
// ("analysis_events:{task_id}"). With Postgres the publish is a pg_notify
// and every process's NotifyListener forwards notifications to its local
// ConnectionManager; in single-process mode the MemoryBroker hands the
// payload to the ConnectionManager directly. The ConnectionManager fans each
// message out to the SSE and WebSocket subscribers of that channel.
//
// Delivery is broadcast only. Nothing is persisted, so a subscriber that
// joins late never sees earlier messages.
package events

import (
	"strings"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// ChannelPrefix prefixes every task channel name.
const ChannelPrefix = "analysis_events:"

// Message types on a task channel.
const (
	MessageTypeActivity  = "activity"
	MessageTypeStatus    = "status"
	MessageTypeConnected = "connected"
	MessageTypeError     = "error"
)

// ChannelName returns the channel carrying a task's messages.
func ChannelName(taskID string) string {
	return ChannelPrefix + taskID
}

// TaskIDFromChannel extracts the task id from a channel name.
func TaskIDFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, ChannelPrefix)
	return id, ok && id != ""
}

// ActivityMessage is the wire form of one activity event.
type ActivityMessage struct {
	Type string `json:"type"` // always MessageTypeActivity
	models.ActivityEvent
}

// NewActivityMessage wraps an event for publishing.
func NewActivityMessage(e models.ActivityEvent) ActivityMessage {
	return ActivityMessage{Type: MessageTypeActivity, ActivityEvent: e}
}

// StatusMessage announces a job status change. A terminal status is the
// last message on a task channel.
type StatusMessage struct {
	Type      string           `json:"type"` // always MessageTypeStatus
	TaskID    string           `json:"task_id"`
	Status    models.JobStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ConnectedMessage is the first frame on every stream.
type ConnectedMessage struct {
	Type         string `json:"type"` // always MessageTypeConnected
	TaskID       string `json:"task_id,omitempty"`
	ConnectionID string `json:"connection_id"`
}

// ErrorMessage reports a stream-level problem to the client.
type ErrorMessage struct {
	Type    string `json:"type"` // always MessageTypeError
	Message string `json:"message"`
}

// ClientMessage is a client → server WebSocket message.
type ClientMessage struct {
	Action string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	TaskID string `json:"task_id,omitempty"` // target task for subscribe/unsubscribe
}

// Client actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)
