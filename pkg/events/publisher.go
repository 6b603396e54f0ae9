package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// notifyPayloadLimit keeps payloads under PostgreSQL's 8000-byte NOTIFY limit.
const notifyPayloadLimit = 7900

// Publisher delivers a payload to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Broadcaster is the local fan-out a Publisher or listener delivers into.
// Implemented by ConnectionManager.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// PGPublisher publishes through PostgreSQL NOTIFY so every process
// LISTENing on the channel receives the payload.
type PGPublisher struct {
	db *sql.DB
}

// NewPGPublisher creates a publisher on the given database handle.
func NewPGPublisher(db *sql.DB) *PGPublisher {
	return &PGPublisher{db: db}
}

// Publish sends the payload with pg_notify. Oversized payloads are replaced
// by a truncation stub carrying only the routing fields.
func (p *PGPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	notifyPayload, err := truncateIfNeeded(payload)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// MemoryBroker publishes in-process, straight into a Broadcaster.
// Used with the sqlite driver and in tests.
type MemoryBroker struct {
	target Broadcaster
}

// NewMemoryBroker creates a broker delivering to target.
func NewMemoryBroker(target Broadcaster) *MemoryBroker {
	return &MemoryBroker{target: target}
}

// Publish delivers the payload synchronously.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.target.Broadcast(channel, payload)
	return nil
}

// PublishStatus announces a job status change on the task's channel.
func PublishStatus(ctx context.Context, p Publisher, taskID string, status models.JobStatus, errMsg string) error {
	payload, err := json.Marshal(StatusMessage{
		Type:      MessageTypeStatus,
		TaskID:    taskID,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}
	return p.Publish(ctx, ChannelName(taskID), payload)
}

// truncateIfNeeded returns the payload as-is if it fits the NOTIFY limit,
// otherwise a minimal envelope with only routing fields.
func truncateIfNeeded(payload []byte) (string, error) {
	if len(payload) <= notifyPayloadLimit {
		return string(payload), nil
	}
	var routing struct {
		Type      string `json:"type"`
		TaskID    string `json:"task_id"`
		AgentName string `json:"agent_name,omitempty"`
		Action    string `json:"action,omitempty"`
	}
	if err := json.Unmarshal(payload, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}
	truncated := map[string]any{
		"type":      routing.Type,
		"task_id":   routing.TaskID,
		"truncated": true,
	}
	if routing.AgentName != "" {
		truncated["agent_name"] = routing.AgentName
	}
	if routing.Action != "" {
		truncated["action"] = routing.Action
	}
	out, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(out), nil
}
