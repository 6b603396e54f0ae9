package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/adaa/pkg/events"
)

const defaultHeartbeat = 30 * time.Second

// eventStreamHandler handles GET /api/v1/analyses/:task_id/events.
// Messages published on the task's channel after the client connects are
// relayed as Server-Sent Events. Earlier messages are not replayed.
func (s *Server) eventStreamHandler(c *gin.Context) {
	if s.connManager == nil {
		respondError(c, &httpError{Code: http.StatusServiceUnavailable, Message: "event stream not available"})
		return
	}

	ctx := c.Request.Context()
	taskID := c.Param("task_id")
	if _, err := s.jobService.GetOwnedJob(ctx, taskID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	sub, err := s.connManager.Subscribe(ctx, events.ChannelName(taskID))
	if err != nil {
		respondError(c, &httpError{Code: http.StatusServiceUnavailable, Message: "failed to subscribe to events"})
		return
	}
	defer s.connManager.Unsubscribe(sub)

	s.metrics.StreamOpened(events.TransportSSE)
	defer s.metrics.StreamClosed(events.TransportSSE)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	interval := s.cfg.Stream.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	log := slog.With("task_id", taskID, "subscription_id", sub.ID)
	log.Debug("Event stream opened")

	retry := s.cfg.Stream.ReconnectBackoff.Milliseconds()
	if _, err := fmt.Fprintf(c.Writer, "retry: %d\n\n", retry); err != nil {
		return
	}
	connected, _ := json.Marshal(events.ConnectedMessage{
		Type:         events.MessageTypeConnected,
		TaskID:       taskID,
		ConnectionID: sub.ID,
	})
	if err := writeEvent(c.Writer, connected); err != nil {
		return
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.C():
			if !ok {
				return false
			}
			return writeEvent(w, msg) == nil
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": heartbeat\n\n")
			return err == nil
		}
	})
	log.Debug("Event stream closed")
}

// writeEvent writes one SSE data frame. Payloads are single-line JSON.
func writeEvent(w io.Writer, payload []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
