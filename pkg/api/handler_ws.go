package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to ConnectionManager.
// Every subscribe action is checked against the caller's ownership of the task.
func (s *Server) wsHandler(c *gin.Context) {
	if s.connManager == nil {
		respondError(c, &httpError{Code: http.StatusServiceUnavailable, Message: "WebSocket not available"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Stream.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		return
	}

	user := currentUser(c)
	authorize := func(ctx context.Context, taskID string) error {
		_, err := s.jobService.GetOwnedJob(ctx, taskID, user)
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.connManager.HandleConnection(c.Request.Context(), conn, authorize)
}
