// Package slack posts analysis notifications to a Slack channel.
package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Notification outcomes used as metric labels.
const (
	outcomeSent   = "sent"
	outcomeFailed = "failed"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
	Metrics      *metrics.Metrics
}

// AnalysisStartedInput contains data for an analysis start notification.
type AnalysisStartedInput struct {
	TaskID   string
	Filename string
}

// AnalysisCompletedInput contains data for a terminal analysis notification.
type AnalysisCompletedInput struct {
	TaskID       string
	Filename     string
	Status       string // completed, failed, cancelled
	Result       *models.AnalysisResult
	ErrorMessage string
	ThreadTS     string // Cached from start notification
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return NewServiceWithClient(NewClient(cfg.Token, cfg.Channel), cfg.DashboardURL, cfg.Metrics)
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string, m *metrics.Metrics) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		metrics:      m,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyAnalysisStarted posts a top-level "analysis started" message and
// returns its timestamp so the terminal notification can reply in thread.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisStarted(ctx context.Context, input AnalysisStartedInput) string {
	if s == nil {
		return ""
	}

	blocks := BuildStartedMessage(input.TaskID, input.Filename, s.dashboardURL)
	text := fallbackText(input.TaskID, input.Filename, "Analysis started")
	ts, err := s.client.PostMessage(ctx, text, blocks, "", 5*time.Second)
	if err != nil {
		s.metrics.IncNotification(outcomeFailed)
		s.logger.Error("Failed to send Slack start notification",
			"task_id", input.TaskID,
			"error", err)
		return ""
	}
	s.metrics.IncNotification(outcomeSent)
	return ts
}

// NotifyAnalysisCompleted sends a terminal status notification, threaded
// under the start message when it can be found.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisCompleted(ctx context.Context, input AnalysisCompletedInput) {
	if s == nil {
		return
	}

	threadTS := input.ThreadTS
	if threadTS == "" {
		var err error
		threadTS, err = s.client.FindTaskThread(ctx, input.TaskID)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for task",
				"task_id", input.TaskID,
				"error", err)
		}
	}

	blocks := BuildTerminalMessage(input, s.dashboardURL)
	label := statusLabel[input.Status]
	if label == "" {
		label = "Analysis " + input.Status
	}
	text := fallbackText(input.TaskID, input.Filename, label)
	if _, err := s.client.PostMessage(ctx, text, blocks, threadTS, 10*time.Second); err != nil {
		s.metrics.IncNotification(outcomeFailed)
		s.logger.Error("Failed to send Slack notification",
			"task_id", input.TaskID,
			"status", input.Status,
			"error", err)
		return
	}
	s.metrics.IncNotification(outcomeSent)
}
