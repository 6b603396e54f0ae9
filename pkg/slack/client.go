package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goslack "github.com/slack-go/slack"
)

// Channel history searched for a task's thread.
const (
	historyWindow = 24 * time.Hour
	historyLimit  = 50
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api       *goslack.Client
	channelID string
	logger    *slog.Logger
}

// NewClient creates a new Slack API client.
func NewClient(token, channelID string) *Client {
	return &Client{
		api:       goslack.New(token),
		channelID: channelID,
		logger:    slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL creates a Slack API client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return &Client{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
		logger:    slog.Default().With("component", "slack-client"),
	}
}

// PostMessage sends a message to the configured channel and returns its
// timestamp. If threadTS is non-empty, the message is posted as a threaded reply.
func (c *Client) PostMessage(ctx context.Context, text string, blocks []goslack.Block, threadTS string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionText(text, false),
		goslack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}

// FindTaskThread returns the timestamp of the task's start message in the
// channel's recent history, or "" when it is not there.
func (c *Client) FindTaskThread(ctx context.Context, taskID string) (string, error) {
	history, err := c.api.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
		ChannelID: c.channelID,
		Oldest:    strconv.FormatInt(time.Now().Add(-historyWindow).Unix(), 10),
		Limit:     historyLimit,
	})
	if err != nil {
		return "", fmt.Errorf("conversations.history failed: %w", err)
	}
	ts := threadRoot(history.Messages, taskID)
	c.logger.Debug("Searched channel history for task thread",
		"task_id", taskID, "messages", len(history.Messages), "found", ts != "")
	return ts, nil
}
