// Package stream is a client for a task's live event stream. It keeps one
// server-sent event connection open and reconnects with a fixed backoff
// until its context is cancelled.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultBackoff is the reconnect delay when none is configured.
const DefaultBackoff = 3 * time.Second

// maxFrameBytes bounds one SSE line.
const maxFrameBytes = 1 << 20

// ErrStop may be returned by a Handler to end Run without reconnecting.
var ErrStop = errors.New("stop consuming")

// State is the connection state of a Consumer.
type State int

// Consumer states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Message is one data frame from the stream.
type Message struct {
	Type string          // the "type" field of the JSON payload
	Data json.RawMessage // the raw payload
}

// Handler receives every message in arrival order. Messages may repeat
// across reconnects; suppressing duplicates is the handler's job.
type Handler func(ctx context.Context, msg Message) error

// Config configures a Consumer.
type Config struct {
	// URL is the event stream endpoint.
	URL string

	// Token is sent as a bearer credential when set.
	Token string

	// Backoff is the fixed delay between connection attempts.
	Backoff time.Duration

	// HTTPClient defaults to a client without a timeout.
	HTTPClient *http.Client

	// OnStateChange observes every state transition. May be nil.
	OnStateChange func(from, to State)
}

// Consumer reads one event stream.
type Consumer struct {
	cfg     Config
	backoff backoff.BackOff
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// NewConsumer creates a consumer in the Disconnected state.
func NewConsumer(cfg Config) *Consumer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Consumer{
		cfg:     cfg,
		backoff: backoff.NewConstantBackOff(cfg.Backoff),
		logger:  slog.Default().With("component", "stream-consumer", "url", cfg.URL),
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from != to && c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(from, to)
	}
}

// Run connects and delivers messages to handler until ctx is cancelled or
// handler returns an error. A lost or refused connection is retried after
// the fixed backoff. Run returns nil when handler returns ErrStop.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	defer c.setState(StateDisconnected)

	for {
		c.setState(StateConnecting)
		err := c.consume(ctx, handler)
		c.setState(StateDisconnected)

		var herr *handlerError
		switch {
		case errors.As(err, &herr):
			if errors.Is(herr.err, ErrStop) {
				return nil
			}
			return herr.err
		case ctx.Err() != nil:
			return ctx.Err()
		}

		wait := c.backoff.NextBackOff()
		c.logger.Warn("Event stream disconnected, reconnecting", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// handlerError marks an error that came from the handler rather than the transport.
type handlerError struct{ err error }

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

// consume runs one connection to completion.
func (c *Consumer) consume(ctx context.Context, handler Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return &handlerError{err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
		// Retrying cannot fix these.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &handlerError{err: fmt.Errorf("event stream rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	c.setState(StateConnected)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			payload := strings.Join(data, "\n")
			data = data[:0]
			if err := handler(ctx, decode(payload)); err != nil {
				return &handlerError{err: err}
			}
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return io.ErrUnexpectedEOF
}

func decode(payload string) Message {
	msg := Message{Data: json.RawMessage(payload)}
	var envelope struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(msg.Data, &envelope) == nil {
		msg.Type = envelope.Type
	}
	return msg
}
