package config

import "time"

// StreamConfig controls activity event delivery.
type StreamConfig struct {
	// EventQueueSize bounds the per-run queue between agents and the publisher.
	// Events emitted while the queue is full are dropped.
	EventQueueSize int `yaml:"event_queue_size"`

	// SubscriberBuffer bounds each connected client's pending messages.
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// ReconnectBackoff is the fixed delay before re-establishing a lost
	// LISTEN connection or client stream.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// HeartbeatInterval is how often an idle event stream gets a keep-alive comment.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// WriteTimeout bounds a single write to a WebSocket client.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// AllowedOrigins are extra WebSocket origin patterns beyond same-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultStreamConfig returns the built-in stream defaults.
func DefaultStreamConfig() *StreamConfig {
	return &StreamConfig{
		EventQueueSize:    256,
		SubscriberBuffer:  64,
		ReconnectBackoff:  3 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
