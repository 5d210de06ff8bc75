package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Backed by Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names.
const (
	TopicWeightsReloaded = "creditx.weights.reloaded"
	TopicBatchCompleted  = "creditx.batch.completed"
)

// WeightsReloadedEvent is published after a successful reload.
type WeightsReloadedEvent struct {
	Version  string `json:"version"`
	Source   string `json:"source"`
	LoadedAt int64  `json:"loadedAt"` // unix seconds
}

// BatchCompletedEvent is published after every batch run; the audit
// worker persists it off the request path.
type BatchCompletedEvent struct {
	BatchID        string    `json:"batchId"`
	Operation      Operation `json:"operation"`
	RecordCount    int       `json:"recordCount"`
	FailureCount   int       `json:"failureCount"`
	WeightsVersion string    `json:"weightsVersion"`
	DurationMs     int64     `json:"durationMs"`
}
