package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher publishes dunning events, notices and bounce signals
type Publisher interface {
	// Publish publishes msg to topic
	Publish(ctx context.Context, topic string, msg *message.Message) error
	// Close closes the publisher
	Close() error
}

// Subscriber consumes messages of a topic
type Subscriber interface {
	// Subscribe starts consuming topic
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	// Close closes the subscriber
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces
type PubSub interface {
	Publisher
	Subscriber
}

// Metadata keys set on every published message
const (
	MetadataTenantID       = "tenant_id"
	MetadataEventType      = "event_type"
	MetadataIdempotencyKey = "idempotency_key"
	MetadataCorrelationID  = "correlation_id"
)
