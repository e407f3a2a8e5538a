package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cockroachdb/errors"
	"github.com/flexprice/dunning/internal/config"
	kafkaclient "github.com/flexprice/dunning/internal/kafka"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/pubsub"
)

type PubSub struct {
	producer *kafkaclient.Producer
	consumer *kafkaclient.Consumer
	logger   *logger.Logger
}

// NewPubSub creates a new kafka-based pubsub
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	producer, err := kafkaclient.NewProducer(cfg, logger)
	if err != nil {
		return nil, err
	}
	consumer, err := kafkaclient.NewConsumer(cfg, logger)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}

	return &PubSub{
		producer: producer,
		consumer: consumer,
		logger:   logger,
	}, nil
}

// Publish publishes a message
func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.producer.Publish(topic, msg)
}

// Subscribe starts consuming a topic
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.consumer.Subscribe(ctx, topic)
}

// Close closes the pubsub
func (p *PubSub) Close() error {
	return errors.CombineErrors(p.producer.Close(), p.consumer.Close())
}
