package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/config"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
)

// Consumer reads bounce events as a member of the configured consumer group
type Consumer struct {
	subscriber message.Subscriber
	group      string
	logger     *logger.Logger
}

func NewConsumer(cfg *config.Configuration, logger *logger.Logger) (*Consumer, error) {
	if cfg.Kafka.ConsumerGroup == "" {
		return nil, ierr.NewError("kafka consumer group is empty").
			WithHint("Set kafka.consumer_group so bounce offsets survive restarts").
			Mark(ierr.ErrValidation)
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			ConsumerGroup:         cfg.Kafka.ConsumerGroup,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: GetSaramaConfig(cfg),
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not connect to kafka brokers %v", cfg.Kafka.Brokers).
			Mark(ierr.ErrSystem)
	}

	return &Consumer{
		subscriber: subscriber,
		group:      cfg.Kafka.ConsumerGroup,
		logger:     logger,
	}, nil
}

func (c *Consumer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	c.logger.Infow("subscribing to kafka topic",
		"topic", topic,
		"consumer_group", c.group,
	)
	return c.subscriber.Subscribe(ctx, topic)
}

func (c *Consumer) Close() error {
	return c.subscriber.Close()
}
