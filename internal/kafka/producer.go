package kafka

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/logger"
)

type Producer struct {
	publisher message.Publisher
	logger    *logger.Logger
}

func NewProducer(cfg *config.Configuration, logger *logger.Logger) (*Producer, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: GetSaramaConfig(cfg),
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, err
	}

	return &Producer{publisher: publisher, logger: logger}, nil
}

// Publish sends msg to topic; the message UUID is kept as the record id
func (p *Producer) Publish(topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	if err := p.publisher.Publish(topic, msg); err != nil {
		p.logger.Errorw("failed to publish to kafka",
			"topic", topic,
			"message_uuid", msg.UUID,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *Producer) Close() error {
	return p.publisher.Close()
}
