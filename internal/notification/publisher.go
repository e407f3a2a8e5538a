package notification

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/config"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/pubsub"
	"github.com/flexprice/dunning/internal/types"
	jsoniter "github.com/json-iterator/go"
)

// pubSubSender hands notices to the mail gateway through the notification
// topic. The message id is derived from the notice, so a redelivered notice
// keeps its id downstream.
type pubSubSender struct {
	pubSub pubsub.Publisher
	topic  string
	policy pubsub.RetryPolicy
	logger *logger.Logger
}

// NewPubSubSender creates a Sender publishing to the notification topic
func NewPubSubSender(pubSub pubsub.Publisher, cfg *config.Configuration, logger *logger.Logger) Sender {
	return &pubSubSender{
		pubSub: pubSub,
		topic:  cfg.Outbox.NotificationTopic,
		policy: pubsub.RetryPolicyFromConfig(cfg.Outbox),
		logger: logger,
	}
}

func (s *pubSubSender) Publish(ctx context.Context, notice *Notice, dryRun bool) (*SendResult, error) {
	messageID := types.GenerateDeterministicID(notice.TenantID, notice.NoticeID, notice.Stage.String())

	if dryRun {
		s.logger.Debugw("dry run, notice not sent",
			"tenant_id", notice.TenantID,
			"notice_id", notice.NoticeID,
			"stage", notice.Stage,
		)
		return &SendResult{Success: true, DryRun: true, ProviderMessageID: messageID}, nil
	}

	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(notice)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal notice").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set(pubsub.MetadataTenantID, notice.TenantID)
	msg.Metadata.Set(pubsub.MetadataIdempotencyKey, notice.IdempotencyKey)
	msg.Metadata.Set(pubsub.MetadataCorrelationID, notice.CorrelationID)
	msg.Metadata.Set("channel", notice.Channel.String())

	err = pubsub.PublishWithRetry(ctx, s.pubSub, s.topic, msg, s.policy, func(err error, wait time.Duration) {
		s.logger.Infow("retrying notice publish",
			"notice_id", notice.NoticeID,
			"error", err,
			"wait", wait,
		)
	})
	if err != nil {
		s.logger.Errorw("failed to publish notice",
			"tenant_id", notice.TenantID,
			"notice_id", notice.NoticeID,
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHintf("Notice %s could not be handed to the mail gateway", notice.NoticeID).
			Mark(ierr.ErrDispatch)
	}

	s.logger.Infow("notice published",
		"tenant_id", notice.TenantID,
		"notice_id", notice.NoticeID,
		"channel", notice.Channel,
		"message_id", messageID,
	)
	return &SendResult{Success: true, ProviderMessageID: messageID}, nil
}
