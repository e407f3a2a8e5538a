package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/bounce"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/pubsub"
	"github.com/flexprice/dunning/internal/pubsub/router"
	"github.com/flexprice/dunning/internal/types"
	jsoniter "github.com/json-iterator/go"
)

// BounceConsumer feeds bounce events from the inbox topic into the tenant
// inboxes
type BounceConsumer struct {
	ServiceParams
	bounces BounceService
}

func NewBounceConsumer(params ServiceParams, bounces BounceService) *BounceConsumer {
	return &BounceConsumer{
		ServiceParams: params,
		bounces:       bounces,
	}
}

// RegisterHandler subscribes the consumer to the bounce inbox topic
func (c *BounceConsumer) RegisterHandler(r *router.Router, subscriber pubsub.Subscriber) {
	r.AddNoPublishHandler(
		"bounce_inbox_handler",
		c.Config.Bounce.InboxTopic,
		subscriber,
		c.HandleMessage,
	)
	c.Logger.Infow("registered bounce inbox handler", "topic", c.Config.Bounce.InboxTopic)
}

// HandleMessage queues one bounce event. Malformed events fail with a
// validation error, which the router acks instead of retrying.
func (c *BounceConsumer) HandleMessage(msg *message.Message) error {
	span, ctx := c.Sentry.StartConsumerSpan(msg.Context(), c.Config.Bounce.InboxTopic)
	if span != nil {
		defer span.Finish()
	}

	var ev bounce.Event
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(msg.Payload, &ev); err != nil {
		return ierr.WithError(err).
			WithHintf("Bounce message %s is not valid JSON", msg.UUID).
			Mark(ierr.ErrValidation)
	}
	if ev.TenantID == "" {
		ev.TenantID = msg.Metadata.Get(pubsub.MetadataTenantID)
	}
	if ev.EventID == "" {
		ev.EventID = msg.UUID
	}
	if correlationID := msg.Metadata.Get(pubsub.MetadataCorrelationID); correlationID != "" {
		ctx = types.SetCorrelationID(ctx, correlationID)
	}

	return c.Arena.Run(ctx, ev.TenantID, func(ctx context.Context, t *arena.Tenant) error {
		added, err := c.bounces.Enqueue(ctx, t, &ev)
		if err != nil {
			return err
		}
		c.Logger.WithContext(ctx).Debugw("bounce message consumed",
			"event_id", ev.EventID,
			"queued", added == 1,
		)
		return nil
	})
}
