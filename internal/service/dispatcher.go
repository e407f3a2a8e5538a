package service

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/domain/outbox"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/pubsub"
	"github.com/flexprice/dunning/internal/types"
	jsoniter "github.com/json-iterator/go"
)

// DispatchResult describes what a publish call did
type DispatchResult struct {
	Event       *outbox.Event `json:"event"`
	DispatchKey string        `json:"dispatch_key"`
	MessageID   string        `json:"message_id,omitempty"`
	Published   bool          `json:"published"`
	DryRun      bool          `json:"dry_run"`
	Duplicate   bool          `json:"duplicate"`
}

// DispatcherService publishes dunning events at most once per dispatch key.
// A key is recorded only after its event was published.
type DispatcherService interface {
	CheckDuplicateEvent(ctx context.Context, t *arena.Tenant, invoiceID string, stage types.DunningStage) (bool, error)
	PublishIssued(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage types.DunningStage, dryRun bool) (*DispatchResult, error)
	PublishEscalated(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage, fromStage types.DunningStage, reason string, dryRun bool) (*DispatchResult, error)
	PublishResolved(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage types.DunningStage, reason string, dryRun bool) (*DispatchResult, error)
}

type dispatcherService struct {
	ServiceParams
}

func NewDispatcherService(params ServiceParams) DispatcherService {
	return &dispatcherService{ServiceParams: params}
}

func (s *dispatcherService) CheckDuplicateEvent(ctx context.Context, t *arena.Tenant, invoiceID string, stage types.DunningStage) (bool, error) {
	sent, err := t.SentKeys.Get(ctx)
	if err != nil {
		return false, err
	}
	return sent.Contains(s.Generator.DispatchKey(t.ID, invoiceID, stage)), nil
}

func (s *dispatcherService) PublishIssued(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage types.DunningStage, dryRun bool) (*DispatchResult, error) {
	event := outbox.NewIssued(s.payload(ctx, inv, stage))
	return s.publish(ctx, t, event, s.Generator.DispatchKey(t.ID, inv.InvoiceID, stage), dryRun)
}

func (s *dispatcherService) PublishEscalated(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage, fromStage types.DunningStage, reason string, dryRun bool) (*DispatchResult, error) {
	event := outbox.NewEscalated(s.payload(ctx, inv, stage), fromStage, reason)
	return s.publish(ctx, t, event, s.Generator.DispatchKey(t.ID, inv.InvoiceID, stage), dryRun)
}

// PublishResolved closes the dunning of an invoice. Its key is the
// stage-less dispatch key, so an invoice resolves once.
func (s *dispatcherService) PublishResolved(ctx context.Context, t *arena.Tenant, inv *invoice.OverdueInvoice, stage types.DunningStage, reason string, dryRun bool) (*DispatchResult, error) {
	event := outbox.NewResolved(s.payload(ctx, inv, stage), reason, s.now())
	return s.publish(ctx, t, event, s.Generator.DispatchKey(t.ID, inv.InvoiceID, types.DunningStageNone), dryRun)
}

func (s *dispatcherService) payload(ctx context.Context, inv *invoice.OverdueInvoice, stage types.DunningStage) outbox.Payload {
	p := outbox.NewPayload(inv, stage, s.now())
	p.CorrelationID = types.GetCorrelationID(ctx)
	return p
}

func (s *dispatcherService) publish(ctx context.Context, t *arena.Tenant, event *outbox.Event, key string, dryRun bool) (*DispatchResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	log := s.Logger.WithContext(ctx)
	result := &DispatchResult{Event: event, DispatchKey: key, DryRun: dryRun}

	sent, err := t.SentKeys.Get(ctx)
	if err != nil {
		return nil, err
	}
	if sent.Contains(key) {
		log.Infow("event already dispatched",
			"event_type", event.Type,
			"invoice_id", event.Payload.InvoiceID,
			"stage", event.Payload.Stage,
		)
		result.Duplicate = true
		return result, nil
	}

	if dryRun {
		log.Infow("dry run, would publish dunning event",
			"event_type", event.Type,
			"invoice_id", event.Payload.InvoiceID,
			"stage", event.Payload.Stage,
		)
		return result, nil
	}

	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(event)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal dunning event").
			Mark(ierr.ErrSystem)
	}

	// the message id follows the key so consumers can drop redeliveries
	messageID := types.GenerateDeterministicID(key, event.Type.String())
	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set(pubsub.MetadataTenantID, event.Payload.TenantID)
	msg.Metadata.Set(pubsub.MetadataEventType, event.Type.String())
	msg.Metadata.Set(pubsub.MetadataIdempotencyKey, key)
	msg.Metadata.Set(pubsub.MetadataCorrelationID, event.Payload.CorrelationID)

	policy := pubsub.RetryPolicyFromConfig(s.Config.Outbox)
	err = pubsub.PublishWithRetry(ctx, s.EventPublisher, s.Config.Outbox.EventTopic, msg, policy, func(err error, wait time.Duration) {
		log.Infow("retrying dunning event publish",
			"event_id", event.Payload.EventID,
			"error", err,
			"wait", wait,
		)
	})
	if err != nil {
		log.Errorw("failed to publish dunning event",
			"event_type", event.Type,
			"invoice_id", event.Payload.InvoiceID,
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHintf("Dunning event %s was not published and can be retried", event.Payload.EventID).
			WithReportableDetails(map[string]any{
				"event_type": event.Type,
				"invoice_id": event.Payload.InvoiceID,
				"stage":      int(event.Payload.Stage),
			}).
			Mark(ierr.ErrDispatch)
	}

	entry := outbox.SentEntry{
		EventID:   event.Payload.EventID,
		EventType: event.Type.String(),
		MessageID: messageID,
		SentAt:    s.now(),
	}
	if err := t.SentKeys.Put(ctx, sent.With(key, entry)); err != nil {
		return nil, err
	}

	log.Infow("dunning event published",
		"event_type", event.Type,
		"invoice_id", event.Payload.InvoiceID,
		"stage", event.Payload.Stage,
		"message_id", messageID,
	)
	result.Published = true
	result.MessageID = messageID
	return result, nil
}
