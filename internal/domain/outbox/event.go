package outbox

import (
	"time"

	"github.com/flexprice/dunning/internal/domain/invoice"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/types"
)

// Payload carries the fields shared by every dunning event
type Payload struct {
	EventID       string             `json:"event_id"`
	TenantID      string             `json:"tenant_id"`
	InvoiceID     string             `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Stage         types.DunningStage `json:"stage"`
	Channel       types.Channel      `json:"channel"`
	NoticeRef     string             `json:"notice_ref"`
	DueDate       time.Time          `json:"due_date"`
	AmountCents   int64              `json:"amount_cents"`
	FeeCents      int64              `json:"fee_cents"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	SchemaVersion string             `json:"schema_version"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Escalation extends DUNNING_ESCALATED events
type Escalation struct {
	FromStage types.DunningStage `json:"from_stage"`
	Reason    string             `json:"reason"`
}

// Resolution extends DUNNING_RESOLVED events
type Resolution struct {
	Reason     string    `json:"reason"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Event is a dunning event. The type selects which extension is set:
// escalated events carry Escalation, resolved events carry Resolution,
// issued events carry neither.
type Event struct {
	Type       types.EventType `json:"event_type"`
	Payload    Payload         `json:"payload"`
	Escalation *Escalation     `json:"escalation,omitempty"`
	Resolution *Resolution     `json:"resolution,omitempty"`
}

// NewPayload builds the base payload of a notice for inv at stage
func NewPayload(inv *invoice.OverdueInvoice, stage types.DunningStage, now time.Time) Payload {
	noticeID := inv.NoticeID()
	return Payload{
		EventID:       types.EventID(noticeID),
		TenantID:      inv.TenantID,
		InvoiceID:     inv.InvoiceID,
		InvoiceNumber: inv.InvoiceNumber,
		Stage:         stage,
		Channel:       types.ChannelFor(stage, inv.Recipient.HasEmail()),
		NoticeRef:     noticeID,
		DueDate:       inv.DueDate.UTC(),
		AmountCents:   inv.AmountCents,
		FeeCents:      stage.Fee(),
		SchemaVersion: types.EventSchemaVersion,
		CreatedAt:     now.UTC(),
	}
}

func NewIssued(p Payload) *Event {
	return &Event{Type: types.EventTypeDunningIssued, Payload: p}
}

func NewEscalated(p Payload, fromStage types.DunningStage, reason string) *Event {
	return &Event{
		Type:       types.EventTypeDunningEscalated,
		Payload:    p,
		Escalation: &Escalation{FromStage: fromStage, Reason: reason},
	}
}

func NewResolved(p Payload, reason string, resolvedAt time.Time) *Event {
	return &Event{
		Type:       types.EventTypeDunningResolved,
		Payload:    p,
		Resolution: &Resolution{Reason: reason, ResolvedAt: resolvedAt.UTC()},
	}
}

// Validate checks the base payload and that exactly the extension matching
// the event type is present
func (e *Event) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Unknown dunning event type").
			Mark(ierr.ErrValidation)
	}

	p := e.Payload
	if p.EventID == "" || p.TenantID == "" || p.InvoiceID == "" {
		return ierr.NewError("event_id, tenant_id and invoice_id are required").
			WithHint("Dunning event payload is incomplete").
			Mark(ierr.ErrValidation)
	}
	if err := p.Stage.Validate(); err != nil {
		return ierr.WithError(err).
			WithHintf("Event %s has no actionable stage", p.EventID).
			Mark(ierr.ErrValidation)
	}
	if p.SchemaVersion != types.EventSchemaVersion {
		return ierr.NewErrorf("unsupported schema version %q", p.SchemaVersion).
			Mark(ierr.ErrValidation)
	}

	switch e.Type {
	case types.EventTypeDunningIssued:
		if e.Escalation != nil || e.Resolution != nil {
			return errUnexpectedExtension(e)
		}
	case types.EventTypeDunningEscalated:
		if e.Escalation == nil || e.Resolution != nil {
			return errUnexpectedExtension(e)
		}
		if e.Escalation.FromStage >= p.Stage {
			return ierr.NewErrorf("escalation from %s to %s does not raise the stage", e.Escalation.FromStage, p.Stage).
				Mark(ierr.ErrValidation)
		}
	case types.EventTypeDunningResolved:
		if e.Resolution == nil || e.Escalation != nil {
			return errUnexpectedExtension(e)
		}
	}
	return nil
}

func errUnexpectedExtension(e *Event) error {
	return ierr.NewErrorf("%s event carries the wrong extension", e.Type).
		WithHintf("Event %s does not match its type", e.Payload.EventID).
		Mark(ierr.ErrValidation)
}
