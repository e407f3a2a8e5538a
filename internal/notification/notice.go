package notification

import (
	"context"
	"fmt"

	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/types"
	"github.com/shopspring/decimal"
)

// Notice is one rendered dunning message ready for delivery
type Notice struct {
	TenantID       string             `json:"tenant_id"`
	InvoiceID      string             `json:"invoice_id"`
	InvoiceNumber  string             `json:"invoice_number"`
	NoticeID       string             `json:"notice_id"`
	Stage          types.DunningStage `json:"stage"`
	Channel        types.Channel      `json:"channel"`
	Recipient      invoice.Recipient  `json:"recipient"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	IdempotencyKey string             `json:"idempotency_key"`
	CorrelationID  string             `json:"correlation_id,omitempty"`
}

// SendResult is the outcome of handing a notice to the transport
type SendResult struct {
	Success           bool   `json:"success"`
	DryRun            bool   `json:"dry_run"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// Sender delivers notices. It is the only network-facing dependency of a
// dunning run. A non-nil error means nothing was delivered.
type Sender interface {
	Publish(ctx context.Context, notice *Notice, dryRun bool) (*SendResult, error)
}

// Compose builds the plain notice for inv at stage. Rendering rich
// templates is left to the transport.
func Compose(inv *invoice.OverdueInvoice, stage types.DunningStage, idempotencyKey, correlationID string) *Notice {
	currency := inv.Currency
	if currency == "" {
		currency = "EUR"
	}
	fee := decimal.New(stage.Fee(), -2)
	total := inv.Amount().Add(fee)

	var subject string
	switch stage {
	case types.DunningStage1:
		subject = fmt.Sprintf("Payment reminder for invoice %s", inv.InvoiceNumber)
	case types.DunningStage2:
		subject = fmt.Sprintf("Second reminder for invoice %s", inv.InvoiceNumber)
	default:
		subject = fmt.Sprintf("Final notice for invoice %s", inv.InvoiceNumber)
	}

	body := fmt.Sprintf(
		"Dear %s,\n\ninvoice %s was due on %s and is still open.\nOpen amount: %s %s\nDunning fee: %s %s\nTotal due: %s %s\n",
		inv.Recipient.Name,
		inv.InvoiceNumber,
		inv.DueDate.Format("2006-01-02"),
		inv.Amount().StringFixed(2), currency,
		fee.StringFixed(2), currency,
		total.StringFixed(2), currency,
	)

	return &Notice{
		TenantID:       inv.TenantID,
		InvoiceID:      inv.InvoiceID,
		InvoiceNumber:  inv.InvoiceNumber,
		NoticeID:       inv.NoticeID(),
		Stage:          stage,
		Channel:        types.ChannelFor(stage, inv.Recipient.HasEmail()),
		Recipient:      inv.Recipient,
		Subject:        subject,
		Body:           body,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  correlationID,
	}
}
