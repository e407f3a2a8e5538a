package invoice

import (
	"math"
	"strings"
	"time"

	"github.com/flexprice/dunning/internal/domain/bounce"
	"github.com/flexprice/dunning/internal/types"
	"github.com/shopspring/decimal"
)

// OverdueInvoice is an open invoice past its due date as reported by the
// invoice provider. It is reloaded on every run.
type OverdueInvoice struct {
	TenantID      string              `json:"tenant_id" validate:"required,tenant_id"`
	InvoiceID     string              `json:"invoice_id" validate:"required,invoice_id"`
	InvoiceNumber string              `json:"invoice_number" validate:"required"`
	DueDate       time.Time           `json:"due_date" validate:"required"`
	AmountCents   int64               `json:"amount_cents" validate:"gte=0"`
	Currency      string              `json:"currency"`
	Recipient     Recipient           `json:"recipient"`
	PinnedStage   *types.DunningStage `json:"pinned_stage,omitempty"`
	LastDunningAt *time.Time          `json:"last_dunning_at,omitempty"`
}

// Recipient is the contact a notice is addressed to
type Recipient struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// HasEmail reports whether the recipient can be reached by email
func (r Recipient) HasEmail() bool {
	return strings.TrimSpace(r.Email) != ""
}

// Hash returns the blocklist key of the recipient, or "" without an email
func (r Recipient) Hash() string {
	if !r.HasEmail() {
		return ""
	}
	return bounce.HashRecipient(r.Email)
}

// DaysOverdue returns the number of whole days between the due date and now,
// rounded toward negative infinity
func (i *OverdueInvoice) DaysOverdue(now time.Time) int {
	return int(math.Floor(now.Sub(i.DueDate).Hours() / 24))
}

// Amount returns the open amount in major currency units
func (i *OverdueInvoice) Amount() decimal.Decimal {
	return decimal.New(i.AmountCents, -2)
}

// NoticeID returns the id of the dunning notice for the invoice
func (i *OverdueInvoice) NoticeID() string {
	return types.NoticeID(i.InvoiceID)
}
