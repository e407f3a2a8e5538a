package invoice

import "context"

// Provider loads the overdue invoices of a tenant. Invoice ids are unique
// per tenant; no ordering is guaranteed.
type Provider interface {
	LoadOverdueInvoices(ctx context.Context, tenantID string, limit int) ([]*OverdueInvoice, error)
}
