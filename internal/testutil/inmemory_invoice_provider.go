package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/flexprice/dunning/internal/domain/invoice"
)

// InMemoryInvoiceProvider serves invoices registered per tenant
type InMemoryInvoiceProvider struct {
	mu       sync.RWMutex
	invoices map[string][]*invoice.OverdueInvoice
	err      error
}

var _ invoice.Provider = (*InMemoryInvoiceProvider)(nil)

func NewInMemoryInvoiceProvider() *InMemoryInvoiceProvider {
	return &InMemoryInvoiceProvider{invoices: make(map[string][]*invoice.OverdueInvoice)}
}

// Set replaces the invoices of a tenant
func (p *InMemoryInvoiceProvider) Set(tenantID string, invoices ...*invoice.OverdueInvoice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices[strings.ToLower(tenantID)] = invoices
}

// SetError makes every load fail with err
func (p *InMemoryInvoiceProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *InMemoryInvoiceProvider) LoadOverdueInvoices(_ context.Context, tenantID string, limit int) ([]*invoice.OverdueInvoice, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.err != nil {
		return nil, p.err
	}

	// copies keep callers from mutating the registered fixtures
	src := p.invoices[strings.ToLower(tenantID)]
	out := make([]*invoice.OverdueInvoice, 0, len(src))
	for _, inv := range src {
		c := *inv
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
