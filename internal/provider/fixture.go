package provider

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/invoice"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/validator"
	jsoniter "github.com/json-iterator/go"
)

// FixtureProvider reads overdue invoices from <base>/<tenant>/invoices.json
type FixtureProvider struct {
	basePath string
	logger   *logger.Logger
}

func NewFixtureProvider(cfg *config.Configuration, logger *logger.Logger) invoice.Provider {
	return &FixtureProvider{basePath: cfg.Provider.FixturePath, logger: logger}
}

func (p *FixtureProvider) LoadOverdueInvoices(ctx context.Context, tenantID string, limit int) ([]*invoice.OverdueInvoice, error) {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return nil, err
	}

	path := filepath.Join(p.basePath, strings.ToLower(tenantID), "invoices.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p.logger.Debugw("no invoice fixture for tenant", "tenant_id", tenantID, "path", path)
		return []*invoice.OverdueInvoice{}, nil
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not read invoice fixture %s", path).
			Mark(ierr.ErrSystem)
	}

	var invoices []*invoice.OverdueInvoice
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &invoices); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invoice fixture %s is not valid JSON", path).
			Mark(ierr.ErrValidation)
	}

	for _, inv := range invoices {
		if inv.TenantID == "" {
			inv.TenantID = tenantID
		}
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].DueDate.Before(invoices[j].DueDate)
	})
	if limit > 0 && len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}
