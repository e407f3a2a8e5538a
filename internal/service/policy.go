package service

import (
	"context"
	"regexp"

	"github.com/flexprice/dunning/internal/cache"
	"github.com/flexprice/dunning/internal/config"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/validator"
	"github.com/samber/lo"
)

// TenantPolicy is the resolved dunning configuration of one tenant with its
// stop-list compiled
type TenantPolicy struct {
	TenantID string
	Settings config.DunningSettings
	StopList []*regexp.Regexp
}

// IsStopListed reports whether any stop-list pattern occurs in the invoice
// number, ignoring case
func (p *TenantPolicy) IsStopListed(invoiceNumber string) bool {
	return lo.SomeBy(p.StopList, func(re *regexp.Regexp) bool {
		return re.MatchString(invoiceNumber)
	})
}

type PolicyService interface {
	GetPolicy(ctx context.Context, tenantID string) (*TenantPolicy, error)
	InvalidatePolicy(ctx context.Context, tenantID string)
}

type policyService struct {
	ServiceParams
}

func NewPolicyService(params ServiceParams) PolicyService {
	return &policyService{ServiceParams: params}
}

func (s *policyService) GetPolicy(ctx context.Context, tenantID string) (*TenantPolicy, error) {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return nil, err
	}

	cacheKey := cache.GenerateKey(cache.PrefixTenantPolicy, tenantID)
	if s.Cache != nil {
		if cached, found := s.Cache.Get(ctx, cacheKey); found {
			if policy, ok := cached.(*TenantPolicy); ok {
				return policy, nil
			}
		}
	}

	settings := s.Config.Dunning.ForTenant(tenantID)
	if err := settings.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Dunning settings of tenant %s are invalid", tenantID).
			Mark(ierr.ErrValidation)
	}
	stopList, err := settings.CompileStopList()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Stop-list of tenant %s does not compile", tenantID).
			Mark(ierr.ErrValidation)
	}

	policy := &TenantPolicy{
		TenantID: tenantID,
		Settings: settings,
		StopList: stopList,
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, cacheKey, policy, 0)
	}
	return policy, nil
}

func (s *policyService) InvalidatePolicy(ctx context.Context, tenantID string) {
	if s.Cache == nil {
		return
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixTenantPolicy, tenantID))
}
