package service

import (
	"testing"

	"github.com/flexprice/dunning/internal/config"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type PolicyServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc *dunningServices
}

func TestPolicyService(t *testing.T) {
	suite.Run(t, new(PolicyServiceSuite))
}

func (s *PolicyServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = newDunningServices(&s.BaseServiceTestSuite)
}

func (s *PolicyServiceSuite) TestPolicyIsCachedUntilInvalidated() {
	ctx := s.GetContext()

	first, err := s.svc.policies.GetPolicy(ctx, testutil.TestTenantID)
	s.Require().NoError(err)
	s.Equal(100, int(first.Settings.MinAmountCents))

	s.GetConfig().Dunning.Defaults.MinAmountCents = 500
	cached, err := s.svc.policies.GetPolicy(ctx, "TENANT_TEST")
	s.Require().NoError(err)
	s.Same(first, cached)

	s.svc.policies.InvalidatePolicy(ctx, testutil.TestTenantID)
	fresh, err := s.svc.policies.GetPolicy(ctx, testutil.TestTenantID)
	s.Require().NoError(err)
	s.EqualValues(500, fresh.Settings.MinAmountCents)
}

func (s *PolicyServiceSuite) TestInvalidStopListPattern() {
	s.GetConfig().Dunning.Tenants = map[string]config.TenantOverrides{
		"broken": {StopListPatterns: []string{"(unclosed"}},
	}

	_, err := s.svc.policies.GetPolicy(s.GetContext(), "broken")
	s.True(ierr.IsValidation(err))
}

func (s *PolicyServiceSuite) TestInvalidTenantID() {
	_, err := s.svc.policies.GetPolicy(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}

func (s *PolicyServiceSuite) TestIsStopListed() {
	s.GetConfig().Dunning.Defaults.StopListPatterns = []string{"^DISPUTE", "", "-hold$"}

	policy, err := s.svc.policies.GetPolicy(s.GetContext(), testutil.TestTenantID)
	s.Require().NoError(err)
	s.Len(policy.StopList, 2)
	s.True(policy.IsStopListed("dispute-2024-1"))
	s.True(policy.IsStopListed("RE-7-HOLD"))
	s.False(policy.IsStopListed("RE-7-HOLDING"))
}
