package service

import (
	"github.com/flexprice/dunning/internal/cache"
	"github.com/flexprice/dunning/internal/idempotency"
	"github.com/flexprice/dunning/internal/testutil"
)

// dunningServices bundles the services under test, all built over the
// fakes of a BaseServiceTestSuite
type dunningServices struct {
	params      ServiceParams
	policies    PolicyService
	rateLimiter RateLimiterService
	decisions   DecisionEngine
	approvals   ApprovalService
	dispatcher  DispatcherService
	bounces     BounceService
	cycle       CycleService
}

func newDunningServices(s *testutil.BaseServiceTestSuite) *dunningServices {
	params := ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		Cache:           cache.NewInMemoryCache(),
		Generator:       idempotency.NewGenerator(),
		Arena:           s.NewArena(),
		InvoiceProvider: s.GetInvoiceProvider(),
		Sender:          s.GetSender(),
		EventPublisher:  s.GetPubSub(),
		Clock:           s.Clock(),
	}

	svc := &dunningServices{params: params}
	svc.policies = NewPolicyService(params)
	svc.rateLimiter = NewRateLimiterService(params)
	svc.decisions = NewDecisionEngine(params, svc.policies, svc.rateLimiter)
	svc.approvals = NewApprovalService(params, svc.policies)
	svc.dispatcher = NewDispatcherService(params)
	svc.bounces = NewBounceService(params)
	svc.cycle = NewCycleService(params, svc.decisions, svc.approvals, svc.dispatcher, svc.bounces)
	return svc
}
