package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/invoice"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/types"
	"github.com/flexprice/dunning/internal/validator"
	"github.com/shopspring/decimal"
)

// Decision reasons
const (
	ReasonNotDue         = "not yet due for dunning"
	ReasonBlocked        = "recipient is hard-blocked"
	ReasonRateLimited    = "rate limit exceeded"
	ReasonAllChecks      = "all checks passed"
	ReasonDuplicate      = "duplicate"
	ReasonApprovalWait   = "approval pending"
	ReasonAlreadySent    = "already sent"
	ReasonRejected       = "rejected"
	ReasonApproved       = "approved"
	ReasonNoApprovalNeed = "approval not required"
)

// Decision is the outcome of evaluating one invoice. A negative decision is
// an ordinary result, not an error.
type Decision struct {
	ShouldSend     bool               `json:"should_send"`
	Stage          types.DunningStage `json:"stage"`
	Reason         string             `json:"reason"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	RateLimitOK    bool               `json:"rate_limit_ok"`
}

// Evaluation pairs an invoice with its decision
type Evaluation struct {
	Invoice    *invoice.OverdueInvoice `json:"invoice"`
	Resolution StageResolution         `json:"resolution"`
	Decision   *Decision               `json:"decision"`
}

// EvaluationFailure is an invoice that could not be evaluated
type EvaluationFailure struct {
	InvoiceID string `json:"invoice_id"`
	Error     error  `json:"-"`
	Message   string `json:"error"`
}

// DecisionResult holds the evaluations of one batch grouped by stage, in
// input order within each stage
type DecisionResult struct {
	TenantID   string                                `json:"tenant_id"`
	DryRun     bool                                  `json:"dry_run"`
	Partitions map[types.DunningStage][]*Evaluation `json:"partitions"`
	Failures   []*EvaluationFailure                  `json:"failures"`
}

// Evaluations returns every evaluation ordered by stage
func (r *DecisionResult) Evaluations() []*Evaluation {
	out := make([]*Evaluation, 0)
	for _, stage := range append([]types.DunningStage{types.DunningStageNone}, types.DunningStages...) {
		out = append(out, r.Partitions[stage]...)
	}
	return out
}

// DecisionEngine applies the stage policy and the send filters to a batch
// of invoices of one tenant
type DecisionEngine interface {
	Process(ctx context.Context, t *arena.Tenant, invoices []*invoice.OverdueInvoice, dryRun bool) (*DecisionResult, error)
}

type decisionEngine struct {
	ServiceParams
	policies    PolicyService
	rateLimiter RateLimiterService
}

func NewDecisionEngine(params ServiceParams, policies PolicyService, rateLimiter RateLimiterService) DecisionEngine {
	return &decisionEngine{
		ServiceParams: params,
		policies:      policies,
		rateLimiter:   rateLimiter,
	}
}

// Process evaluates invoices in order. An invalid invoice is reported in
// Failures and the batch continues; a storage failure aborts it.
func (s *decisionEngine) Process(ctx context.Context, t *arena.Tenant, invoices []*invoice.OverdueInvoice, dryRun bool) (*DecisionResult, error) {
	policy, err := s.policies.GetPolicy(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	bounceState, err := t.Bounce.Get(ctx)
	if err != nil {
		return nil, err
	}

	result := &DecisionResult{
		TenantID: t.ID,
		DryRun:   dryRun,
		Partitions: map[types.DunningStage][]*Evaluation{
			types.DunningStageNone: {},
			types.DunningStage1:    {},
			types.DunningStage2:    {},
			types.DunningStage3:    {},
		},
		Failures: []*EvaluationFailure{},
	}

	log := s.Logger.WithContext(ctx)
	now := s.now()

	for _, inv := range invoices {
		if err := s.validateInvoice(t.ID, inv); err != nil {
			invoiceID := ""
			if inv != nil {
				invoiceID = inv.InvoiceID
			}
			log.Warnw("skipping invalid invoice", "invoice_id", invoiceID, "error", err)
			result.Failures = append(result.Failures, &EvaluationFailure{
				InvoiceID: invoiceID,
				Error:     err,
				Message:   err.Error(),
			})
			continue
		}

		resolution := ResolveStage(inv, policy.Settings, now)
		decision := &Decision{
			Stage:       resolution.Stage,
			RateLimitOK: true,
		}
		if resolution.Stage != types.DunningStageNone {
			decision.IdempotencyKey = s.Generator.DecisionKey(t.ID, inv.InvoiceID, resolution.Stage)
		}

		if err := s.decide(ctx, t, policy, inv, decision, blockedFn(bounceState.IsHardBlocked), now, dryRun); err != nil {
			return nil, err
		}

		log.Debugw("invoice evaluated",
			"invoice_id", inv.InvoiceID,
			"stage", decision.Stage,
			"days_overdue", resolution.DaysOverdue,
			"should_send", decision.ShouldSend,
			"reason", decision.Reason,
		)

		result.Partitions[resolution.Stage] = append(result.Partitions[resolution.Stage], &Evaluation{
			Invoice:    inv,
			Resolution: resolution,
			Decision:   decision,
		})
	}

	// reservations must survive even when the caller never flushes
	if err := t.RateWindow.Flush(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

type blockedFn func(recipientHash string) bool

// decide runs the filters in order and stops at the first one that fails
func (s *decisionEngine) decide(
	ctx context.Context,
	t *arena.Tenant,
	policy *TenantPolicy,
	inv *invoice.OverdueInvoice,
	d *Decision,
	isBlocked blockedFn,
	now time.Time,
	dryRun bool,
) error {
	settings := policy.Settings

	if d.Stage == types.DunningStageNone {
		d.Reason = ReasonNotDue
		return nil
	}

	if inv.AmountCents < settings.MinAmountCents {
		d.Reason = fmt.Sprintf("amount %s below minimum %s",
			inv.Amount().StringFixed(2),
			decimal.New(settings.MinAmountCents, -2).StringFixed(2),
		)
		return nil
	}

	if policy.IsStopListed(inv.InvoiceNumber) {
		d.Reason = fmt.Sprintf("invoice %s is stop-listed", inv.InvoiceNumber)
		return nil
	}

	if isBlocked(inv.Recipient.Hash()) {
		d.Reason = ReasonBlocked
		return nil
	}

	if !dryRun {
		ok, err := s.rateLimiter.Allow(ctx, t, settings.MaxNoticesPerHour)
		if err != nil {
			return err
		}
		if !ok {
			d.RateLimitOK = false
			d.Reason = ReasonRateLimited
			return nil
		}
	}

	if inv.LastDunningAt != nil && now.Sub(*inv.LastDunningAt) < settings.Cooldown {
		d.Reason = fmt.Sprintf("dunning already sent within %d hours", int(settings.Cooldown.Hours()))
		return nil
	}

	d.ShouldSend = true
	d.Reason = ReasonAllChecks
	return nil
}

func (s *decisionEngine) validateInvoice(tenantID string, inv *invoice.OverdueInvoice) error {
	if inv == nil {
		return ierr.NewError("invoice is required").
			Mark(ierr.ErrValidation)
	}
	if err := validator.ValidateRequest(inv); err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(inv.TenantID), strings.TrimSpace(tenantID)) {
		return ierr.NewErrorf("invoice %s belongs to tenant %s", inv.InvoiceID, inv.TenantID).
			WithHintf("Invoice does not belong to tenant %s", tenantID).
			Mark(ierr.ErrValidation)
	}
	return nil
}
