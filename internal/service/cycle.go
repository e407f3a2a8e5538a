package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/approval"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/notification"
	"github.com/flexprice/dunning/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// Outcome of one invoice within a run
const (
	OutcomeDispatched      = "dispatched"
	OutcomeWouldDispatch   = "would_dispatch"
	OutcomePendingApproval = "pending_approval"
	OutcomeSuppressed      = "suppressed"
	OutcomeFailed          = "failed"
)

// RunOptions controls one dunning cycle
type RunOptions struct {
	DryRun        bool   `json:"dry_run"`
	Limit         int    `json:"limit"`
	Requester     string `json:"requester"`
	CorrelationID string `json:"correlation_id"`
}

// InvoiceOutcome is the report line of one invoice
type InvoiceOutcome struct {
	InvoiceID      string             `json:"invoice_id"`
	InvoiceNumber  string             `json:"invoice_number"`
	Stage          types.DunningStage `json:"stage"`
	ShouldSend     bool               `json:"should_send"`
	Reason         string             `json:"reason"`
	Outcome        string             `json:"outcome"`
	EventType      types.EventType    `json:"event_type,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	Error          string             `json:"error,omitempty"`
	Hint           string             `json:"hint,omitempty"`
}

// RunReport summarizes a cycle of one tenant
type RunReport struct {
	RunID            string                     `json:"run_id"`
	TenantID         string                     `json:"tenant_id"`
	CorrelationID    string                     `json:"correlation_id"`
	DryRun           bool                       `json:"dry_run"`
	StartedAt        time.Time                  `json:"started_at"`
	FinishedAt       time.Time                  `json:"finished_at"`
	Totals           map[types.DunningStage]int `json:"totals"`
	Dispatched       int                        `json:"dispatched"`
	WouldDispatch    int                        `json:"would_dispatch"`
	PendingApprovals int                        `json:"pending_approvals"`
	Suppressed       map[string]int             `json:"suppressed"`
	Errors           []*InvoiceOutcome          `json:"errors"`
	Outcomes         []*InvoiceOutcome          `json:"outcomes"`
	Bounce           *BounceResult              `json:"bounce,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// Outcome returns the report line of an invoice
func (r *RunReport) Outcome(invoiceID string) (*InvoiceOutcome, bool) {
	return lo.Find(r.Outcomes, func(o *InvoiceOutcome) bool {
		return o.InvoiceID == invoiceID
	})
}

func (r *RunReport) record(o *InvoiceOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Outcome {
	case OutcomeDispatched:
		r.Dispatched++
	case OutcomeWouldDispatch:
		r.WouldDispatch++
	case OutcomePendingApproval:
		r.PendingApprovals++
	case OutcomeSuppressed:
		r.Suppressed[o.Reason]++
	case OutcomeFailed:
		r.Errors = append(r.Errors, o)
	}
}

// CycleService runs dunning cycles: reconcile bounces, load invoices,
// decide, gate on approval, send and publish
type CycleService interface {
	Run(ctx context.Context, tenantID string, opts RunOptions) (*RunReport, error)
	RunAll(ctx context.Context, opts RunOptions) ([]*RunReport, error)
}

type cycleService struct {
	ServiceParams
	decisions  DecisionEngine
	approvals  ApprovalService
	dispatcher DispatcherService
	bounces    BounceService
}

func NewCycleService(
	params ServiceParams,
	decisions DecisionEngine,
	approvals ApprovalService,
	dispatcher DispatcherService,
	bounces BounceService,
) CycleService {
	return &cycleService{
		ServiceParams: params,
		decisions:     decisions,
		approvals:     approvals,
		dispatcher:    dispatcher,
		bounces:       bounces,
	}
}

func (s *cycleService) Run(ctx context.Context, tenantID string, opts RunOptions) (*RunReport, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.Config.Dunning.InvoiceLimit
	}
	if strings.TrimSpace(opts.Requester) == "" {
		opts.Requester = s.Config.Dunning.Requester
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CORRELATION)
	}

	ctx = types.SetCorrelationID(ctx, opts.CorrelationID)
	ctx = types.SetDryRun(ctx, opts.DryRun)
	ctx = types.SetUserID(ctx, opts.Requester)

	span, ctx := s.Sentry.StartTransaction(ctx, "dunning.cycle")
	if span != nil {
		span.SetTag("tenant_id", tenantID)
		defer span.Finish()
	}

	report := &RunReport{
		RunID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RUN),
		TenantID:      tenantID,
		CorrelationID: opts.CorrelationID,
		DryRun:        opts.DryRun,
		StartedAt:     s.now(),
		Totals:        map[types.DunningStage]int{},
		Suppressed:    map[string]int{},
		Errors:        []*InvoiceOutcome{},
		Outcomes:      []*InvoiceOutcome{},
	}

	err := s.Arena.Run(ctx, tenantID, func(ctx context.Context, t *arena.Tenant) error {
		return s.run(ctx, t, opts, report)
	})
	report.FinishedAt = s.now()
	if err != nil {
		report.Error = err.Error()
		s.Logger.WithContext(ctx).Errorw("dunning cycle aborted",
			"tenant_id", tenantID,
			"error", err,
		)
		s.Sentry.CaptureTenantFailure(tenantID, err)
		return report, err
	}

	s.Logger.WithContext(ctx).Infow("dunning cycle finished",
		"tenant_id", tenantID,
		"dispatched", report.Dispatched,
		"would_dispatch", report.WouldDispatch,
		"pending_approvals", report.PendingApprovals,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (s *cycleService) run(ctx context.Context, t *arena.Tenant, opts RunOptions, report *RunReport) error {
	bounceResult, err := s.bounces.Process(ctx, t, opts.DryRun)
	if err != nil {
		return err
	}
	report.Bounce = bounceResult

	invoices, err := s.InvoiceProvider.LoadOverdueInvoices(ctx, t.ID, opts.Limit)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not load overdue invoices of tenant %s", t.ID).
			Mark(ierr.ErrSystem)
	}

	result, err := s.decisions.Process(ctx, t, invoices, opts.DryRun)
	if err != nil {
		return err
	}

	for _, f := range result.Failures {
		report.record(&InvoiceOutcome{
			InvoiceID: f.InvoiceID,
			Reason:    "invalid invoice",
			Outcome:   OutcomeFailed,
			Error:     f.Message,
		})
	}

	for _, eval := range result.Evaluations() {
		report.Totals[eval.Decision.Stage]++

		outcome, err := s.handle(ctx, t, eval, opts)
		if err != nil {
			if ierr.IsPersistence(err) {
				return err
			}
			outcome.Outcome = OutcomeFailed
			outcome.Error = err.Error()
			outcome.Hint = strings.Join(ierr.Hints(err), "; ")
			s.Sentry.AddBreadcrumb("dunning", "invoice failed", map[string]interface{}{
				"tenant_id":  t.ID,
				"invoice_id": outcome.InvoiceID,
				"error_code": ierr.Code(err),
			})
		}
		report.record(outcome)
	}
	return nil
}

// handle takes one evaluated invoice through the duplicate check, the
// approval gate, delivery and publication
func (s *cycleService) handle(ctx context.Context, t *arena.Tenant, eval *Evaluation, opts RunOptions) (*InvoiceOutcome, error) {
	inv := eval.Invoice
	decision := eval.Decision
	stage := decision.Stage

	outcome := &InvoiceOutcome{
		InvoiceID:      inv.InvoiceID,
		InvoiceNumber:  inv.InvoiceNumber,
		Stage:          stage,
		ShouldSend:     decision.ShouldSend,
		Reason:         decision.Reason,
		Outcome:        OutcomeSuppressed,
		IdempotencyKey: decision.IdempotencyKey,
	}
	if !decision.ShouldSend {
		return outcome, nil
	}

	duplicate, err := s.dispatcher.CheckDuplicateEvent(ctx, t, inv.InvoiceID, stage)
	if err != nil {
		return outcome, err
	}
	if duplicate {
		if !opts.DryRun {
			if err := s.completeApproval(ctx, t, decision.IdempotencyKey); err != nil {
				return outcome, err
			}
		}
		decision.ShouldSend = false
		decision.Reason = ReasonDuplicate
		outcome.ShouldSend = false
		outcome.Reason = ReasonDuplicate
		return outcome, nil
	}

	required, err := s.approvals.RequiresApproval(ctx, t.ID, stage)
	if err != nil {
		return outcome, err
	}

	var record *approval.Record
	if required {
		if !opts.DryRun {
			_, err := s.approvals.RegisterPending(ctx, t, RegisterPendingRequest{
				InvoiceID:      inv.InvoiceID,
				NoticeID:       inv.NoticeID(),
				Stage:          stage,
				IdempotencyKey: decision.IdempotencyKey,
				Requester:      opts.Requester,
				Reason:         fmt.Sprintf("%s for invoice %s, %d days overdue", stage, inv.InvoiceNumber, eval.Resolution.DaysOverdue),
				CorrelationID:  opts.CorrelationID,
			})
			if err != nil {
				return outcome, err
			}
		}

		gate, err := s.approvals.CanSend(ctx, t, stage, decision.IdempotencyKey)
		if err != nil {
			return outcome, err
		}
		if !gate.Allowed {
			decision.ShouldSend = false
			decision.Reason = gate.Reason
			outcome.ShouldSend = false
			outcome.Reason = gate.Reason
			if gate.Reason == ReasonApprovalWait {
				outcome.Outcome = OutcomePendingApproval
			}
			return outcome, nil
		}
		record = gate.Record
	}

	var dispatched *DispatchResult
	previous := stage.Previous()
	escalated := false
	if previous.IsActionable() {
		escalated, err = s.dispatcher.CheckDuplicateEvent(ctx, t, inv.InvoiceID, previous)
		if err != nil {
			return outcome, err
		}
	}
	// the dispatch key is recorded here; from now on a rerun treats the
	// notice as delivered
	if escalated {
		delay := EscalationDelayDays(previous, s.Config.Dunning.ForTenant(t.ID))
		reason := fmt.Sprintf("invoice %d days overdue, escalation due %d days after %s",
			eval.Resolution.DaysOverdue, delay, previous)
		dispatched, err = s.dispatcher.PublishEscalated(ctx, t, inv, stage, previous, reason, opts.DryRun)
	} else {
		dispatched, err = s.dispatcher.PublishIssued(ctx, t, inv, stage, opts.DryRun)
	}
	if err != nil {
		return outcome, err
	}
	outcome.EventType = dispatched.Event.Type

	notice := notification.Compose(inv, stage, decision.IdempotencyKey, opts.CorrelationID)
	if _, err := s.Sender.Publish(ctx, notice, opts.DryRun); err != nil {
		s.Logger.WithContext(ctx).Errorw("notice not delivered, dispatch key already recorded",
			"invoice_id", inv.InvoiceID,
			"dispatch_key", dispatched.DispatchKey,
			"error", err,
		)
		return outcome, err
	}

	if opts.DryRun {
		outcome.Outcome = OutcomeWouldDispatch
		return outcome, nil
	}

	if record != nil && record.Status == types.ApprovalStatusApproved {
		if _, err := s.approvals.MarkSent(ctx, t, record.IdempotencyKey); err != nil {
			return outcome, err
		}
	}
	outcome.Outcome = OutcomeDispatched
	return outcome, nil
}

// completeApproval moves an approved record to sent once its notice was
// dispatched by an earlier run that stopped before MarkSent
func (s *cycleService) completeApproval(ctx context.Context, t *arena.Tenant, idempotencyKey string) error {
	record, err := s.approvals.Get(ctx, t, idempotencyKey)
	if ierr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status != types.ApprovalStatusApproved {
		return nil
	}
	if _, err := s.approvals.MarkSent(ctx, t, record.IdempotencyKey); err != nil {
		return err
	}
	s.Logger.WithContext(ctx).Infow("approval completed for dispatched notice",
		"idempotency_key", record.IdempotencyKey,
	)
	return nil
}

// RunAll runs the configured tenants in parallel. A failing tenant does not
// stop the others; its report carries the error.
func (s *cycleService) RunAll(ctx context.Context, opts RunOptions) ([]*RunReport, error) {
	tenantIDs := lo.Uniq(s.Config.Dunning.TenantIDs)
	if len(tenantIDs) == 0 {
		return []*RunReport{}, nil
	}

	p := pool.New().WithMaxGoroutines(max(s.Config.Scheduler.Concurrency, 1))

	var mu sync.Mutex
	reports := make([]*RunReport, 0, len(tenantIDs))
	var errs error

	for _, tenantID := range tenantIDs {
		p.Go(func() {
			report, err := s.Run(ctx, tenantID, opts)

			mu.Lock()
			defer mu.Unlock()
			if report != nil {
				reports = append(reports, report)
			}
			if err != nil {
				errs = errors.CombineErrors(errs, ierr.WithError(err).
					WithHintf("Dunning cycle failed for tenant %s", tenantID).
					Mark(ierr.ErrSystem))
			}
		})
	}
	p.Wait()

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TenantID < reports[j].TenantID
	})
	return reports, errs
}
