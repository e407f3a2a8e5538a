package service

import (
	"context"
	"strings"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/approval"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/types"
	"github.com/flexprice/dunning/internal/validator"
)

// RegisterPendingRequest asks for a 4-eyes decision on one notice
type RegisterPendingRequest struct {
	InvoiceID      string             `json:"invoice_id" validate:"required,invoice_id"`
	NoticeID       string             `json:"notice_id" validate:"required"`
	Stage          types.DunningStage `json:"stage" validate:"required"`
	IdempotencyKey string             `json:"idempotency_key" validate:"required"`
	Requester      string             `json:"requester" validate:"required"`
	Reason         string             `json:"reason"`
	CorrelationID  string             `json:"correlation_id"`
}

func (r *RegisterPendingRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.Requester) == "" {
		return ierr.NewError("requester is required").
			Mark(ierr.ErrValidation)
	}
	if err := r.Stage.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Approvals exist only for stages 1 to 3").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SendGate is the answer of CanSend
type SendGate struct {
	Allowed bool             `json:"allowed"`
	Reason  string           `json:"reason"`
	Record  *approval.Record `json:"record,omitempty"`
}

// ApprovalService runs the 4-eyes workflow. Every mutation writes the full
// ledger; a failed write leaves the loaded ledger unchanged.
type ApprovalService interface {
	RequiresApproval(ctx context.Context, tenantID string, stage types.DunningStage) (bool, error)
	RegisterPending(ctx context.Context, t *arena.Tenant, req RegisterPendingRequest) (*approval.Record, error)
	Approve(ctx context.Context, t *arena.Tenant, idempotencyKey, approver, comment string) (*approval.Record, error)
	Reject(ctx context.Context, t *arena.Tenant, idempotencyKey, approver, comment string) (*approval.Record, error)
	MarkSent(ctx context.Context, t *arena.Tenant, idempotencyKey string) (*approval.Record, error)
	CanSend(ctx context.Context, t *arena.Tenant, stage types.DunningStage, idempotencyKey string) (*SendGate, error)
	ListPending(ctx context.Context, t *arena.Tenant) ([]*approval.Record, error)
	Get(ctx context.Context, t *arena.Tenant, idempotencyKey string) (*approval.Record, error)
}

type approvalService struct {
	ServiceParams
	policies PolicyService
}

func NewApprovalService(params ServiceParams, policies PolicyService) ApprovalService {
	return &approvalService{
		ServiceParams: params,
		policies:      policies,
	}
}

func (s *approvalService) RequiresApproval(ctx context.Context, tenantID string, stage types.DunningStage) (bool, error) {
	switch stage {
	case types.DunningStage2, types.DunningStage3:
		return true, nil
	case types.DunningStage1:
		policy, err := s.policies.GetPolicy(ctx, tenantID)
		if err != nil {
			return false, err
		}
		return policy.Settings.RequireApprovalStage1, nil
	default:
		return false, nil
	}
}

func (s *approvalService) RegisterPending(ctx context.Context, t *arena.Tenant, req RegisterPendingRequest) (*approval.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	existing, ok := ledger.Get(req.IdempotencyKey)
	if ok && existing.Status != types.ApprovalStatusPending {
		return existing, nil
	}

	var record *approval.Record
	if ok {
		record = existing.Clone()
		record.Reason = req.Reason
		record.CorrelationID = req.CorrelationID
		record.UpdatedAt = now
	} else {
		record = &approval.Record{
			TenantID:       t.ID,
			NoticeID:       req.NoticeID,
			InvoiceID:      req.InvoiceID,
			Stage:          req.Stage,
			IdempotencyKey: approval.NormalizeKey(req.IdempotencyKey),
			Status:         types.ApprovalStatusPending,
			Requester:      strings.TrimSpace(req.Requester),
			Reason:         req.Reason,
			CorrelationID:  req.CorrelationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if err := t.Approvals.Put(ctx, ledger.WithRecord(record)); err != nil {
		return nil, err
	}

	if !ok {
		s.Logger.WithContext(ctx).Infow("approval requested",
			"notice_id", record.NoticeID,
			"stage", record.Stage,
			"idempotency_key", record.IdempotencyKey,
		)
	}
	return record, nil
}

func (s *approvalService) Approve(ctx context.Context, t *arena.Tenant, idempotencyKey, approver, comment string) (*approval.Record, error) {
	return s.decide(ctx, t, idempotencyKey, approver, comment, types.ApprovalStatusApproved)
}

func (s *approvalService) Reject(ctx context.Context, t *arena.Tenant, idempotencyKey, approver, comment string) (*approval.Record, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, ierr.NewError("comment is required").
			WithHint("A rejection needs a comment").
			Mark(ierr.ErrValidation)
	}
	return s.decide(ctx, t, idempotencyKey, approver, comment, types.ApprovalStatusRejected)
}

// decide moves a pending record to approved or rejected. The 4-eyes rule
// is checked before the status so a self-decision never mutates anything.
func (s *approvalService) decide(
	ctx context.Context,
	t *arena.Tenant,
	idempotencyKey, approver, comment string,
	to types.ApprovalStatus,
) (*approval.Record, error) {
	if strings.TrimSpace(approver) == "" {
		return nil, ierr.NewError("approver is required").
			Mark(ierr.ErrValidation)
	}

	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}

	current, ok := ledger.Get(idempotencyKey)
	if !ok {
		return nil, approval.ErrNotFound(idempotencyKey)
	}
	if approval.SameActor(current.Requester, approver) {
		s.Logger.WithContext(ctx).Warnw("self approval refused",
			"idempotency_key", current.IdempotencyKey,
			"actor", approver,
		)
		return nil, approval.ErrSelfApproval(approver)
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, approval.ErrInvalidTransition(current.IdempotencyKey, current.Status, to)
	}

	record := current.Clone()
	record.Status = to
	record.Approver = strings.TrimSpace(approver)
	record.Comment = comment
	record.UpdatedAt = s.now()

	if err := t.Approvals.Put(ctx, ledger.WithRecord(record)); err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("approval decided",
		"notice_id", record.NoticeID,
		"stage", record.Stage,
		"status", record.Status,
		"approver", record.Approver,
	)
	return record, nil
}

func (s *approvalService) MarkSent(ctx context.Context, t *arena.Tenant, idempotencyKey string) (*approval.Record, error) {
	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}

	current, ok := ledger.Get(idempotencyKey)
	if !ok {
		return nil, approval.ErrNotFound(idempotencyKey)
	}
	if current.Status != types.ApprovalStatusApproved {
		return nil, approval.ErrInvalidTransition(current.IdempotencyKey, current.Status, types.ApprovalStatusSent)
	}

	record := current.Clone()
	record.Status = types.ApprovalStatusSent
	record.UpdatedAt = s.now()

	if err := t.Approvals.Put(ctx, ledger.WithRecord(record)); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *approvalService) CanSend(ctx context.Context, t *arena.Tenant, stage types.DunningStage, idempotencyKey string) (*SendGate, error) {
	required, err := s.RequiresApproval(ctx, t.ID, stage)
	if err != nil {
		return nil, err
	}
	if !required {
		return &SendGate{Allowed: true, Reason: ReasonNoApprovalNeed}, nil
	}

	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}

	record, ok := ledger.Get(idempotencyKey)
	if !ok {
		return &SendGate{Reason: ReasonApprovalWait}, nil
	}

	gate := &SendGate{Record: record}
	switch record.Status {
	case types.ApprovalStatusApproved:
		gate.Allowed = true
		gate.Reason = ReasonApproved
	case types.ApprovalStatusSent:
		gate.Reason = ReasonAlreadySent
	case types.ApprovalStatusRejected:
		gate.Reason = ReasonRejected
	default:
		gate.Reason = ReasonApprovalWait
	}
	return gate, nil
}

func (s *approvalService) ListPending(ctx context.Context, t *arena.Tenant) ([]*approval.Record, error) {
	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Pending(), nil
}

func (s *approvalService) Get(ctx context.Context, t *arena.Tenant, idempotencyKey string) (*approval.Record, error) {
	ledger, err := t.Approvals.Get(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := ledger.Get(idempotencyKey)
	if !ok {
		return nil, approval.ErrNotFound(idempotencyKey)
	}
	return record, nil
}
