package approval

import (
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/types"
)

func ErrNotFound(key string) error {
	return ierr.NewErrorf("approval record %s not found", key).
		WithHintf("No approval record exists for idempotency key %s", key).
		WithReportableDetails(map[string]any{"idempotency_key": key}).
		Mark(ierr.ErrNotFound)
}

func ErrSelfApproval(actor string) error {
	return ierr.NewError("approver must differ from requester").
		WithHintf("%s requested this notice and cannot also decide on it", actor).
		WithReportableDetails(map[string]any{"actor": actor}).
		Mark(ierr.ErrPolicyViolation)
}

func ErrInvalidTransition(key string, from, to types.ApprovalStatus) error {
	return ierr.NewErrorf("cannot move approval %s from %s to %s", key, from, to).
		WithHintf("Approval record is %s", from).
		WithReportableDetails(map[string]any{
			"idempotency_key": key,
			"from":            from,
			"to":              to,
		}).
		Mark(ierr.ErrInvalidOperation)
}
