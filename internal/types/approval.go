package types

import (
	"fmt"

	"github.com/samber/lo"
)

// ApprovalStatus is the state of a 4-eyes approval record
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusSent     ApprovalStatus = "sent"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

func (s ApprovalStatus) Validate() error {
	allowed := []ApprovalStatus{
		ApprovalStatusPending,
		ApprovalStatusApproved,
		ApprovalStatusRejected,
		ApprovalStatusSent,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid approval status: %s", s)
	}
	return nil
}

// IsTerminal reports whether no transition leaves the status
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusRejected || s == ApprovalStatusSent
}

// CanTransitionTo reports whether next is a legal successor of s
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	switch s {
	case ApprovalStatusPending:
		return next == ApprovalStatusApproved || next == ApprovalStatusRejected
	case ApprovalStatusApproved:
		return next == ApprovalStatusSent
	default:
		return false
	}
}
