package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinels every domain error is marked with. Expected business outcomes
// (rate-limited, stop-listed, below minimum) are decisions, not errors.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied = new(ErrCodePermissionDenied, "permission denied")
	ErrPolicyViolation  = new(ErrCodePolicyViolation, "policy violation")
	ErrDispatch         = new(ErrCodeDispatch, "dispatch failure")
	ErrPersistence      = new(ErrCodePersistence, "persistence error")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")
)

const (
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodePolicyViolation  = "policy_violation"
	ErrCodeDispatch         = "dispatch_failure"
	ErrCodePersistence      = "persistence_error"
	ErrCodeDatabase         = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsPolicyViolation checks if an error is a 4-eyes or similar policy breach
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPolicyViolation)
}

// IsDispatch checks if an error is a failed publish
func IsDispatch(err error) bool {
	return errors.Is(err, ErrDispatch)
}

// IsPersistence checks if an error came from the durable store
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsRetryable reports whether repeating the operation may succeed.
// Caller mistakes and policy breaches never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !(IsValidation(err) ||
		IsNotFound(err) ||
		IsPermissionDenied(err) ||
		IsPolicyViolation(err) ||
		IsInvalidOperation(err) ||
		IsAlreadyExists(err))
}

// Code returns the code of the first sentinel err is marked with
func Code(err error) string {
	for _, e := range []*InternalError{
		ErrNotFound, ErrAlreadyExists, ErrValidation, ErrInvalidOperation,
		ErrPermissionDenied, ErrPolicyViolation, ErrDispatch, ErrPersistence,
		ErrDatabase, ErrSystem,
	} {
		if errors.Is(err, e) {
			return e.Code
		}
	}
	return ErrCodeSystemError
}

// Hints returns every hint attached to err, outermost first
func Hints(err error) []string {
	return errors.GetAllHints(err)
}
