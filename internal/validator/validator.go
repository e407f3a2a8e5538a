package validator

import (
	"regexp"
	"sync"

	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once

	// identifiers used as store keys and in idempotency keys
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)
)

func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("tenant_id", validateIdentifier)
		_ = validate.RegisterValidation("invoice_id", validateIdentifier)
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}

// ValidateRequest validates a struct and marks failures as validation errors
func ValidateRequest(req interface{}) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateIdentifier checks a single tenant or invoice identifier
func ValidateIdentifier(field, value string) error {
	if identifierPattern.MatchString(value) {
		return nil
	}
	return ierr.NewErrorf("invalid %s %q", field, value).
		WithHintf("%s must be 1-128 characters of letters, digits, '.', '_', ':' or '-'", field).
		WithReportableDetails(map[string]any{field: value}).
		Mark(ierr.ErrValidation)
}
