package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound              = errors.New("resource not found")
	ErrAlreadyExists         = errors.New("resource already exists")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrInternalError         = errors.New("internal error")
	ErrApplicantNotFound     = errors.New("applicant not found")
	ErrApplicationNotFound   = errors.New("loan application not found")
	ErrScoreNotFound         = errors.New("credit score not found")
	ErrParamNotFound         = errors.New("regulation parameter not found")
	ErrDuplicateParam        = errors.New("parameter already exists for this key and effective date")
	ErrSelfApproval          = errors.New("approver must differ from creator")
	ErrChangeReasonRequired  = errors.New("change reason is required")
	ErrDuplicateEvaluation   = errors.New("evaluation already recorded for this application")
	ErrInvalidTransition     = errors.New("invalid application status transition")
	ErrStepOutOfOrder        = errors.New("application step out of order")
	ErrConsentRequired       = errors.New("credit bureau consent is required")
	ErrAppealWindowClosed    = errors.New("appeal window has closed")
	ErrAppealNotAllowed      = errors.New("appeal is only available for rejected or manual review decisions")
	ErrDependencyUnavailable = errors.New("required dependency unavailable")
)

// ValidationError carries the offending field for invalid-input failures.
// It unwraps to ErrInvalidInput so callers can classify with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
