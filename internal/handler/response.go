package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://kcs.daonbank.com/errors/validation"
	ErrorTypeNotFound     = "https://kcs.daonbank.com/errors/not-found"
	ErrorTypeUnauthorized = "https://kcs.daonbank.com/errors/unauthorized"
	ErrorTypeForbidden    = "https://kcs.daonbank.com/errors/forbidden"
	ErrorTypeConflict     = "https://kcs.daonbank.com/errors/conflict"
	ErrorTypeUnavailable  = "https://kcs.daonbank.com/errors/unavailable"
	ErrorTypeInternal     = "https://kcs.daonbank.com/errors/internal"
)

// problem writes a ProblemDetails response with the request path as the
// instance.
func problem(c echo.Context, status int, errType, title, detail string, fieldErrors []ValidationError) error {
	return c.JSON(status, ProblemDetails{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   fieldErrors,
	})
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return problem(c, http.StatusBadRequest, ErrorTypeValidation, "Validation Error", detail, errors)
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return problem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail, nil)
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return problem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail, nil)
}

// NewForbiddenError creates a forbidden error response
func NewForbiddenError(c echo.Context, detail string) error {
	return problem(c, http.StatusForbidden, ErrorTypeForbidden, "Forbidden", detail, nil)
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return problem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail, nil)
}

// NewUnavailableError creates a service unavailable error response
func NewUnavailableError(c echo.Context, detail string) error {
	return problem(c, http.StatusServiceUnavailable, ErrorTypeUnavailable, "Service Unavailable", detail, nil)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return problem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail, nil)
}

// FromDomainError maps service-layer errors onto problem responses.
// Handlers that want field-level validation messages check the specific
// sentinels themselves before falling back here. fallback is the detail
// for unrecognized errors, which are logged as internal.
func FromDomainError(c echo.Context, err error, fallback string) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: ve.Field, Message: ve.Message},
		})
	}

	switch {
	case errors.Is(err, domain.ErrApplicationNotFound),
		errors.Is(err, domain.ErrApplicantNotFound),
		errors.Is(err, domain.ErrScoreNotFound),
		errors.Is(err, domain.ErrParamNotFound),
		errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, err.Error())

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStepOutOfOrder),
		errors.Is(err, domain.ErrDuplicateEvaluation),
		errors.Is(err, domain.ErrDuplicateParam),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrSelfApproval),
		errors.Is(err, domain.ErrAppealWindowClosed),
		errors.Is(err, domain.ErrAppealNotAllowed):
		return NewConflictError(c, err.Error())

	case errors.Is(err, domain.ErrConsentRequired),
		errors.Is(err, domain.ErrChangeReasonRequired),
		errors.Is(err, domain.ErrInvalidInput):
		return NewValidationError(c, err.Error(), nil)

	case errors.Is(err, domain.ErrUnauthorized):
		return NewUnauthorizedError(c, err.Error())

	case errors.Is(err, domain.ErrForbidden):
		return NewForbiddenError(c, err.Error())

	case errors.Is(err, domain.ErrDependencyUnavailable):
		return NewUnavailableError(c, err.Error())
	}

	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(fallback)
	return NewInternalError(c, fallback)
}
