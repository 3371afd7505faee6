package errors

import (
	"errors"
	"fmt"
	"net/http"

	"storytime-api/internal/domain"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeQuota        ErrorType = "quota_exceeded"
	ErrorTypeConflict     ErrorType = "conflict"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Details:    detail,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewQuotaError is returned when a free plan has no generations left.
func NewQuotaError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeQuota,
		Message:    message,
		StatusCode: http.StatusPaymentRequired,
	}
}

func NewConflictError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
		Cause:      cause,
	}
}

// FromDomain maps domain sentinel errors to an AppError. Errors that are
// already AppErrors pass through; anything else becomes an internal error.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return NewValidationError(validationErr.Error())
	}

	switch {
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrUserNotFound):
		return NewUnauthorizedError("Invalid token")
	case errors.Is(err, domain.ErrPlanNotFound):
		return NewNotFoundError("Plan not found")
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return NewNotFoundError("Subscription not found")
	case errors.Is(err, domain.ErrPlanNotPurchasable):
		return NewValidationError("Plan cannot be purchased")
	case errors.Is(err, domain.ErrInvalidWebhook):
		return NewValidationError("Invalid webhook event")
	case errors.Is(err, domain.ErrStoryLimitReached):
		return NewQuotaError("Story limit reached for the current period")
	case errors.Is(err, domain.ErrUsageConflict):
		return NewConflictError("Usage changed concurrently, retry the request", err)
	case errors.Is(err, domain.ErrBillingNotConfigured), errors.Is(err, domain.ErrSupabaseNotConfigured):
		return NewNetworkError("Service not configured", err)
	default:
		return NewInternalError("Internal server error", err)
	}
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
