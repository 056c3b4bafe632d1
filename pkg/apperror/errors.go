package apperror

import (
	"errors"
	"net/http"
	"strings"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "Invalid email or password"}
	ErrTokenExpired       = &AppError{Code: http.StatusUnauthorized, Message: "Token has expired"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "Invalid token"}
)

// Workflow and billing errors
var (
	// ErrNoActiveVisit is returned when no Active visit matches the lookup
	ErrNoActiveVisit = &AppError{Code: http.StatusNotFound, Message: "No active visit found for patient"}
	// ErrVisitAlreadyActive guards the one-active-visit-per-patient invariant
	ErrVisitAlreadyActive = &AppError{Code: http.StatusConflict, Message: "Patient already has an active visit"}
	// ErrConcurrentModification means the visit advanced between read and write
	ErrConcurrentModification = &AppError{Code: http.StatusConflict, Message: "Visit was modified by another actor, please retry"}
	// ErrInsufficientStock means the conditional stock decrement found too little stock
	ErrInsufficientStock = &AppError{Code: http.StatusConflict, Message: "Insufficient medication stock"}
	// ErrExcessPayment rejects amounts above the remaining invoice balance
	ErrExcessPayment = &AppError{Code: http.StatusBadRequest, Message: "Payment exceeds remaining invoice balance"}
	// ErrInvoiceAlreadyOpen prevents double invoicing of one billing episode
	ErrInvoiceAlreadyOpen = &AppError{Code: http.StatusConflict, Message: "An open invoice already exists for this visit"}
	// ErrPaymentPending rejects a new mobile payment while one is unresolved
	ErrPaymentPending = &AppError{Code: http.StatusConflict, Message: "A pending mobile payment already exists for this invoice"}
	// ErrPaymentTimeout marks a mobile payment unresolved after all poll attempts
	ErrPaymentTimeout = &AppError{Code: http.StatusGatewayTimeout, Message: "Mobile payment confirmation timed out"}
	// ErrProviderUnavailable is a transient provider-side failure
	ErrProviderUnavailable = &AppError{Code: http.StatusBadGateway, Message: "Payment provider unavailable"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewConflictError creates a conflict error with a custom message
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// NewStageGuardViolation creates a stage guard violation carrying the unmet
// precondition as its message
func NewStageGuardViolation(reason string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: "Stage transition rejected: " + reason,
	}
}

// IsConcurrentModification checks if an error is the optimistic-lock conflict
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsStageGuardViolation checks if an error is a stage guard violation
func IsStageGuardViolation(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == http.StatusConflict &&
		strings.HasPrefix(appErr.Message, "Stage transition rejected")
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
