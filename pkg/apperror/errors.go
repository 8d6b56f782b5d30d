package apperror

import (
	"errors"
	"net/http"
)

// SyncCode classifies a sync outcome for clients deciding whether to retry.
type SyncCode string

const (
	SyncCodeValidation      SyncCode = "VALIDATION"
	SyncCodeScopeMismatch   SyncCode = "SCOPE_MISMATCH"
	SyncCodeRetryable       SyncCode = "RETRYABLE"
	SyncCodeConflict        SyncCode = "IDEMPOTENCY_CONFLICT"
	SyncCodeDuplicate       SyncCode = "DUPLICATE"
	SyncCodePostingSoftFail SyncCode = "POSTING_SOFT_FAIL"
	SyncCodeInternal        SyncCode = "INTERNAL"
)

// Fatal reports that resending the same payload can never succeed and the
// job needs a human to look at it. Unknown and internal codes stay
// non-fatal so transient server trouble keeps its retry budget.
func (c SyncCode) Fatal() bool {
	switch c {
	case SyncCodeValidation, SyncCodeScopeMismatch, SyncCodeConflict:
		return true
	}
	return false
}

// AppError represents an application error with HTTP status code
type AppError struct {
	Code     int          `json:"code"`
	Message  string       `json:"message"`
	SyncCode SyncCode     `json:"sync_code,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
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
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized   = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden      = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrTokenExpired   = &AppError{Code: http.StatusUnauthorized, Message: "Token has expired"}
	ErrInvalidToken   = &AppError{Code: http.StatusUnauthorized, Message: "Invalid token"}
)

// Sync ingestion errors. Lock-timeout and deadlock carry distinct messages so
// callers can tell "retry safely" from "do not retry".
var (
	ErrLockTimeout = &AppError{
		Code:     http.StatusConflict,
		Message:  "Row lock wait timeout, retry the same payload",
		SyncCode: SyncCodeRetryable,
	}
	ErrDeadlock = &AppError{
		Code:     http.StatusConflict,
		Message:  "Transaction deadlock detected, retry the same payload",
		SyncCode: SyncCodeRetryable,
	}
	ErrIdempotencyConflict = &AppError{
		Code:     http.StatusConflict,
		Message:  "Transaction id was already used for different content",
		SyncCode: SyncCodeConflict,
	}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewSyncError creates an application error carrying a sync classification.
func NewSyncError(code int, syncCode SyncCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		SyncCode: syncCode,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:     http.StatusUnprocessableEntity,
		Message:  "Validation failed",
		SyncCode: SyncCodeValidation,
		Errors:   fieldErrors,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:     http.StatusBadRequest,
		Message:  message,
		SyncCode: SyncCodeValidation,
	}
}

// NewScopeMismatchError creates the error returned when a submitted
// company/outlet pair does not match the authenticated caller's scope.
func NewScopeMismatchError(message string) *AppError {
	return &AppError{
		Code:     http.StatusForbidden,
		Message:  message,
		SyncCode: SyncCodeScopeMismatch,
	}
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
		Code:     http.StatusInternalServerError,
		Message:  err.Error(),
		SyncCode: SyncCodeInternal,
	}
}
