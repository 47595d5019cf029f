package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// Provisioning errors raised by the conversation resource manager.
	// Callers branch on these, so they must stay distinct.
	ErrCodeCredentialInvalid   ErrorCode = "CREDENTIAL_INVALID"
	ErrCodeQuotaExhausted      ErrorCode = "QUOTA_EXHAUSTED"
	ErrCodeInvalidParameters   ErrorCode = "INVALID_PARAMETERS"
	ErrCodeProvisioningFailure ErrorCode = "PROVISIONING_FAILED"

	// Transport errors
	ErrCodeTransportJoinFailed ErrorCode = "TRANSPORT_JOIN_FAILED"

	// Session errors
	ErrCodeInvalidPhase    ErrorCode = "INVALID_PHASE"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeNotReady        ErrorCode = "NOT_READY"

	// Internal errors
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase       ErrorCode = "DATABASE_ERROR"
	ErrCodeStorage        ErrorCode = "STORAGE_ERROR"
	ErrCodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WrapWithStatus wraps an existing error with an AppError and specific status code
func WrapWithStatus(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// WithDetails adds additional details to an AppError for debugging
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Validation errors
func ValidationError(message string) *AppError {
	return NewWithStatus(ErrCodeValidation, message, http.StatusBadRequest)
}

func MissingFieldError(field string) *AppError {
	return NewWithStatus(ErrCodeMissingField, fmt.Sprintf("Missing required field: %s", field), http.StatusBadRequest)
}

// Provisioning errors
func CredentialInvalidError(err error) *AppError {
	return WrapWithStatus(ErrCodeCredentialInvalid, "Invalid or missing conversation service API key", http.StatusUnauthorized, err)
}

func QuotaExhaustedError(err error) *AppError {
	return WrapWithStatus(ErrCodeQuotaExhausted, "Conversation service account is out of credits", http.StatusPaymentRequired, err)
}

func InvalidParametersError(message string, err error) *AppError {
	return WrapWithStatus(ErrCodeInvalidParameters, message, http.StatusBadRequest, err)
}

func ProvisioningError(err error) *AppError {
	return WrapWithStatus(ErrCodeProvisioningFailure, "Failed to create conversation", http.StatusBadGateway, err)
}

func TransportJoinError(err error) *AppError {
	return WrapWithStatus(ErrCodeTransportJoinFailed, "Failed to join video call", http.StatusBadGateway, err)
}

// Session errors
func InvalidPhaseError(operation, phase string) *AppError {
	return NewWithStatus(ErrCodeInvalidPhase, fmt.Sprintf("%s is not allowed while session is %s", operation, phase), http.StatusConflict)
}

func SessionNotFoundError() *AppError {
	return NewWithStatus(ErrCodeSessionNotFound, "Session not found", http.StatusNotFound)
}

func NotReadyError(message string) *AppError {
	return NewWithStatus(ErrCodeNotReady, message, http.StatusConflict)
}

// Internal errors
func InternalError(message string) *AppError {
	return NewWithStatus(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(err error) *AppError {
	return WrapWithStatus(ErrCodeDatabase, "Database error", http.StatusInternalServerError, err)
}

func StorageError(err error) *AppError {
	return WrapWithStatus(ErrCodeStorage, "Storage error", http.StatusInternalServerError, err)
}

func ServiceUnavailableError(message string) *AppError {
	return NewWithStatus(ErrCodeServiceUnavail, message, http.StatusServiceUnavailable)
}

// GetAppError extracts AppError from an error chain, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err.Error())
}

// CodeOf returns the error code carried anywhere in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
