package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Client errors
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeUnknownCommand   ErrorCode = "UNKNOWN_COMMAND"

	// WhatsApp errors
	ErrCodeSessionNotReady   ErrorCode = "SESSION_NOT_READY"
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeMessageSendFailed ErrorCode = "MESSAGE_SEND_FAILED"
	ErrCodeFetchFailed       ErrorCode = "FETCH_FAILED"
	ErrCodeInvalidJID        ErrorCode = "INVALID_JID"
	ErrCodeInvalidMedia      ErrorCode = "INVALID_MEDIA"

	// Server errors
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getStatusCodeForError(code),
	}
}

// Wrap wraps an existing error with application context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getStatusCodeForError(code),
		Err:        err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: getStatusCodeForError(code),
		Err:        err,
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// getStatusCodeForError maps error codes to HTTP status codes
func getStatusCodeForError(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeValidationFailed, ErrCodeInvalidJID, ErrCodeInvalidMedia, ErrCodeUnknownCommand:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrCodeSessionNotReady, ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeInternalError, ErrCodeConnectionFailed, ErrCodeMessageSendFailed, ErrCodeFetchFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors for convenience

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(ErrCodeValidationFailed, message)
}

// InvalidRequest creates an invalid request error
func InvalidRequest(message string) *AppError {
	return New(ErrCodeInvalidRequest, message)
}

// UnknownCommand creates an unknown command error
func UnknownCommand(commandType string) *AppError {
	return New(ErrCodeUnknownCommand, fmt.Sprintf("Unknown command type: %q", commandType))
}

// SessionNotReady creates a session not ready error
func SessionNotReady() *AppError {
	return New(ErrCodeSessionNotReady, "WhatsApp session is not ready")
}

// ConnectionFailed creates a connection failed error
func ConnectionFailed(err error) *AppError {
	return Wrap(err, ErrCodeConnectionFailed, "Failed to connect to WhatsApp")
}

// MessageSendFailed creates a message send failed error
func MessageSendFailed(err error) *AppError {
	return Wrap(err, ErrCodeMessageSendFailed, "Failed to send message")
}

// FetchFailed creates an error for a failed session query
func FetchFailed(what string, err error) *AppError {
	return Wrapf(err, ErrCodeFetchFailed, "Failed to fetch %s", what)
}

// InvalidJID creates an invalid JID error
func InvalidJID(jid string) *AppError {
	return New(ErrCodeInvalidJID, fmt.Sprintf("Invalid WhatsApp JID: %s", jid))
}

// InvalidMedia creates an invalid media payload error
func InvalidMedia(message string) *AppError {
	return New(ErrCodeInvalidMedia, message)
}

// TooManyRequests creates a rate limit error
func TooManyRequests() *AppError {
	return New(ErrCodeTooManyRequests, "Rate limit exceeded. Please slow down.")
}

// InternalError creates an internal server error
func InternalError(err error) *AppError {
	return Wrap(err, ErrCodeInternalError, "Internal server error")
}
