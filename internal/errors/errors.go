package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Config errors are fatal at startup
	CodeConfig        ErrorCode = "CONFIG_ERROR"
	CodeMissingConfig ErrorCode = "MISSING_CONFIG"
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Network errors are retried, then reported per call
	CodeNetwork        ErrorCode = "NETWORK_ERROR"
	CodeServiceTimeout ErrorCode = "SERVICE_TIMEOUT"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Upstream errors
	CodeUpstreamAuth   ErrorCode = "UPSTREAM_AUTH_ERROR"
	CodeUpstreamFormat ErrorCode = "UPSTREAM_FORMAT_ERROR"
	CodeTMDBNotFound   ErrorCode = "TMDB_NOT_FOUND"

	// Document store errors
	CodeDocStore           ErrorCode = "DOCSTORE_ERROR"
	CodeDocStoreConnection ErrorCode = "DOCSTORE_CONNECTION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"

	// Control flow
	CodeCancelled ErrorCode = "CANCELLED"
	CodeInternal  ErrorCode = "INTERNAL_ERROR"
	CodeUnknown   ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// NetworkError creates a network error
func NetworkError(message string, err error) *AppError {
	return Wrap(err, CodeNetwork, message)
}

// UpstreamAuthError creates an authentication error for an upstream provider
func UpstreamAuthError(providerID, message string) *AppError {
	return New(CodeUpstreamAuth, message).
		WithContext("provider_id", providerID)
}

// UpstreamFormatError creates an error for malformed upstream payloads
func UpstreamFormatError(message string, err error) *AppError {
	return Wrap(err, CodeUpstreamFormat, message)
}

// TMDBNotFound creates an error for entries with no TMDB counterpart
func TMDBNotFound(message string) *AppError {
	return New(CodeTMDBNotFound, message)
}

// DocStoreError creates a document store error
func DocStoreError(message string, err error) *AppError {
	return Wrap(err, CodeDocStore, message)
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// Cancelled creates a cancellation error
func Cancelled(message string) *AppError {
	return New(CodeCancelled, message)
}

// Internal creates an internal error
func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message)
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNetwork, CodeServiceTimeout, CodeRateLimited, CodeDocStoreConnection:
			return true
		}
	}
	return false
}

// IsCancelled checks whether an error comes from cooperative cancellation
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return GetErrorCode(err) == CodeCancelled
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
