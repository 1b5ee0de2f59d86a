package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a relay failure.
type ErrorCode string

const (
	// ErrCodeTransport is a socket-level failure; the session manager
	// answers it with its reconnect loop.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeRequestTimeout means no correlated reply arrived within the
	// deadline. Callers observe "no result", never a fatal error.
	ErrCodeRequestTimeout ErrorCode = "REQUEST_TIMEOUT"

	// ErrCodeGatewayRejected is an acknowledged-but-unsuccessful gateway
	// response; dispatch uses it to trigger strategy fallback.
	ErrCodeGatewayRejected ErrorCode = "GATEWAY_REJECTED"

	// ErrCodeValidationRejected means the classifier found the content
	// ineligible. Logged at info level, dropped, not an error condition.
	ErrCodeValidationRejected ErrorCode = "VALIDATION_REJECTED"

	// ErrCodeDatabase covers snapshot persistence failures.
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeInvalidConfig covers configuration problems.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeInternal is the fallback for uncategorized failures.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is a categorized relay error.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Retryable bool      `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with a category.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// WrapRetryable wraps an error and marks it as retryable.
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err, Retryable: true}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether an error carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
