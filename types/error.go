package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the scheduler.
type ErrorCode string

// Loop error classes. Everything except ErrFatal is contained and surfaced
// through logs, metrics and events only.
const (
	ErrSourceFetch ErrorCode = "SOURCE_FETCH"
	ErrEvaluation  ErrorCode = "EVALUATION"
	ErrDispatch    ErrorCode = "DISPATCH"
	ErrCycle       ErrorCode = "CYCLE"
	ErrFatal       ErrorCode = "FATAL"
)

// General error codes
const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrTimeout      ErrorCode = "TIMEOUT"
	ErrUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrCircuitOpen  ErrorCode = "CIRCUIT_OPEN"
)

// Error represents a structured error with code, message, and loop context.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	Checkpoint string    `json:"checking_point,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Checkpoint != "" {
		prefix += " " + e.Checkpoint
	}
	if e.ItemID != "" {
		prefix += " item=" + e.ItemID
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps cause with a code and message.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithCheckpoint attaches the checking point name.
func (e *Error) WithCheckpoint(name string) *Error {
	e.Checkpoint = name
	return e
}

// WithItem attaches the monitoring item id.
func (e *Error) WithItem(id string) *Error {
	e.ItemID = id
	return e
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsFatal reports whether err must terminate the monitoring loop.
func IsFatal(err error) bool {
	return IsErrorCode(err, ErrFatal)
}
