package producer

import (
	"errors"
	"fmt"
)

// UsageErrorCode categorizes Producer API misuse.
type UsageErrorCode string

const (
	// ErrCodeCallAlreadyBound indicates BeginCall while a call is bound.
	ErrCodeCallAlreadyBound UsageErrorCode = "CALL_ALREADY_BOUND"

	// ErrCodeNoCallBound indicates an argument or end with no bound call.
	ErrCodeNoCallBound UsageErrorCode = "NO_CALL_BOUND"

	// ErrCodeCallEnded indicates use of a handle after EndCall.
	ErrCodeCallEnded UsageErrorCode = "CALL_ENDED"

	// ErrCodeForeignCall indicates a handle passed to a Producer that did not
	// create it.
	ErrCodeForeignCall UsageErrorCode = "FOREIGN_CALL"

	// ErrCodeInvalidEvent indicates input that cannot be encoded.
	ErrCodeInvalidEvent UsageErrorCode = "INVALID_EVENT"

	// ErrCodePipelineClosed indicates the engine no longer accepts events.
	ErrCodePipelineClosed UsageErrorCode = "PIPELINE_CLOSED"
)

// UsageError reports a precondition violation at the Producer API.
//
// It is a bug in the instrumentation layer, not a runtime condition to
// recover from.
type UsageError struct {
	// Code identifies the error category.
	Code UsageErrorCode

	// Op is the API operation that failed.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying validation error, if any.
	Err error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying validation error.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// IsUsageError returns true if err is or wraps a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// HasCode returns true if err is a *UsageError with the given code.
func HasCode(err error, code UsageErrorCode) bool {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

func usageErr(code UsageErrorCode, op, msg string, err error) *UsageError {
	return &UsageError{Code: code, Op: op, Message: msg, Err: err}
}
