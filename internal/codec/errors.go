package codec

import (
	"errors"
	"fmt"
)

// FormatErrorCode categorizes decode failures.
type FormatErrorCode string

const (
	// ErrCodeUnknownEventKind indicates a record kind byte other than 0x1-0x3.
	ErrCodeUnknownEventKind FormatErrorCode = "UNKNOWN_EVENT_KIND"

	// ErrCodeUnknownValueKind indicates a value tag outside Z,B,C,S,I,F,J,D,L.
	ErrCodeUnknownValueKind FormatErrorCode = "UNKNOWN_VALUE_KIND"

	// ErrCodeTruncated indicates the stream ended inside a record.
	ErrCodeTruncated FormatErrorCode = "TRUNCATED"
)

// FormatError reports a byte stream that is not a valid trace.
//
// Events decoded before the error remain valid; the stream simply cannot be
// continued, because records are not length-prefixed and the next record
// boundary is unknown.
type FormatError struct {
	// Code identifies the error category.
	Code FormatErrorCode

	// Offset is the stream offset of the start of the failing record.
	Offset int64

	// Index is the record's sequence index, valid when HasIndex is true.
	Index    uint64
	HasIndex bool

	// Message describes what was being read.
	Message string

	// Err is the underlying read error, if any.
	Err error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s (offset=%d", e.Code, e.Message, e.Offset)
	if e.HasIndex {
		msg += fmt.Sprintf(", index=%d", e.Index)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying read error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError returns true if err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsTruncated returns true if err reports a record cut off mid-way.
func IsTruncated(err error) bool {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeTruncated
	}
	return false
}
