package event

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrTooManyArguments is returned when a call would exceed MaxArguments.
	ErrTooManyArguments = errors.New("argument count exceeds 255")

	// ErrInvalidText is returned for a text field that contains a NUL byte.
	ErrInvalidText = errors.New("text contains NUL byte")

	// ErrInvalidValue is returned for a nil value or a reference whose payload
	// does not match its class.
	ErrInvalidValue = errors.New("invalid value")
)

// ValidateText checks that s can be written as a NUL-terminated string.
func ValidateText(field, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%s %q: %w", field, s, ErrInvalidText)
	}
	return nil
}

// ValidateValue checks that v is encodable.
func ValidateValue(v Value) error {
	if v == nil {
		return fmt.Errorf("nil value: %w", ErrInvalidValue)
	}
	ref, ok := v.(Reference)
	if !ok {
		return nil
	}

	if err := ValidateText("reference class", ref.ClassName); err != nil {
		return err
	}
	switch p := ref.Payload.(type) {
	case Utf8Content:
		if !ref.IsString() {
			return fmt.Errorf("class %q carries string content: %w", ref.ClassName, ErrInvalidValue)
		}
		if uint64(len(p)) > math.MaxUint32 {
			return fmt.Errorf("string content of %d bytes: %w", len(p), ErrInvalidValue)
		}
	case IdentityTag:
		if ref.IsString() {
			return fmt.Errorf("string reference carries identity tag: %w", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("reference to %q has no payload: %w", ref.ClassName, ErrInvalidValue)
	}
	return nil
}

// Validate checks every field of e. Events built with the New* constructors
// are already valid; Validate exists for events assembled by hand.
func Validate(e Event) error {
	switch ev := e.(type) {
	case *MethodCall:
		if ev == nil {
			break
		}
		if err := ValidateText("location", ev.Location); err != nil {
			return err
		}
		if len(ev.Arguments) > MaxArguments {
			return fmt.Errorf("%d arguments: %w", len(ev.Arguments), ErrTooManyArguments)
		}
		for i, arg := range ev.Arguments {
			if err := ValidateValue(arg); err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
		}
		return nil

	case *VariableStore:
		if ev == nil {
			break
		}
		if err := ValidateText("class name", ev.ClassName); err != nil {
			return err
		}
		if err := ValidateText("variable name", ev.VariableName); err != nil {
			return err
		}
		if err := ValidateValue(ev.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return nil

	case *ArrayStore:
		if ev == nil {
			break
		}
		if err := ValidateText("class name", ev.ClassName); err != nil {
			return err
		}
		if err := ValidateValue(ev.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return nil
	}
	return fmt.Errorf("nil or unknown event %T: %w", e, ErrInvalidValue)
}
