package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/probelog/internal/event"
)

// AppendEvent appends the encoded record for e to dst and returns the
// extended slice. The event is validated first; on error dst is returned
// unchanged so a caller reusing a buffer never sees a partial record.
func AppendEvent(dst []byte, e event.Event) ([]byte, error) {
	if err := event.Validate(e); err != nil {
		return dst, fmt.Errorf("encode event: %w", err)
	}

	dst = binary.LittleEndian.AppendUint64(dst, e.Index())
	dst = append(dst, byte(e.Kind()))

	switch ev := e.(type) {
	case *event.MethodCall:
		dst = appendString(dst, ev.Location)
		dst = appendBool(dst, ev.IsStatic)
		dst = append(dst, byte(len(ev.Arguments)))
		for _, arg := range ev.Arguments {
			dst = appendValue(dst, arg)
		}

	case *event.VariableStore:
		dst = appendString(dst, ev.ClassName)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ev.LineNumber))
		dst = appendString(dst, ev.VariableName)
		dst = appendValue(dst, ev.Value)

	case *event.ArrayStore:
		dst = appendString(dst, ev.ClassName)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ev.LineNumber))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ev.ArrayIdentity))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(ev.ArrayIndex))
		dst = appendValue(dst, ev.Value)
	}

	return dst, nil
}

// Encode returns the encoded record for e in a fresh slice.
func Encode(e event.Event) ([]byte, error) {
	return AppendEvent(nil, e)
}

// AppendValue appends a tagged value to dst.
func AppendValue(dst []byte, v event.Value) ([]byte, error) {
	if err := event.ValidateValue(v); err != nil {
		return dst, fmt.Errorf("encode value: %w", err)
	}
	return appendValue(dst, v), nil
}

// appendValue writes [tag][bytes]. v must already be validated.
func appendValue(dst []byte, v event.Value) []byte {
	dst = append(dst, byte(v.Kind()))

	switch val := v.(type) {
	case event.Bool:
		dst = appendBool(dst, bool(val))
	case event.Byte:
		dst = append(dst, byte(val))
	case event.Char:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(val))
	case event.Short:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(val))
	case event.Int:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(val))
	case event.Float:
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(val)))
	case event.Long:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(val))
	case event.Double:
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(float64(val)))
	case event.Reference:
		dst = appendString(dst, val.ClassName)
		switch p := val.Payload.(type) {
		case event.Utf8Content:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(p)))
			dst = append(dst, p...)
		case event.IdentityTag:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(p))
		}
	}
	return dst
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, 1)
	}
	return append(dst, 0)
}
