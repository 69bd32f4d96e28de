package event

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the one-byte tag written before every value.
// The tags match JVM field descriptors.
type Kind byte

const (
	KindBool      Kind = 'Z'
	KindByte      Kind = 'B'
	KindChar      Kind = 'C'
	KindShort     Kind = 'S'
	KindInt       Kind = 'I'
	KindFloat     Kind = 'F'
	KindLong      Kind = 'J'
	KindDouble    Kind = 'D'
	KindReference Kind = 'L'
)

// Valid reports whether k is one of the nine known value tags.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindByte, KindChar, KindShort, KindInt,
		KindFloat, KindLong, KindDouble, KindReference:
		return true
	}
	return false
}

// Width returns the encoded size of a primitive of this kind in bytes.
// References are variable-length and report 0.
func (k Kind) Width() int {
	switch k {
	case KindBool, KindByte:
		return 1
	case KindChar, KindShort:
		return 2
	case KindInt, KindFloat:
		return 4
	case KindLong, KindDouble:
		return 8
	default:
		return 0
	}
}

// String returns the source-language type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindReference:
		return "Object"
	default:
		return fmt.Sprintf("Kind(%#x)", byte(k))
	}
}

// Value is a sealed interface over the nine recordable value kinds.
// Only the types declared in this file implement it.
type Value interface {
	Kind() Kind
	value() // sealed
}

// Bool is a boolean value.
type Bool bool

// Byte is a signed 8-bit value.
type Byte int8

// Char is a UTF-16 code unit.
type Char uint16

// Short is a signed 16-bit value.
type Short int16

// Int is a signed 32-bit value.
type Int int32

// Float is a 32-bit IEEE 754 value. It is encoded by bit pattern, so NaN
// payloads survive a round trip.
type Float float32

// Long is a signed 64-bit value.
type Long int64

// Double is a 64-bit IEEE 754 value, encoded by bit pattern.
type Double float64

func (Bool) Kind() Kind   { return KindBool }
func (Byte) Kind() Kind   { return KindByte }
func (Char) Kind() Kind   { return KindChar }
func (Short) Kind() Kind  { return KindShort }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Long) Kind() Kind   { return KindLong }
func (Double) Kind() Kind { return KindDouble }

func (Bool) value()   {}
func (Byte) value()   {}
func (Char) value()   {}
func (Short) value()  {}
func (Int) value()    {}
func (Float) value()  {}
func (Long) value()   {}
func (Double) value() {}

// StringClass is the class name whose references carry their text content
// instead of an identity tag.
const StringClass = "java.lang.String"

// Payload is the sealed body of a Reference: Utf8Content for StringClass,
// IdentityTag for everything else.
type Payload interface {
	payload() // sealed
}

// Utf8Content is the raw text of a string reference. It is length-prefixed on
// the wire, so unlike text fields it may contain NUL.
type Utf8Content string

// IdentityTag is an opaque discriminator for a non-string reference.
// It is only meaningful within one run and is not unique; it must never be
// treated as a durable identifier.
type IdentityTag uint32

func (Utf8Content) payload() {}
func (IdentityTag) payload() {}

// Reference is a reference-typed value.
type Reference struct {
	ClassName string
	Payload   Payload
}

func (Reference) Kind() Kind { return KindReference }
func (Reference) value()     {}

// IsString reports whether the reference points at a string.
func (r Reference) IsString() bool {
	return r.ClassName == StringClass
}

// String creates a string reference carrying s.
func String(s string) Reference {
	return Reference{ClassName: StringClass, Payload: Utf8Content(s)}
}

// Object creates a reference to an instance of className identified by tag.
func Object(className string, tag IdentityTag) Reference {
	return Reference{ClassName: className, Payload: tag}
}

// ValueEqual reports whether a and b hold the same kind and the same bits.
// Floats compare by bit pattern so NaN equals an identical NaN.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Float:
		return math.Float32bits(float32(av)) == math.Float32bits(float32(b.(Float)))
	case Double:
		return math.Float64bits(float64(av)) == math.Float64bits(float64(b.(Double)))
	default:
		return a == b
	}
}

// Describe returns a display type name and a display rendering for v.
// References to strings render quoted; other references render as
// ClassName@tag like the JVM's default toString.
func Describe(v Value) (typeName, text string) {
	switch val := v.(type) {
	case Bool:
		return val.Kind().String(), strconv.FormatBool(bool(val))
	case Byte:
		return val.Kind().String(), strconv.FormatInt(int64(val), 10)
	case Char:
		return val.Kind().String(), strconv.QuoteRune(rune(val))
	case Short:
		return val.Kind().String(), strconv.FormatInt(int64(val), 10)
	case Int:
		return val.Kind().String(), strconv.FormatInt(int64(val), 10)
	case Float:
		return val.Kind().String(), strconv.FormatFloat(float64(val), 'g', -1, 32)
	case Long:
		return val.Kind().String(), strconv.FormatInt(int64(val), 10)
	case Double:
		return val.Kind().String(), strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Reference:
		switch p := val.Payload.(type) {
		case Utf8Content:
			return val.ClassName, strconv.Quote(string(p))
		case IdentityTag:
			return val.ClassName, fmt.Sprintf("%s@%x", val.ClassName, uint32(p))
		}
		return val.ClassName, "<invalid>"
	default:
		return "unknown", fmt.Sprintf("%v", v)
	}
}
