package codec

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probelog/internal/event"
)

func TestEncode_VariableStoreBytes(t *testing.T) {
	ev, err := event.NewVariableStore(7, "Foo", 10, "x", event.Int(42))
	require.NoError(t, err)

	got, err := Encode(ev)
	require.NoError(t, err)

	want := []byte{
		0x07, 0, 0, 0, 0, 0, 0, 0, // index
		0x01,                // kind
		'F', 'o', 'o', 0x00, // class
		0x0A, 0, 0, 0, // line
		'x', 0x00, // variable
		'I', 0x2A, 0, 0, 0, // value
	}
	assert.Equal(t, want, got)
}

func TestEncode_MethodCallBytes(t *testing.T) {
	ev, err := event.NewMethodCall(1, "A.b()V", true, event.Bool(true), event.String("hi"))
	require.NoError(t, err)

	got, err := Encode(ev)
	require.NoError(t, err)

	want := []byte{
		0x01, 0, 0, 0, 0, 0, 0, 0,
		0x02,
		'A', '.', 'b', '(', ')', 'V', 0x00,
		0x01, // static
		0x02, // argc
		'Z', 0x01,
	}
	want = append(want, 'L')
	want = append(want, "java.lang.String"...)
	want = append(want, 0x00, 0x02, 0, 0, 0, 'h', 'i')
	assert.Equal(t, want, got)
}

func TestEncode_ArrayStoreBytes(t *testing.T) {
	ev, err := event.NewArrayStore(2, "C", -1, 0xDEADBEEF, 5, event.Object("C", 9))
	require.NoError(t, err)

	got, err := Encode(ev)
	require.NoError(t, err)

	want := []byte{
		0x02, 0, 0, 0, 0, 0, 0, 0,
		0x03,
		'C', 0x00,
		0xFF, 0xFF, 0xFF, 0xFF, // line -1
		0xEF, 0xBE, 0xAD, 0xDE, // array identity
		0x05, 0, 0, 0, // array index
		'L', 'C', 0x00, 0x09, 0, 0, 0,
	}
	assert.Equal(t, want, got)
}

func TestAppendValue_PrimitiveWidths(t *testing.T) {
	tests := []struct {
		name  string
		value event.Value
		want  []byte
	}{
		{"bool false", event.Bool(false), []byte{'Z', 0}},
		{"byte min", event.Byte(math.MinInt8), []byte{'B', 0x80}},
		{"char max", event.Char(math.MaxUint16), []byte{'C', 0xFF, 0xFF}},
		{"short min", event.Short(math.MinInt16), []byte{'S', 0x00, 0x80}},
		{"int max", event.Int(math.MaxInt32), []byte{'I', 0xFF, 0xFF, 0xFF, 0x7F}},
		{"float one", event.Float(1), []byte{'F', 0x00, 0x00, 0x80, 0x3F}},
		{"long min", event.Long(math.MinInt64), []byte{'J', 0, 0, 0, 0, 0, 0, 0, 0x80}},
		{"double one", event.Double(1), []byte{'D', 0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
		{"empty string", event.String(""), append(append([]byte{'L'}, "java.lang.String\x00"...), 0, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendValue(nil, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 1+widthOf(tt.value))
		})
	}
}

func widthOf(v event.Value) int {
	if w := v.Kind().Width(); w > 0 {
		return w
	}
	ref := v.(event.Reference)
	n := len(ref.ClassName) + 1 + 4
	if c, ok := ref.Payload.(event.Utf8Content); ok {
		n += len(c)
	}
	return n
}

func TestAppendEvent_InvalidLeavesBufferUnchanged(t *testing.T) {
	prefix := []byte{0xAA, 0xBB}
	bad := &event.VariableStore{Seq: 1, ClassName: "Fo\x00o", VariableName: "x", Value: event.Int(1)}

	got, err := AppendEvent(prefix, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrInvalidText)
	assert.Equal(t, []byte{0xAA, 0xBB}, got)
}

func TestAppendEvent_NilEvent(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}

func TestAppendEvent_Appends(t *testing.T) {
	a, err := event.NewVariableStore(0, "A", 1, "a", event.Byte(1))
	require.NoError(t, err)
	b, err := event.NewVariableStore(1, "B", 2, "b", event.Byte(2))
	require.NoError(t, err)

	var buf []byte
	buf, err = AppendEvent(buf, a)
	require.NoError(t, err)
	first := len(buf)
	buf, err = AppendEvent(buf, b)
	require.NoError(t, err)

	encA, _ := Encode(a)
	encB, _ := Encode(b)
	assert.Equal(t, encA, buf[:first])
	assert.Equal(t, encB, buf[first:])
}

func TestEncode_LargeStringContent(t *testing.T) {
	content := strings.Repeat("ab\x00", 10000)
	ev, err := event.NewVariableStore(3, "S", 1, "s", event.String(content))
	require.NoError(t, err)

	enc, err := Encode(ev)
	require.NoError(t, err)

	got, n, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, len(enc), n)
	assert.True(t, event.Equal(ev, got))
}
