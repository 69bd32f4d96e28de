package codec

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probelog/internal/event"
)

func mustEncode(t *testing.T, events ...event.Event) []byte {
	t.Helper()
	var buf []byte
	for _, e := range events {
		var err error
		buf, err = AppendEvent(buf, e)
		require.NoError(t, err)
	}
	return buf
}

func boundaryEvents(t *testing.T) []event.Event {
	t.Helper()

	manyArgs := make([]event.Value, event.MaxArguments)
	for i := range manyArgs {
		manyArgs[i] = event.Int(int32(i))
	}

	noArgs, err := event.NewMethodCall(0, "Main.main()V", true)
	require.NoError(t, err)
	full, err := event.NewMethodCall(1, "Main.wide(...)V", false, manyArgs...)
	require.NoError(t, err)
	emptyNames, err := event.NewVariableStore(2, "", 0, "", event.String(""))
	require.NoError(t, err)
	maxIndex, err := event.NewArrayStore(math.MaxUint64, "Arr", math.MaxInt32, math.MaxUint32, math.MinInt32, event.Object("Arr", 0))
	require.NoError(t, err)

	events := []event.Event{noArgs, full, emptyNames, maxIndex}

	extremes := []event.Value{
		event.Bool(true), event.Bool(false),
		event.Byte(math.MinInt8), event.Byte(math.MaxInt8),
		event.Char(0), event.Char(math.MaxUint16),
		event.Short(math.MinInt16), event.Short(math.MaxInt16),
		event.Int(math.MinInt32), event.Int(math.MaxInt32),
		event.Float(float32(math.Inf(-1))), event.Float(math.MaxFloat32), event.Float(float32(math.NaN())),
		event.Long(math.MinInt64), event.Long(math.MaxInt64),
		event.Double(math.Copysign(0, -1)), event.Double(math.SmallestNonzeroFloat64), event.Double(math.NaN()),
		event.String("naïve ☃ \x00 inside"),
		event.Object("java.lang.Object", math.MaxUint32),
	}
	for i, v := range extremes {
		ev, err := event.NewVariableStore(uint64(10+i), "Ex", int32(i), "v", v)
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestDecode_RoundTripBoundaries(t *testing.T) {
	events := boundaryEvents(t)
	for _, ev := range events {
		enc := mustEncode(t, ev)
		got, n, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n, "consumed bytes for index %d", ev.Index())
		assert.True(t, event.Equal(ev, got), "round trip mismatch for index %d", ev.Index())
	}
}

func TestDecodeAll_Stream(t *testing.T) {
	events := boundaryEvents(t)
	stream := mustEncode(t, events...)

	got, err := DecodeAll(stream)
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i := range events {
		assert.True(t, event.Equal(events[i], got[i]), "event %d", i)
	}
}

func TestDecode_EmptyIsEOF(t *testing.T) {
	_, n, err := Decode(nil)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)

	got, err := DecodeAll(nil)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecoder_EOFAfterLastRecord(t *testing.T) {
	ev, err := event.NewVariableStore(0, "A", 1, "a", event.Int(1))
	require.NoError(t, err)
	enc := mustEncode(t, ev)

	d := NewDecoder(bytes.NewReader(enc))
	_, err = d.Decode()
	require.NoError(t, err)
	assert.Equal(t, int64(len(enc)), d.Offset())

	_, err = d.Decode()
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, IsFormatError(err))
}

func TestDecode_TruncatedAtEveryOffset(t *testing.T) {
	events := boundaryEvents(t)[:4]
	var stream []byte
	boundaries := []int{0}
	for _, ev := range events {
		stream = append(stream, mustEncode(t, ev)...)
		boundaries = append(boundaries, len(stream))
	}
	isBoundary := make(map[int]bool)
	for _, b := range boundaries {
		isBoundary[b] = true
	}

	for cut := 0; cut <= len(stream); cut++ {
		got, err := DecodeAll(stream[:cut])
		if isBoundary[cut] {
			require.NoError(t, err, "cut=%d", cut)
			continue
		}
		require.Error(t, err, "cut=%d", cut)
		require.True(t, IsTruncated(err), "cut=%d: %v", cut, err)

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, int64(boundaries[len(got)]), fe.Offset, "cut=%d", cut)
		assert.Equal(t, cut-boundaries[len(got)] >= 8, fe.HasIndex, "cut=%d", cut)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	}
}

func TestDecode_UnknownEventKind(t *testing.T) {
	good, err := event.NewVariableStore(0, "A", 1, "a", event.Int(1))
	require.NoError(t, err)
	stream := mustEncode(t, good)
	badStart := len(stream)
	stream = append(stream, 0x05, 0, 0, 0, 0, 0, 0, 0, 0x04, 'x', 0)

	got, err := DecodeAll(stream)
	require.Len(t, got, 1)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeUnknownEventKind, fe.Code)
	assert.Equal(t, int64(badStart), fe.Offset)
	assert.True(t, fe.HasIndex)
	assert.Equal(t, uint64(5), fe.Index)
	assert.Contains(t, fe.Error(), "0x04")
}

func TestDecode_UnknownValueKind(t *testing.T) {
	stream := []byte{
		0x03, 0, 0, 0, 0, 0, 0, 0,
		0x01,
		'A', 0,
		0x01, 0, 0, 0,
		'v', 0,
		'X', 0x00,
	}

	_, _, err := Decode(stream)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeUnknownValueKind, fe.Code)
	assert.Equal(t, uint64(3), fe.Index)
	assert.False(t, IsTruncated(err))
}

func TestDecode_ZeroKindIsUnknown(t *testing.T) {
	_, _, err := Decode([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0x00})
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeUnknownEventKind, fe.Code)
}

func TestDecode_HugeStringLengthIsTruncated(t *testing.T) {
	stream := []byte{
		0x00, 0, 0, 0, 0, 0, 0, 0,
		0x01,
		'A', 0,
		0x01, 0, 0, 0,
		'v', 0,
		'L',
	}
	stream = append(stream, "java.lang.String\x00"...)
	stream = append(stream, 0xFF, 0xFF, 0xFF, 0xFF, 'a', 'b')

	_, _, err := Decode(stream)
	assert.True(t, IsTruncated(err), "%v", err)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestDecoder_ReadErrorPassesThrough(t *testing.T) {
	ev, err := event.NewVariableStore(0, "A", 1, "a", event.Int(1))
	require.NoError(t, err)
	enc := mustEncode(t, ev)

	boom := errors.New("disk on fire")
	d := NewDecoder(&failingReader{data: enc[:5], err: boom})

	_, err = d.Decode()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsFormatError(err))
}

func TestFormatError_Message(t *testing.T) {
	err := &FormatError{Code: ErrCodeTruncated, Offset: 12, Index: 3, HasIndex: true, Message: "reading int", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "TRUNCATED: reading int (offset=12, index=3): unexpected EOF", err.Error())

	noIndex := &FormatError{Code: ErrCodeTruncated, Offset: 0, Message: "reading index"}
	assert.Equal(t, "TRUNCATED: reading index (offset=0)", noIndex.Error())
}

func TestReadEvent_LeavesReaderAtBoundary(t *testing.T) {
	a, err := event.NewVariableStore(0, "A", 1, "a", event.Int(1))
	require.NoError(t, err)
	b, err := event.NewMethodCall(1, "B.b()V", false)
	require.NoError(t, err)

	r := bytes.NewReader(mustEncode(t, a, b))

	got, err := ReadEvent(r)
	require.NoError(t, err)
	assert.True(t, event.Equal(a, got))

	got, err = ReadEvent(r)
	require.NoError(t, err)
	assert.True(t, event.Equal(b, got))

	_, err = ReadEvent(r)
	assert.ErrorIs(t, err, io.EOF)
}
