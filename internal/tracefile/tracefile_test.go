package tracefile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probelog/internal/codec"
	"github.com/roach88/probelog/internal/event"
)

func encodeIndices(t *testing.T, indices ...uint64) []byte {
	t.Helper()
	var buf []byte
	for _, idx := range indices {
		ev, err := event.NewVariableStore(idx, "T", int32(idx), "v", event.Long(int64(idx)))
		require.NoError(t, err)
		buf, err = codec.AppendEvent(buf, ev)
		require.NoError(t, err)
	}
	return buf
}

func TestFileName(t *testing.T) {
	start := time.UnixMilli(1700000000123)
	assert.Equal(t, "trace_1700000000123.trace", FileName(start))

	got, err := ParseFileName("/tmp/x/" + FileName(start))
	require.NoError(t, err)
	assert.True(t, start.Equal(got))

	_, err = ParseFileName("trace_abc.trace")
	assert.Error(t, err)
	_, err = ParseFileName("other.txt")
	assert.Error(t, err)
}

func TestCreate_MakesDirAndRefusesClobber(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "traces")
	start := time.UnixMilli(42)

	f, path, err := Create(dir, start)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trace_42.trace"), path)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, _, err = Create(dir, start)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestCreate_EmptyDir(t *testing.T) {
	_, _, err := Create("", time.Now())
	assert.Error(t, err)
}

func TestList_SortsByStartTime(t *testing.T) {
	dir := t.TempDir()
	for _, ms := range []int64{900, 10000, 50} {
		f, _, err := Create(dir, time.UnixMilli(ms))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	paths, err := List(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, "trace_50.trace", filepath.Base(paths[0]))
	assert.Equal(t, "trace_900.trace", filepath.Base(paths[1]))
	assert.Equal(t, "trace_10000.trace", filepath.Base(paths[2]))
}

func TestReader_NextAndStickyEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(encodeIndices(t, 0, 1)))

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), e.Index())
	e, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Index())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, r.Count())
}

func TestReader_AllStopsAtTruncation(t *testing.T) {
	data := encodeIndices(t, 0, 1, 2)
	r := NewReader(bytes.NewReader(data[:len(data)-2]))

	var indices []uint64
	var gotErr error
	for e, err := range r.All() {
		if err != nil {
			gotErr = err
			break
		}
		indices = append(indices, e.Index())
	}

	assert.Equal(t, []uint64{0, 1}, indices)
	assert.True(t, codec.IsTruncated(gotErr))

	// non-restartable
	_, err := r.Next()
	assert.True(t, codec.IsTruncated(err))
}

func TestReader_AllEarlyBreak(t *testing.T) {
	r := NewReader(bytes.NewReader(encodeIndices(t, 0, 1, 2)))
	for range r.All() {
		break
	}
	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Index())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	f, path, err := Create(dir, time.UnixMilli(1))
	require.NoError(t, err)
	data := encodeIndices(t, 0, 1, 2, 3)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for _, err := range r.All() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(len(data)), r.Offset())
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.trace"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		indices    []uint64
		ok         bool
		gaps       []Gap
		outOfOrder []uint64
	}{
		{name: "empty", indices: nil, ok: true},
		{name: "contiguous", indices: []uint64{0, 1, 2, 3}, ok: true},
		{name: "missing middle", indices: []uint64{0, 1, 4}, gaps: []Gap{{2, 3}}},
		{name: "missing start", indices: []uint64{2, 3}, gaps: []Gap{{0, 1}}},
		{name: "duplicate", indices: []uint64{0, 1, 1, 2}, outOfOrder: []uint64{1}},
		{name: "swapped", indices: []uint64{1, 0, 2}, gaps: []Gap{{0, 0}}, outOfOrder: []uint64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := Verify(NewReader(bytes.NewReader(encodeIndices(t, tt.indices...))))
			require.NoError(t, err)
			assert.Equal(t, tt.ok, sum.OK())
			assert.Equal(t, len(tt.indices), sum.Records)
			assert.Equal(t, tt.gaps, sum.Gaps)
			assert.Equal(t, tt.outOfOrder, sum.OutOfOrder)
		})
	}
}

func TestVerify_Summary(t *testing.T) {
	var buf []byte
	store, _ := event.NewVariableStore(0, "A", 1, "a", event.Int(1))
	call, _ := event.NewMethodCall(1, "A.f()V", true)
	arr, _ := event.NewArrayStore(2, "A", 2, 1, 0, event.Int(2))
	for _, e := range []event.Event{store, call, arr} {
		var err error
		buf, err = codec.AppendEvent(buf, e)
		require.NoError(t, err)
	}

	sum, err := Verify(NewReader(bytes.NewReader(buf)))
	require.NoError(t, err)
	assert.True(t, sum.OK())
	assert.Equal(t, map[string]int{"store": 1, "call": 1, "array_store": 1}, sum.ByKind)
	assert.Equal(t, uint64(0), sum.FirstIndex)
	assert.Equal(t, uint64(2), sum.LastIndex)
	assert.Equal(t, int64(len(buf)), sum.Bytes)
}

func TestVerify_DecodeError(t *testing.T) {
	data := append(encodeIndices(t, 0), 0x01, 0x02)
	sum, err := Verify(NewReader(bytes.NewReader(data)))
	require.Error(t, err)
	assert.True(t, codec.IsTruncated(err))
	assert.Equal(t, 1, sum.Records)
}
