package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/roach88/probelog/internal/event"
)

// Decoder reads events one record at a time from a byte stream.
//
// A Decoder keeps no state between records other than its read offset, so it
// can be handed any stream positioned at a record boundary.
type Decoder struct {
	r   io.ByteReader
	src io.Reader
	off int64

	// per-record state for error reporting
	recStart int64
	index    uint64
	hasIndex bool

	scratch [8]byte
}

// ByteReader is the input a Decoder reads from directly.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// NewDecoder returns a Decoder reading from r. Readers that do not implement
// io.ByteReader are wrapped in a bufio.Reader.
func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br, src: br}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.off
}

// Decode reads the next record.
//
// It returns io.EOF only when the stream ends exactly at a record boundary.
// A stream that ends inside a record yields a FormatError with code
// ErrCodeTruncated. Any other read failure is returned wrapped.
func (d *Decoder) Decode() (event.Event, error) {
	d.recStart = d.off
	d.hasIndex = false

	first, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, d.ioErr("reading index", err)
	}
	d.off++

	d.scratch[0] = first
	if err := d.readFull(d.scratch[1:8], "reading index"); err != nil {
		return nil, err
	}
	d.index = binary.LittleEndian.Uint64(d.scratch[:8])
	d.hasIndex = true

	kind, err := d.readByte("reading event kind")
	if err != nil {
		return nil, err
	}

	switch event.EventKind(kind) {
	case event.KindMethodCall:
		return d.decodeMethodCall()
	case event.KindVariableStore:
		return d.decodeVariableStore()
	case event.KindArrayStore:
		return d.decodeArrayStore()
	default:
		return nil, d.formatErr(ErrCodeUnknownEventKind, fmt.Sprintf("unknown event kind 0x%02x", kind), nil)
	}
}

func (d *Decoder) decodeMethodCall() (event.Event, error) {
	location, err := d.readString("reading call location")
	if err != nil {
		return nil, err
	}
	static, err := d.readByte("reading static flag")
	if err != nil {
		return nil, err
	}
	argc, err := d.readByte("reading argument count")
	if err != nil {
		return nil, err
	}

	call := &event.MethodCall{
		Seq:      d.index,
		Location: location,
		IsStatic: static != 0,
	}
	if argc > 0 {
		call.Arguments = make([]event.Value, 0, argc)
	}
	for i := 0; i < int(argc); i++ {
		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, v)
	}
	return call, nil
}

func (d *Decoder) decodeVariableStore() (event.Event, error) {
	className, err := d.readString("reading class name")
	if err != nil {
		return nil, err
	}
	line, err := d.readUint32("reading line number")
	if err != nil {
		return nil, err
	}
	name, err := d.readString("reading variable name")
	if err != nil {
		return nil, err
	}
	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	return &event.VariableStore{
		Seq:          d.index,
		ClassName:    className,
		LineNumber:   int32(line),
		VariableName: name,
		Value:        v,
	}, nil
}

func (d *Decoder) decodeArrayStore() (event.Event, error) {
	className, err := d.readString("reading class name")
	if err != nil {
		return nil, err
	}
	line, err := d.readUint32("reading line number")
	if err != nil {
		return nil, err
	}
	identity, err := d.readUint32("reading array identity")
	if err != nil {
		return nil, err
	}
	idx, err := d.readUint32("reading array index")
	if err != nil {
		return nil, err
	}
	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	return &event.ArrayStore{
		Seq:           d.index,
		ClassName:     className,
		LineNumber:    int32(line),
		ArrayIdentity: event.IdentityTag(identity),
		ArrayIndex:    int32(idx),
		Value:         v,
	}, nil
}

func (d *Decoder) readValue() (event.Value, error) {
	tag, err := d.readByte("reading value tag")
	if err != nil {
		return nil, err
	}

	switch event.Kind(tag) {
	case event.KindBool:
		b, err := d.readByte("reading boolean")
		return event.Bool(b != 0), err
	case event.KindByte:
		b, err := d.readByte("reading byte")
		return event.Byte(int8(b)), err
	case event.KindChar:
		u, err := d.readUint16("reading char")
		return event.Char(u), err
	case event.KindShort:
		u, err := d.readUint16("reading short")
		return event.Short(int16(u)), err
	case event.KindInt:
		u, err := d.readUint32("reading int")
		return event.Int(int32(u)), err
	case event.KindFloat:
		u, err := d.readUint32("reading float")
		return event.Float(math.Float32frombits(u)), err
	case event.KindLong:
		u, err := d.readUint64("reading long")
		return event.Long(int64(u)), err
	case event.KindDouble:
		u, err := d.readUint64("reading double")
		return event.Double(math.Float64frombits(u)), err
	case event.KindReference:
		return d.readReference()
	default:
		return nil, d.formatErr(ErrCodeUnknownValueKind, fmt.Sprintf("unknown value tag 0x%02x", tag), nil)
	}
}

func (d *Decoder) readReference() (event.Value, error) {
	className, err := d.readString("reading reference class")
	if err != nil {
		return nil, err
	}

	if className != event.StringClass {
		tag, err := d.readUint32("reading identity tag")
		if err != nil {
			return nil, err
		}
		return event.Reference{ClassName: className, Payload: event.IdentityTag(tag)}, nil
	}

	n, err := d.readUint32("reading string length")
	if err != nil {
		return nil, err
	}

	// A corrupt length must not force a large allocation before truncation
	// is detected.
	var sb strings.Builder
	copied, err := io.CopyN(&sb, d.src, int64(n))
	d.off += copied
	if err != nil {
		return nil, d.ioErr("reading string content", err)
	}
	return event.Reference{ClassName: className, Payload: event.Utf8Content(sb.String())}, nil
}

func (d *Decoder) readString(what string) (string, error) {
	var buf []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return "", d.ioErr(what, err)
		}
		d.off++
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func (d *Decoder) readByte(what string) (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, d.ioErr(what, err)
	}
	d.off++
	return b, nil
}

func (d *Decoder) readUint16(what string) (uint16, error) {
	if err := d.readFull(d.scratch[:2], what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.scratch[:2]), nil
}

func (d *Decoder) readUint32(what string) (uint32, error) {
	if err := d.readFull(d.scratch[:4], what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.scratch[:4]), nil
}

func (d *Decoder) readUint64(what string) (uint64, error) {
	if err := d.readFull(d.scratch[:8], what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.scratch[:8]), nil
}

func (d *Decoder) readFull(p []byte, what string) error {
	n, err := io.ReadFull(d.src, p)
	d.off += int64(n)
	if err != nil {
		return d.ioErr(what, err)
	}
	return nil
}

// ioErr maps end-of-stream inside a record to TRUNCATED and passes other
// read failures through as-is.
func (d *Decoder) ioErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return d.formatErr(ErrCodeTruncated, what, io.ErrUnexpectedEOF)
	}
	return &readError{offset: d.recStart, what: what, err: err}
}

func (d *Decoder) formatErr(code FormatErrorCode, msg string, err error) *FormatError {
	return &FormatError{
		Code:     code,
		Offset:   d.recStart,
		Index:    d.index,
		HasIndex: d.hasIndex,
		Message:  msg,
		Err:      err,
	}
}

type readError struct {
	offset int64
	what   string
	err    error
}

func (e *readError) Error() string {
	return fmt.Sprintf("codec: %s at record offset %d: %v", e.what, e.offset, e.err)
}

func (e *readError) Unwrap() error { return e.err }

// ReadEvent reads exactly one record from r. Unlike NewDecoder it never
// buffers, so r is left positioned at the next record boundary.
func ReadEvent(r ByteReader) (event.Event, error) {
	d := &Decoder{r: r, src: r}
	return d.Decode()
}

// Decode decodes the first record in b and returns it with the number of
// bytes consumed. An empty b yields io.EOF.
func Decode(b []byte) (event.Event, int, error) {
	d := NewDecoder(bytes.NewReader(b))
	e, err := d.Decode()
	return e, int(d.off), err
}

// DecodeAll decodes every record in b. It stops at the first error and
// returns the events decoded before it.
func DecodeAll(b []byte) ([]event.Event, error) {
	d := NewDecoder(bytes.NewReader(b))
	var events []event.Event
	for {
		e, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
