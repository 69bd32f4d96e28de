package store

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/probelog/internal/event"
)

// valueRecord is the stored form of one value. Primitives keep their raw bits
// so that a value read back is bit-identical to the one written.
type valueRecord struct {
	Tag     string  `json:"tag"`
	Bits    uint64  `json:"bits,omitempty"`
	Class   string  `json:"class,omitempty"`
	Text    *string `json:"text,omitempty"`
	Ident   *uint32 `json:"ident,omitempty"`
	Display string  `json:"display"`
}

type payloadRecord struct {
	Values []valueRecord `json:"values"`
}

// marshalValues converts event values to JSON TEXT for storage.
func marshalValues(values []event.Value) (string, error) {
	rec := payloadRecord{Values: make([]valueRecord, 0, len(values))}
	for i, v := range values {
		vr, err := toRecord(v)
		if err != nil {
			return "", fmt.Errorf("marshal value %d: %w", i, err)
		}
		rec.Values = append(rec.Values, vr)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses JSON TEXT back to event values.
func unmarshalValues(data string) ([]event.Value, error) {
	var rec payloadRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	if len(rec.Values) == 0 {
		return nil, nil
	}
	values := make([]event.Value, 0, len(rec.Values))
	for i, vr := range rec.Values {
		v, err := fromRecord(vr)
		if err != nil {
			return nil, fmt.Errorf("unmarshal value %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func toRecord(v event.Value) (valueRecord, error) {
	if err := event.ValidateValue(v); err != nil {
		return valueRecord{}, err
	}
	_, display := event.Describe(v)
	rec := valueRecord{Tag: string(rune(v.Kind())), Display: display}

	switch val := v.(type) {
	case event.Bool:
		if val {
			rec.Bits = 1
		}
	case event.Byte:
		rec.Bits = uint64(uint8(val))
	case event.Char:
		rec.Bits = uint64(val)
	case event.Short:
		rec.Bits = uint64(uint16(val))
	case event.Int:
		rec.Bits = uint64(uint32(val))
	case event.Float:
		rec.Bits = uint64(math.Float32bits(float32(val)))
	case event.Long:
		rec.Bits = uint64(val)
	case event.Double:
		rec.Bits = math.Float64bits(float64(val))
	case event.Reference:
		rec.Class = val.ClassName
		switch p := val.Payload.(type) {
		case event.Utf8Content:
			s := string(p)
			rec.Text = &s
		case event.IdentityTag:
			tag := uint32(p)
			rec.Ident = &tag
		}
	}
	return rec, nil
}

func fromRecord(rec valueRecord) (event.Value, error) {
	if len(rec.Tag) != 1 {
		return nil, fmt.Errorf("bad value tag %q", rec.Tag)
	}

	switch event.Kind(rec.Tag[0]) {
	case event.KindBool:
		return event.Bool(rec.Bits != 0), nil
	case event.KindByte:
		return event.Byte(int8(uint8(rec.Bits))), nil
	case event.KindChar:
		return event.Char(uint16(rec.Bits)), nil
	case event.KindShort:
		return event.Short(int16(uint16(rec.Bits))), nil
	case event.KindInt:
		return event.Int(int32(uint32(rec.Bits))), nil
	case event.KindFloat:
		return event.Float(math.Float32frombits(uint32(rec.Bits))), nil
	case event.KindLong:
		return event.Long(int64(rec.Bits)), nil
	case event.KindDouble:
		return event.Double(math.Float64frombits(rec.Bits)), nil
	case event.KindReference:
		switch {
		case rec.Text != nil:
			return event.Reference{ClassName: rec.Class, Payload: event.Utf8Content(*rec.Text)}, nil
		case rec.Ident != nil:
			return event.Reference{ClassName: rec.Class, Payload: event.IdentityTag(*rec.Ident)}, nil
		default:
			return nil, fmt.Errorf("reference to %q has no payload", rec.Class)
		}
	default:
		return nil, fmt.Errorf("bad value tag %q", rec.Tag)
	}
}

// nameKey folds s for case-insensitive search. Names are NFC-normalised first
// so composed and decomposed spellings match.
func nameKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
