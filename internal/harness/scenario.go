package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/probelog/internal/event"
)

// Scenario defines one ordering scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FirstIndex is the index the engine expects first.
	FirstIndex uint64 `yaml:"first_index,omitempty"`

	// Events are the records available for publishing, keyed by index.
	Events []EventSpec `yaml:"events"`

	// PublishOrder lists the indices to publish, in order.
	// If empty, events are published in the order they are listed.
	PublishOrder []uint64 `yaml:"publish_order,omitempty"`

	// ExpectOrder is the exact index sequence the trace must contain.
	// If empty, it defaults to the contiguous run of published indices
	// starting at FirstIndex.
	ExpectOrder []uint64 `yaml:"expect_order,omitempty"`

	// ExpectStall, if set, requires shutdown to report an ordering stall.
	ExpectStall *StallSpec `yaml:"expect_stall,omitempty"`
}

// EventSpec describes one event in YAML.
// Kind selects which of the remaining fields apply.
type EventSpec struct {
	Index uint64 `yaml:"index"`

	// Kind is one of "call", "store" or "array_store".
	Kind string `yaml:"kind"`

	// call
	Location string      `yaml:"location,omitempty"`
	Static   bool        `yaml:"static,omitempty"`
	Args     []ValueSpec `yaml:"args,omitempty"`

	// store and array_store
	Class string     `yaml:"class,omitempty"`
	Line  int32      `yaml:"line,omitempty"`
	Value *ValueSpec `yaml:"value,omitempty"`

	// store
	Name string `yaml:"name,omitempty"`

	// array_store
	Array      uint32 `yaml:"array,omitempty"`
	ArrayIndex int32  `yaml:"array_index,omitempty"`
}

// ValueSpec describes one value in YAML.
//
// Type is one of bool, byte, char, short, int, float, long, double, string
// or object. Objects use Class and Ident instead of Value.
type ValueSpec struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value,omitempty"`
	Class string `yaml:"class,omitempty"`
	Ident uint32 `yaml:"ident,omitempty"`
}

// StallSpec describes an expected ordering stall.
type StallSpec struct {
	// Index is the first index that was never written. Omit it when the
	// only problem is stale indices.
	Index uint64 `yaml:"index,omitempty"`

	// Pending is the number of events still parked at shutdown.
	Pending int `yaml:"pending,omitempty"`

	// Stale lists indices published more than once or below the write cursor.
	Stale []uint64 `yaml:"stale,omitempty"`
}

// Event kind names used in scenario files.
const (
	KindCall       = "call"
	KindStore      = "store"
	KindArrayStore = "array_store"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "publish:" vs "publish_order:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	seen := make(map[uint64]bool, len(s.Events))
	for i, spec := range s.Events {
		if seen[spec.Index] {
			return fmt.Errorf("events[%d]: duplicate index %d", i, spec.Index)
		}
		seen[spec.Index] = true

		if _, err := spec.Build(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	for i, idx := range s.PublishOrder {
		if !seen[idx] {
			return fmt.Errorf("publish_order[%d]: no event with index %d", i, idx)
		}
	}

	return nil
}

// Publications returns the indices to publish, in order.
func (s *Scenario) Publications() []uint64 {
	if len(s.PublishOrder) > 0 {
		return s.PublishOrder
	}
	order := make([]uint64, len(s.Events))
	for i, spec := range s.Events {
		order[i] = spec.Index
	}
	return order
}

// ExpectedOrder returns ExpectOrder, or the contiguous run of published
// indices starting at FirstIndex when ExpectOrder is empty.
func (s *Scenario) ExpectedOrder() []uint64 {
	if len(s.ExpectOrder) > 0 {
		return s.ExpectOrder
	}

	published := make(map[uint64]bool)
	for _, idx := range s.Publications() {
		published[idx] = true
	}

	order := []uint64{}
	for idx := s.FirstIndex; published[idx]; idx++ {
		order = append(order, idx)
		if idx == math.MaxUint64 {
			break
		}
	}
	return order
}

// Build converts the spec to an event.
func (spec EventSpec) Build() (event.Event, error) {
	switch spec.Kind {
	case KindCall:
		args := make([]event.Value, 0, len(spec.Args))
		for i, a := range spec.Args {
			v, err := a.Build()
			if err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			args = append(args, v)
		}
		return event.NewMethodCall(spec.Index, spec.Location, spec.Static, args...)

	case KindStore:
		v, err := spec.value()
		if err != nil {
			return nil, err
		}
		return event.NewVariableStore(spec.Index, spec.Class, spec.Line, spec.Name, v)

	case KindArrayStore:
		v, err := spec.value()
		if err != nil {
			return nil, err
		}
		return event.NewArrayStore(spec.Index, spec.Class, spec.Line, event.IdentityTag(spec.Array), spec.ArrayIndex, v)

	case "":
		return nil, fmt.Errorf("kind is required")
	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}

func (spec EventSpec) value() (event.Value, error) {
	if spec.Value == nil {
		return nil, fmt.Errorf("value is required for %s", spec.Kind)
	}
	v, err := spec.Value.Build()
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return v, nil
}

// Build converts the spec to a value.
func (vs ValueSpec) Build() (event.Value, error) {
	switch vs.Type {
	case "bool":
		b, ok := vs.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("bool value must be true or false, got %v", vs.Value)
		}
		return event.Bool(b), nil
	case "byte":
		n, err := integer(vs.Value, math.MinInt8, math.MaxInt8)
		return event.Byte(n), err
	case "char":
		if s, ok := vs.Value.(string); ok {
			r := []rune(s)
			if len(r) != 1 || r[0] > math.MaxUint16 {
				return nil, fmt.Errorf("char value %q must be one UTF-16 unit", s)
			}
			return event.Char(r[0]), nil
		}
		n, err := integer(vs.Value, 0, math.MaxUint16)
		return event.Char(n), err
	case "short":
		n, err := integer(vs.Value, math.MinInt16, math.MaxInt16)
		return event.Short(n), err
	case "int":
		n, err := integer(vs.Value, math.MinInt32, math.MaxInt32)
		return event.Int(n), err
	case "long":
		n, err := integer(vs.Value, math.MinInt64, math.MaxInt64)
		return event.Long(n), err
	case "float":
		f, err := float(vs.Value)
		return event.Float(f), err
	case "double":
		f, err := float(vs.Value)
		return event.Double(f), err
	case "string":
		s, ok := vs.Value.(string)
		if !ok {
			return nil, fmt.Errorf("string value must be a string, got %T", vs.Value)
		}
		return event.String(s), nil
	case "object":
		if vs.Class == "" {
			return nil, fmt.Errorf("object value requires class")
		}
		return event.Object(vs.Class, event.IdentityTag(vs.Ident)), nil
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unknown value type %q", vs.Type)
	}
}

func integer(v any, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
