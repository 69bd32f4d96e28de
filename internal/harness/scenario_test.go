package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probelog/internal/event"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: valid
description: "A valid scenario"
first_index: 5
events:
  - index: 5
    kind: call
    location: A.main
    static: true
    args:
      - { type: string, value: "x" }
      - { type: object, class: A, ident: 3 }
  - index: 6
    kind: array_store
    class: A
    line: 9
    array: 2
    array_index: 1
    value: { type: char, value: "z" }
publish_order: [6, 5]
expect_order: [5, 6]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "valid", s.Name)
	assert.Equal(t, uint64(5), s.FirstIndex)
	require.Len(t, s.Events, 2)
	assert.Equal(t, []uint64{6, 5}, s.Publications())
	assert.Equal(t, []uint64{5, 6}, s.ExpectedOrder())

	e, err := s.Events[0].Build()
	require.NoError(t, err)
	call, ok := e.(*event.MethodCall)
	require.True(t, ok)
	assert.True(t, call.IsStatic)
	require.Len(t, call.Arguments, 2)
	assert.Equal(t, event.String("x"), call.Arguments[0])
	assert.Equal(t, event.Object("A", 3), call.Arguments[1])

	e, err = s.Events[1].Build()
	require.NoError(t, err)
	store, ok := e.(*event.ArrayStore)
	require.True(t, ok)
	assert.Equal(t, event.IdentityTag(2), store.ArrayIdentity)
	assert.Equal(t, int32(1), store.ArrayIndex)
	assert.Equal(t, event.Char('z'), store.Value)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", ``, "empty document"},
		{"malformed", `name: [unclosed`, "failed to parse YAML"},
		{"missing name", `
description: d
events: [{ index: 0, kind: call, location: A.b }]
`, "name is required"},
		{"missing description", `
name: n
events: [{ index: 0, kind: call, location: A.b }]
`, "description is required"},
		{"missing events", `
name: n
description: d
`, "events list is required"},
		{"unknown field", `
name: n
description: d
publish: [0]
events: [{ index: 0, kind: call, location: A.b }]
`, "field publish not found"},
		{"duplicate index", `
name: n
description: d
events:
  - { index: 0, kind: call, location: A.b }
  - { index: 0, kind: call, location: A.c }
`, "duplicate index 0"},
		{"unknown publish index", `
name: n
description: d
events: [{ index: 0, kind: call, location: A.b }]
publish_order: [0, 7]
`, "no event with index 7"},
		{"missing kind", `
name: n
description: d
events: [{ index: 0 }]
`, "kind is required"},
		{"store without value", `
name: n
description: d
events: [{ index: 0, kind: store, class: A, name: x }]
`, "value is required"},
		{"unknown value type", `
name: n
description: d
events: [{ index: 0, kind: store, class: A, name: x, value: { type: decimal, value: 1 } }]
`, "unknown value type"},
		{"byte out of range", `
name: n
description: d
events: [{ index: 0, kind: store, class: A, name: x, value: { type: byte, value: 200 } }]
`, "out of range"},
		{"object without class", `
name: n
description: d
events: [{ index: 0, kind: store, class: A, name: x, value: { type: object, ident: 1 } }]
`, "requires class"},
		{"multi-rune char", `
name: n
description: d
events: [{ index: 0, kind: store, class: A, name: x, value: { type: char, value: "ab" } }]
`, "one UTF-16 unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValueSpec_Build(t *testing.T) {
	tests := []struct {
		spec ValueSpec
		want event.Value
	}{
		{ValueSpec{Type: "bool", Value: false}, event.Bool(false)},
		{ValueSpec{Type: "byte", Value: -128}, event.Byte(-128)},
		{ValueSpec{Type: "char", Value: 955}, event.Char(955)},
		{ValueSpec{Type: "char", Value: "λ"}, event.Char('λ')},
		{ValueSpec{Type: "short", Value: -2}, event.Short(-2)},
		{ValueSpec{Type: "int", Value: 7}, event.Int(7)},
		{ValueSpec{Type: "long", Value: int64(9_000_000_000)}, event.Long(9_000_000_000)},
		{ValueSpec{Type: "float", Value: 2.5}, event.Float(2.5)},
		{ValueSpec{Type: "double", Value: 3}, event.Double(3)},
		{ValueSpec{Type: "string", Value: ""}, event.String("")},
		{ValueSpec{Type: "object", Class: "A", Ident: 1}, event.Object("A", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.spec.Type, func(t *testing.T) {
			got, err := tt.spec.Build()
			require.NoError(t, err)
			assert.True(t, event.ValueEqual(tt.want, got), "want %#v, got %#v", tt.want, got)
		})
	}
}

func TestScenario_ExpectedOrderDefaults(t *testing.T) {
	s := &Scenario{
		FirstIndex:   3,
		Events:       []EventSpec{{Index: 3}, {Index: 4}, {Index: 6}},
		PublishOrder: []uint64{6, 4, 3},
	}
	assert.Equal(t, []uint64{3, 4}, s.ExpectedOrder(), "stops at the first gap")

	s.PublishOrder = []uint64{4, 6}
	assert.Equal(t, []uint64{}, s.ExpectedOrder(), "nothing when the first index is missing")
}

func TestLoadScenarios_Sorted(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"duplicate_index",
		"first_index",
		"in_order",
		"interleaved",
		"missing_index",
		"reverse_order",
	}, names)
}
