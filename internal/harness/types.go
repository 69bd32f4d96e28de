package harness

import (
	"github.com/roach88/probelog/internal/engine"
	"github.com/roach88/probelog/internal/event"
)

// TraceEvent is a readable rendering of one decoded trace record.
type TraceEvent struct {
	Index  uint64   `json:"index"`
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains the decoded records in file order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Bytes is the raw trace written by the engine.
	Bytes []byte `json:"-"`

	// Stall is the ordering stall reported at shutdown, if any.
	Stall *engine.OrderingStallError `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Indices returns the index of every traced record, in order.
func (r *Result) Indices() []uint64 {
	out := make([]uint64, len(r.Trace))
	for i, te := range r.Trace {
		out[i] = te.Index
	}
	return out
}

// addTrace appends a decoded event to the trace.
func (r *Result) addTrace(e event.Event) {
	te := TraceEvent{Index: e.Index(), Kind: e.Kind().String()}

	var values []event.Value
	switch ev := e.(type) {
	case *event.MethodCall:
		te.Name = ev.Location
		values = ev.Arguments
	case *event.VariableStore:
		te.Name = ev.ClassName + "." + ev.VariableName
		values = []event.Value{ev.Value}
	case *event.ArrayStore:
		te.Name = ev.ClassName
		values = []event.Value{ev.Value}
	}
	for _, v := range values {
		typ, text := event.Describe(v)
		te.Values = append(te.Values, typ+" "+text)
	}

	r.Trace = append(r.Trace, te)
}
