package event

import "fmt"

// InitialIndex is the first sequence index assigned in a run.
const InitialIndex uint64 = 0

// MaxArguments is the largest argument count a method call can carry.
// The count is written as a single byte.
const MaxArguments = 255

// EventKind is the one-byte record discriminator written after the index.
type EventKind byte

const (
	KindVariableStore EventKind = 0x1
	KindMethodCall    EventKind = 0x2
	KindArrayStore    EventKind = 0x3
)

// Valid reports whether k is a known record kind.
func (k EventKind) Valid() bool {
	return k == KindVariableStore || k == KindMethodCall || k == KindArrayStore
}

// String returns a short lowercase name for the record kind.
func (k EventKind) String() string {
	switch k {
	case KindVariableStore:
		return "store"
	case KindMethodCall:
		return "call"
	case KindArrayStore:
		return "array_store"
	default:
		return fmt.Sprintf("EventKind(%#x)", byte(k))
	}
}

// Event is a sealed interface over the three record kinds.
// Implemented by *MethodCall, *VariableStore and *ArrayStore.
type Event interface {
	// Index returns the event's sequence index.
	Index() uint64
	Kind() EventKind
	event() // sealed
}

// MethodCall records a method invocation and its arguments.
// For instance calls the receiver is the first argument, as a Reference.
type MethodCall struct {
	Seq       uint64
	Location  string
	IsStatic  bool
	Arguments []Value
}

// VariableStore records an assignment to a local variable or field.
type VariableStore struct {
	Seq          uint64
	ClassName    string
	LineNumber   int32
	VariableName string
	Value        Value
}

// ArrayStore records an assignment to an array element.
type ArrayStore struct {
	Seq           uint64
	ClassName     string
	LineNumber    int32
	ArrayIdentity IdentityTag
	ArrayIndex    int32
	Value         Value
}

func (m *MethodCall) Index() uint64    { return m.Seq }
func (s *VariableStore) Index() uint64 { return s.Seq }
func (a *ArrayStore) Index() uint64    { return a.Seq }

func (*MethodCall) Kind() EventKind    { return KindMethodCall }
func (*VariableStore) Kind() EventKind { return KindVariableStore }
func (*ArrayStore) Kind() EventKind    { return KindArrayStore }

func (*MethodCall) event()    {}
func (*VariableStore) event() {}
func (*ArrayStore) event()    {}

// NewMethodCall creates a validated method call event.
// Fails if location contains NUL, any argument is invalid, or there are more
// than MaxArguments arguments.
func NewMethodCall(seq uint64, location string, isStatic bool, args ...Value) (*MethodCall, error) {
	if err := ValidateText("location", location); err != nil {
		return nil, err
	}
	if len(args) > MaxArguments {
		return nil, fmt.Errorf("%d arguments: %w", len(args), ErrTooManyArguments)
	}
	for i, arg := range args {
		if err := ValidateValue(arg); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}

	m := &MethodCall{
		Seq:      seq,
		Location: location,
		IsStatic: isStatic,
	}
	if len(args) > 0 {
		// Copy so the caller's slice can't alias the event.
		m.Arguments = append(make([]Value, 0, len(args)), args...)
	}
	return m, nil
}

// AddArgument appends an argument during the build phase of a call.
// The 256th argument is rejected here rather than at serialization.
func (m *MethodCall) AddArgument(v Value) error {
	if len(m.Arguments) >= MaxArguments {
		return fmt.Errorf("argument %d: %w", len(m.Arguments), ErrTooManyArguments)
	}
	if err := ValidateValue(v); err != nil {
		return fmt.Errorf("argument %d: %w", len(m.Arguments), err)
	}
	m.Arguments = append(m.Arguments, v)
	return nil
}

// NewVariableStore creates a validated variable store event.
func NewVariableStore(seq uint64, className string, lineNumber int32, variableName string, v Value) (*VariableStore, error) {
	if err := ValidateText("class name", className); err != nil {
		return nil, err
	}
	if err := ValidateText("variable name", variableName); err != nil {
		return nil, err
	}
	if err := ValidateValue(v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &VariableStore{
		Seq:          seq,
		ClassName:    className,
		LineNumber:   lineNumber,
		VariableName: variableName,
		Value:        v,
	}, nil
}

// NewArrayStore creates a validated array store event.
func NewArrayStore(seq uint64, className string, lineNumber int32, array IdentityTag, arrayIndex int32, v Value) (*ArrayStore, error) {
	if err := ValidateText("class name", className); err != nil {
		return nil, err
	}
	if err := ValidateValue(v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &ArrayStore{
		Seq:           seq,
		ClassName:     className,
		LineNumber:    lineNumber,
		ArrayIdentity: array,
		ArrayIndex:    arrayIndex,
		Value:         v,
	}, nil
}

// Equal reports whether a and b are the same record. Values are compared with
// ValueEqual, so float NaNs compare by bits.
func Equal(a, b Event) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Index() != b.Index() {
		return false
	}

	switch av := a.(type) {
	case *MethodCall:
		bv := b.(*MethodCall)
		if av.Location != bv.Location || av.IsStatic != bv.IsStatic {
			return false
		}
		if len(av.Arguments) != len(bv.Arguments) {
			return false
		}
		for i := range av.Arguments {
			if !ValueEqual(av.Arguments[i], bv.Arguments[i]) {
				return false
			}
		}
		return true

	case *VariableStore:
		bv := b.(*VariableStore)
		return av.ClassName == bv.ClassName &&
			av.LineNumber == bv.LineNumber &&
			av.VariableName == bv.VariableName &&
			ValueEqual(av.Value, bv.Value)

	case *ArrayStore:
		bv := b.(*ArrayStore)
		return av.ClassName == bv.ClassName &&
			av.LineNumber == bv.LineNumber &&
			av.ArrayIdentity == bv.ArrayIdentity &&
			av.ArrayIndex == bv.ArrayIndex &&
			ValueEqual(av.Value, bv.Value)
	}
	return false
}
