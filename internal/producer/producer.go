package producer

import (
	"fmt"

	"github.com/roach88/probelog/internal/event"
)

// Producer records events for exactly one goroutine.
//
// It holds that goroutine's current-call slot: at most one call may be bound
// between BeginCall and EndCall. A Producer must not be shared between
// goroutines; give each goroutine its own via Recorder.NewProducer.
type Producer struct {
	rec     *Recorder
	current *Call
}

// Call is the handle for a method call under construction.
type Call struct {
	owner *Producer
	ev    *event.MethodCall
	ended bool
}

// Index returns the call's sequence index.
func (c *Call) Index() uint64 {
	return c.ev.Seq
}

// Arguments returns the number of arguments appended so far.
func (c *Call) Arguments() int {
	return len(c.ev.Arguments)
}

// BeginCall starts a method call, draws its index and binds it to this
// producer.
func (p *Producer) BeginCall(location string, isStatic bool) (*Call, error) {
	const op = "begin call"

	if p.current != nil {
		return nil, usageErr(ErrCodeCallAlreadyBound, op,
			fmt.Sprintf("call %d is still bound", p.current.Index()), nil)
	}
	if err := event.ValidateText("location", location); err != nil {
		return nil, usageErr(ErrCodeInvalidEvent, op, "invalid location", err)
	}

	c := &Call{
		owner: p,
		ev: &event.MethodCall{
			Seq:      p.rec.indices.Next(),
			Location: location,
			IsStatic: isStatic,
		},
	}
	p.current = c
	return c, nil
}

// BeginInstanceCall starts an instance method call with receiver as its
// first argument.
func (p *Producer) BeginInstanceCall(location string, receiver event.Reference) (*Call, error) {
	if err := event.ValidateValue(receiver); err != nil {
		return nil, usageErr(ErrCodeInvalidEvent, "begin call", "invalid receiver", err)
	}
	c, err := p.BeginCall(location, false)
	if err != nil {
		return nil, err
	}
	c.ev.Arguments = append(c.ev.Arguments, receiver)
	return c, nil
}

// AppendArgument adds the next argument to the bound call.
func (p *Producer) AppendArgument(c *Call, v event.Value) error {
	const op = "append argument"

	if err := p.checkBound(op, c); err != nil {
		return err
	}
	if err := c.ev.AddArgument(v); err != nil {
		return usageErr(ErrCodeInvalidEvent, op, fmt.Sprintf("call %d", c.Index()), err)
	}
	return nil
}

// EndCall unbinds the call and publishes it.
func (p *Producer) EndCall(c *Call) error {
	const op = "end call"

	if err := p.checkBound(op, c); err != nil {
		return err
	}
	c.ended = true
	p.current = nil

	// The handle keeps only the index; the published event is never touched
	// again.
	ev := c.ev
	c.ev = &event.MethodCall{Seq: ev.Seq}
	return p.rec.publish(op, ev)
}

// Current returns the bound call, or nil.
func (p *Producer) Current() *Call {
	return p.current
}

// RecordStore records an assignment. It does not touch the current call.
func (p *Producer) RecordStore(className string, lineNumber int32, variableName string, v event.Value) (uint64, error) {
	return p.rec.RecordStore(className, lineNumber, variableName, v)
}

// RecordArrayStore records an array element assignment. It does not touch
// the current call.
func (p *Producer) RecordArrayStore(className string, lineNumber int32, array event.IdentityTag, arrayIndex int32, v event.Value) (uint64, error) {
	return p.rec.RecordArrayStore(className, lineNumber, array, arrayIndex, v)
}

func (p *Producer) checkBound(op string, c *Call) error {
	switch {
	case c == nil:
		return usageErr(ErrCodeNoCallBound, op, "nil call handle", nil)
	case c.owner != p:
		return usageErr(ErrCodeForeignCall, op,
			fmt.Sprintf("call %d belongs to another producer", c.Index()), nil)
	case c.ended:
		return usageErr(ErrCodeCallEnded, op, fmt.Sprintf("call %d already ended", c.Index()), nil)
	case p.current != c:
		return usageErr(ErrCodeNoCallBound, op, fmt.Sprintf("call %d is not bound", c.Index()), nil)
	}
	return nil
}
