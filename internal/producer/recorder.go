package producer

import (
	"github.com/roach88/probelog/internal/event"
)

// IndexSource hands out sequence indices. engine.Counter implements it.
type IndexSource interface {
	Next() uint64
}

// Publisher accepts finished events. engine.Engine implements it.
type Publisher interface {
	Publish(event.Event) bool
}

// Recorder creates and publishes events on behalf of every producer.
// Thread-safe: may be used from any goroutine.
type Recorder struct {
	indices IndexSource
	pub     Publisher
}

// NewRecorder creates a Recorder drawing indices from indices and publishing
// to pub.
func NewRecorder(indices IndexSource, pub Publisher) *Recorder {
	return &Recorder{indices: indices, pub: pub}
}

// NewProducer returns a Producer for one goroutine.
func (r *Recorder) NewProducer() *Producer {
	return &Producer{rec: r}
}

// RecordStore records an assignment to a local or field and returns the
// event's index.
func (r *Recorder) RecordStore(className string, lineNumber int32, variableName string, v event.Value) (uint64, error) {
	const op = "record store"

	if err := event.ValidateText("class name", className); err != nil {
		return 0, usageErr(ErrCodeInvalidEvent, op, "invalid class name", err)
	}
	if err := event.ValidateText("variable name", variableName); err != nil {
		return 0, usageErr(ErrCodeInvalidEvent, op, "invalid variable name", err)
	}
	if err := event.ValidateValue(v); err != nil {
		return 0, usageErr(ErrCodeInvalidEvent, op, "invalid value", err)
	}

	ev := &event.VariableStore{
		Seq:          r.indices.Next(),
		ClassName:    className,
		LineNumber:   lineNumber,
		VariableName: variableName,
		Value:        v,
	}
	return ev.Seq, r.publish(op, ev)
}

// RecordArrayStore records an assignment to an array element and returns the
// event's index.
func (r *Recorder) RecordArrayStore(className string, lineNumber int32, array event.IdentityTag, arrayIndex int32, v event.Value) (uint64, error) {
	const op = "record array store"

	if err := event.ValidateText("class name", className); err != nil {
		return 0, usageErr(ErrCodeInvalidEvent, op, "invalid class name", err)
	}
	if err := event.ValidateValue(v); err != nil {
		return 0, usageErr(ErrCodeInvalidEvent, op, "invalid value", err)
	}

	ev := &event.ArrayStore{
		Seq:           r.indices.Next(),
		ClassName:     className,
		LineNumber:    lineNumber,
		ArrayIdentity: array,
		ArrayIndex:    arrayIndex,
		Value:         v,
	}
	return ev.Seq, r.publish(op, ev)
}

func (r *Recorder) publish(op string, ev event.Event) error {
	if !r.pub.Publish(ev) {
		return usageErr(ErrCodePipelineClosed, op, "pipeline is shut down", nil)
	}
	return nil
}
