// Package producer is the capture-side API: it turns probe observations into
// indexed events and publishes them to the ordering engine.
//
// A Recorder is shared by every goroutine. Each goroutine that records method
// calls owns one Producer, which holds that goroutine's single current-call
// slot. A call is built in three steps (BeginCall, AppendArgument, EndCall)
// through the *Call handle BeginCall returns; stores are single-shot.
//
// Indices are drawn at creation, never at publication, so two goroutines may
// publish out of index order. Input is validated before an index is drawn:
// a rejected probe never consumes an index.
package producer
