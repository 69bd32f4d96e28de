package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/roach88/probelog/internal/engine"

// engineMetrics are the engine's otel instruments.
// Instrument creation failures leave the no-op instrument in place.
type engineMetrics struct {
	written metric.Int64Counter
	parked  metric.Int64Counter
	stale   metric.Int64Counter
	flushes metric.Int64Counter
	reg     metric.Registration
}

func newEngineMetrics(mp metric.MeterProvider, e *Engine) *engineMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	m := &engineMetrics{}
	m.written, _ = meter.Int64Counter("probelog.engine.events.written",
		metric.WithDescription("Events written to the trace sink"),
		metric.WithUnit("{event}"))
	m.parked, _ = meter.Int64Counter("probelog.engine.events.parked",
		metric.WithDescription("Events that arrived ahead of their index and were parked"),
		metric.WithUnit("{event}"))
	m.stale, _ = meter.Int64Counter("probelog.engine.events.stale",
		metric.WithDescription("Events whose index had already been written"),
		metric.WithUnit("{event}"))
	m.flushes, _ = meter.Int64Counter("probelog.engine.flushes",
		metric.WithDescription("Sink buffer flushes"),
		metric.WithUnit("{flush}"))

	backlog, _ := meter.Int64ObservableGauge("probelog.engine.backlog",
		metric.WithDescription("Events published and not yet dequeued"),
		metric.WithUnit("{event}"))
	pending, _ := meter.Int64ObservableGauge("probelog.engine.pending",
		metric.WithDescription("Events parked waiting for a lower index"),
		metric.WithUnit("{event}"))

	if backlog != nil && pending != nil {
		m.reg, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(backlog, int64(e.queue.Len()))
			o.ObserveInt64(pending, e.pending.Load())
			return nil
		}, backlog, pending)
	}
	return m
}

func (m *engineMetrics) close() {
	if m.reg != nil {
		_ = m.reg.Unregister()
	}
}
