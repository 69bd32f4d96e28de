package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultIdleBackoffInitial is the first idle wait after the queue runs dry.
	DefaultIdleBackoffInitial = time.Millisecond

	// DefaultIdleBackoffMax caps the idle wait.
	DefaultIdleBackoffMax = 50 * time.Millisecond

	// DefaultStallRetries is how many consecutive no-progress attempts the
	// final flush makes before giving up.
	DefaultStallRetries = 10

	// DefaultShutdownGrace is how long Shutdown lets producers finish
	// publishing before it stops the engine.
	DefaultShutdownGrace = 500 * time.Millisecond

	// DefaultBufferSize is the sink write buffer size.
	DefaultBufferSize = 64 * 1024
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMeterProvider sets where engine metrics are registered.
// Default: the global otel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meterProvider = mp
	}
}

// WithIdleBackoff bounds the idle wait between polls of an empty queue.
func WithIdleBackoff(initial, maxWait time.Duration) Option {
	return func(e *Engine) {
		if initial > 0 {
			e.idleInitial = initial
		}
		if maxWait >= e.idleInitial {
			e.idleMax = maxWait
		}
	}
}

// WithStallRetries sets the final-flush retry bound.
func WithStallRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.stallRetries = n
		}
	}
}

// WithShutdownGrace sets the delay between Shutdown and stop.
// Zero disables the delay.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.grace = d
		}
	}
}

// WithBufferSize sets the sink write buffer size.
func WithBufferSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bufferSize = n
		}
	}
}

// WithFirstIndex sets the first index the engine expects.
// Default: event.InitialIndex.
func WithFirstIndex(idx uint64) Option {
	return func(e *Engine) {
		e.next = idx
	}
}
