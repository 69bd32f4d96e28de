package pipeline

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/probelog/internal/store"
)

// RunIDGenerator produces run ids.
type RunIDGenerator interface {
	Generate() string
}

// uuidRunIDs generates time-ordered UUIDv7 run ids.
type uuidRunIDs struct{}

func (uuidRunIDs) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Option configures Start.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	meter    metric.MeterProvider
	runIDs   RunIDGenerator
	now      func() time.Time
	fatal    func(error)
	catalog  *store.Store
	wrapSink func(io.Writer) io.Writer
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		runIDs: uuidRunIDs{},
		now:    time.Now,
		fatal:  func(error) { os.Exit(1) },
	}
}

// WithLogger sets the logger for the pipeline and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeterProvider sets where engine metrics are registered.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meter = mp
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.runIDs = g
		}
	}
}

// WithClock sets the time source used for the trace file name and catalog
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFatalHandler replaces the handler called after a sink failure.
// The default exits the process with status 1.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.fatal = fn
		}
	}
}

// WithCatalog records the run in an already open catalog instead of opening
// the configured path. The pipeline does not close it.
func WithCatalog(s *store.Store) Option {
	return func(o *options) {
		o.catalog = s
	}
}
