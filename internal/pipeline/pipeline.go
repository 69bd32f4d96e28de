package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roach88/probelog/internal/config"
	"github.com/roach88/probelog/internal/engine"
	"github.com/roach88/probelog/internal/event"
	"github.com/roach88/probelog/internal/producer"
	"github.com/roach88/probelog/internal/store"
	"github.com/roach88/probelog/internal/tracefile"
)

// Pipeline is one capture run.
type Pipeline struct {
	runID     string
	path      string
	startedAt time.Time

	file     *os.File
	engine   *engine.Engine
	recorder *producer.Recorder

	catalog     *store.Store
	ownsCatalog bool

	logger *slog.Logger
	now    func() time.Time
	fatal  func(error)

	runDone chan struct{}
	runErr  error

	finishOnce   sync.Once
	shutdownMu   sync.Mutex
	shutdownDone bool // set once the trace file is closed
	shutdownErr  error
}

// Start creates the trace file, registers the run and starts the engine.
//
// The engine runs until Shutdown is called or ctx is cancelled; either way
// it performs a final flush. Shutdown must still be called to close the
// trace file and finish the catalog entry.
func Start(ctx context.Context, cfg config.Config, opts ...Option) (*Pipeline, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := o.now()
	file, path, err := tracefile.Create(cfg.TraceDir, start)
	if err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	p := &Pipeline{
		runID:     o.runIDs.Generate(),
		path:      path,
		startedAt: start,
		file:      file,
		catalog:   o.catalog,
		logger:    o.logger,
		now:       o.now,
		fatal:     o.fatal,
		runDone:   make(chan struct{}),
	}
	p.logger = p.logger.With("run_id", p.runID)

	if p.catalog == nil && cfg.Catalog != "" {
		p.catalog, err = store.Open(cfg.Catalog)
		if err != nil {
			p.abort()
			return nil, fmt.Errorf("start pipeline: open catalog: %w", err)
		}
		p.ownsCatalog = true
	}
	if p.catalog != nil {
		if err := p.catalog.CreateRun(ctx, p.runID, path, start); err != nil {
			p.abort()
			return nil, fmt.Errorf("start pipeline: %w", err)
		}
	}

	var sink io.Writer = file
	if o.wrapSink != nil {
		sink = o.wrapSink(file)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(p.logger),
		engine.WithFirstIndex(event.InitialIndex),
		engine.WithIdleBackoff(cfg.Engine.IdleBackoffInitial, cfg.Engine.IdleBackoffMax),
		engine.WithStallRetries(cfg.Engine.StallRetries),
		engine.WithShutdownGrace(cfg.Engine.ShutdownGrace),
		engine.WithBufferSize(cfg.Engine.BufferSize),
	}
	if o.meter != nil {
		engineOpts = append(engineOpts, engine.WithMeterProvider(o.meter))
	}
	p.engine = engine.New(sink, engineOpts...)
	p.recorder = producer.NewRecorder(engine.NewCounterAt(event.InitialIndex), p.engine)

	go p.run(ctx)

	p.logger.Info("pipeline started", "trace", path)
	return p, nil
}

// run owns the engine goroutine. A fatal engine error finishes the run as
// failed and calls the fatal handler.
func (p *Pipeline) run(ctx context.Context) {
	defer close(p.runDone)

	p.runErr = p.engine.Run(ctx)
	if !engine.IsFatalError(p.runErr) {
		return
	}

	p.logger.Error("trace sink failed", "error", p.runErr, "trace", p.path)
	p.finish(context.Background(), store.RunFailed)
	p.fatal(p.runErr)
}

// abort releases resources acquired by a failed Start.
func (p *Pipeline) abort() {
	p.file.Close()
	os.Remove(p.path)
	if p.ownsCatalog {
		p.catalog.Close()
	}
}

// Producer returns a new producer. Each goroutine that records method calls
// needs its own.
func (p *Pipeline) Producer() *producer.Producer {
	return p.recorder.NewProducer()
}

// Recorder returns the shared recorder for store events.
func (p *Pipeline) Recorder() *producer.Recorder {
	return p.recorder
}

// Path returns the trace file path.
func (p *Pipeline) Path() string {
	return p.path
}

// RunID returns the run's id.
func (p *Pipeline) RunID() string {
	return p.runID
}

// StartedAt returns the time the run started.
func (p *Pipeline) StartedAt() time.Time {
	return p.startedAt
}

// Stats returns the engine's counters.
func (p *Pipeline) Stats() engine.Stats {
	return p.engine.Stats()
}

// Shutdown stops the engine, waits for the final flush, then syncs and
// closes the trace file and finishes the catalog entry.
//
// Returns nil after a clean run, *engine.OrderingStallError when an index
// never arrived, or *engine.EngineFatalError after a sink failure.
//
// If ctx expires while the engine is still flushing, the error is returned
// and nothing is closed; call Shutdown again to finish. Once the trace file
// is closed, further calls return the same result.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.shutdownMu.Lock()
	defer p.shutdownMu.Unlock()

	if p.shutdownDone {
		return p.shutdownErr
	}
	closed, err := p.shutdown(ctx)
	if closed {
		p.shutdownDone = true
		p.shutdownErr = err
	}
	return err
}

// shutdown reports whether the trace file was closed.
func (p *Pipeline) shutdown(ctx context.Context) (bool, error) {
	if err := p.engine.Shutdown(ctx); err != nil {
		select {
		case <-p.engine.Done():
		default:
			// The engine is still writing; the file cannot be closed.
			return false, fmt.Errorf("shutdown pipeline: %w", err)
		}
	}
	<-p.runDone

	// The engine has stopped; cleanup must not be cut short by ctx.
	ctx = context.WithoutCancel(ctx)

	runErr := p.runErr
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		// Cancelled runs still final-flush cleanly.
		runErr = nil
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := p.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync trace: %w", err))
	}
	if err := p.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close trace: %w", err))
	}

	status := store.RunComplete
	switch {
	case engine.IsFatalError(runErr):
		status = store.RunFailed
	case engine.IsStallError(runErr):
		status = store.RunStalled
	}
	if err := p.finish(ctx, status); err != nil {
		errs = append(errs, err)
	}

	if p.ownsCatalog {
		if err := p.catalog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
	}

	stats := p.engine.Stats()
	p.logger.Info("pipeline stopped",
		"status", status,
		"written", stats.Written,
		"trace", p.path,
	)
	return true, errors.Join(errs...)
}

// finish records the run's outcome once. A fatal sink failure finishes the
// run before Shutdown does.
func (p *Pipeline) finish(ctx context.Context, status store.RunStatus) error {
	if p.catalog == nil {
		return nil
	}

	var err error
	p.finishOnce.Do(func() {
		written := p.engine.Stats().Written
		if ferr := p.catalog.FinishRun(ctx, p.runID, status, written, p.now()); ferr != nil {
			p.logger.Error("failed to finish catalog run", "error", ferr)
			err = ferr
		}
	})
	return err
}
