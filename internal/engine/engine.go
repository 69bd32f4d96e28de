package engine

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/probelog/internal/codec"
	"github.com/roach88/probelog/internal/event"
)

// Engine is the single consumer that writes events to the sink in index
// order.
//
// Producers call Publish from any goroutine, in any order. Run drains the
// shared queue, writes an event immediately when its index is the next one
// expected and parks it otherwise, then releases parked events as soon as
// they become contiguous.
//
// Thread-safety model:
//   - Publish(), Stats(), Shutdown(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine, once
//
// The reorder heap, the next-expected index and the sink are touched only by
// the Run goroutine.
type Engine struct {
	out   *bufio.Writer
	queue *eventQueue
	heap  reorderHeap
	stale []uint64
	next  uint64
	buf   []byte

	logger        *slog.Logger
	meterProvider metric.MeterProvider
	metrics       *engineMetrics

	idleInitial  time.Duration
	idleMax      time.Duration
	stallRetries int
	grace        time.Duration
	bufferSize   int

	running      atomic.Bool
	started      chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
	err          error // set before done is closed
	shutdownMu   sync.Mutex
	shutdownDone bool // set once Run has returned to a Shutdown call
	shutdownErr  error

	written   atomic.Uint64
	parked    atomic.Uint64
	staleSeen atomic.Uint64
	pending   atomic.Int64
	nextIndex atomic.Uint64
}

// Stats is a point-in-time view of engine progress.
type Stats struct {
	// Written is the number of events written to the sink.
	Written uint64

	// Parked is the number of events that ever arrived out of turn.
	Parked uint64

	// Stale is the number of events whose index had already been written.
	Stale uint64

	// Backlog is the number of published events not yet dequeued.
	Backlog int

	// Pending is the number of events parked right now.
	Pending int

	// NextIndex is the next index the engine will write.
	NextIndex uint64
}

// New creates an Engine writing to sink. The engine buffers writes and
// flushes whenever it goes idle and when it stops.
func New(sink io.Writer, opts ...Option) *Engine {
	e := &Engine{
		queue:        newEventQueue(),
		next:         event.InitialIndex,
		logger:       slog.Default(),
		idleInitial:  DefaultIdleBackoffInitial,
		idleMax:      DefaultIdleBackoffMax,
		stallRetries: DefaultStallRetries,
		grace:        DefaultShutdownGrace,
		bufferSize:   DefaultBufferSize,
		started:      make(chan struct{}),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.out = bufio.NewWriterSize(sink, e.bufferSize)
	e.nextIndex.Store(e.next)
	e.metrics = newEngineMetrics(e.meterProvider, e)
	return e
}

// Publish hands an event to the engine. The pipeline owns e from here on.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has stopped accepting events.
func (e *Engine) Publish(ev event.Event) bool {
	return e.queue.Enqueue(ev)
}

// Started is closed once Run has begun draining.
func (e *Engine) Started() <-chan struct{} {
	return e.started
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns Run's result once Done is closed, nil before.
func (e *Engine) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// Stats returns current progress counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Written:   e.written.Load(),
		Parked:    e.parked.Load(),
		Stale:     e.staleSeen.Load(),
		Backlog:   e.queue.Len(),
		Pending:   int(e.pending.Load()),
		NextIndex: e.nextIndex.Load(),
	}
}

// Run drains the queue until Shutdown is called or ctx is cancelled, then
// performs the final flush.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Returns nil after a clean final flush, *OrderingStallError when parked
// events could not be written, *EngineFatalError when the sink failed, or
// ctx.Err() when cancelled and otherwise clean.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)
	defer e.metrics.close()

	e.logger.Info("engine starting", "next_index", e.next)
	close(e.started)

	e.err = e.loop(ctx)
	switch {
	case e.err == nil:
		e.logger.Info("engine stopped", "written", e.written.Load())
	case IsStallError(e.err):
		e.logger.Error("engine stalled", "error", e.err, "written", e.written.Load())
	default:
		e.logger.Error("engine failed", "error", e.err, "written", e.written.Load())
	}
	return e.err
}

func (e *Engine) loop(ctx context.Context) error {
	idle := e.newIdleBackoff()
	timer := time.NewTimer(e.idleMax)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-e.stop:
			return e.finalFlush()
		case <-ctx.Done():
			if err := e.finalFlush(); err != nil {
				return err
			}
			return ctx.Err()
		default:
		}

		progressed, err := e.step()
		if err != nil {
			return err
		}
		if progressed {
			idle.Reset()
			continue
		}

		// Idle: make written bytes visible, then wait.
		if err := e.flush(); err != nil {
			return err
		}

		wait := idle.NextBackOff()
		if wait == backoff.Stop {
			wait = e.idleMax
		}
		timer.Reset(wait)

		select {
		case <-e.stop:
		case <-ctx.Done():
		case <-e.queue.Wait():
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (e *Engine) newIdleBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.idleInitial
	b.MaxInterval = e.idleMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// step pops at most one event from the queue, then releases every parked
// event that has become contiguous. Reports whether anything happened.
func (e *Engine) step() (bool, error) {
	progressed := false

	if ev, ok := e.queue.TryDequeue(); ok {
		progressed = true
		idx := ev.Index()
		e.logger.Debug("polled event", "index", idx, "next", e.next)

		if idx == e.next {
			if err := e.write(ev); err != nil {
				return true, err
			}
		} else {
			e.park(ev)
		}
	}

	released, err := e.drain()
	if err != nil {
		return true, err
	}
	return progressed || released > 0, nil
}

// drain writes parked events while the lowest one is next in line.
func (e *Engine) drain() (int, error) {
	n := 0
	for {
		ev, ok := e.heap.peek()
		if !ok {
			return n, nil
		}
		idx := ev.Index()
		switch {
		case idx < e.next:
			// A duplicate of an index written while it was parked.
			e.heap.pop()
			e.pending.Add(-1)
			e.markStale(idx)
			n++
		case idx == e.next:
			e.heap.pop()
			e.pending.Add(-1)
			if err := e.write(ev); err != nil {
				return n, err
			}
			n++
		default:
			return n, nil
		}
	}
}

func (e *Engine) park(ev event.Event) {
	idx := ev.Index()
	if idx < e.next {
		e.markStale(idx)
		return
	}
	e.heap.park(ev)
	e.pending.Add(1)
	e.parked.Add(1)
	e.metrics.parked.Add(context.Background(), 1)
	e.logger.Debug("parked event", "index", idx, "next", e.next, "pending", e.heap.Len())
}

func (e *Engine) markStale(idx uint64) {
	e.stale = append(e.stale, idx)
	e.staleSeen.Add(1)
	e.metrics.stale.Add(context.Background(), 1)
	e.logger.Warn("stale event index", "index", idx, "next", e.next)
}

func (e *Engine) write(ev event.Event) error {
	var err error
	e.buf, err = codec.AppendEvent(e.buf[:0], ev)
	if err != nil {
		// Events reach the engine through validated constructors; an
		// unencodable one means the stream would gain a hole.
		return &EngineFatalError{Index: ev.Index(), Op: "encode", Err: err}
	}
	if _, err := e.out.Write(e.buf); err != nil {
		return &EngineFatalError{Index: ev.Index(), Op: "write", Err: err}
	}

	e.logger.Debug("serialized event", "index", ev.Index())
	e.next++
	e.nextIndex.Store(e.next)
	e.written.Add(1)
	e.metrics.written.Add(context.Background(), 1)
	return nil
}

func (e *Engine) flush() error {
	if e.out.Buffered() == 0 {
		return nil
	}
	if err := e.out.Flush(); err != nil {
		return &EngineFatalError{Op: "flush", Err: err}
	}
	e.metrics.flushes.Add(context.Background(), 1)
	return nil
}

// finalFlush closes the queue and writes everything that can be written.
// It ends when the queue is drained and nothing is parked, or after
// stallRetries consecutive attempts make no progress.
func (e *Engine) finalFlush() error {
	e.queue.Close()
	e.logger.Debug("final flush", "backlog", e.queue.Len(), "pending", e.heap.Len())

	wait := e.newIdleBackoff()
	retries := 0
	for {
		progressed, err := e.step()
		if err != nil {
			return err
		}
		if e.queue.Drained() && e.heap.Len() == 0 {
			break
		}
		if progressed {
			retries = 0
			wait.Reset()
			continue
		}

		retries++
		if retries > e.stallRetries {
			if err := e.flush(); err != nil {
				return err
			}
			return &OrderingStallError{Index: e.next, Pending: e.heap.Len(), Stale: e.stale}
		}
		time.Sleep(wait.NextBackOff())
	}

	if err := e.flush(); err != nil {
		return err
	}
	if len(e.stale) > 0 {
		// Every index was written; only the extra copies are left over.
		return &OrderingStallError{Stale: e.stale}
	}
	return nil
}

// Shutdown stops the engine and waits for the final flush.
//
// It waits for Run to start, sleeps the shutdown grace so producers can
// finish publishing, stops the engine and waits for Run to return. If ctx
// expires first, ctx.Err() is returned and the engine keeps flushing; a
// later call waits again without repeating the grace. Once Run has returned,
// further calls return the same result.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownMu.Lock()
	defer e.shutdownMu.Unlock()

	if e.shutdownDone {
		return e.shutdownErr
	}
	finished, err := e.shutdown(ctx)
	if finished {
		e.shutdownDone = true
		e.shutdownErr = err
	}
	return err
}

// shutdown reports whether Run has returned, and Run's result if so.
func (e *Engine) shutdown(ctx context.Context) (bool, error) {
	select {
	case <-e.started:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case <-e.stop:
		// A previous call already ran the grace period.
	default:
		if e.grace > 0 {
			t := time.NewTimer(e.grace)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
		e.stopOnce.Do(func() { close(e.stop) })
	}

	select {
	case <-e.done:
		return true, e.err
	case <-ctx.Done():
	}
	select {
	case <-e.done:
		return true, e.err
	default:
		return false, ctx.Err()
	}
}
