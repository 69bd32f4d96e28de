package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/probelog/internal/codec"
	"github.com/roach88/probelog/internal/engine"
	"github.com/roach88/probelog/internal/event"
)

// runTimeout bounds a single scenario. Scenarios are small; hitting it
// means the engine hung.
const runTimeout = 10 * time.Second

// Harness is the scenario execution engine.
// It publishes from a single goroutine so the publication order is exactly
// the scenario's.
type Harness struct {
	engine *engine.Engine
	sink   *bytes.Buffer
	events map[uint64]event.Event
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine writing to memory.
//
// Execution flow:
// 1. Build events from the scenario
// 2. Start the engine and publish in PublishOrder
// 3. Shut down and collect the final-flush result
// 4. Decode the trace and check order, content and stall expectations
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	runErr := h.execute(ctx, scenario.Publications())
	if errors.Is(runErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scenario %s: engine did not stop: %w", scenario.Name, runErr)
	}

	result := NewResult()
	result.Bytes = h.sink.Bytes()

	decoded, err := codec.DecodeAll(result.Bytes)
	if err != nil {
		result.AddError(fmt.Sprintf("trace does not decode: %v", err))
	}
	for _, e := range decoded {
		result.addTrace(e)
		if want, ok := h.events[e.Index()]; !ok || !event.Equal(want, e) {
			result.AddError(fmt.Sprintf("index %d: written record differs from published event", e.Index()))
		}
	}

	if got, want := result.Indices(), scenario.ExpectedOrder(); !slices.Equal(got, want) {
		result.AddError(fmt.Sprintf("trace order: got %v, want %v", got, want))
	}

	h.checkStall(scenario.ExpectStall, runErr, result)

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"records", len(result.Trace),
	)
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	events := make(map[uint64]event.Event, len(scenario.Events))
	for i, spec := range scenario.Events {
		e, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: events[%d]: %w", scenario.Name, i, err)
		}
		events[spec.Index] = e
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	sink := &bytes.Buffer{}
	eng := engine.New(sink,
		engine.WithLogger(logger),
		engine.WithFirstIndex(scenario.FirstIndex),
		engine.WithShutdownGrace(0),
		engine.WithIdleBackoff(100*time.Microsecond, 2*time.Millisecond),
		engine.WithStallRetries(3),
	)

	return &Harness{
		engine: eng,
		sink:   sink,
		events: events,
		logger: logger,
	}, nil
}

// execute runs the engine, publishes order and shuts down.
// Returns the engine's final-flush result.
func (h *Harness) execute(ctx context.Context, order []uint64) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.engine.Run(ctx)
	}()

	select {
	case <-h.engine.Started():
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, idx := range order {
		if !h.engine.Publish(h.events[idx]) {
			return fmt.Errorf("publish index %d: engine closed", idx)
		}
	}

	if err := h.engine.Shutdown(ctx); err != nil && errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

func (h *Harness) checkStall(want *StallSpec, runErr error, result *Result) {
	var stall *engine.OrderingStallError
	isStall := errors.As(runErr, &stall)
	if isStall {
		result.Stall = stall
	}

	switch {
	case runErr != nil && !isStall:
		result.AddError(fmt.Sprintf("engine failed: %v", runErr))
	case want == nil && isStall:
		result.AddError(fmt.Sprintf("unexpected stall: %v", stall))
	case want != nil && !isStall:
		result.AddError(fmt.Sprintf("expected a stall at index %d, engine stopped cleanly", want.Index))
	case want != nil:
		if stall.Index != want.Index {
			result.AddError(fmt.Sprintf("stall index: got %d, want %d", stall.Index, want.Index))
		}
		if stall.Pending != want.Pending {
			result.AddError(fmt.Sprintf("stall pending: got %d, want %d", stall.Pending, want.Pending))
		}
		got := slices.Clone(stall.Stale)
		slices.Sort(got)
		exp := slices.Clone(want.Stale)
		slices.Sort(exp)
		if !slices.Equal(got, exp) {
			result.AddError(fmt.Sprintf("stall stale: got %v, want %v", got, exp))
		}
	}
}
