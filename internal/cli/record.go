package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/roach88/probelog/internal/engine"
	"github.com/roach88/probelog/internal/event"
	"github.com/roach88/probelog/internal/pipeline"
	"github.com/roach88/probelog/internal/producer"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Producers int
	Events    int
	Dir       string // optional - overrides the configured trace_dir
	Database  string // optional - overrides the configured catalog
	Timeout   time.Duration
}

// RecordResult holds the record output.
type RecordResult struct {
	RunID     string        `json:"run_id"`
	Trace     string        `json:"trace"`
	Producers int           `json:"producers"`
	Published int           `json:"published"`
	Written   uint64        `json:"written"`
	Parked    uint64        `json:"parked"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Stalled   bool          `json:"stalled,omitempty"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Drive a synthetic concurrent workload through a capture pipeline",
		Long: `Start a capture pipeline and have several goroutines record method calls,
variable stores and array stores concurrently, then shut down and report
what was written.

Useful as a smoke test of a configuration and for measuring the ordering
engine under contention.

Exit codes:
  0 - Every published event was written
  1 - The run stalled
  2 - Command error (bad config, trace dir not writable, etc.)

Examples:
  probelog record
  probelog record --producers 16 --events 100000 --dir /tmp/traces
  probelog record --db ./catalog.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Producers, "producers", "p", 4, "number of producer goroutines")
	cmd.Flags().IntVarP(&opts.Events, "events", "n", 10000, "events recorded by each producer")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "trace directory (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "catalog database (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "how long producers get to finish before the final flush")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	if opts.Producers < 1 || opts.Events < 0 {
		return NewExitError(ExitCommandError, "--producers must be at least 1 and --events non-negative")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Dir != "" {
		cfg.TraceDir = opts.Dir
	}
	if opts.Database != "" {
		cfg.Catalog = opts.Database
	}

	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)
	f := opts.formatter(cmd)

	ctx := context.Background()
	p, err := pipeline.Start(ctx, cfg, pipeline.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start pipeline", err)
	}
	f.VerboseLog("recording to %s", p.Path())

	start := time.Now()
	workers := pool.New().WithMaxGoroutines(opts.Producers).WithErrors()
	for w := 0; w < opts.Producers; w++ {
		workers.Go(func() error {
			return produce(p, w, opts.Events)
		})
	}
	workErr := workers.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	shutdownErr := p.Shutdown(shutdownCtx)
	if errors.Is(shutdownErr, context.DeadlineExceeded) {
		// The deadline only cuts the grace period short; the final flush
		// still has to finish before the trace is closed.
		logger.Warn("shutdown timed out, waiting for final flush", "timeout", opts.Timeout)
		shutdownErr = p.Shutdown(ctx)
	}
	elapsed := time.Since(start)

	if workErr != nil {
		return WrapExitError(ExitCommandError, "producer failed", workErr)
	}
	if shutdownErr != nil && !engine.IsStallError(shutdownErr) {
		return WrapExitError(ExitCommandError, "failed to shut down pipeline", shutdownErr)
	}

	stats := p.Stats()
	result := RecordResult{
		RunID:     p.RunID(),
		Trace:     p.Path(),
		Producers: opts.Producers,
		Published: opts.Producers * opts.Events,
		Written:   stats.Written,
		Parked:    stats.Parked,
		Elapsed:   elapsed,
		Stalled:   shutdownErr != nil,
	}

	if f.JSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run:      %s\n", result.RunID)
		fmt.Fprintf(w, "Trace:    %s\n", result.Trace)
		fmt.Fprintf(w, "Written:  %d of %d events from %d producers\n", result.Written, result.Published, result.Producers)
		fmt.Fprintf(w, "Parked:   %d out-of-turn arrivals\n", result.Parked)
		fmt.Fprintf(w, "Elapsed:  %s\n", elapsed.Round(time.Millisecond))
	}

	if shutdownErr != nil {
		return WrapExitError(ExitFailure, "run stalled", shutdownErr)
	}
	return nil
}

// produce records n events from one goroutine, cycling through the three
// record kinds. Calls carry the worker as receiver plus two arguments.
func produce(p *pipeline.Pipeline, worker, n int) error {
	prod := p.Producer()
	self := event.Object("probelog.Workload", event.IdentityTag(worker+1))
	array := event.IdentityTag(0x10000 + worker)

	for i := 0; i < n; i++ {
		var err error
		switch i % 3 {
		case 0:
			err = recordCall(prod, self, i)
		case 1:
			_, err = prod.RecordStore("probelog.Workload", int32(i%1000), "counter", event.Long(int64(i)))
		case 2:
			_, err = prod.RecordArrayStore("probelog.Workload", int32(i%1000), array, int32(i%64), event.Double(float64(i)/3))
		}
		if err != nil {
			return fmt.Errorf("worker %d event %d: %w", worker, i, err)
		}
	}
	return nil
}

func recordCall(prod *producer.Producer, self event.Reference, i int) error {
	c, err := prod.BeginInstanceCall("probelog.Workload.step(ILjava/lang/String;)V", self)
	if err != nil {
		return err
	}
	if err := prod.AppendArgument(c, event.Int(i)); err != nil {
		return err
	}
	if err := prod.AppendArgument(c, event.String(fmt.Sprintf("step-%d", i))); err != nil {
		return err
	}
	return prod.EndCall(c)
}
