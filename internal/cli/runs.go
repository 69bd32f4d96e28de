package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/probelog/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Kind     string
	Name     string
	From     uint64
	Limit    int
	Events   bool
}

// RunDetail holds the output for a single run.
type RunDetail struct {
	Run        store.Run      `json:"run"`
	Events     int            `json:"events"`
	ByKind     map[string]int `json:"by_kind"`
	Missing    uint64         `json:"missing"`
	IsComplete bool           `json:"is_complete"`
	Records    []DumpRecord   `json:"records,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List catalog runs or show one run",
		Long: `Without arguments, list every run in the catalog, newest first.

With a run id, show the run's status and stored event counts. --events
prints the stored events, optionally filtered by kind, name and index.
Name matching ignores case and Unicode normalization.

Examples:
  probelog runs --db ./catalog.db
  probelog runs --db ./catalog.db 01890a5d-ac96-774b-bcce-b302099a8057
  probelog runs --db ./catalog.db RUN_ID --events --name count --limit 10`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runShowRun(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "print stored events")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only events of this kind (call|store|array_store)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only events whose name contains this")
	cmd.Flags().Uint64Var(&opts.From, "from", 0, "skip events with a smaller index")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many events (0 = all)")

	return cmd
}

func runListRuns(opts *RunsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	f := opts.formatter(cmd)
	if f.JSON() {
		return f.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in catalog.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %-8s  %8d events  %s  %s\n",
			run.ID,
			run.Status,
			run.EventsWritten,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.TracePath,
		)
	}
	return nil
}

func runShowRun(opts *RunsOptions, cmd *cobra.Command, runID string) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	kind, err := parseKind(opts.Kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --kind", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.GetRunState(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		if f.JSON() {
			_ = f.Error(ErrCodeCatalog, fmt.Sprintf("run %s not found", runID), nil)
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	detail := RunDetail{
		Run:        state.Run,
		Events:     state.Events,
		ByKind:     state.ByKind,
		Missing:    state.Missing,
		IsComplete: state.IsComplete,
	}

	if opts.Events {
		events, err := st.ReadEvents(ctx, runID, store.EventFilter{
			Kind:      kind,
			Name:      opts.Name,
			FromIndex: opts.From,
			Limit:     opts.Limit,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		detail.Records = make([]DumpRecord, len(events))
		for i, e := range events {
			detail.Records[i] = toDumpRecord(e)
		}
	}

	if f.JSON() {
		return f.Success(detail)
	}

	outputRunText(cmd.OutOrStdout(), detail)
	return nil
}

func outputRunText(w io.Writer, d RunDetail) {
	run := d.Run
	fmt.Fprintf(w, "Run:     %s\n", run.ID)
	fmt.Fprintf(w, "Trace:   %s\n", run.TracePath)
	fmt.Fprintf(w, "Status:  %s\n", run.Status)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.UTC().Format(time.RFC3339Nano))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Ended:   %s\n", run.FinishedAt.UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(w, "Written: %d\n", run.EventsWritten)
	fmt.Fprintf(w, "Stored:  %d\n", d.Events)
	for _, kind := range slices.Sorted(maps.Keys(d.ByKind)) {
		fmt.Fprintf(w, "  %s: %d\n", kind, d.ByKind[kind])
	}
	if d.Events > 0 && !d.IsComplete {
		fmt.Fprintf(w, "Missing: %d\n", d.Missing)
	}

	if d.Records != nil {
		fmt.Fprintln(w)
		for _, rec := range d.Records {
			fmt.Fprintln(w, formatRecord(rec))
		}
	}
}
