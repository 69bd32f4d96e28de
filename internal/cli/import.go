package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/probelog/internal/store"
	"github.com/roach88/probelog/internal/tracefile"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to a new UUIDv7
}

// ImportResult holds the import output.
type ImportResult struct {
	RunID    string `json:"run_id"`
	File     string `json:"file"`
	Inserted int    `json:"inserted"`
	Total    uint64 `json:"total"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a trace file into the run catalog",
		Long: `Decode a trace file and store its events in the run catalog so they can
be searched with the runs command.

The import runs in one transaction: a malformed trace imports nothing.
Importing again with the same --run-id inserts only missing events.

Exit codes:
  0 - Trace imported
  1 - Trace is malformed
  2 - Command error (file or database not found, etc.)

Examples:
  probelog import ~/.probelog/trace_1700000000000.trace --db ./catalog.db
  probelog import trace.trace --db ./catalog.db --run-id nightly-42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id to import under (default: new UUIDv7)")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	r, err := tracefile.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	defer r.Close()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID := opts.RunID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to generate run id", err)
		}
		runID = id.String()
	}

	created := false
	if _, err := st.GetRun(ctx, runID); errors.Is(err, store.ErrRunNotFound) {
		if err := st.CreateRun(ctx, runID, path, traceStartTime(path)); err != nil {
			return WrapExitError(ExitCommandError, "failed to create run", err)
		}
		created = true
		f.VerboseLog("created run %s", runID)
	} else if err != nil {
		return WrapExitError(ExitCommandError, "failed to look up run", err)
	}

	inserted, err := st.ImportTrace(ctx, runID, r.All())
	if err != nil {
		if created {
			// The transaction rolled back; leave a failed run, not an active one.
			_ = st.FinishRun(ctx, runID, store.RunFailed, 0, time.Now())
		}
		return WrapExitError(ExitFailure, "failed to import trace", err)
	}

	state, err := st.GetRunState(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run state", err)
	}
	if err := st.FinishRun(ctx, runID, store.RunImported, uint64(state.Events), time.Now()); err != nil {
		return WrapExitError(ExitCommandError, "failed to finish run", err)
	}

	result := ImportResult{
		RunID:    runID,
		File:     path,
		Inserted: inserted,
		Total:    uint64(state.Events),
	}
	if f.JSON() {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Imported %d event(s) from %s\n", result.Inserted, path)
	fmt.Fprintf(w, "  Run: %s (%d events)\n", runID, result.Total)
	if !state.IsComplete {
		fmt.Fprintf(w, "  Warning: %d index(es) missing\n", state.Missing)
	}
	return nil
}

// traceStartTime returns the start time encoded in a trace file name, or
// the file's modification time for files named some other way.
func traceStartTime(path string) time.Time {
	if t, err := tracefile.ParseFileName(filepath.Base(path)); err == nil {
		return t
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Now()
}
