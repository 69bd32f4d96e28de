package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/probelog/internal/tracefile"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
}

// VerifyFileResult holds the verification result for a single trace.
type VerifyFileResult struct {
	File    string            `json:"file"`
	Summary tracefile.Summary `json:"summary"`
	Error   string            `json:"error,omitempty"`
	OK      bool              `json:"ok"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Files []VerifyFileResult `json:"files"`
	AllOK bool               `json:"all_ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check trace files for gaps and ordering",
		Long: `Read each trace file to the end and check that it holds every index from
the first one up to the last, exactly once and in order.

Exit codes:
  0 - All traces are complete and ordered
  1 - A trace has gaps, out-of-order indices or a malformed record
  2 - Command error (file not found, etc.)

Examples:
  probelog verify ~/.probelog/trace_1700000000000.trace
  probelog verify ~/.probelog/*.trace --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd, args)
		},
	}

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command, paths []string) error {
	result := VerifyResult{
		Files: make([]VerifyFileResult, 0, len(paths)),
		AllOK: true,
	}

	for _, path := range paths {
		fileResult, err := verifyFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace", err)
		}
		result.Files = append(result.Files, fileResult)
		if !fileResult.OK {
			result.AllOK = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputVerifyJSON(cmd, result)
	}

	return outputVerifyText(cmd, result, opts.Verbose)
}

// verifyFile verifies one trace. Only a failure to open it is an error;
// malformed content is reported in the result.
func verifyFile(path string) (VerifyFileResult, error) {
	r, err := tracefile.Open(path)
	if err != nil {
		return VerifyFileResult{}, err
	}
	defer r.Close()

	sum, verr := tracefile.Verify(r)
	res := VerifyFileResult{
		File:    path,
		Summary: sum,
		OK:      verr == nil && sum.OK(),
	}
	if verr != nil {
		res.Error = verr.Error()
	}
	return res, nil
}

// outputVerifyJSON outputs the verify result as JSON.
func outputVerifyJSON(cmd *cobra.Command, result VerifyResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllOK {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeGaps,
			Message: "trace verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllOK {
		return NewExitError(ExitFailure, "trace verification failed")
	}
	return nil
}

// outputVerifyText outputs the verify result as text.
func outputVerifyText(cmd *cobra.Command, result VerifyResult, verbose bool) error {
	w := cmd.OutOrStdout()

	for _, file := range result.Files {
		status := "✓"
		if !file.OK {
			status = "✗"
		}

		sum := file.Summary
		fmt.Fprintf(w, "%s %s\n", status, file.File)
		fmt.Fprintf(w, "  Records: %d (%d bytes)\n", sum.Records, sum.Bytes)
		if sum.Records > 0 {
			fmt.Fprintf(w, "  Indices: %d..%d\n", sum.FirstIndex, sum.LastIndex)
		}

		if verbose {
			for _, kind := range slices.Sorted(maps.Keys(sum.ByKind)) {
				fmt.Fprintf(w, "  %s: %d\n", kind, sum.ByKind[kind])
			}
		}

		for _, gap := range sum.Gaps {
			if gap.From == gap.To {
				fmt.Fprintf(w, "  Missing: %d\n", gap.From)
			} else {
				fmt.Fprintf(w, "  Missing: %d..%d\n", gap.From, gap.To)
			}
		}
		if len(sum.OutOfOrder) > 0 {
			fmt.Fprintf(w, "  Out of order: %v\n", sum.OutOfOrder)
		}
		if file.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", file.Error)
		}
		fmt.Fprintln(w)
	}

	if result.AllOK {
		fmt.Fprintln(w, "✓ All traces verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Trace verification failed")
	return NewExitError(ExitFailure, "trace verification failed")
}
