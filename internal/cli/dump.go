package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/probelog/internal/event"
	"github.com/roach88/probelog/internal/tracefile"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Kind  string // optional - filter to one record kind
	From  uint64
	Limit int
}

// DumpValue is one rendered value.
type DumpValue struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DumpRecord is one decoded trace record.
type DumpRecord struct {
	Index         uint64      `json:"index"`
	Kind          string      `json:"kind"`
	Class         string      `json:"class,omitempty"`
	Line          int32       `json:"line,omitempty"`
	Name          string      `json:"name"`
	Static        bool        `json:"static,omitempty"`
	ArrayIdentity *uint32     `json:"array_identity,omitempty"`
	ArrayIndex    *int32      `json:"array_index,omitempty"`
	Values        []DumpValue `json:"values"`
}

// DumpResult holds the dump output.
type DumpResult struct {
	File    string       `json:"file"`
	Records []DumpRecord `json:"records"`
	Bytes   int64        `json:"bytes"`
	Error   string       `json:"error,omitempty"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the records of a trace file",
		Long: `Decode a trace file record by record and print each event.

A trace that ends in the middle of a record, or holds an unknown record or
value kind, is reported after the records that decoded cleanly.

Exit codes:
  0 - Trace decoded cleanly
  1 - Trace is malformed
  2 - Command error (file not found, bad flags)

Examples:
  probelog dump ~/.probelog/trace_1700000000000.trace
  probelog dump trace.trace --kind call --limit 20
  probelog dump trace.trace --from 1000 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only records of this kind (call|store|array_store)")
	cmd.Flags().Uint64Var(&opts.From, "from", 0, "skip records with a smaller index")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many records (0 = all)")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command, path string) error {
	kind, err := parseKind(opts.Kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --kind", err)
	}

	r, err := tracefile.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	defer r.Close()

	result := DumpResult{File: path, Records: []DumpRecord{}}
	var decodeErr error
	for e, err := range r.All() {
		if err != nil {
			decodeErr = err
			result.Error = err.Error()
			break
		}
		if kind != 0 && e.Kind() != kind {
			continue
		}
		if e.Index() < opts.From {
			continue
		}
		result.Records = append(result.Records, toDumpRecord(e))
		if opts.Limit > 0 && len(result.Records) >= opts.Limit {
			break
		}
	}
	result.Bytes = r.Offset()

	f := opts.formatter(cmd)
	if f.JSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputDumpText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if decodeErr != nil {
		return WrapExitError(ExitFailure, "trace is malformed", decodeErr)
	}
	return nil
}

// parseKind maps a kind name to its record kind. Empty means any.
func parseKind(name string) (event.EventKind, error) {
	switch name {
	case "":
		return 0, nil
	case event.KindMethodCall.String():
		return event.KindMethodCall, nil
	case event.KindVariableStore.String():
		return event.KindVariableStore, nil
	case event.KindArrayStore.String():
		return event.KindArrayStore, nil
	default:
		return 0, fmt.Errorf("unknown kind %q: must be call, store or array_store", name)
	}
}

func toDumpRecord(e event.Event) DumpRecord {
	rec := DumpRecord{Index: e.Index(), Kind: e.Kind().String()}

	var values []event.Value
	switch ev := e.(type) {
	case *event.MethodCall:
		rec.Name = ev.Location
		rec.Static = ev.IsStatic
		values = ev.Arguments
	case *event.VariableStore:
		rec.Class = ev.ClassName
		rec.Line = ev.LineNumber
		rec.Name = ev.VariableName
		values = []event.Value{ev.Value}
	case *event.ArrayStore:
		id := uint32(ev.ArrayIdentity)
		idx := ev.ArrayIndex
		rec.Class = ev.ClassName
		rec.Line = ev.LineNumber
		rec.Name = ev.ClassName
		rec.ArrayIdentity = &id
		rec.ArrayIndex = &idx
		values = []event.Value{ev.Value}
	}

	rec.Values = make([]DumpValue, len(values))
	for i, v := range values {
		typ, text := event.Describe(v)
		rec.Values[i] = DumpValue{Type: typ, Text: text}
	}
	return rec
}

func outputDumpText(w io.Writer, result DumpResult, verbose bool) {
	for _, rec := range result.Records {
		fmt.Fprintln(w, formatRecord(rec))
	}
	if verbose {
		fmt.Fprintf(w, "(%d records, %d bytes)\n", len(result.Records), result.Bytes)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "!! %s\n", result.Error)
	}
}

// formatRecord renders a record on one line.
func formatRecord(rec DumpRecord) string {
	var b strings.Builder
	switch rec.Kind {
	case event.KindMethodCall.String():
		fmt.Fprintf(&b, "[%d] CALL   %s(", rec.Index, rec.Name)
		for i, v := range rec.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(v))
		}
		b.WriteString(")")
		if rec.Static {
			b.WriteString(" static")
		}
	case event.KindVariableStore.String():
		fmt.Fprintf(&b, "[%d] STORE  %s:%d %s = %s", rec.Index, rec.Class, rec.Line, rec.Name, formatValue(rec.Values[0]))
	case event.KindArrayStore.String():
		fmt.Fprintf(&b, "[%d] ASTORE %s:%d @%d[%d] = %s", rec.Index, rec.Class, rec.Line,
			*rec.ArrayIdentity, *rec.ArrayIndex, formatValue(rec.Values[0]))
	}
	return b.String()
}

func formatValue(v DumpValue) string {
	return v.Type + " " + v.Text
}
