package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tracelayout/internal/export"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
	"github.com/roach88/tracelayout/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output      string // output file path; the extension picks the format
	Policy      layout.AlignPolicy
	Database    string // ledger path; empty skips recording
	Compression store.Compression
	Name        string // trace name in the ledger
}

// CompileSummary is the JSON payload of a successful compile.
type CompileSummary struct {
	Trace              string          `json:"trace"`
	Policy             string          `json:"policy"`
	TraceFingerprint   string          `json:"trace_fingerprint"`
	ProgramFingerprint string          `json:"program_fingerprint"`
	Streams            []StreamSummary `json:"data_stream_types"`
	Output             string          `json:"output,omitempty"`
	Generation         int64           `json:"generation,omitempty"`
}

// StreamSummary counts the compiled scopes of one data stream type.
type StreamSummary struct {
	Name             string `json:"name"`
	ID               uint64 `json:"id"`
	Records          int    `json:"event_record_types"`
	Scopes           int    `json:"scopes"`
	Operations       int    `json:"operations"`
	PacketHeaderSize *uint  `json:"packet_header_size,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts, Compression: store.CompressionZstd}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile a trace description into operation trees",
		Long: `Compile the trace description in a directory (CUE, JSON and JSONC files)
into the operation trees of every root scope.

With --output the trees are exported; the file extension picks the format
(.json, .cbor, .txt, .md, .html). With --db the trees are recorded in the
layout ledger under the trace name, for later verify and show commands.

Examples:
  tracelayout compile ./trace -o layout.json
  tracelayout compile ./trace --policy elide -o layout.md
  tracelayout compile ./trace --db layouts.db --name mytracer`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (.json, .cbor, .txt, .md or .html)")
	addPolicyFlag(cmd.Flags(), &opts.Policy)
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the layouts in this SQLite ledger")
	cmd.Flags().Var(&opts.Compression, "compression", "ledger tree compression (zstd|lz4|none)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "trace name in the ledger (default: directory name)")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Check the output extension before compiling anything.
	var outFormat export.Format
	if opts.Output != "" {
		f, err := export.FormatForPath(opts.Output)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error())
		}
		outFormat = f
	}

	logger := NewCommandLogger(cmd.ErrOrStderr(), opts.Verbose).With("command", "compile")
	prog, loaded, errs := loadProgram(specsDir, opts.Policy, logger)
	if loaded != nil {
		formatter.VerboseLog("Found %d description file(s) in %s", loaded.FileCount, specsDir)
	}
	if len(errs) > 0 {
		return outputCommandErrors(formatter, fmt.Sprintf("Compilation failed with %d error(s)", len(errs)), errs)
	}

	doc, err := export.New(prog)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	summary := summarize(doc, traceName(opts.Name, specsDir))

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeDocument(doc, opts.Output, outFormat); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		summary.Output = opts.Output
		formatter.VerboseLog("Wrote %s document to %s", outFormat, opts.Output)
	}

	if opts.Database != "" {
		gen, err := recordProgram(cmd, opts, summary.Trace, prog)
		if err != nil {
			return outputCompileError(formatter, ErrCodeLedger, err.Error())
		}
		summary.Generation = gen
	}

	return outputCompileSuccess(formatter, summary)
}

func recordProgram(cmd *cobra.Command, opts *CompileOptions, trace string, prog *scope.Program) (int64, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return 0, fmt.Errorf("opening ledger: %w", err)
	}
	defer st.Close()

	gen, err := st.RecordProgram(cmd.Context(), trace, prog, opts.Compression)
	if err != nil {
		return 0, fmt.Errorf("recording layouts: %w", err)
	}
	return gen, nil
}

// summarize counts the streams, records and scopes of doc.
func summarize(doc *export.Document, trace string) CompileSummary {
	summary := CompileSummary{
		Trace:              trace,
		Policy:             doc.Policy,
		TraceFingerprint:   doc.TraceFingerprint,
		ProgramFingerprint: doc.ProgramFingerprint,
		Streams:            make([]StreamSummary, 0, len(doc.Streams)),
	}
	for _, s := range doc.Streams {
		ss := StreamSummary{Name: s.Name, ID: s.ID, Records: len(s.Records), Scopes: len(s.Scopes)}
		for _, sc := range s.Scopes {
			ss.Operations += sc.Operations
			if sc.Scope == scope.PacketHeader.String() {
				ss.PacketHeaderSize = sc.StaticSize
			}
		}
		for _, r := range s.Records {
			ss.Scopes += len(r.Scopes)
			for _, sc := range r.Scopes {
				ss.Operations += sc.Operations
			}
		}
		summary.Streams = append(summary.Streams, ss)
	}
	return summary
}

// writeDocument encodes doc into filename.
func writeDocument(doc *export.Document, filename string, f export.Format) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := export.Encode(out, doc, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, summary CompileSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	records := 0
	for _, s := range summary.Streams {
		records += s.Records
	}
	formatter.OK("Compiled %d data stream type(s), %d event record type(s)", len(summary.Streams), records)
	fmt.Fprintln(formatter.Writer)

	fmt.Fprintln(formatter.Writer, "Data stream types:")
	for _, s := range summary.Streams {
		fmt.Fprintf(formatter.Writer, "  %s (id %d): %d event record type(s), %d scope(s), %d operation(s)\n",
			s.Name, s.ID, s.Records, s.Scopes, s.Operations)
	}
	fmt.Fprintln(formatter.Writer)
	formatter.Muted("Program %.12s (policy %s)", summary.ProgramFingerprint, summary.Policy)

	if summary.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote layouts to %s\n", summary.Output)
	}
	if summary.Generation > 0 {
		fmt.Fprintf(formatter.Writer, "Recorded %s generation %d\n", summary.Trace, summary.Generation)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}
