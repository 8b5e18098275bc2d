package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tracelayout/internal/scope"
	"github.com/roach88/tracelayout/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// ShowResult lists the recorded layouts of a trace.
type ShowResult struct {
	Trace              string         `json:"trace"`
	Generation         int64          `json:"generation"`
	Policy             string         `json:"policy"`
	ProgramFingerprint string         `json:"program_fingerprint"`
	LayoutVersion      string         `json:"layout_version"`
	CompilerVersion    string         `json:"compiler_version"`
	Layouts            []LayoutResult `json:"layouts"`
}

// LayoutResult is one recorded scope.
type LayoutResult struct {
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
	Operations  int    `json:"operations"`
	StaticSize  *uint  `json:"static_size,omitempty"`
	Compression string `json:"compression"`
	RawSize     int    `json:"raw_size"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <trace> [stream/scope | stream/record/scope]",
		Short: "Query the layout ledger",
		Long: `List the layouts recorded for a trace, or print one recorded
operation tree as JSON.

Scope names are the root scope names: packet-header, packet-context,
event-record-header, event-record-common-context,
event-record-specific-context and event-record-payload.

Examples:
  tracelayout show mytracer --db layouts.db
  tracelayout show mytracer default/packet-context --db layouts.db
  tracelayout show mytracer default/hello/event-record-payload --db layouts.db`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("ledger not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("opening ledger: %v", err))
	}
	defer st.Close()

	trace := args[0]
	if len(args) == 2 {
		key, err := parseKey(trace, args[1])
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error())
		}
		return showTree(formatter, st, cmd, key)
	}

	info, err := st.LoadProgram(ctx, trace)
	if errors.Is(err, store.ErrNotFound) {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("no recorded layouts for trace %q", trace))
	}
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}
	layouts, err := st.ListLayouts(ctx, trace)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}

	result := ShowResult{
		Trace:              trace,
		Generation:         info.Generation,
		Policy:             info.Policy,
		ProgramFingerprint: info.ProgramFingerprint,
		LayoutVersion:      info.LayoutVersion,
		CompilerVersion:    info.CompilerVersion,
		Layouts:            make([]LayoutResult, len(layouts)),
	}
	for i, l := range layouts {
		result.Layouts[i] = LayoutResult{
			Key:         strings.TrimPrefix(l.Key.String(), trace+"/"),
			Fingerprint: l.Fingerprint,
			Operations:  l.Operations,
			StaticSize:  l.StaticSize,
			Compression: l.Compression.String(),
			RawSize:     l.RawSize,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputShowText(formatter, result)
	return nil
}

func showTree(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command, key store.Key) error {
	raw, err := st.LoadTree(cmd.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("no recorded layout %s", key))
	}
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(raw))
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}
	fmt.Fprintln(formatter.Writer, out.String())
	return nil
}

// parseKey parses "stream/scope" or "stream/record/scope".
func parseKey(trace, s string) (store.Key, error) {
	parts := strings.Split(s, "/")
	key := store.Key{Trace: trace, Stream: parts[0]}
	switch len(parts) {
	case 2:
		key.Scope = parts[1]
	case 3:
		key.Record, key.Scope = parts[1], parts[2]
	default:
		return store.Key{}, fmt.Errorf("invalid layout key %q (want stream/scope or stream/record/scope)", s)
	}

	rs, err := scope.ParseRootScope(key.Scope)
	if err != nil {
		return store.Key{}, err
	}
	if rs.IsPacketScope() != (key.Record == "") {
		return store.Key{}, fmt.Errorf("layout key %q: %s is %s scope", s, rs, scopeLevel(rs))
	}
	return key, nil
}

func scopeLevel(rs scope.RootScope) string {
	if rs.IsPacketScope() {
		return "a packet"
	}
	return "an event record"
}

func outputShowText(formatter *OutputFormatter, result ShowResult) {
	formatter.OK("%s generation %d: %d layout(s)", result.Trace, result.Generation, len(result.Layouts))
	formatter.Muted("Program %.12s (policy %s, layout version %s, compiler %s)",
		result.ProgramFingerprint, result.Policy, result.LayoutVersion, result.CompilerVersion)
	fmt.Fprintln(formatter.Writer)
	for _, l := range result.Layouts {
		size := "?"
		if l.StaticSize != nil {
			size = fmt.Sprint(*l.StaticSize)
		}
		fmt.Fprintf(formatter.Writer, "  %-48s %.12s ops=%-4d size=%-6s %s %d bytes\n",
			l.Key, l.Fingerprint, l.Operations, size, l.Compression, l.RawSize)
	}
}
