package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Name     string
	Policy   layout.AlignPolicy
}

// VerifyResult is the outcome of comparing a description with the ledger.
type VerifyResult struct {
	Trace      string        `json:"trace"`
	Generation int64         `json:"generation"`
	Policy     string        `json:"policy"`
	Drifts     []DriftResult `json:"drifts"`
}

// DriftResult is one differing scope.
type DriftResult struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Recorded string `json:"recorded,omitempty"`
	Current  string `json:"current,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <specs-dir>",
		Short: "Check that a description still compiles to its recorded layouts",
		Long: `Compile the trace description and compare every scope fingerprint with
the layouts recorded by "compile --db". Any drift exits with code 1.

Without --policy the recorded alignment policy is used.

Examples:
  tracelayout verify ./trace --db layouts.db
  tracelayout verify ./trace --db layouts.db --name mytracer --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Name, "name", "", "trace name in the ledger (default: directory name)")
	addPolicyFlag(cmd.Flags(), &opts.Policy)

	return cmd
}

func runVerify(opts *VerifyOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create a fresh ledger.
	if _, err := os.Stat(opts.Database); err != nil {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("ledger not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, fmt.Sprintf("opening ledger: %v", err))
	}
	defer st.Close()

	trace := traceName(opts.Name, specsDir)
	info, err := st.LoadProgram(ctx, trace)
	if errors.Is(err, store.ErrNotFound) {
		return outputCompileError(formatter, ErrCodeNotFound, fmt.Sprintf("no recorded layouts for trace %q", trace))
	}
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}

	policy := opts.Policy
	if !cmd.Flags().Changed("policy") {
		if policy, err = layout.ParseAlignPolicy(info.Policy); err != nil {
			return outputCompileError(formatter, ErrCodeLedger, err.Error())
		}
	}
	formatter.VerboseLog("Verifying %s generation %d (policy %s)", trace, info.Generation, policy)

	logger := NewCommandLogger(cmd.ErrOrStderr(), opts.Verbose).With("command", "verify", "trace", trace)
	prog, _, errs := loadProgram(specsDir, policy, logger)
	if len(errs) > 0 {
		return outputCommandErrors(formatter, fmt.Sprintf("Compilation failed with %d error(s)", len(errs)), errs)
	}

	drifts, err := st.Verify(ctx, trace, prog)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLedger, err.Error())
	}

	result := VerifyResult{
		Trace:      trace,
		Generation: info.Generation,
		Policy:     policy.String(),
		Drifts:     make([]DriftResult, len(drifts)),
	}
	for i, d := range drifts {
		result.Drifts[i] = DriftResult{Key: d.Key.String(), Kind: string(d.Kind), Recorded: d.Recorded, Current: d.Current}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputVerifyText(formatter, result, drifts)
	}

	if len(drifts) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d layout(s) drifted", len(drifts)))
	}
	return nil
}

func outputVerifyText(formatter *OutputFormatter, result VerifyResult, drifts []store.Drift) {
	if len(drifts) == 0 {
		formatter.OK("Layouts of %s match generation %d", result.Trace, result.Generation)
		return
	}
	formatter.Fail("%d layout(s) of %s drifted from generation %d", len(drifts), result.Trace, result.Generation)
	fmt.Fprintln(formatter.Writer)
	for _, d := range drifts {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}
}
