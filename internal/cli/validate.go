package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tracelayout/internal/compiler"
	"github.com/roach88/tracelayout/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool       `json:"valid"`
	Errors []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate a trace description without building layouts",
		Long: `Validate a trace description without building operation trees.

Checks the field types against their contract (sizes, alignments, unique
member names) and the rules that make packets decodable: packet sizes,
stream and event record type IDs, magic placement.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d description file(s) in %s", loadResult.FileCount, specsDir)

	var problems []error
	problems = append(problems, loadErrors...)
	if len(loadErrors) == 0 {
		logTypes(formatter, loadResult.Trace)
		for _, e := range compiler.Validate(loadResult.Trace) {
			problems = append(problems, e)
		}
	}

	if len(problems) > 0 {
		return outputValidationErrors(formatter, problems)
	}
	return outputValidateSuccess(formatter)
}

func logTypes(formatter *OutputFormatter, tt *ir.TraceType) {
	if tt == nil {
		return
	}
	for _, dst := range tt.DataStreamTypes {
		formatter.VerboseLog("Validating data stream type: %s (%d event record type(s))", dst.Name, len(dst.EventRecordTypes))
	}
}

// outputValidateSuccess outputs successful validation.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	formatter.OK("All validations passed")
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputValidationErrors lists every problem found. Validation failures
// are command errors (exit code 2), as with compile.
func outputValidationErrors(formatter *OutputFormatter, errs []error) error {
	result := ValidationResult{Valid: false, Errors: make([]CLIError, len(errs))}
	for i, err := range errs {
		code, message := parseCompileError(err)
		result.Errors[i] = CLIError{Code: code, Message: message}
	}

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: "error", Error: &result.Errors[0], Data: result}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	formatter.Fail("Validation failed")
	fmt.Fprintln(formatter.Writer)
	for i, err := range errs {
		if pos := errorPos(err); pos != "" {
			fmt.Fprintln(formatter.Writer, pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", result.Errors[i].Code, result.Errors[i].Message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
