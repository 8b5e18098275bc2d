package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tracelayout/internal/compiler"
	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// buildProgram takes a compiled trace through validation, resolution and
// scope assembly. Validation errors are all returned together.
func buildProgram(tt *ir.TraceType, policy layout.AlignPolicy, logger *slog.Logger) (*scope.Program, []error) {
	if verrs := compiler.Validate(tt); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errs
	}

	resolved, err := ir.ResolveTrace(tt)
	if err != nil {
		return nil, []error{err}
	}
	prog, err := scope.Assemble(resolved, scope.WithAlignPolicy(policy), scope.WithLogger(logger))
	if err != nil {
		return nil, []error{err}
	}
	return prog, nil
}

// loadProgram loads the description in specsDir and builds its program.
// A nil program comes with at least one error.
func loadProgram(specsDir string, policy layout.AlignPolicy, logger *slog.Logger) (*scope.Program, *LoadResult, []error) {
	loaded, errs := LoadSpecs(specsDir, LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, loaded, errs
	}
	prog, errs := buildProgram(loaded.Trace, policy, logger)
	return prog, loaded, errs
}

// parseCompileError extracts error code and message from an error of any
// pipeline stage.
func parseCompileError(err error) (string, string) {
	var (
		loadErr    *LoadError
		compileErr *compiler.CompileError
		validErr   compiler.ValidationError
		contract   *ir.ContractError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code, loadErr.Message
	case errors.As(err, &compileErr):
		return compileErr.Code, compileErr.Field + ": " + compileErr.Message
	case errors.As(err, &validErr):
		return validErr.Code, validErr.Field + ": " + validErr.Message
	case errors.As(err, &contract):
		if contract.Path == "" {
			return contract.Code, contract.Message
		}
		return contract.Code, contract.Path + ": " + contract.Message
	default:
		return ErrCodeGeneric, err.Error()
	}
}

// outputCommandErrors reports pipeline errors and returns the
// command-level exit error.
func outputCommandErrors(formatter *OutputFormatter, title string, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseCompileError(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := formatter.encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, title)
	}

	formatter.Fail("%s", title)
	fmt.Fprintln(formatter.Writer)
	for i, err := range errs {
		if pos := errorPos(err); pos != "" {
			fmt.Fprintln(formatter.Writer, pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}
	return NewExitError(ExitCommandError, title)
}

// errorPos returns "file:line:col" for errors that carry a CUE position.
func errorPos(err error) string {
	var (
		compileErr *compiler.CompileError
		loadErr    *LoadError
	)
	switch {
	case errors.As(err, &compileErr) && compileErr.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d", compileErr.Pos.Filename(), compileErr.Pos.Line(), compileErr.Pos.Column())
	case errors.As(err, &loadErr) && loadErr.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return ""
}
