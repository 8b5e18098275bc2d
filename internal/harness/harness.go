package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tracelayout/internal/compiler"
	"github.com/roach88/tracelayout/internal/export"
	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// Harness runs scenarios.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the scope assembler. Logs are
// discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(scenario)
}

// Run compiles the scenario's description and checks its assertions.
//
// Compilation errors fail the result unless they carry the code named by
// ExpectError. The returned error is reserved for scenarios that cannot be
// run at all, such as unreadable spec files.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}
	policy, err := layout.ParseAlignPolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	doc, compileErrs, err := h.compile(scenario, policy)
	if err != nil {
		return nil, err
	}
	for _, e := range compileErrs {
		result.ErrorCodes = append(result.ErrorCodes, errorCode(e))
	}

	if scenario.ExpectError != "" {
		switch {
		case len(compileErrs) == 0:
			result.AddError(fmt.Sprintf("expected error %s, compiled successfully", scenario.ExpectError))
		case !slices.Contains(result.ErrorCodes, scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected error %s, got %s", scenario.ExpectError, joinErrors(compileErrs)))
		}
		return result, nil
	}

	if len(compileErrs) > 0 {
		result.AddError("compilation failed: " + joinErrors(compileErrs))
		return result, nil
	}
	result.Document = doc

	for i, a := range scenario.Assertions {
		if err := checkAssertion(doc, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// compile runs the description through loading, validation and assembly.
// Description errors come back in the error list; err is set only when the
// spec files cannot be read.
func (h *Harness) compile(scenario *Scenario, policy layout.AlignPolicy) (*export.Document, []error, error) {
	ctx := cuecontext.New()

	var v cue.Value
	if scenario.Spec != "" {
		v = ctx.CompileString(scenario.Spec, cue.Filename(scenario.Name+".cue"))
		if err := v.Validate(); err != nil {
			return nil, []error{&compiler.CompileError{Code: compiler.ErrCUE, Field: "trace", Message: err.Error()}}, nil
		}
	} else {
		var err error
		v, err = compiler.LoadFiles(ctx, scenario.Specs)
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, []error{err}, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}

	tt, errs := compiler.CompileTraceAll(v.LookupPath(cue.ParsePath("trace")))
	if len(errs) > 0 {
		return nil, errs, nil
	}

	if verrs := compiler.Validate(tt); len(verrs) > 0 {
		out := make([]error, len(verrs))
		for i, e := range verrs {
			out[i] = e
		}
		return nil, out, nil
	}

	resolved, err := ir.ResolveTrace(tt)
	if err != nil {
		return nil, []error{err}, nil
	}
	prog, err := scope.Assemble(resolved, scope.WithAlignPolicy(policy), scope.WithLogger(h.logger))
	if err != nil {
		return nil, []error{err}, nil
	}
	doc, err := export.New(prog)
	if err != nil {
		return nil, nil, err
	}
	return doc, nil, nil
}

// errorCode extracts the stable code of a compilation error.
func errorCode(err error) string {
	var (
		ce *compiler.CompileError
		ve compiler.ValidationError
		ke *ir.ContractError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.As(err, &ve):
		return ve.Code
	case errors.As(err, &ke):
		return ke.Code
	default:
		return ""
	}
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
