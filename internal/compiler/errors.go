package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tracelayout/internal/ir"
)

// Description error codes (E101-E119). Field-type contract violations keep
// their ir codes (E201-E211).
const (
	ErrMissingField   = "E101" // required attribute absent
	ErrBadValue       = "E102" // attribute has the wrong CUE kind or value
	ErrUnknownClass   = "E103" // unknown field-type class
	ErrBadUUID        = "E104" // trace uuid is neither "auto" nor RFC 4122 text
	ErrBadByteOrder   = "E105" // unknown byte order spelling
	ErrCUE            = "E106" // CUE evaluation error
	ErrBadMemberEntry = "E107" // structure member without name or field_type
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error, field string) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: ErrCUE, Field: field, Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	ce := &CompileError{Code: ErrCUE, Field: field, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// fromContract converts a field-type contract violation into a CompileError
// located at pos. Other errors pass through.
func fromContract(err error, field string, pos token.Pos) error {
	var contract *ir.ContractError
	if !errors.As(err, &contract) {
		return err
	}
	if contract.Path != "" {
		field = field + "." + contract.Path
	}
	return &CompileError{Code: contract.Code, Field: field, Message: contract.Message, Pos: pos}
}
