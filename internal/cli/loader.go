package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tracelayout/internal/compiler"
	"github.com/roach88/tracelayout/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a trace description.
type LoadResult struct {
	Trace     *ir.TraceType // unresolved; nil when compilation stopped early
	CUEValue  cue.Value     // The raw CUE value for additional processing
	FileCount int           // Number of description files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads the trace description in dir: the CUE package of the
// directory unified with its JSON and JSONC files.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means nothing could be compiled; errors are then load
// errors (directory not found, no files, CUE failures).
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, jsonFiles, err := FindSpecFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles)+len(jsonFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no description files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	var value cue.Value
	if len(cueFiles) > 0 {
		instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
		if len(instances) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
		}
		value = ctx.BuildInstance(inst)
		if err := value.Err(); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
		}
	}

	if len(jsonFiles) > 0 {
		jv, err := compiler.LoadFiles(ctx, jsonFiles)
		if err != nil {
			return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
		}
		if value.Exists() {
			value = value.Unify(jv)
		} else {
			value = jv
		}
	}

	if err := value.Validate(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles) + len(jsonFiles),
	}

	traceVal := value.LookupPath(cue.ParsePath("trace"))
	if mode == LoadModeFailFast {
		tt, err := compiler.CompileTrace(traceVal)
		if err != nil {
			return result, []error{err}
		}
		result.Trace = tt
		return result, nil
	}

	tt, errs := compiler.CompileTraceAll(traceVal)
	result.Trace = tt
	return result, errs
}

// FindSpecFiles returns the .cue files and the .json/.jsonc files directly
// in dir, each sorted by name. Subdirectories are not descended into,
// matching the CUE package loader.
func FindSpecFiles(dir string) (cueFiles, jsonFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !compiler.IsDescriptionFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if strings.EqualFold(filepath.Ext(path), ".cue") {
			cueFiles = append(cueFiles, path)
		} else {
			jsonFiles = append(jsonFiles, path)
		}
	}
	sort.Strings(cueFiles)
	sort.Strings(jsonFiles)
	return cueFiles, jsonFiles, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info, keeping the compiler's code.
func convertCompileError(err error, fallback string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    compileErr.Code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No description files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeLedger      = "E008" // Layout ledger error
)
