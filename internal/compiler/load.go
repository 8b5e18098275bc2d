package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
)

// IsDescriptionFile reports whether path has an extension LoadFiles reads.
func IsDescriptionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue", ".json", ".jsonc":
		return true
	default:
		return false
	}
}

// LoadFiles evaluates every file in ctx and unifies the results. CUE files
// are compiled standalone, without package imports; JSON and JSONC files
// go through JSONCValue.
func LoadFiles(ctx *cue.Context, paths []string) (cue.Value, error) {
	if len(paths) == 0 {
		return cue.Value{}, &CompileError{Code: ErrMissingField, Field: "trace", Message: "no description files"}
	}

	var unified cue.Value
	for i, path := range paths {
		if !IsDescriptionFile(path) {
			return cue.Value{}, fmt.Errorf("%s: unsupported description file", path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read description: %w", err)
		}

		var v cue.Value
		if strings.EqualFold(filepath.Ext(path), ".cue") {
			v = ctx.CompileBytes(src, cue.Filename(path))
		} else {
			v = JSONCValue(ctx, src, path)
		}
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err, "trace")
		}

		if i == 0 {
			unified = v
		} else {
			unified = unified.Unify(v)
		}
	}

	// Err only reports a bottom root; conflicts sit deeper.
	if err := unified.Validate(); err != nil {
		return cue.Value{}, formatCUEError(err, "trace")
	}
	return unified, nil
}
