package compiler

import (
	"cuelang.org/go/cue"
	"github.com/tidwall/jsonc"
)

// JSONCValue evaluates a JSON-with-comments description as a CUE value so
// it can be unified with CUE sources. Comments and trailing commas are
// stripped first.
func JSONCValue(ctx *cue.Context, src []byte, filename string) cue.Value {
	return ctx.CompileBytes(jsonc.ToJSON(src), cue.Filename(filename))
}
