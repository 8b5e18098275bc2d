package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracelayout/internal/ir"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFilesUnifiesFormats(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "order.jsonc", `{
		// trace-wide settings
		"trace": {"byte_order": "be",},
	}`)
	b := writeFile(t, dir, "streams.cue", `trace: data_stream_type: default: event_record_type: ping: {}`)

	v, err := LoadFiles(cuecontext.New(), []string{a, b})
	require.NoError(t, err)

	tt, err := CompileTrace(v.LookupPath(cue.ParsePath("trace")))
	require.NoError(t, err)
	assert.Equal(t, ir.BigEndian, tt.ByteOrder)
	require.Len(t, tt.DataStreamTypes, 1)
	assert.Equal(t, "ping", tt.DataStreamTypes[0].EventRecordTypes[0].Name)
}

func TestLoadFilesTestdata(t *testing.T) {
	for _, name := range []string{"trace.cue", "trace.jsonc"} {
		v, err := LoadFiles(cuecontext.New(), []string{filepath.Join("testdata", name)})
		require.NoError(t, err, name)
		_, err = CompileTrace(v.LookupPath(cue.ParsePath("trace")))
		require.NoError(t, err, name)
	}
}

func TestLoadFilesErrors(t *testing.T) {
	dir := t.TempDir()
	le := writeFile(t, dir, "le.cue", `trace: byte_order: "le"`)
	be := writeFile(t, dir, "be.json", `{"trace": {"byte_order": "be"}}`)
	yml := writeFile(t, dir, "trace.yaml", `trace: {}`)
	broken := writeFile(t, dir, "broken.cue", `trace: {`)

	tests := []struct {
		name  string
		paths []string
		code  string
	}{
		{"no files", nil, ErrMissingField},
		{"conflict", []string{le, be}, ErrCUE},
		{"syntax", []string{broken}, ErrCUE},
		{"unsupported", []string{yml}, ""},
		{"missing", []string{filepath.Join(dir, "nope.cue")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFiles(cuecontext.New(), tt.paths)
			require.Error(t, err)
			if tt.code == "" {
				return
			}
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestIsDescriptionFile(t *testing.T) {
	assert.True(t, IsDescriptionFile("a/trace.cue"))
	assert.True(t, IsDescriptionFile("trace.JSONC"))
	assert.True(t, IsDescriptionFile("trace.json"))
	assert.False(t, IsDescriptionFile("trace.yaml"))
	assert.False(t, IsDescriptionFile("cue"))
}
