package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracelayout/internal/compiler"
)

func TestLoadSpecsUnifiesCUEAndJSONC(t *testing.T) {
	result, errs := LoadSpecs(counterSpecs, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.FileCount)

	require.Len(t, result.Trace.DataStreamTypes, 1)
	dst := result.Trace.DataStreamTypes[0]
	names := make([]string, len(dst.EventRecordTypes))
	for i, ert := range dst.EventRecordTypes {
		names[i] = ert.Name
	}
	assert.ElementsMatch(t, []string{"tick", "hello"}, names)
}

func TestLoadSpecsJSONOnly(t *testing.T) {
	dir := t.TempDir()
	src := `{"trace": {"byte_order": "le", "data_stream_type": {"default": {"event_record_type": {"ev": {}}}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trace.json"), []byte(src), 0644))

	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Trace.DataStreamTypes, 1)
}

func TestLoadSpecsErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "trace.cue")
	require.NoError(t, os.WriteFile(file, []byte("package trace\n"), 0644))

	conflict := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(conflict, "a.cue"), []byte("package trace\ntrace: byte_order: \"le\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(conflict, "b.jsonc"), []byte(`{"trace": {"byte_order": "be"}}`), 0644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", "/nonexistent/specs", ErrCodeNotFound},
		{"not a directory", file, ErrCodeNotFound},
		{"empty", t.TempDir(), ErrCodeNoFiles},
		{"conflicting files", conflict, ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, errs := LoadSpecs(tt.dir, LoadModeCollectAll)
			assert.Nil(t, result)
			require.Len(t, errs, 1)
			code, _ := parseCompileError(errs[0])
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestLoadSpecsCompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := `package trace

trace: {
	byte_order: "le"
	data_stream_type: default: event_record_type: {
		a: payload: {class: "structure", members: [{name: "x", field_type: {class: "blob"}}]}
		b: payload: {class: "structure", members: [{name: "y", field_type: {class: "blob"}}]}
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trace.cue"), []byte(src), 0644))

	_, errs := LoadSpecs(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 2)
	for _, err := range errs {
		code, _ := parseCompileError(err)
		assert.Equal(t, compiler.ErrUnknownClass, code)
		assert.NotEmpty(t, errorPos(err))
	}
}

func TestFindSpecFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.cue", "a.cue", "x.jsonc", "w.json", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.cue"), 0755))

	cueFiles, jsonFiles, err := FindSpecFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue"), filepath.Join(dir, "b.cue")}, cueFiles)
	assert.Equal(t, []string{filepath.Join(dir, "w.json"), filepath.Join(dir, "x.jsonc")}, jsonFiles)
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no description files found in x"}
	assert.Equal(t, "E003: no description files found in x", err.Error())
}
