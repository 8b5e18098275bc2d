package harness

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	return files
}

func TestRunTestdataScenarios(t *testing.T) {
	for _, file := range scenarioFiles(t) {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"aligned_members", "aligned_members_elide", "dynamic_array"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func inlineScenario(assertions string) *Scenario {
	s, err := ParseScenario([]byte(`
name: inline
description: inline scenario
spec: |
  trace: {
    byte_order: "le"
    data_stream_type: default: event_record_type: hello: payload: {
      class: "structure"
      members: [{name: "x", field_type: {class: "unsigned-integer", size: 16}}]
    }
  }
assertions:
` + assertions))
	if err != nil {
		panic(err)
	}
	return s
}

func TestRunReportsFailedAssertions(t *testing.T) {
	tests := []struct {
		name       string
		assertions string
		contains   string
	}{
		{"wrong offset", `
  - {type: operation, stream: default, record: hello, scope: event-record-payload, path: _p_x, kind: write, offset: "3"}`,
			"expected offset 3, got offset 0"},
		{"wrong writer", `
  - {type: operation, stream: default, record: hello, scope: event-record-payload, path: _p_x, kind: write, writer: timestamp}`,
			"expected writer timestamp, got writer integer"},
		{"missing operation", `
  - {type: operation, stream: default, record: hello, scope: event-record-payload, path: _p_y, kind: write}`,
			"no such operation"},
		{"wrong size", `
  - {type: static_size, stream: default, record: hello, scope: event-record-payload, size: "?"}`,
			"expected static size ?, got static size 16"},
		{"wrong count", `
  - {type: count, stream: default, record: hello, scope: event-record-payload, count: 2}`,
			"expected 2 operations"},
		{"missing record", `
  - {type: count, stream: default, record: bye, scope: event-record-payload, count: 2}`,
			`no event record type "bye"`},
		{"missing scope", `
  - {type: count, stream: default, scope: packet-header, count: 2}`,
			"no packet-header scope"},
		{"missing stream", `
  - {type: count, stream: other, scope: packet-header, count: 2}`,
			`no data stream type "other"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := inlineScenario(tt.assertions)
			require.NoError(t, validateScenario(scenario))

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.contains)
		})
	}
}

func TestRunExpectError(t *testing.T) {
	base := `
name: bad
description: bad magic
spec: |
  trace: {
    byte_order: "le"
    packet_header: {
      class: "structure"
      members: [
        {name: "seq", field_type: {class: "unsigned-integer", size: 8}},
        {name: "magic", field_type: {class: "unsigned-integer", size: 32}},
      ]
    }
    data_stream_type: default: event_record_type: hello: {}
  }
`
	t.Run("matching code", func(t *testing.T) {
		s, err := ParseScenario([]byte(base + "expect_error: E125\n"))
		require.NoError(t, err)
		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
		assert.Contains(t, result.ErrorCodes, "E125")
		assert.Nil(t, result.Document)
	})

	t.Run("other code", func(t *testing.T) {
		s, err := ParseScenario([]byte(base + "expect_error: E120\n"))
		require.NoError(t, err)
		result, err := Run(s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "expected error E120")
	})

	t.Run("compiles", func(t *testing.T) {
		s := inlineScenario("")
		s.ExpectError = "E125"
		result, err := Run(s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "compiled successfully")
	})
}

func TestRunCompileFailure(t *testing.T) {
	s := inlineScenario(`
  - {type: count, stream: default, record: hello, scope: event-record-payload, count: 2}`)
	s.Spec = `trace: byte_order: "middle"`

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"E105"}, result.ErrorCodes)
	assert.Contains(t, result.Errors[0], "compilation failed")
}

func TestRunUnreadableSpec(t *testing.T) {
	s := inlineScenario("")
	s.Spec = ""
	s.Specs = []string{filepath.Join(t.TempDir(), "gone.cue")}

	_, err := Run(s)
	assert.Error(t, err)
}

func TestHarnessLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := inlineScenario(`
  - {type: count, stream: default, record: hello, scope: event-record-payload, count: 4}`)
	result, err := New(WithLogger(logger)).Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotZero(t, buf.Len())
}

func TestSnapshotNeedsDocument(t *testing.T) {
	_, err := Snapshot(NewResult())
	assert.Error(t, err)
}

func TestSnapshotMatchesGoldenFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "aligned_members.yaml"))
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	listing, err := Snapshot(result)
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "aligned_members.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(listing))
	assert.False(t, strings.Contains(string(listing), result.Document.ProgramFingerprint))
}
