package export

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

func u(size uint) *ir.FieldType { return ir.MustInteger(size, false) }

func member(name string, ft *ir.FieldType) ir.Member {
	return ir.Member{Name: name, Type: ft}
}

func testDocument(t *testing.T, opts ...scope.Option) *Document {
	t.Helper()
	tickID := uint64(5)
	level := int64(2)
	tt := &ir.TraceType{
		ByteOrder: ir.LittleEndian,
		DataStreamTypes: []*ir.DataStreamType{{
			Name:              "default",
			EventRecordHeader: ir.MustStructure(8, member("id", u(8))),
			EventRecordTypes: []*ir.EventRecordType{
				{Name: "tick", ID: &tickID, LogLevel: &level},
				{Name: "hello", Payload: ir.MustStructure(8,
					member("msg", ir.NewString()),
					member("n", u(32)),
				)},
			},
		}},
	}
	resolved, err := ir.ResolveTrace(tt)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prog, err := scope.Assemble(resolved, append([]scope.Option{scope.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	doc, err := New(prog)
	require.NoError(t, err)
	return doc
}

const header = `    event-record-header size=8 ops=4
      compound _eh structure
        align _eh 8
        align _eh_id 8
        write _eh_id event-record-type-id integer:8 @0
`

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, testDocument(t)))

	want := "layout v1 policy=always byte_order=little-endian\n" +
		"stream default id=0\n" +
		"  record hello id=0\n" +
		header +
		`    event-record-payload size=? ops=6
      compound _p structure
        align _p 8
        align _p_msg 8
        write _p_msg string string @0
        align _p_n 8
        write _p_n integer integer:32 @0
` +
		"  record tick id=5 log_level=2\n" +
		header
	assert.Equal(t, want, buf.String())
}

func TestWriteTextElide(t *testing.T) {
	doc := testDocument(t, scope.WithAlignPolicy(layout.AlignElideRedundant))
	text, err := Marshal(doc, FormatText)
	require.NoError(t, err)

	assert.Contains(t, string(text), "policy=elide")
	assert.Contains(t, string(text), "    event-record-header size=8 ops=2\n")
	assert.NotContains(t, string(text), "align _eh_id")
}

func TestNodeLine(t *testing.T) {
	offset := uint(3)
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"align", &Node{Op: "align", Name: "_p_x", Alignment: 16}, "align _p_x 16"},
		{"known offset", &Node{Op: "write", Name: "_p_x", Writer: "integer", Class: "integer", Size: 5, Offset: &offset},
			"write _p_x integer integer:5 @3"},
		{"unknown offset", &Node{Op: "write", Name: "_p_s", Writer: "string", Class: "string"},
			"write _p_s string string @?"},
		{"static array", &Node{Op: "compound", Name: "_p_a", Class: "static-array", LoopVar: "i", Length: 4},
			"compound _p_a static-array [i] len=4"},
		{"dynamic array", &Node{Op: "compound", Name: "_p_d", Class: "dynamic-array", LoopVar: "j", LengthMember: "_d_len"},
			"compound _p_d dynamic-array [j] len=_d_len"},
		{"structure", &Node{Op: "compound", Name: "_p", Class: "structure"}, "compound _p structure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NodeLine(tt.node))
		})
	}
}

func TestDocumentFields(t *testing.T) {
	doc := testDocument(t)

	assert.Equal(t, ir.LayoutVersion, doc.LayoutVersion)
	assert.Equal(t, "always", doc.Policy)
	assert.Empty(t, doc.UUID)
	assert.Len(t, doc.TraceFingerprint, 64)
	assert.Len(t, doc.ProgramFingerprint, 64)

	require.Len(t, doc.Streams, 1)
	stream := doc.Streams[0]
	assert.Nil(t, stream.Scopes, "no packet header or context")
	require.Len(t, stream.Records, 2)

	hello := stream.Records[0]
	require.Len(t, hello.Scopes, 2)
	payload := hello.Scopes[1]
	assert.Equal(t, "event-record-payload", payload.Scope)
	assert.Nil(t, payload.StaticSize)
	assert.Equal(t, 6, payload.Operations)

	ehdr := hello.Scopes[0]
	require.NotNil(t, ehdr.StaticSize)
	assert.Equal(t, uint(8), *ehdr.StaticSize)
	assert.Equal(t, stream.Records[1].Scopes[0].Fingerprint, ehdr.Fingerprint,
		"records of a stream share the event record header")
}

func TestDocumentUUID(t *testing.T) {
	id := uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")
	tt, err := ir.ResolveTrace(&ir.TraceType{
		UUID:      id,
		ByteOrder: ir.BigEndian,
		DataStreamTypes: []*ir.DataStreamType{
			{Name: "s", EventRecordTypes: []*ir.EventRecordType{{Name: "r"}}},
		},
	})
	require.NoError(t, err)
	prog, err := scope.Assemble(tt, scope.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	doc, err := New(prog)
	require.NoError(t, err)
	assert.Equal(t, id.String(), doc.UUID)
	assert.Equal(t, "big-endian", doc.ByteOrder)
}

func TestJSONRoundTrip(t *testing.T) {
	doc := testDocument(t)
	data, err := Marshal(doc, FormatJSON)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), `"data_stream_types"`)

	got, err := Decode(bytes.NewReader(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestCBORRoundTrip(t *testing.T) {
	doc := testDocument(t)
	first, err := Marshal(doc, FormatCBOR)
	require.NoError(t, err)
	second, err := Marshal(testDocument(t), FormatCBOR)
	require.NoError(t, err)
	assert.Equal(t, first, second, "CBOR encoding must be deterministic")

	got, err := Decode(bytes.NewReader(first), FormatCBOR)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDecodeRejectsListings(t *testing.T) {
	_, err := Decode(strings.NewReader(""), FormatText)
	assert.Error(t, err)
}

func TestWriteMarkdown(t *testing.T) {
	data, err := Marshal(testDocument(t), FormatMarkdown)
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "# Trace layout\n"))
	assert.Contains(t, md, "## Data stream type `default` (id 0)")
	assert.Contains(t, md, "### Event record type `hello` (id 0)")
	assert.Contains(t, md, "#### event-record-payload")
	assert.Contains(t, md, "| compound | `_p` |  | structure |  |  |  |")
	assert.Contains(t, md, "| write | &nbsp;&nbsp;`_p_n` | integer | integer | 32 |  | 0 |")
}

func TestWriteHTML(t *testing.T) {
	data, err := Marshal(testDocument(t), FormatHTML)
	require.NoError(t, err)
	page := string(data)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>\n"))
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<code>_p_msg</code>")
	assert.True(t, strings.HasSuffix(page, "</html>\n"))
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"out.json":     FormatJSON,
		"out.CBOR":     FormatCBOR,
		"listing.txt":  FormatText,
		"README.md":    FormatMarkdown,
		"layout.html":  FormatHTML,
		"dir/x.y.json": FormatJSON,
	}
	for path, want := range tests {
		got, err := FormatForPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatForPath("out.yaml")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("markdown")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	assert.True(t, FormatCBOR.Binary())
	assert.False(t, FormatText.Binary())

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
