// Package export renders compiled operation trees for external consumers:
// code emitters read JSON or CBOR documents, people read the text,
// Markdown and HTML listings.
package export

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// Document is the exported form of a compiled program.
type Document struct {
	LayoutVersion      string   `json:"layout_version"`
	CompilerVersion    string   `json:"compiler_version"`
	Policy             string   `json:"policy"`
	TraceFingerprint   string   `json:"trace_fingerprint"`
	ProgramFingerprint string   `json:"program_fingerprint"`
	UUID               string   `json:"uuid,omitempty"`
	ByteOrder          string   `json:"byte_order"`
	Streams            []Stream `json:"data_stream_types"`
}

// Stream is one data stream type with its packet scopes.
type Stream struct {
	Name    string   `json:"name"`
	ID      uint64   `json:"id"`
	Scopes  []Scope  `json:"scopes,omitempty"`
	Records []Record `json:"event_record_types"`
}

// Record is one event record type with its ordered scopes.
type Record struct {
	Name     string  `json:"name"`
	ID       uint64  `json:"id"`
	LogLevel *int64  `json:"log_level,omitempty"`
	Scopes   []Scope `json:"scopes,omitempty"`
}

// Scope is the operation tree of one root scope.
type Scope struct {
	Scope       string `json:"scope"`
	Fingerprint string `json:"fingerprint"`
	// StaticSize is nil when the size depends on runtime values.
	StaticSize *uint `json:"static_size,omitempty"`
	Operations int   `json:"operations"`
	Tree       *Node `json:"tree"`
}

// Node is one operation. Offset is nil when it is not statically known.
type Node struct {
	Op           string  `json:"op"`
	Name         string  `json:"name"`
	Class        string  `json:"class,omitempty"`
	Alignment    uint    `json:"alignment,omitempty"`
	Writer       string  `json:"writer,omitempty"`
	Offset       *uint   `json:"offset,omitempty"`
	Size         uint    `json:"size,omitempty"`
	ByteOrder    string  `json:"byte_order,omitempty"`
	LoopVar      string  `json:"loop_var,omitempty"`
	Length       uint    `json:"length,omitempty"`
	LengthMember string  `json:"length_member,omitempty"`
	Children     []*Node `json:"children,omitempty"`
}

// New builds the document of a compiled program.
func New(prog *scope.Program) (*Document, error) {
	traceFP, err := ir.TraceFingerprint(prog.Trace)
	if err != nil {
		return nil, fmt.Errorf("trace fingerprint: %w", err)
	}
	progFP, err := scope.Fingerprint(prog)
	if err != nil {
		return nil, fmt.Errorf("program fingerprint: %w", err)
	}

	doc := &Document{
		LayoutVersion:      ir.LayoutVersion,
		CompilerVersion:    ir.CompilerVersion,
		Policy:             prog.Policy.String(),
		TraceFingerprint:   traceFP,
		ProgramFingerprint: progFP,
		ByteOrder:          prog.Trace.ByteOrder.String(),
	}
	if prog.Trace.UUID != uuid.Nil {
		doc.UUID = prog.Trace.UUID.String()
	}

	for _, s := range prog.Streams {
		stream := Stream{Name: s.Type.Name, ID: s.Type.DataStreamTypeID()}
		if stream.Scopes, err = newScopes(s.Packet()); err != nil {
			return nil, fmt.Errorf("data stream type %q: %w", s.Type.Name, err)
		}
		for _, r := range s.Records {
			rec := Record{Name: r.Type.Name, ID: r.Type.EventRecordTypeID(), LogLevel: r.Type.LogLevel}
			if rec.Scopes, err = newScopes(r.Actions()); err != nil {
				return nil, fmt.Errorf("event record type %q: %w", r.Type.Name, err)
			}
			stream.Records = append(stream.Records, rec)
		}
		doc.Streams = append(doc.Streams, stream)
	}
	return doc, nil
}

func newScopes(trees []scope.ScopedTree) ([]Scope, error) {
	var out []Scope
	for _, st := range trees {
		fp, err := layout.Fingerprint(st.Tree)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Scope, err)
		}
		sc := Scope{
			Scope:       st.Scope.String(),
			Fingerprint: fp,
			Operations:  CountOperations(st.Tree),
			Tree:        NewNode(st.Tree),
		}
		if size, ok := layout.StaticSize(st.Tree); ok {
			sc.StaticSize = &size
		}
		out = append(out, sc)
	}
	return out, nil
}

// NewNode converts an operation tree.
func NewNode(op layout.Operation) *Node {
	ft := op.FieldType()
	n := &Node{Op: op.Kind().String(), Name: op.Path().String()}

	switch op := op.(type) {
	case *layout.Align:
		n.Alignment = op.Alignment()
	case *layout.Write:
		n.Class = ft.Kind().String()
		n.Writer = string(op.Writer())
		if bits, ok := op.Offset().Bits(); ok {
			n.Offset = &bits
		}
		if ft.Kind().IsBitArray() {
			n.Size = ft.BitSize()
			n.ByteOrder = ft.ByteOrder().String()
		} else if size, ok := ft.Size(); ok {
			n.Size = size
		}
	case *layout.Compound:
		n.Class = ft.Kind().String()
		n.LoopVar = op.LoopVar()
		if ft.Kind() == ir.KindStaticArray {
			n.Length = ft.Length()
		}
		n.LengthMember = ft.LengthMemberName()
		for _, child := range op.Children() {
			n.Children = append(n.Children, NewNode(child))
		}
	}
	return n
}

// CountOperations returns the number of operations in the tree, the root
// included.
func CountOperations(op layout.Operation) int {
	n := 0
	layout.Walk(op, func(layout.Operation) bool {
		n++
		return true
	})
	return n
}
