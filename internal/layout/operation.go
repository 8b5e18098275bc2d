package layout

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tracelayout/internal/ir"
)

// OpKind identifies the operation variant.
type OpKind uint8

const (
	OpAlign OpKind = iota + 1
	OpWrite
	OpCompound
)

// String returns the lower-case name used in exported documents.
func (k OpKind) String() string {
	switch k {
	case OpAlign:
		return "align"
	case OpWrite:
		return "write"
	case OpCompound:
		return "compound"
	default:
		return "invalid"
	}
}

// Operation is one node of an operation tree. Implementations are *Align,
// *Write and *Compound; all are immutable once Build returns.
type Operation interface {
	Kind() OpKind
	// FieldType returns the field type the operation was built from.
	FieldType() *ir.FieldType
	// Path returns the name path of the field. The slice is a copy.
	Path() NamePath
	// Level returns the array nesting level the operation was built at.
	Level() int
}

type node struct {
	ft    *ir.FieldType
	path  NamePath
	level int
}

func (n *node) FieldType() *ir.FieldType { return n.ft }
func (n *node) Path() NamePath { return slices.Clone(n.path) }
func (n *node) Level() int { return n.level }

// Align pads the output up to a multiple of Alignment bits.
type Align struct {
	node
	alignment uint
}

func (*Align) Kind() OpKind { return OpAlign }

// Alignment returns the alignment in bits (always > 1).
func (a *Align) Alignment() uint { return a.alignment }

// Write serializes one scalar, or one whole field for override writes.
type Write struct {
	node
	offset Offset
	writer WriteKind
}

func (*Write) Kind() OpKind { return OpWrite }

// Offset returns the statically known bit offset within the current byte,
// taken after alignment and before the write.
func (w *Write) Offset() Offset { return w.offset }

// Writer returns the writer the emitter must use for this field.
func (w *Write) Writer() WriteKind { return w.writer }

// Compound groups the operations of a structure or of one array element.
// For arrays the children run once per element.
type Compound struct {
	node
	children []Operation
	loopVar  string
}

func (*Compound) Kind() OpKind { return OpCompound }

// Children returns a copy of the child operations in emission order.
func (c *Compound) Children() []Operation { return slices.Clone(c.children) }

// Len returns the number of children.
func (c *Compound) Len() int { return len(c.children) }

// Child returns the i-th child.
func (c *Compound) Child(i int) Operation { return c.children[i] }

// LoopVar returns the loop variable of an array compound, "" for structures.
func (c *Compound) LoopVar() string { return c.loopVar }

// IsArray reports whether the compound repeats its children per element.
func (c *Compound) IsArray() bool { return c.ft.Kind().IsArray() }

// Offset is the bit position within the current byte, or unknown.
// The zero value is unknown.
type Offset struct {
	bits  uint8
	known bool
}

// Unknown is the offset the compiler cannot prove.
var Unknown = Offset{}

// Known returns the known offset bits mod 8.
func Known(bits uint) Offset {
	return Offset{bits: uint8(bits % 8), known: true}
}

// Bits returns the offset and whether it is known.
func (o Offset) Bits() (uint, bool) { return uint(o.bits), o.known }

// IsKnown reports whether the offset is statically known.
func (o Offset) IsKnown() bool { return o.known }

// Add advances a known offset by size bits. Unknown stays unknown.
func (o Offset) Add(size uint) Offset {
	if !o.known {
		return Unknown
	}
	return Known(uint(o.bits) + size)
}

func (o Offset) String() string {
	if !o.known {
		return "?"
	}
	return strconv.Itoa(int(o.bits))
}

// MarshalJSON encodes a known offset as its number and unknown as null.
func (o Offset) MarshalJSON() ([]byte, error) {
	if !o.known {
		return []byte("null"), nil
	}
	return json.Marshal(o.bits)
}

// NamePath is the root prefix followed by member names and loop segments.
type NamePath []string

// String renders the source-variable name: members are joined with '_' and
// loop segments are appended as is, e.g. "_p_arr[i]_x".
func (p NamePath) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 && !isLoopSegment(seg) {
			b.WriteByte('_')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Name returns the last segment.
func (p NamePath) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Depth returns the number of segments below the root prefix.
func (p NamePath) Depth() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

func (p NamePath) with(seg string) NamePath {
	out := make(NamePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

func isLoopSegment(seg string) bool {
	return strings.HasPrefix(seg, "[")
}

// LoopVar returns the loop variable for an array at nesting level:
// i, j, k, then k1, k2 and so on.
func LoopVar(level int) string {
	switch level {
	case 0:
		return "i"
	case 1:
		return "j"
	case 2:
		return "k"
	default:
		return "k" + strconv.Itoa(level-2)
	}
}

func loopSegment(level int) string {
	return "[" + LoopVar(level) + "]"
}

// WriteKind selects the writer an emitter uses for a Write leaf.
type WriteKind string

// Generic writers.
const (
	WriteInteger     WriteKind = "integer"
	WriteEnumeration WriteKind = "enumeration"
	WriteReal        WriteKind = "real"
	WriteString      WriteKind = "string"
	WriteArrayLength WriteKind = "array-length"
)

// Override writers, installed per root scope for special members.
const (
	WriteMagic                 WriteKind = "magic"
	WriteUUID                  WriteKind = "uuid"
	WriteDataStreamTypeID      WriteKind = "data-stream-type-id"
	WriteEventRecordTypeID     WriteKind = "event-record-type-id"
	WriteTimestamp             WriteKind = "timestamp"
	WritePacketTotalSize       WriteKind = "packet-total-size"
	WritePacketContentSize     WriteKind = "packet-content-size"
	WriteEndTimestamp          WriteKind = "end-timestamp"
	WriteDiscardedEventRecords WriteKind = "discarded-event-records"
	WritePacketSequenceNumber  WriteKind = "packet-sequence-number"
)

var overrideKinds = []WriteKind{
	WriteMagic, WriteUUID, WriteDataStreamTypeID, WriteEventRecordTypeID,
	WriteTimestamp, WritePacketTotalSize, WritePacketContentSize,
	WriteEndTimestamp, WriteDiscardedEventRecords, WritePacketSequenceNumber,
}

// IsOverride reports whether k is an override writer.
func (k WriteKind) IsOverride() bool {
	return slices.Contains(overrideKinds, k)
}

// ParseWriteKind returns the override writer named s.
func ParseWriteKind(s string) (WriteKind, bool) {
	k := WriteKind(s)
	return k, k.IsOverride()
}
