// Package layout compiles a resolved field-type graph into operation trees.
//
// An operation tree lists, in byte-stream order, every alignment and write a
// serializer performs for one root scope. Each write carries the statically
// known bit offset within the current byte, when the compiler can prove it.
//
// # Offset Rules
//
//   - A root scope starts byte aligned
//   - Aligning to a multiple of 8 makes the offset known 0; smaller
//     alignments round a known offset up and leave an unknown one unknown
//   - A nested compound whose alignment is not a multiple of 8, and any
//     compound inside an array body, starts with an unknown offset
//   - A scalar write of S bits moves a known offset to (offset + S) mod 8
//   - Strings end byte aligned
//   - The offset after an array is unknown
//
// # Usage
//
//	root, err := layout.Build(payload, "_p", layout.WithAlignPolicy(layout.AlignAlways))
//	size, ok := layout.StaticSize(root)
//
// Build is a pure function of its arguments: building the same graph twice
// yields identical trees.
package layout
