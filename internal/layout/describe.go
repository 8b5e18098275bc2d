package layout

import "github.com/roach88/tracelayout/internal/ir"

// Describe returns a plain, canonical-JSON-compatible description of an
// operation tree. Unknown offsets are omitted.
func Describe(op Operation) map[string]any {
	d := map[string]any{
		"op":   op.Kind().String(),
		"name": op.Path().String(),
	}
	ft := op.FieldType()

	switch op := op.(type) {
	case *Align:
		d["alignment"] = op.alignment
	case *Write:
		d["writer"] = string(op.writer)
		d["class"] = ft.Kind().String()
		if bits, ok := op.offset.Bits(); ok {
			d["offset"] = bits
		}
		if ft.Kind().IsBitArray() {
			d["size"] = ft.BitSize()
			d["byte_order"] = ft.ByteOrder().String()
		} else if size, ok := ft.Size(); ok {
			d["size"] = size
		}
	case *Compound:
		d["class"] = ft.Kind().String()
		if op.loopVar != "" {
			d["loop_var"] = op.loopVar
		}
		if ft.Kind() == ir.KindStaticArray {
			d["length"] = ft.Length()
		}
		if ft.Kind() == ir.KindDynamicArray {
			d["length_member"] = ft.LengthMemberName()
		}
		children := make([]any, len(op.children))
		for i, child := range op.children {
			children[i] = Describe(child)
		}
		d["children"] = children
	}
	return d
}

// Fingerprint identifies a tree by the canonical JSON of its description.
func Fingerprint(op Operation) (string, error) {
	return ir.Fingerprint(ir.DomainScope, Describe(op))
}
