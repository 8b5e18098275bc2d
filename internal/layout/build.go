package layout

import (
	"fmt"
	"maps"

	"github.com/roach88/tracelayout/internal/ir"
)

// AlignPolicy decides whether provably redundant alignments are emitted.
type AlignPolicy uint8

const (
	// AlignAlways emits an Align op for every alignment greater than 1.
	AlignAlways AlignPolicy = iota
	// AlignElideRedundant omits an Align op when the known offset already
	// satisfies an alignment of at most 8 bits.
	AlignElideRedundant
)

func (p AlignPolicy) String() string {
	if p == AlignElideRedundant {
		return "elide"
	}
	return "always"
}

// ParseAlignPolicy accepts "always" and "elide".
func ParseAlignPolicy(s string) (AlignPolicy, error) {
	switch s {
	case "", "always":
		return AlignAlways, nil
	case "elide":
		return AlignElideRedundant, nil
	default:
		return AlignAlways, fmt.Errorf("unknown align policy %q (want always or elide)", s)
	}
}

// Option configures Build.
type Option func(*builder)

// WithOverrides installs override writers keyed by member name. The table
// only applies to direct members of the root structure.
func WithOverrides(overrides map[string]WriteKind) Option {
	table := maps.Clone(overrides)
	return func(b *builder) {
		b.overrides = table
	}
}

// WithAlignPolicy sets the alignment emission policy.
func WithAlignPolicy(p AlignPolicy) Option {
	return func(b *builder) {
		b.policy = p
	}
}

type builder struct {
	overrides map[string]WriteKind
	policy    AlignPolicy
}

// cursor is the traversal state handed down the walk. It is passed by value:
// compiling a branch twice from the same cursor gives the same result.
type cursor struct {
	path   NamePath
	level  int
	offset Offset
}

// Build compiles the resolved structure root into an operation tree. name
// is the root prefix of every name path, such as "_p" for a payload.
func Build(root *ir.FieldType, name string, opts ...Option) (*Compound, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	if root == nil {
		return nil, &ir.ContractError{Code: ir.ErrUnknownKind, Path: name, Message: "nil root field type"}
	}
	if root.Kind() != ir.KindStructure {
		return nil, &ir.ContractError{Code: ir.ErrRootNotStructure, Path: name,
			Message: fmt.Sprintf("root must be a structure, got %s", root.Kind())}
	}

	ops, _, err := b.build(root, name, cursor{offset: Known(0)})
	if err != nil {
		return nil, err
	}
	// A structure's Align op is its first child.
	return ops[0].(*Compound), nil
}

func (b *builder) build(ft *ir.FieldType, name string, cur cursor) ([]Operation, Offset, error) {
	path := cur.path.with(name)
	if !ft.Resolved() {
		return nil, Unknown, contractError(ir.ErrUnresolved, path, "field type is not resolved")
	}

	alignment := ir.EffectiveAlignment(name, ft)

	if kind, ok := b.override(path); ok {
		ops, offset := b.align(nil, ft, path, cur, alignment)
		ops = append(ops, &Write{node: node{ft, path, cur.level}, offset: offset, writer: kind})
		if size, ok := ft.Size(); ok {
			return ops, offset.Add(size), nil
		}
		return ops, Unknown, nil
	}

	switch ft.Kind() {
	case ir.KindStructure:
		return b.buildStructure(ft, path, cur, alignment)
	case ir.KindStaticArray, ir.KindDynamicArray:
		return b.buildArray(ft, path, cur, alignment)
	case ir.KindInteger, ir.KindReal, ir.KindString:
		writer := genericWriter(ft)
		return b.buildScalar(ft, path, cur, alignment, writer)
	default:
		return nil, Unknown, contractError(ir.ErrUnknownKind, path, fmt.Sprintf("unknown field-type kind %s", ft.Kind()))
	}
}

func (b *builder) buildScalar(ft *ir.FieldType, path NamePath, cur cursor, alignment uint, writer WriteKind) ([]Operation, Offset, error) {
	ops, offset := b.align(nil, ft, path, cur, alignment)
	ops = append(ops, &Write{node: node{ft, path, cur.level}, offset: offset, writer: writer})

	if ft.Kind() == ir.KindString {
		return ops, Known(0), nil
	}
	return ops, offset.Add(ft.BitSize()), nil
}

func (b *builder) buildStructure(ft *ir.FieldType, path NamePath, cur cursor, alignment uint) ([]Operation, Offset, error) {
	children, offset := b.align(nil, ft, path, cur, alignment)
	switch {
	case len(path) == 1:
		// Root scopes start byte aligned.
	case cur.level == 0 && alignment%8 == 0:
		offset = Known(0)
	default:
		offset = Unknown
	}

	members := ft.Members()
	for i, m := range members {
		child := cursor{path: path, level: cur.level, offset: offset}

		var (
			ops []Operation
			err error
		)
		switch {
		case m.Type.Kind() == ir.KindDynamicArray:
			lengthName := m.Type.LengthMemberName()
			if lengthName == "" || i == 0 || members[i-1].Name != lengthName {
				return nil, Unknown, contractError(ir.ErrMissingLength, path.with(m.Name),
					"dynamic array is not preceded by its length member")
			}
			ops, offset, err = b.build(m.Type, m.Name, child)
		case lengthOf(members, i) && !b.overridden(child.path.with(m.Name)):
			ops, offset, err = b.buildLength(m, child)
		default:
			ops, offset, err = b.build(m.Type, m.Name, child)
		}
		if err != nil {
			return nil, Unknown, err
		}
		children = append(children, ops...)
	}

	c := &Compound{node: node{ft, path, cur.level}, children: children}
	return []Operation{c}, offset, nil
}

// buildLength emits the length member of the dynamic array that follows it.
func (b *builder) buildLength(m ir.Member, cur cursor) ([]Operation, Offset, error) {
	path := cur.path.with(m.Name)
	if m.Type.Kind() != ir.KindInteger || m.Type.Signed() {
		return nil, Unknown, contractError(ir.ErrMissingLength, path, "array length member must be an unsigned integer")
	}
	return b.buildScalar(m.Type, path, cur, ir.EffectiveAlignment(m.Name, m.Type), WriteArrayLength)
}

func (b *builder) buildArray(ft *ir.FieldType, path NamePath, cur cursor, alignment uint) ([]Operation, Offset, error) {
	ops, _ := b.align(nil, ft, path, cur, alignment)

	// Only the first element starts where the array does. The element's own
	// alignment restores a known offset for byte-aligned elements.
	body := cursor{path: path, level: cur.level + 1, offset: Unknown}
	children, _, err := b.build(ft.Element(), loopSegment(cur.level), body)
	if err != nil {
		return nil, Unknown, err
	}

	c := &Compound{node: node{ft, path, cur.level}, children: children, loopVar: LoopVar(cur.level)}
	return append(ops, c), Unknown, nil
}

// align appends the Align op for alignment (unless the policy elides it)
// and returns the offset once aligned.
func (b *builder) align(ops []Operation, ft *ir.FieldType, path NamePath, cur cursor, alignment uint) ([]Operation, Offset) {
	if alignment <= 1 {
		return ops, cur.offset
	}

	bits, known := cur.offset.Bits()
	redundant := known && alignment <= 8 && bits%alignment == 0
	if !(redundant && b.policy == AlignElideRedundant) {
		ops = append(ops, &Align{node: node{ft, path, cur.level}, alignment: alignment})
	}

	switch {
	case alignment%8 == 0:
		return ops, Known(0)
	case known:
		return ops, Known(ir.AlignUp(bits, alignment))
	default:
		return ops, Unknown
	}
}

func (b *builder) override(path NamePath) (WriteKind, bool) {
	if path.Depth() != 1 || len(b.overrides) == 0 {
		return "", false
	}
	kind, ok := b.overrides[path.Name()]
	return kind, ok
}

func (b *builder) overridden(path NamePath) bool {
	_, ok := b.override(path)
	return ok
}

// lengthOf reports whether members[i] holds the length of members[i+1].
func lengthOf(members []ir.Member, i int) bool {
	if i+1 >= len(members) {
		return false
	}
	next := members[i+1].Type
	return next.Kind() == ir.KindDynamicArray && next.LengthMemberName() == members[i].Name
}

func genericWriter(ft *ir.FieldType) WriteKind {
	switch {
	case ft.Kind() == ir.KindString:
		return WriteString
	case ft.Kind() == ir.KindReal:
		return WriteReal
	case ft.IsEnumeration():
		return WriteEnumeration
	default:
		return WriteInteger
	}
}

func contractError(code string, path NamePath, msg string) error {
	return &ir.ContractError{Code: code, Path: path.String(), Message: msg}
}
