package ir

import (
	"fmt"
	"slices"
)

// Kind tags the variant of a FieldType.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindReal
	KindString
	KindStaticArray
	KindDynamicArray
	KindStructure
)

var kindNames = [...]string{
	KindInvalid:      "invalid",
	KindInteger:      "integer",
	KindReal:         "real",
	KindString:       "string",
	KindStaticArray:  "static-array",
	KindDynamicArray: "dynamic-array",
	KindStructure:    "structure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsBitArray reports whether the kind is a fixed-width scalar.
func (k Kind) IsBitArray() bool {
	return k == KindInteger || k == KindReal
}

// IsArray reports whether the kind is a static or dynamic array.
func (k Kind) IsArray() bool {
	return k == KindStaticArray || k == KindDynamicArray
}

// IsCompound reports whether the kind contains other field types.
func (k Kind) IsCompound() bool {
	return k == KindStructure || k.IsArray()
}

// ByteOrder of a bit array. ByteOrderUnset is only valid before Resolve.
type ByteOrder uint8

const (
	ByteOrderUnset ByteOrder = iota
	LittleEndian
	BigEndian
)

func (bo ByteOrder) String() string {
	switch bo {
	case LittleEndian:
		return "little-endian"
	case BigEndian:
		return "big-endian"
	default:
		return "unset"
	}
}

// ParseByteOrder accepts the long and short spellings used in trace
// descriptions.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "little-endian", "le", "little":
		return LittleEndian, nil
	case "big-endian", "be", "big":
		return BigEndian, nil
	default:
		return ByteOrderUnset, fmt.Errorf("unknown byte order %q", s)
	}
}

// DisplayBase is the preferred radix when an integer is shown to a user.
type DisplayBase uint8

const (
	DisplayDecimal     DisplayBase = 10
	DisplayBinary      DisplayBase = 2
	DisplayOctal       DisplayBase = 8
	DisplayHexadecimal DisplayBase = 16
)

func (b DisplayBase) valid() bool {
	switch b {
	case DisplayBinary, DisplayOctal, DisplayDecimal, DisplayHexadecimal:
		return true
	}
	return false
}

// Range is an inclusive integer range of an enumeration mapping.
type Range struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// Mapping associates a label with a set of inclusive ranges.
type Mapping struct {
	Label  string  `json:"label"`
	Ranges []Range `json:"ranges"`
}

// Member is a named structure member.
type Member struct {
	Name string
	Type *FieldType
}

// FieldType is a node of the field-type graph. Fields are unexported: a
// FieldType is immutable once constructed, and Resolve returns a new graph
// instead of assigning byte orders in place.
type FieldType struct {
	kind Kind

	// bit arrays
	size        uint
	alignment   uint
	byteOrder   ByteOrder
	signed      bool
	displayBase DisplayBase
	mappings    []Mapping

	// arrays
	length      uint
	element     *FieldType
	lengthField *FieldType
	lengthName  string

	// structures
	minAlignment uint
	members      []Member

	resolved bool
}

// BitArrayOption configures an integer, enumeration or real.
type BitArrayOption func(*FieldType)

// WithAlignment sets an explicit alignment (bits).
func WithAlignment(alignment uint) BitArrayOption {
	return func(ft *FieldType) { ft.alignment = alignment }
}

// WithByteOrder sets an explicit byte order instead of inheriting the
// trace default during Resolve.
func WithByteOrder(bo ByteOrder) BitArrayOption {
	return func(ft *FieldType) { ft.byteOrder = bo }
}

// WithDisplayBase sets the preferred display base of an integer.
func WithDisplayBase(base DisplayBase) BitArrayOption {
	return func(ft *FieldType) { ft.displayBase = base }
}

// NewInteger creates an integer field type of size bits.
func NewInteger(size uint, signed bool, opts ...BitArrayOption) (*FieldType, error) {
	if size == 0 || size > 64 {
		return nil, contractErrorf(ErrBadSize, "", "integer size must be within [1, 64], got %d", size)
	}
	ft := &FieldType{
		kind:        KindInteger,
		size:        size,
		signed:      signed,
		displayBase: DisplayDecimal,
	}
	if err := ft.applyBitArrayOptions(opts); err != nil {
		return nil, err
	}
	return ft, nil
}

// NewEnumeration creates an integer field type carrying label mappings.
func NewEnumeration(size uint, signed bool, mappings []Mapping, opts ...BitArrayOption) (*FieldType, error) {
	ft, err := NewInteger(size, signed, opts...)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, contractErrorf(ErrBadMapping, "", "enumeration needs at least one mapping")
	}
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Label == "" {
			return nil, contractErrorf(ErrBadMapping, "", "empty mapping label")
		}
		if seen[m.Label] {
			return nil, contractErrorf(ErrBadMapping, m.Label, "duplicate mapping label")
		}
		seen[m.Label] = true
		if len(m.Ranges) == 0 {
			return nil, contractErrorf(ErrBadMapping, m.Label, "mapping has no ranges")
		}
		for _, r := range m.Ranges {
			if r.Lower > r.Upper {
				return nil, contractErrorf(ErrBadMapping, m.Label, "range lower %d exceeds upper %d", r.Lower, r.Upper)
			}
		}
	}
	ft.mappings = cloneMappings(mappings)
	return ft, nil
}

// NewReal creates a 32-bit or 64-bit floating point field type.
func NewReal(size uint, opts ...BitArrayOption) (*FieldType, error) {
	if size != 32 && size != 64 {
		return nil, contractErrorf(ErrBadSize, "", "real size must be 32 or 64, got %d", size)
	}
	ft := &FieldType{kind: KindReal, size: size}
	if err := ft.applyBitArrayOptions(opts); err != nil {
		return nil, err
	}
	return ft, nil
}

// NewString creates a NUL-terminated string field type.
func NewString() *FieldType {
	return &FieldType{kind: KindString}
}

// NewStaticArray creates an array of length elements.
func NewStaticArray(length uint, element *FieldType) (*FieldType, error) {
	if err := checkElement(element); err != nil {
		return nil, err
	}
	return &FieldType{kind: KindStaticArray, length: length, element: element}, nil
}

// NewDynamicArray creates an array whose length is written as a separate
// unsigned 32-bit, byte-aligned member right before it.
func NewDynamicArray(element *FieldType) (*FieldType, error) {
	if err := checkElement(element); err != nil {
		return nil, err
	}
	return &FieldType{
		kind:        KindDynamicArray,
		element:     element,
		lengthField: &FieldType{kind: KindInteger, size: 32, alignment: 8, displayBase: DisplayDecimal},
	}, nil
}

// NewStructure creates a structure. A zero minimumAlignment means 1.
func NewStructure(minimumAlignment uint, members ...Member) (*FieldType, error) {
	if minimumAlignment == 0 {
		minimumAlignment = 1
	}
	if !isPowerOfTwo(minimumAlignment) {
		return nil, contractErrorf(ErrBadAlignment, "", "minimum alignment %d is not a power of two", minimumAlignment)
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.Type == nil {
			return nil, contractErrorf(ErrUnknownKind, m.Name, "member has no field type")
		}
		if seen[m.Name] {
			return nil, contractErrorf(ErrDuplicateMember, m.Name, "duplicate member name")
		}
		seen[m.Name] = true
	}
	return &FieldType{
		kind:         KindStructure,
		minAlignment: minimumAlignment,
		members:      slices.Clone(members),
	}, nil
}

func (ft *FieldType) applyBitArrayOptions(opts []BitArrayOption) error {
	for _, opt := range opts {
		opt(ft)
	}
	if ft.alignment == 0 {
		ft.alignment = 1
		if ft.size%8 == 0 {
			ft.alignment = 8
		}
	}
	if !isPowerOfTwo(ft.alignment) {
		return contractErrorf(ErrBadAlignment, "", "alignment %d is not a power of two", ft.alignment)
	}
	if ft.displayBase != 0 && !ft.displayBase.valid() {
		return contractErrorf(ErrBadSize, "", "unsupported display base %d", ft.displayBase)
	}
	return nil
}

func checkElement(element *FieldType) error {
	if element == nil {
		return contractErrorf(ErrBadArrayElement, "", "array has no element type")
	}
	switch element.kind {
	case KindStructure, KindDynamicArray:
		return contractErrorf(ErrBadArrayElement, "", "%s cannot be an array element", element.kind)
	case KindInvalid:
		return contractErrorf(ErrUnknownKind, "", "array element has no kind")
	}
	return nil
}

// Kind returns the variant tag.
func (ft *FieldType) Kind() Kind { return ft.kind }

// Resolved reports whether the graph went through Resolve.
func (ft *FieldType) Resolved() bool { return ft.resolved }

// BitSize returns the declared size of a bit array, 0 otherwise.
func (ft *FieldType) BitSize() uint { return ft.size }

// ByteOrder returns the byte order of a bit array.
func (ft *FieldType) ByteOrder() ByteOrder { return ft.byteOrder }

// Signed reports whether an integer is signed.
func (ft *FieldType) Signed() bool { return ft.signed }

// DisplayBase returns the preferred display base of an integer.
func (ft *FieldType) DisplayBase() DisplayBase { return ft.displayBase }

// IsEnumeration reports whether an integer carries mappings.
func (ft *FieldType) IsEnumeration() bool { return len(ft.mappings) > 0 }

// Mappings returns a copy of the enumeration mappings.
func (ft *FieldType) Mappings() []Mapping { return cloneMappings(ft.mappings) }

// Length returns the element count of a static array.
func (ft *FieldType) Length() uint { return ft.length }

// Element returns the element type of an array.
func (ft *FieldType) Element() *FieldType { return ft.element }

// LengthField returns the length integer of a dynamic array.
func (ft *FieldType) LengthField() *FieldType { return ft.lengthField }

// LengthMemberName returns the name of the sibling member holding a dynamic
// array's length. Empty before Resolve.
func (ft *FieldType) LengthMemberName() string { return ft.lengthName }

// MinimumAlignment returns the declared minimum alignment of a structure.
func (ft *FieldType) MinimumAlignment() uint { return ft.minAlignment }

// Members returns a copy of the ordered structure members.
func (ft *FieldType) Members() []Member { return slices.Clone(ft.members) }

// Member looks up a structure member by name.
func (ft *FieldType) Member(name string) (*FieldType, bool) {
	for _, m := range ft.members {
		if m.Name == name {
			return m.Type, true
		}
	}
	return nil, false
}

// Alignment returns the alignment requirement in bits.
func (ft *FieldType) Alignment() uint {
	switch ft.kind {
	case KindInteger, KindReal:
		return ft.alignment
	case KindString:
		return 8
	case KindStaticArray, KindDynamicArray:
		return ft.element.Alignment()
	case KindStructure:
		align := ft.minAlignment
		if align == 0 {
			align = 1
		}
		for _, m := range ft.members {
			if a := EffectiveAlignment(m.Name, m.Type); a > align {
				align = a
			}
		}
		return align
	default:
		return 1
	}
}

// EffectiveAlignment is the alignment used when laying out a field named
// name of type ft. Strings and static arrays named "uuid" are at least byte
// aligned; a wider alignment of their own still applies.
func EffectiveAlignment(name string, ft *FieldType) uint {
	align := ft.Alignment()
	if (ft.kind == KindString || (ft.kind == KindStaticArray && name == "uuid")) && align < 8 {
		return 8
	}
	return align
}

// Size returns the size in bits when it does not depend on runtime values.
// Strings and dynamic arrays, and anything containing them, have no static
// size. Compound sizes assume the compound starts aligned, which holds since
// a compound is aligned before its content.
func (ft *FieldType) Size() (uint, bool) {
	switch ft.kind {
	case KindInteger, KindReal:
		return ft.size, true
	case KindStaticArray:
		elemSize, ok := ft.element.Size()
		if !ok {
			return 0, false
		}
		if ft.length == 0 {
			return 0, true
		}
		stride := AlignUp(elemSize, ft.element.Alignment())
		return (ft.length-1)*stride + elemSize, true
	case KindStructure:
		var cursor uint
		for _, m := range ft.members {
			size, ok := m.Type.Size()
			if !ok {
				return 0, false
			}
			cursor = AlignUp(cursor, EffectiveAlignment(m.Name, m.Type)) + size
		}
		return cursor, true
	default:
		return 0, false
	}
}

// AlignUp rounds v up to the next multiple of alignment (a power of two).
func AlignUp(v, alignment uint) uint {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
}

func isPowerOfTwo(v uint) bool {
	return v != 0 && v&(v-1) == 0
}

func cloneMappings(mappings []Mapping) []Mapping {
	if mappings == nil {
		return nil
	}
	out := make([]Mapping, len(mappings))
	for i, m := range mappings {
		out[i] = Mapping{Label: m.Label, Ranges: slices.Clone(m.Ranges)}
	}
	return out
}

// MustInteger is like NewInteger but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInteger(size uint, signed bool, opts ...BitArrayOption) *FieldType {
	return must(NewInteger(size, signed, opts...))
}

// MustEnumeration is like NewEnumeration but panics on error.
func MustEnumeration(size uint, signed bool, mappings []Mapping, opts ...BitArrayOption) *FieldType {
	return must(NewEnumeration(size, signed, mappings, opts...))
}

// MustReal is like NewReal but panics on error.
func MustReal(size uint, opts ...BitArrayOption) *FieldType {
	return must(NewReal(size, opts...))
}

// MustStaticArray is like NewStaticArray but panics on error.
func MustStaticArray(length uint, element *FieldType) *FieldType {
	return must(NewStaticArray(length, element))
}

// MustDynamicArray is like NewDynamicArray but panics on error.
func MustDynamicArray(element *FieldType) *FieldType {
	return must(NewDynamicArray(element))
}

// MustStructure is like NewStructure but panics on error.
func MustStructure(minimumAlignment uint, members ...Member) *FieldType {
	return must(NewStructure(minimumAlignment, members...))
}

func must(ft *FieldType, err error) *FieldType {
	if err != nil {
		panic(err)
	}
	return ft
}
