package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireContractCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var ce *ContractError
	require.True(t, errors.As(err, &ce), "expected *ContractError, got %T", err)
	assert.Equal(t, code, ce.Code)
}

func TestIntegerDefaultAlignment(t *testing.T) {
	tests := []struct {
		size  uint
		align uint
	}{
		{1, 1},
		{7, 1},
		{8, 8},
		{12, 1},
		{16, 8},
		{32, 8},
		{64, 8},
	}

	for _, tc := range tests {
		ft := MustInteger(tc.size, false)
		assert.Equal(t, tc.align, ft.Alignment(), "size %d", tc.size)
		size, ok := ft.Size()
		assert.True(t, ok)
		assert.Equal(t, tc.size, size)
	}
}

func TestNewIntegerRejectsBadInput(t *testing.T) {
	_, err := NewInteger(0, false)
	requireContractCode(t, err, ErrBadSize)

	_, err = NewInteger(65, true)
	requireContractCode(t, err, ErrBadSize)

	_, err = NewInteger(8, false, WithAlignment(3))
	requireContractCode(t, err, ErrBadAlignment)

	_, err = NewInteger(8, false, WithDisplayBase(7))
	require.Error(t, err)
}

func TestNewRealSizes(t *testing.T) {
	ft, err := NewReal(32)
	require.NoError(t, err)
	assert.Equal(t, KindReal, ft.Kind())
	assert.Equal(t, uint(8), ft.Alignment())

	_, err = NewReal(16)
	requireContractCode(t, err, ErrBadSize)
}

func TestEnumerationIsIntegerWithMappings(t *testing.T) {
	mappings := []Mapping{
		{Label: "OFF", Ranges: []Range{{0, 0}}},
		{Label: "ON", Ranges: []Range{{1, 1}, {3, 7}}},
	}
	ft := MustEnumeration(8, false, mappings)

	assert.Equal(t, KindInteger, ft.Kind())
	assert.True(t, ft.IsEnumeration())
	assert.False(t, ft.Signed())
	assert.Equal(t, mappings, ft.Mappings())

	// Mappings are copied on the way in and on the way out.
	mappings[0].Label = "CHANGED"
	got := ft.Mappings()
	got[1].Ranges[0].Upper = 99
	assert.Equal(t, "OFF", ft.Mappings()[0].Label)
	assert.Equal(t, int64(1), ft.Mappings()[1].Ranges[0].Upper)
}

func TestNewEnumerationRejectsBadMappings(t *testing.T) {
	_, err := NewEnumeration(8, true, nil)
	requireContractCode(t, err, ErrBadMapping)

	_, err = NewEnumeration(8, true, []Mapping{{Label: "A", Ranges: []Range{{5, 2}}}})
	requireContractCode(t, err, ErrBadMapping)

	_, err = NewEnumeration(8, true, []Mapping{
		{Label: "A", Ranges: []Range{{0, 0}}},
		{Label: "A", Ranges: []Range{{1, 1}}},
	})
	requireContractCode(t, err, ErrBadMapping)
}

func TestStringAlwaysByteAligned(t *testing.T) {
	s := NewString()
	assert.Equal(t, uint(8), s.Alignment())
	_, ok := s.Size()
	assert.False(t, ok)
}

func TestArrayAlignmentIsElementAlignment(t *testing.T) {
	elem := MustInteger(16, false, WithAlignment(32))
	static := MustStaticArray(4, elem)
	dynamic := MustDynamicArray(elem)

	assert.Equal(t, uint(32), static.Alignment())
	assert.Equal(t, uint(32), dynamic.Alignment())
}

func TestArrayRejectsStructureAndDynamicElements(t *testing.T) {
	st := MustStructure(0)
	_, err := NewStaticArray(2, st)
	requireContractCode(t, err, ErrBadArrayElement)

	dyn := MustDynamicArray(MustInteger(8, false))
	_, err = NewDynamicArray(dyn)
	requireContractCode(t, err, ErrBadArrayElement)

	// Nested static arrays are fine.
	_, err = NewStaticArray(2, MustStaticArray(3, MustInteger(8, false)))
	require.NoError(t, err)
}

func TestDynamicArrayLengthFieldIsFixed(t *testing.T) {
	dyn := MustDynamicArray(MustInteger(3, false))
	length := dyn.LengthField()

	assert.Equal(t, KindInteger, length.Kind())
	assert.Equal(t, uint(32), length.BitSize())
	assert.Equal(t, uint(8), length.Alignment())
	assert.False(t, length.Signed())
	_, ok := dyn.Size()
	assert.False(t, ok)
}

func TestStructureAlignment(t *testing.T) {
	tests := []struct {
		name     string
		minAlign uint
		members  []Member
		want     uint
	}{
		{"empty", 0, nil, 1},
		{"empty with minimum", 64, nil, 64},
		{"bit fields", 0, []Member{{"a", MustInteger(1, false)}, {"b", MustInteger(7, false)}}, 1},
		{"max member", 0, []Member{{"a", MustInteger(3, false)}, {"b", MustInteger(64, false)}}, 8},
		{"minimum wins", 32, []Member{{"a", MustInteger(8, false)}}, 32},
		{"member wins", 8, []Member{{"a", MustInteger(8, false, WithAlignment(64))}}, 64},
		{"string member", 0, []Member{{"s", NewString()}}, 8},
		{"uuid member", 0, []Member{{"uuid", MustStaticArray(16, MustInteger(8, false, WithAlignment(1)))}}, 8},
		{"wide uuid member", 1, []Member{{"uuid", MustStaticArray(1, MustInteger(16, false, WithAlignment(16)))}}, 16},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := MustStructure(tc.minAlign, tc.members...)
			assert.Equal(t, tc.want, st.Alignment())

			want := tc.minAlign
			if want == 0 {
				want = 1
			}
			for _, m := range tc.members {
				want = max(want, EffectiveAlignment(m.Name, m.Type))
			}
			assert.Equal(t, want, st.Alignment(), "alignment formula")
		})
	}
}

func TestNewStructureRejectsBadInput(t *testing.T) {
	_, err := NewStructure(3)
	requireContractCode(t, err, ErrBadAlignment)

	_, err = NewStructure(0, Member{"a", MustInteger(8, false)}, Member{"a", MustInteger(8, false)})
	requireContractCode(t, err, ErrDuplicateMember)
}

func TestStructureMembersAreCopied(t *testing.T) {
	members := []Member{{"a", MustInteger(8, false)}}
	st := MustStructure(0, members...)
	members[0].Name = "changed"

	got := st.Members()
	got[0].Name = "also changed"
	assert.Equal(t, "a", st.Members()[0].Name)
}

func TestStaticSizes(t *testing.T) {
	u8 := MustInteger(8, false)
	u32 := MustInteger(32, false)
	u3 := MustInteger(3, false)
	u3Aligned := MustInteger(3, false, WithAlignment(8))

	tests := []struct {
		name string
		ft   *FieldType
		size uint
		ok   bool
	}{
		{"byte aligned members", MustStructure(8, Member{"a", u8}, Member{"b", u32}), 40, true},
		{"bit fields", MustStructure(0, Member{"f1", MustInteger(1, false)}, Member{"f2", MustInteger(7, false)}), 8, true},
		{"padding", MustStructure(0, Member{"a", u3}, Member{"b", u32}), 40, true},
		{"packed array", MustStaticArray(4, u3), 12, true},
		{"aligned array", MustStaticArray(4, u3Aligned), 27, true},
		{"empty array", MustStaticArray(0, u32), 0, true},
		{"uuid", MustStaticArray(16, u8), 128, true},
		{"string", MustStructure(0, Member{"s", NewString()}), 0, false},
		{"dynamic", MustStructure(0, Member{"d", MustDynamicArray(u8)}), 0, false},
		{"empty struct", MustStructure(0), 0, true},
		{"wide uuid", MustStructure(1, Member{"a", u8}, Member{"uuid", MustStaticArray(1, MustInteger(16, false, WithAlignment(16)))}), 32, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			size, ok := tc.ft.Size()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.size, size)
		})
	}
}

func TestEffectiveAlignment(t *testing.T) {
	packed := MustStaticArray(16, MustInteger(8, false, WithAlignment(1)))

	assert.Equal(t, uint(8), EffectiveAlignment("uuid", packed))
	assert.Equal(t, uint(1), EffectiveAlignment("other", packed))
	assert.Equal(t, uint(8), EffectiveAlignment("s", NewString()))
	assert.Equal(t, uint(1), EffectiveAlignment("uuid", MustInteger(1, false)))

	wide := MustStaticArray(1, MustInteger(16, false, WithAlignment(16)))
	assert.Equal(t, uint(16), EffectiveAlignment("uuid", wide), "never below the type's own alignment")
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint(0), AlignUp(0, 8))
	assert.Equal(t, uint(8), AlignUp(1, 8))
	assert.Equal(t, uint(8), AlignUp(8, 8))
	assert.Equal(t, uint(5), AlignUp(5, 1))
	assert.Equal(t, uint(64), AlignUp(33, 32))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindInteger.IsBitArray())
	assert.True(t, KindReal.IsBitArray())
	assert.False(t, KindString.IsBitArray())
	assert.True(t, KindDynamicArray.IsArray())
	assert.True(t, KindStructure.IsCompound())
	assert.False(t, KindString.IsCompound())
	assert.Equal(t, "static-array", KindStaticArray.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestParseByteOrder(t *testing.T) {
	bo, err := ParseByteOrder("le")
	require.NoError(t, err)
	assert.Equal(t, LittleEndian, bo)

	bo, err = ParseByteOrder("big-endian")
	require.NoError(t, err)
	assert.Equal(t, BigEndian, bo)

	_, err = ParseByteOrder("middle")
	require.Error(t, err)
}
