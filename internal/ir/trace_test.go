package ir

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func testPacketHeader() *FieldType {
	return MustStructure(0,
		Member{"magic", MustInteger(32, false)},
		Member{"uuid", MustStaticArray(16, MustInteger(8, false))},
		Member{"stream_id", MustInteger(8, false)},
	)
}

func TestResolveTraceAssignsIDs(t *testing.T) {
	tt := &TraceType{
		UUID:         uuid.New(),
		ByteOrder:    BigEndian,
		PacketHeader: testPacketHeader(),
		DataStreamTypes: []*DataStreamType{
			{
				Name: "second",
				EventRecordTypes: []*EventRecordType{
					{Name: "a"},
					{Name: "b", ID: u64(0)},
					{Name: "c"},
				},
			},
			{Name: "first", ID: u64(0)},
		},
	}

	resolved, err := ResolveTrace(tt)
	require.NoError(t, err)
	require.True(t, resolved.Resolved())
	require.Len(t, resolved.DataStreamTypes, 2)

	assert.Equal(t, "first", resolved.DataStreamTypes[0].Name)
	assert.Equal(t, uint64(0), resolved.DataStreamTypes[0].DataStreamTypeID())
	assert.Equal(t, "second", resolved.DataStreamTypes[1].Name)
	assert.Equal(t, uint64(1), resolved.DataStreamTypes[1].DataStreamTypeID())

	var got []string
	for _, ert := range resolved.DataStreamTypes[1].EventRecordTypes {
		got = append(got, ert.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, got, "sorted by id; a=1, c=2")
	assert.Equal(t, uint64(2), resolved.DataStreamTypes[1].EventRecordTypes[2].EventRecordTypeID())

	// The input keeps its nil IDs.
	assert.Nil(t, tt.DataStreamTypes[0].ID)
	assert.False(t, tt.Resolved())
}

func TestResolveTraceRejectsDuplicates(t *testing.T) {
	tt := &TraceType{
		ByteOrder: LittleEndian,
		DataStreamTypes: []*DataStreamType{
			{Name: "a", ID: u64(3)},
			{Name: "b", ID: u64(3)},
		},
	}
	_, err := ResolveTrace(tt)
	requireContractCode(t, err, ErrDuplicateType)

	tt = &TraceType{
		ByteOrder: LittleEndian,
		DataStreamTypes: []*DataStreamType{{
			Name:             "a",
			EventRecordTypes: []*EventRecordType{{Name: "x"}, {Name: "x"}},
		}},
	}
	_, err = ResolveTrace(tt)
	requireContractCode(t, err, ErrDuplicateType)
}

func TestResolveTraceRequiresStructureRoots(t *testing.T) {
	tt := &TraceType{
		ByteOrder: LittleEndian,
		DataStreamTypes: []*DataStreamType{{
			Name:          "a",
			PacketContext: MustInteger(8, false),
		}},
	}
	_, err := ResolveTrace(tt)
	requireContractCode(t, err, ErrRootNotStructure)
	assert.Contains(t, err.Error(), "data_stream_type.a.packet_context")
}

func TestResolveTraceChecksSpecialMembers(t *testing.T) {
	tests := []struct {
		name string
		tt   *TraceType
	}{
		{
			name: "magic too small",
			tt: &TraceType{
				ByteOrder:    LittleEndian,
				PacketHeader: MustStructure(0, Member{"magic", MustInteger(16, false)}),
			},
		},
		{
			name: "uuid wrong length",
			tt: &TraceType{
				UUID:         uuid.New(),
				ByteOrder:    LittleEndian,
				PacketHeader: MustStructure(0, Member{"uuid", MustStaticArray(8, MustInteger(8, false))}),
			},
		},
		{
			name: "uuid without trace uuid",
			tt: &TraceType{
				ByteOrder:    LittleEndian,
				PacketHeader: testPacketHeader(),
			},
		},
		{
			name: "signed packet size",
			tt: &TraceType{
				ByteOrder: LittleEndian,
				DataStreamTypes: []*DataStreamType{{
					Name:          "a",
					PacketContext: MustStructure(0, Member{"packet_size", MustInteger(32, true)}),
				}},
			},
		},
		{
			name: "string event id",
			tt: &TraceType{
				ByteOrder: LittleEndian,
				DataStreamTypes: []*DataStreamType{{
					Name:              "a",
					EventRecordHeader: MustStructure(0, Member{"id", NewString()}),
				}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveTrace(tc.tt)
			requireContractCode(t, err, ErrBadSpecialMember)
		})
	}
}

func TestResolveTraceResolvesEveryScope(t *testing.T) {
	tt := &TraceType{
		UUID:         uuid.New(),
		ByteOrder:    LittleEndian,
		PacketHeader: testPacketHeader(),
		DataStreamTypes: []*DataStreamType{{
			Name:                     "default",
			PacketContext:            MustStructure(0, Member{"packet_size", MustInteger(32, false)}),
			EventRecordHeader:        MustStructure(0, Member{"id", MustInteger(8, false)}),
			EventRecordCommonContext: MustStructure(0, Member{"cpu", MustInteger(8, false)}),
			EventRecordTypes: []*EventRecordType{{
				Name:            "ev",
				SpecificContext: MustStructure(0, Member{"tid", MustInteger(32, true)}),
				Payload:         MustStructure(0, Member{"msg", NewString()}),
			}},
		}},
	}

	resolved, err := ResolveTrace(tt)
	require.NoError(t, err)

	dst := resolved.DataStreamTypes[0]
	ert := dst.EventRecordTypes[0]
	for _, ft := range []*FieldType{
		resolved.PacketHeader, dst.PacketContext, dst.EventRecordHeader,
		dst.EventRecordCommonContext, ert.SpecificContext, ert.Payload,
	} {
		require.NotNil(t, ft)
		assert.True(t, ft.Resolved())
	}
}
