package ir

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// TraceType is the root of a trace description: a default byte order, an
// optional packet header shared by every data stream, and the data stream
// types. Root scope fields hold structures; nil means the scope is absent.
type TraceType struct {
	UUID            uuid.UUID // uuid.Nil when the trace has no UUID
	ByteOrder       ByteOrder
	PacketHeader    *FieldType
	DataStreamTypes []*DataStreamType

	resolved bool
}

// DataStreamType describes one kind of data stream and its event records.
type DataStreamType struct {
	Name                     string
	ID                       *uint64 // assigned by ResolveTrace when nil
	PacketContext            *FieldType
	EventRecordHeader        *FieldType
	EventRecordCommonContext *FieldType
	EventRecordTypes         []*EventRecordType
}

// EventRecordType describes one kind of event record.
type EventRecordType struct {
	Name            string
	ID              *uint64 // assigned by ResolveTrace when nil
	LogLevel        *int64
	SpecificContext *FieldType
	Payload         *FieldType
}

// Resolved reports whether the trace went through ResolveTrace.
func (tt *TraceType) Resolved() bool { return tt.resolved }

// DataStreamTypeID returns the assigned ID (0 before ResolveTrace).
func (dst *DataStreamType) DataStreamTypeID() uint64 {
	if dst.ID == nil {
		return 0
	}
	return *dst.ID
}

// EventRecordTypeID returns the assigned ID (0 before ResolveTrace).
func (ert *EventRecordType) EventRecordTypeID() uint64 {
	if ert.ID == nil {
		return 0
	}
	return *ert.ID
}

// specialMember constrains the shape of a member the scope assembler writes
// from a non-parameter source.
type specialMember struct {
	name  string
	check func(*FieldType) error
}

func unsignedInteger(ft *FieldType) error {
	if ft.kind != KindInteger || ft.signed {
		return fmt.Errorf("must be an unsigned integer, got %s", describeKind(ft))
	}
	return nil
}

func magicInteger(ft *FieldType) error {
	if ft.kind != KindInteger || ft.signed || ft.size != 32 || ft.IsEnumeration() {
		return fmt.Errorf("must be a 32-bit unsigned integer, got %s", describeKind(ft))
	}
	return nil
}

func uuidArray(ft *FieldType) error {
	if ft.kind != KindStaticArray || ft.length != 16 {
		return fmt.Errorf("must be a static array of 16 elements, got %s", describeKind(ft))
	}
	elem := ft.element
	if elem.kind != KindInteger || elem.signed || elem.size != 8 || elem.alignment != 8 {
		return fmt.Errorf("elements must be byte-aligned 8-bit unsigned integers")
	}
	return nil
}

var (
	packetHeaderSpecials = []specialMember{
		{"magic", magicInteger},
		{"uuid", uuidArray},
		{"stream_id", unsignedInteger},
	}
	packetContextSpecials = []specialMember{
		{"packet_size", unsignedInteger},
		{"content_size", unsignedInteger},
		{"timestamp_begin", unsignedInteger},
		{"timestamp_end", unsignedInteger},
		{"events_discarded", unsignedInteger},
		{"packet_seq_num", unsignedInteger},
	}
	eventRecordHeaderSpecials = []specialMember{
		{"id", unsignedInteger},
		{"timestamp", unsignedInteger},
	}
)

func describeKind(ft *FieldType) string {
	switch {
	case ft.kind == KindInteger && ft.signed:
		return fmt.Sprintf("signed %d-bit integer", ft.size)
	case ft.kind == KindInteger:
		return fmt.Sprintf("unsigned %d-bit integer", ft.size)
	default:
		return ft.kind.String()
	}
}

// ResolveTrace resolves every root scope of tt with the trace byte order,
// assigns missing data stream and event record IDs, and checks the members
// the scope assembler writes specially. The input is not modified.
//
// Missing IDs are assigned in declaration order, skipping explicit IDs.
// Data stream and event record types are returned sorted by ID.
func ResolveTrace(tt *TraceType) (*TraceType, error) {
	if tt.resolved {
		return tt, nil
	}

	out := &TraceType{UUID: tt.UUID, ByteOrder: tt.ByteOrder, resolved: true}

	var err error
	if out.PacketHeader, err = resolveRoot(tt.PacketHeader, tt.ByteOrder, "packet_header", packetHeaderSpecials); err != nil {
		return nil, err
	}
	if out.PacketHeader != nil {
		if _, ok := out.PacketHeader.Member("uuid"); ok && tt.UUID == uuid.Nil {
			return nil, contractErrorf(ErrBadSpecialMember, "packet_header.uuid", "packet header has a uuid member but the trace has no UUID")
		}
	}

	dstIDs, err := assignIDs(len(tt.DataStreamTypes), func(i int) (string, *uint64) {
		return tt.DataStreamTypes[i].Name, tt.DataStreamTypes[i].ID
	}, "data_stream_type")
	if err != nil {
		return nil, err
	}

	for i, dst := range tt.DataStreamTypes {
		resolvedDST, err := resolveDataStreamType(dst, dstIDs[i], tt.ByteOrder)
		if err != nil {
			return nil, err
		}
		out.DataStreamTypes = append(out.DataStreamTypes, resolvedDST)
	}
	slices.SortStableFunc(out.DataStreamTypes, func(a, b *DataStreamType) int {
		return cmp.Compare(*a.ID, *b.ID)
	})

	return out, nil
}

func resolveDataStreamType(dst *DataStreamType, id uint64, bo ByteOrder) (*DataStreamType, error) {
	path := "data_stream_type." + dst.Name
	out := &DataStreamType{Name: dst.Name, ID: &id}

	var err error
	if out.PacketContext, err = resolveRoot(dst.PacketContext, bo, path+".packet_context", packetContextSpecials); err != nil {
		return nil, err
	}
	if out.EventRecordHeader, err = resolveRoot(dst.EventRecordHeader, bo, path+".event_record_header", eventRecordHeaderSpecials); err != nil {
		return nil, err
	}
	if out.EventRecordCommonContext, err = resolveRoot(dst.EventRecordCommonContext, bo, path+".event_record_common_context", nil); err != nil {
		return nil, err
	}

	ertIDs, err := assignIDs(len(dst.EventRecordTypes), func(i int) (string, *uint64) {
		return dst.EventRecordTypes[i].Name, dst.EventRecordTypes[i].ID
	}, path+".event_record_type")
	if err != nil {
		return nil, err
	}

	for i, ert := range dst.EventRecordTypes {
		ertPath := path + ".event_record_type." + ert.Name
		ertID := ertIDs[i]
		resolvedERT := &EventRecordType{Name: ert.Name, ID: &ertID}
		if ert.LogLevel != nil {
			level := *ert.LogLevel
			resolvedERT.LogLevel = &level
		}
		if resolvedERT.SpecificContext, err = resolveRoot(ert.SpecificContext, bo, ertPath+".specific_context", nil); err != nil {
			return nil, err
		}
		if resolvedERT.Payload, err = resolveRoot(ert.Payload, bo, ertPath+".payload", nil); err != nil {
			return nil, err
		}
		out.EventRecordTypes = append(out.EventRecordTypes, resolvedERT)
	}
	slices.SortStableFunc(out.EventRecordTypes, func(a, b *EventRecordType) int {
		return cmp.Compare(*a.ID, *b.ID)
	})

	return out, nil
}

func resolveRoot(ft *FieldType, bo ByteOrder, path string, specials []specialMember) (*FieldType, error) {
	if ft == nil {
		return nil, nil
	}
	if ft.kind != KindStructure {
		return nil, contractErrorf(ErrRootNotStructure, path, "root scope must be a structure, got %s", ft.kind)
	}
	resolved, err := Resolve(ft, bo)
	if err != nil {
		if ce, ok := err.(*ContractError); ok {
			ce.Path = joinPath(path, ce.Path)
		}
		return nil, err
	}
	for _, special := range specials {
		member, ok := resolved.Member(special.name)
		if !ok {
			continue
		}
		if err := special.check(member); err != nil {
			return nil, contractErrorf(ErrBadSpecialMember, joinPath(path, special.name), "%v", err)
		}
	}
	return resolved, nil
}

// assignIDs returns one ID per entry: explicit IDs are kept, the others get
// the lowest unused ID in declaration order. Names and IDs must be unique.
func assignIDs(n int, entry func(int) (string, *uint64), path string) ([]uint64, error) {
	ids := make([]uint64, n)
	names := make(map[string]bool, n)
	used := make(map[uint64]string, n)

	for i := 0; i < n; i++ {
		name, id := entry(i)
		if names[name] {
			return nil, contractErrorf(ErrDuplicateType, joinPath(path, name), "duplicate name")
		}
		names[name] = true
		if id == nil {
			continue
		}
		if other, dup := used[*id]; dup {
			return nil, contractErrorf(ErrDuplicateType, joinPath(path, name), "id %d already used by %q", *id, other)
		}
		used[*id] = name
		ids[i] = *id
	}

	var next uint64
	for i := 0; i < n; i++ {
		name, id := entry(i)
		if id != nil {
			continue
		}
		for {
			if _, taken := used[next]; !taken {
				break
			}
			next++
		}
		ids[i] = next
		used[next] = name
	}
	return ids, nil
}
