package scope

import (
	"fmt"

	"github.com/roach88/tracelayout/internal/layout"
)

// RootScope names one of the six fixed root structures.
type RootScope uint8

const (
	PacketHeader RootScope = iota
	PacketContext
	EventRecordHeader
	EventRecordCommonContext
	EventRecordSpecificContext
	EventRecordPayload
)

var rootScopes = [...]struct {
	name   string
	prefix string
}{
	PacketHeader:               {"packet-header", "_ph"},
	PacketContext:              {"packet-context", "_pc"},
	EventRecordHeader:          {"event-record-header", "_eh"},
	EventRecordCommonContext:   {"event-record-common-context", "_ecc"},
	EventRecordSpecificContext: {"event-record-specific-context", "_sc"},
	EventRecordPayload:         {"event-record-payload", "_p"},
}

// RootScopes returns every root scope in emission order.
func RootScopes() []RootScope {
	return []RootScope{
		PacketHeader, PacketContext,
		EventRecordHeader, EventRecordCommonContext,
		EventRecordSpecificContext, EventRecordPayload,
	}
}

func (s RootScope) valid() bool { return int(s) < len(rootScopes) }

func (s RootScope) String() string {
	if !s.valid() {
		return fmt.Sprintf("RootScope(%d)", s)
	}
	return rootScopes[s].name
}

// Prefix returns the name path root used for the scope's fields.
func (s RootScope) Prefix() string {
	if !s.valid() {
		return ""
	}
	return rootScopes[s].prefix
}

// IsPacketScope reports whether the scope belongs to packets rather than
// to event records.
func (s RootScope) IsPacketScope() bool {
	return s == PacketHeader || s == PacketContext
}

// ParseRootScope accepts the names returned by String.
func ParseRootScope(name string) (RootScope, error) {
	for i, rs := range rootScopes {
		if rs.name == name {
			return RootScope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown root scope %q", name)
}

// MarshalText encodes the scope by name so it can key JSON objects.
func (s RootScope) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid root scope %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scope name.
func (s *RootScope) UnmarshalText(text []byte) error {
	parsed, err := ParseRootScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DefaultOverrides returns the override writers installed for a root scope.
// Scopes holding only user fields have no table.
func DefaultOverrides(s RootScope) map[string]layout.WriteKind {
	switch s {
	case PacketHeader:
		return map[string]layout.WriteKind{
			"magic":     layout.WriteMagic,
			"uuid":      layout.WriteUUID,
			"stream_id": layout.WriteDataStreamTypeID,
		}
	case PacketContext:
		return map[string]layout.WriteKind{
			"packet_size":      layout.WritePacketTotalSize,
			"content_size":     layout.WritePacketContentSize,
			"timestamp_begin":  layout.WriteTimestamp,
			"timestamp_end":    layout.WriteEndTimestamp,
			"events_discarded": layout.WriteDiscardedEventRecords,
			"packet_seq_num":   layout.WritePacketSequenceNumber,
		}
	case EventRecordHeader:
		return map[string]layout.WriteKind{
			"id":        layout.WriteEventRecordTypeID,
			"timestamp": layout.WriteTimestamp,
		}
	default:
		return nil
	}
}
