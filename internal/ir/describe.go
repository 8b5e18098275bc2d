package ir

import "github.com/google/uuid"

// Describe returns a plain, canonical-JSON-compatible description of ft.
// Fingerprints and exported documents are built from it, so every attribute
// that affects a layout appears here.
func Describe(ft *FieldType) map[string]any {
	if ft == nil {
		return nil
	}
	d := map[string]any{
		"class":     ft.kind.String(),
		"alignment": ft.Alignment(),
	}
	switch ft.kind {
	case KindInteger, KindReal:
		d["size"] = ft.size
		d["byte_order"] = ft.byteOrder.String()
		if ft.kind == KindInteger {
			d["signed"] = ft.signed
			d["preferred_display_base"] = uint(ft.displayBase)
		}
		if len(ft.mappings) > 0 {
			mappings := make([]any, len(ft.mappings))
			for i, m := range ft.mappings {
				ranges := make([]any, len(m.Ranges))
				for j, r := range m.Ranges {
					ranges[j] = []any{r.Lower, r.Upper}
				}
				mappings[i] = map[string]any{"label": m.Label, "ranges": ranges}
			}
			d["mappings"] = mappings
		}
	case KindStaticArray:
		d["length"] = ft.length
		d["element_field_type"] = Describe(ft.element)
	case KindDynamicArray:
		d["element_field_type"] = Describe(ft.element)
		if ft.lengthName != "" {
			d["length_member"] = ft.lengthName
		}
	case KindStructure:
		d["minimum_alignment"] = ft.minAlignment
		members := make([]any, len(ft.members))
		for i, m := range ft.members {
			members[i] = map[string]any{"name": m.Name, "field_type": Describe(m.Type)}
		}
		d["members"] = members
	}
	return d
}

// DescribeTrace returns a plain description of a trace type, root scopes
// included.
func DescribeTrace(tt *TraceType) map[string]any {
	d := map[string]any{
		"byte_order": tt.ByteOrder.String(),
	}
	if tt.UUID != uuid.Nil {
		d["uuid"] = tt.UUID.String()
	}
	putScope(d, "packet_header", tt.PacketHeader)

	streams := make([]any, 0, len(tt.DataStreamTypes))
	for _, dst := range tt.DataStreamTypes {
		sd := map[string]any{"name": dst.Name, "id": dst.DataStreamTypeID()}
		putScope(sd, "packet_context", dst.PacketContext)
		putScope(sd, "event_record_header", dst.EventRecordHeader)
		putScope(sd, "event_record_common_context", dst.EventRecordCommonContext)

		records := make([]any, 0, len(dst.EventRecordTypes))
		for _, ert := range dst.EventRecordTypes {
			rd := map[string]any{"name": ert.Name, "id": ert.EventRecordTypeID()}
			if ert.LogLevel != nil {
				rd["log_level"] = *ert.LogLevel
			}
			putScope(rd, "specific_context", ert.SpecificContext)
			putScope(rd, "payload", ert.Payload)
			records = append(records, rd)
		}
		sd["event_record_types"] = records
		streams = append(streams, sd)
	}
	d["data_stream_types"] = streams
	return d
}

func putScope(d map[string]any, key string, ft *FieldType) {
	if ft != nil {
		d[key] = Describe(ft)
	}
}
