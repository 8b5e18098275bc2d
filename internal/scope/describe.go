package scope

import (
	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
)

// Describe returns a plain, canonical-JSON-compatible description of every
// tree in the program.
func Describe(p *Program) map[string]any {
	streams := make([]any, 0, len(p.Streams))
	for _, s := range p.Streams {
		sd := map[string]any{
			"name": s.Type.Name,
			"id":   s.Type.DataStreamTypeID(),
		}
		for _, st := range s.Packet() {
			sd[st.Scope.String()] = layout.Describe(st.Tree)
		}

		records := make([]any, 0, len(s.Records))
		for _, r := range s.Records {
			rd := map[string]any{
				"name": r.Type.Name,
				"id":   r.Type.EventRecordTypeID(),
			}
			if r.Type.LogLevel != nil {
				rd["log_level"] = *r.Type.LogLevel
			}
			for _, a := range r.actions {
				rd[a.Scope.String()] = layout.Describe(a.Tree)
			}
			records = append(records, rd)
		}
		sd["event_record_types"] = records
		streams = append(streams, sd)
	}

	return map[string]any{
		"layout_version":    ir.LayoutVersion,
		"policy":            p.Policy.String(),
		"data_stream_types": streams,
	}
}

// Fingerprint identifies the compiled program. Compiling the same trace
// with the same options always yields the same fingerprint.
func Fingerprint(p *Program) (string, error) {
	return ir.Fingerprint(ir.DomainProgram, Describe(p))
}
