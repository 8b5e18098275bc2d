package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/tracelayout/internal/ir"
)

// Trace validation error codes (E120-E129)
const (
	ErrNoDataStreamTypes  = "E120" // trace has no data stream types
	ErrNoEventRecordTypes = "E121" // data stream type has no event record types
	ErrPacketSizes        = "E122" // packet context lacks packet_size or content_size
	ErrNoRecordTypeID     = "E123" // several event record types but no header id member
	ErrNoStreamID         = "E124" // several data stream types but no stream_id member
	ErrMagicNotFirst      = "E125" // packet header magic is not the first member
)

// ValidationError represents a trace validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled trace type: first the field-type contract
// (through ir.ResolveTrace), then the rules that make packets decodable.
// Returns all rule violations found (does not fail-fast).
func Validate(tt *ir.TraceType) []ValidationError {
	if tt == nil {
		return []ValidationError{{Field: "trace", Message: "trace is required", Code: ErrMissingField}}
	}

	var errs []ValidationError

	// E120: at least one data stream type
	if len(tt.DataStreamTypes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "trace.data_stream_type",
			Message: "at least one data stream type is required",
			Code:    ErrNoDataStreamTypes,
		})
	}

	if _, err := ir.ResolveTrace(tt); err != nil {
		errs = append(errs, contractValidationError(err))
		// Shape rules below assume a well-formed graph.
		return errs
	}

	if ph := tt.PacketHeader; ph != nil {
		members := ph.Members()
		// E125: magic must come first so decoders can find it
		for i, m := range members {
			if m.Name == "magic" && i != 0 {
				errs = append(errs, ValidationError{
					Field:   "trace.packet_header.magic",
					Message: "magic must be the first packet header member",
					Code:    ErrMagicNotFirst,
				})
			}
		}
	}

	// E124: several streams need a stream_id to tell packets apart
	if len(tt.DataStreamTypes) > 1 && !hasMember(tt.PacketHeader, "stream_id") {
		errs = append(errs, ValidationError{
			Field:   "trace.packet_header",
			Message: fmt.Sprintf("%d data stream types require a stream_id packet header member", len(tt.DataStreamTypes)),
			Code:    ErrNoStreamID,
		})
	}

	for _, dst := range tt.DataStreamTypes {
		field := "trace.data_stream_type." + dst.Name

		// E121: a stream without records never emits anything
		if len(dst.EventRecordTypes) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".event_record_type",
				Message: "at least one event record type is required",
				Code:    ErrNoEventRecordTypes,
			})
		}

		// E122: packet_size and content_size go together
		if pc := dst.PacketContext; pc != nil {
			for _, name := range []string{"packet_size", "content_size"} {
				if !hasMember(pc, name) {
					errs = append(errs, ValidationError{
						Field:   field + ".packet_context",
						Message: fmt.Sprintf("packet context requires a %s member", name),
						Code:    ErrPacketSizes,
					})
				}
			}
		}

		// E123: several records need an id to tell them apart
		if len(dst.EventRecordTypes) > 1 && !hasMember(dst.EventRecordHeader, "id") {
			errs = append(errs, ValidationError{
				Field:   field + ".event_record_header",
				Message: fmt.Sprintf("%d event record types require an id event record header member", len(dst.EventRecordTypes)),
				Code:    ErrNoRecordTypeID,
			})
		}
	}

	return errs
}

func hasMember(st *ir.FieldType, name string) bool {
	if st == nil {
		return false
	}
	_, ok := st.Member(name)
	return ok
}

func contractValidationError(err error) ValidationError {
	var ce *ir.ContractError
	if errors.As(err, &ce) {
		return ValidationError{Field: ce.Path, Message: ce.Message, Code: ce.Code}
	}
	return ValidationError{Field: "trace", Message: err.Error(), Code: ErrBadValue}
}
