package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"

	"github.com/roach88/tracelayout/internal/ir"
)

// UUIDAuto asks the compiler to generate a random trace UUID.
const UUIDAuto = "auto"

// CompileTrace parses the `trace` value of a description into an
// unresolved trace type. It stops at the first error.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	tt, err := CompileTrace(v.LookupPath(cue.ParsePath("trace")))
func CompileTrace(v cue.Value) (*ir.TraceType, error) {
	tt, errs := compileTrace(v, false)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return tt, nil
}

// CompileTraceAll is like CompileTrace but keeps going past broken data
// stream and event record types, returning every error found. The trace
// type holds the parts that compiled.
func CompileTraceAll(v cue.Value) (*ir.TraceType, []error) {
	return compileTrace(v, true)
}

// CompileSource compiles a self-contained CUE description held in memory.
// filename only labels error positions.
func CompileSource(src []byte, filename string) (*ir.TraceType, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, "trace")
	}
	return CompileTrace(v.LookupPath(cue.ParsePath("trace")))
}

type traceCompiler struct {
	collect bool
	errs    []error
}

// fail records err and reports whether compilation must stop.
func (c *traceCompiler) fail(err error) bool {
	c.errs = append(c.errs, err)
	return !c.collect
}

func compileTrace(v cue.Value, collect bool) (*ir.TraceType, []error) {
	c := &traceCompiler{collect: collect}
	if !v.Exists() {
		return nil, []error{&CompileError{Code: ErrMissingField, Field: "trace", Message: "trace is required"}}
	}
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err, "trace")}
	}

	tt := &ir.TraceType{}

	boStr, err := requiredString(v, "byte_order", "trace")
	if err != nil {
		return nil, []error{err}
	}
	if tt.ByteOrder, err = ir.ParseByteOrder(boStr); err != nil {
		return nil, []error{&CompileError{
			Code:    ErrBadByteOrder,
			Field:   "trace.byte_order",
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath("byte_order")).Pos(),
		}}
	}

	if uuidVal := v.LookupPath(cue.ParsePath("uuid")); uuidVal.Exists() {
		if tt.UUID, err = compileUUID(uuidVal); err != nil {
			return nil, []error{err}
		}
	}

	if tt.PacketHeader, err = optionalScope(v, "packet_header", "trace"); err != nil {
		if c.fail(err) {
			return nil, c.errs
		}
	}

	dstVal := v.LookupPath(cue.ParsePath("data_stream_type"))
	if !dstVal.Exists() {
		c.fail(&CompileError{Code: ErrMissingField, Field: "trace.data_stream_type", Message: "at least one data stream type is required", Pos: v.Pos()})
		return nil, c.errs
	}
	iter, err := dstVal.Fields()
	if err != nil {
		c.fail(formatCUEError(err, "trace.data_stream_type"))
		return nil, c.errs
	}
	for iter.Next() {
		dst, stop := c.compileDataStreamType(iter.Label(), iter.Value())
		if stop {
			return nil, c.errs
		}
		if dst != nil {
			tt.DataStreamTypes = append(tt.DataStreamTypes, dst)
		}
	}

	return tt, c.errs
}

func compileUUID(v cue.Value) (uuid.UUID, error) {
	s, err := v.String()
	if err != nil {
		return uuid.Nil, formatCUEError(err, "trace.uuid")
	}
	if s == UUIDAuto {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &CompileError{Code: ErrBadUUID, Field: "trace.uuid", Message: err.Error(), Pos: v.Pos()}
	}
	return id, nil
}

// compileDataStreamType returns a nil type when it failed in collect mode.
func (c *traceCompiler) compileDataStreamType(name string, v cue.Value) (*ir.DataStreamType, bool) {
	field := "trace.data_stream_type." + name
	dst := &ir.DataStreamType{Name: name}

	var err error
	if dst.ID, err = optionalID(v, field); err != nil {
		return nil, c.fail(err)
	}
	scopes := []struct {
		name string
		dest **ir.FieldType
	}{
		{"packet_context", &dst.PacketContext},
		{"event_record_header", &dst.EventRecordHeader},
		{"event_record_common_context", &dst.EventRecordCommonContext},
	}
	for _, s := range scopes {
		if *s.dest, err = optionalScope(v, s.name, field); err != nil {
			return nil, c.fail(err)
		}
	}

	ertVal := v.LookupPath(cue.ParsePath("event_record_type"))
	if !ertVal.Exists() {
		return dst, false
	}
	iter, err := ertVal.Fields()
	if err != nil {
		return nil, c.fail(formatCUEError(err, field+".event_record_type"))
	}
	for iter.Next() {
		ert, err := compileEventRecordType(iter.Label(), iter.Value(), field)
		if err != nil {
			if c.fail(err) {
				return nil, true
			}
			continue
		}
		dst.EventRecordTypes = append(dst.EventRecordTypes, ert)
	}
	return dst, false
}

func compileEventRecordType(name string, v cue.Value, parent string) (*ir.EventRecordType, error) {
	field := parent + ".event_record_type." + name
	ert := &ir.EventRecordType{Name: name}

	var err error
	if ert.ID, err = optionalID(v, field); err != nil {
		return nil, err
	}
	if llVal := v.LookupPath(cue.ParsePath("log_level")); llVal.Exists() {
		level, err := llVal.Int64()
		if err != nil {
			return nil, formatCUEError(err, field+".log_level")
		}
		ert.LogLevel = &level
	}
	if ert.SpecificContext, err = optionalScope(v, "specific_context", field); err != nil {
		return nil, err
	}
	if ert.Payload, err = optionalScope(v, "payload", field); err != nil {
		return nil, err
	}
	return ert, nil
}

func optionalID(v cue.Value, field string) (*uint64, error) {
	id, ok, err := optionalUint(v, "id", field)
	if err != nil || !ok {
		return nil, err
	}
	return &id, nil
}

// optionalScope compiles a root scope, which must be a structure.
func optionalScope(v cue.Value, name, parent string) (*ir.FieldType, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return nil, nil
	}
	field := parent + "." + name
	ft, err := CompileFieldType(val, field)
	if err != nil {
		return nil, err
	}
	if ft.Kind() != ir.KindStructure {
		return nil, &CompileError{
			Code:    ir.ErrRootNotStructure,
			Field:   field,
			Message: fmt.Sprintf("root scope must be a structure, got %s", ft.Kind()),
			Pos:     val.Pos(),
		}
	}
	return ft, nil
}
