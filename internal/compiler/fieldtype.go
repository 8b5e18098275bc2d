package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/tracelayout/internal/ir"
)

// Field-type classes accepted in trace descriptions.
const (
	ClassUnsignedInteger     = "unsigned-integer"
	ClassSignedInteger       = "signed-integer"
	ClassUnsignedEnumeration = "unsigned-enumeration"
	ClassSignedEnumeration   = "signed-enumeration"
	ClassReal                = "real"
	ClassString              = "string"
	ClassStaticArray         = "static-array"
	ClassDynamicArray        = "dynamic-array"
	ClassStructure           = "structure"
)

// CompileFieldType parses a CUE field-type object. field names the value in
// error messages, e.g. "data_stream_type.default.packet_context".
//
//	{
//		class: "unsigned-integer"
//		size:  32
//		alignment: 8
//	}
func CompileFieldType(v cue.Value, field string) (*ir.FieldType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, field)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Code:    ErrBadValue,
			Field:   field,
			Message: fmt.Sprintf("field type must be an object, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	class, err := requiredString(v, "class", field)
	if err != nil {
		return nil, err
	}

	var ft *ir.FieldType
	switch class {
	case ClassUnsignedInteger, ClassSignedInteger:
		ft, err = compileInteger(v, field, class == ClassSignedInteger, false)
	case ClassUnsignedEnumeration, ClassSignedEnumeration:
		ft, err = compileInteger(v, field, class == ClassSignedEnumeration, true)
	case ClassReal:
		ft, err = compileReal(v, field)
	case ClassString:
		ft = ir.NewString()
	case ClassStaticArray:
		ft, err = compileStaticArray(v, field)
	case ClassDynamicArray:
		ft, err = compileDynamicArray(v, field)
	case ClassStructure:
		ft, err = compileStructure(v, field)
	default:
		return nil, &CompileError{
			Code:    ErrUnknownClass,
			Field:   field + ".class",
			Message: fmt.Sprintf("unknown field-type class %q", class),
			Pos:     v.LookupPath(cue.ParsePath("class")).Pos(),
		}
	}
	if err != nil {
		return nil, fromContract(err, field, v.Pos())
	}
	return ft, nil
}

// bitArrayOptions parses the attributes shared by integers and reals.
func bitArrayOptions(v cue.Value, field string) ([]ir.BitArrayOption, error) {
	var opts []ir.BitArrayOption

	if alignment, ok, err := optionalUint(v, "alignment", field); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, ir.WithAlignment(uint(alignment)))
	}

	if boVal := v.LookupPath(cue.ParsePath("byte_order")); boVal.Exists() {
		s, err := boVal.String()
		if err != nil {
			return nil, formatCUEError(err, field+".byte_order")
		}
		bo, err := ir.ParseByteOrder(s)
		if err != nil {
			return nil, &CompileError{Code: ErrBadByteOrder, Field: field + ".byte_order", Message: err.Error(), Pos: boVal.Pos()}
		}
		opts = append(opts, ir.WithByteOrder(bo))
	}
	return opts, nil
}

func compileInteger(v cue.Value, field string, signed, enumeration bool) (*ir.FieldType, error) {
	size, err := requiredUint(v, "size", field)
	if err != nil {
		return nil, err
	}
	opts, err := bitArrayOptions(v, field)
	if err != nil {
		return nil, err
	}
	if base, ok, err := optionalUint(v, "preferred_display_base", field); err != nil {
		return nil, err
	} else if ok {
		switch base {
		case 2, 8, 10, 16:
			opts = append(opts, ir.WithDisplayBase(ir.DisplayBase(base)))
		default:
			return nil, &CompileError{
				Code:    ErrBadValue,
				Field:   field + ".preferred_display_base",
				Message: fmt.Sprintf("display base must be 2, 8, 10 or 16, got %d", base),
				Pos:     v.LookupPath(cue.ParsePath("preferred_display_base")).Pos(),
			}
		}
	}

	if !enumeration {
		return ir.NewInteger(uint(size), signed, opts...)
	}
	mappings, err := compileMappings(v, field)
	if err != nil {
		return nil, err
	}
	return ir.NewEnumeration(uint(size), signed, mappings, opts...)
}

// compileMappings parses `mappings: {LABEL: [[lower, upper], value, ...]}`.
// A bare integer is the range [value, value].
func compileMappings(v cue.Value, field string) ([]ir.Mapping, error) {
	mVal := v.LookupPath(cue.ParsePath("mappings"))
	if !mVal.Exists() {
		return nil, &CompileError{Code: ErrMissingField, Field: field + ".mappings", Message: "enumerations require mappings", Pos: v.Pos()}
	}

	iter, err := mVal.Fields()
	if err != nil {
		return nil, formatCUEError(err, field+".mappings")
	}

	var mappings []ir.Mapping
	for iter.Next() {
		label := iter.Label()
		labelField := field + ".mappings." + label

		list, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err, labelField)
		}
		m := ir.Mapping{Label: label}
		for list.Next() {
			r, err := compileRange(list.Value(), labelField)
			if err != nil {
				return nil, err
			}
			m.Ranges = append(m.Ranges, r)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func compileRange(v cue.Value, field string) (ir.Range, error) {
	if v.IncompleteKind() == cue.IntKind {
		n, err := v.Int64()
		if err != nil {
			return ir.Range{}, formatCUEError(err, field)
		}
		return ir.Range{Lower: n, Upper: n}, nil
	}

	var bounds []int64
	if err := v.Decode(&bounds); err != nil || len(bounds) != 2 {
		return ir.Range{}, &CompileError{
			Code:    ErrBadValue,
			Field:   field,
			Message: "range must be an integer or a [lower, upper] pair",
			Pos:     v.Pos(),
		}
	}
	return ir.Range{Lower: bounds[0], Upper: bounds[1]}, nil
}

func compileReal(v cue.Value, field string) (*ir.FieldType, error) {
	size, err := requiredUint(v, "size", field)
	if err != nil {
		return nil, err
	}
	opts, err := bitArrayOptions(v, field)
	if err != nil {
		return nil, err
	}
	return ir.NewReal(uint(size), opts...)
}

func compileElement(v cue.Value, field string) (*ir.FieldType, error) {
	elemVal := v.LookupPath(cue.ParsePath("element_field_type"))
	if !elemVal.Exists() {
		return nil, &CompileError{Code: ErrMissingField, Field: field + ".element_field_type", Message: "arrays require an element field type", Pos: v.Pos()}
	}
	return CompileFieldType(elemVal, field+".element_field_type")
}

func compileStaticArray(v cue.Value, field string) (*ir.FieldType, error) {
	length, err := requiredUint(v, "length", field)
	if err != nil {
		return nil, err
	}
	elem, err := compileElement(v, field)
	if err != nil {
		return nil, err
	}
	return ir.NewStaticArray(uint(length), elem)
}

func compileDynamicArray(v cue.Value, field string) (*ir.FieldType, error) {
	elem, err := compileElement(v, field)
	if err != nil {
		return nil, err
	}
	return ir.NewDynamicArray(elem)
}

// compileStructure parses `members: [{name: "a", field_type: {...}}, ...]`.
// Member order is the list order.
func compileStructure(v cue.Value, field string) (*ir.FieldType, error) {
	minAlign, _, err := optionalUint(v, "minimum_alignment", field)
	if err != nil {
		return nil, err
	}

	var members []ir.Member
	if mVal := v.LookupPath(cue.ParsePath("members")); mVal.Exists() {
		list, err := mVal.List()
		if err != nil {
			return nil, formatCUEError(err, field+".members")
		}
		for i := 0; list.Next(); i++ {
			entry := list.Value()
			entryField := fmt.Sprintf("%s.members[%d]", field, i)

			nameVal := entry.LookupPath(cue.ParsePath("name"))
			ftVal := entry.LookupPath(cue.ParsePath("field_type"))
			if !nameVal.Exists() || !ftVal.Exists() {
				return nil, &CompileError{
					Code:    ErrBadMemberEntry,
					Field:   entryField,
					Message: "member must have name and field_type",
					Pos:     entry.Pos(),
				}
			}
			name, err := nameVal.String()
			if err != nil {
				return nil, formatCUEError(err, entryField+".name")
			}
			ft, err := CompileFieldType(ftVal, field+"."+name)
			if err != nil {
				return nil, err
			}
			members = append(members, ir.Member{Name: name, Type: ft})
		}
	}
	return ir.NewStructure(uint(minAlign), members...)
}

func requiredString(v cue.Value, name, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{Code: ErrMissingField, Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err, field+"."+name)
	}
	return s, nil
}

func requiredUint(v cue.Value, name, field string) (uint64, error) {
	n, ok, err := optionalUint(v, name, field)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &CompileError{Code: ErrMissingField, Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return n, nil
}

func optionalUint(v cue.Value, name, field string) (uint64, bool, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return 0, false, nil
	}
	n, err := val.Uint64()
	if err != nil {
		return 0, false, &CompileError{
			Code:    ErrBadValue,
			Field:   field + "." + name,
			Message: fmt.Sprintf("%s must be a non-negative integer", name),
			Pos:     val.Pos(),
		}
	}
	return n, true, nil
}
