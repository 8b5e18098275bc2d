package ir

// LengthMemberName returns the synthetic member name holding the length of
// the dynamic array member arrayName.
func LengthMemberName(arrayName string) string {
	return "_" + arrayName + "_len"
}

// Resolve freezes a field-type graph: it returns a new graph where every bit
// array has a concrete byte order, every dynamic-array structure member is
// immediately preceded by its length member, and every node is marked
// resolved. The input graph is not modified. Resolving a resolved graph
// returns it unchanged.
func Resolve(ft *FieldType, defaultByteOrder ByteOrder) (*FieldType, error) {
	if defaultByteOrder != LittleEndian && defaultByteOrder != BigEndian {
		return nil, contractErrorf(ErrUnresolved, "", "default byte order must be set")
	}
	if ft == nil {
		return nil, contractErrorf(ErrUnknownKind, "", "nil field type")
	}
	return resolve(ft, defaultByteOrder, "")
}

func resolve(ft *FieldType, bo ByteOrder, path string) (*FieldType, error) {
	if ft.resolved {
		return ft, nil
	}

	out := *ft
	out.resolved = true
	out.mappings = cloneMappings(ft.mappings)

	switch ft.kind {
	case KindInteger, KindReal:
		if out.byteOrder == ByteOrderUnset {
			out.byteOrder = bo
		}
	case KindString:
	case KindStaticArray, KindDynamicArray:
		if err := checkElement(ft.element); err != nil {
			err.(*ContractError).Path = path
			return nil, err
		}
		elem, err := resolve(ft.element, bo, path+"[]")
		if err != nil {
			return nil, err
		}
		out.element = elem
		if ft.kind == KindDynamicArray {
			lengthField, err := resolve(ft.lengthField, bo, path)
			if err != nil {
				return nil, err
			}
			out.lengthField = lengthField
		}
	case KindStructure:
		members, err := resolveMembers(ft.members, bo, path)
		if err != nil {
			return nil, err
		}
		out.members = members
	default:
		return nil, contractErrorf(ErrUnknownKind, path, "unknown field-type kind %d", ft.kind)
	}

	if ft.kind.IsBitArray() && !isPowerOfTwo(out.alignment) {
		return nil, contractErrorf(ErrBadAlignment, path, "alignment %d is not a power of two", out.alignment)
	}
	return &out, nil
}

func resolveMembers(members []Member, bo ByteOrder, path string) ([]Member, error) {
	names := make(map[string]bool, len(members))
	for _, m := range members {
		if names[m.Name] {
			return nil, contractErrorf(ErrDuplicateMember, joinPath(path, m.Name), "duplicate member name")
		}
		names[m.Name] = true
	}

	out := make([]Member, 0, len(members))
	for _, m := range members {
		memberPath := joinPath(path, m.Name)
		resolved, err := resolve(m.Type, bo, memberPath)
		if err != nil {
			return nil, err
		}
		if resolved.kind == KindDynamicArray {
			lengthName := LengthMemberName(m.Name)
			if !precededByLength(out, lengthName, resolved.lengthField) {
				if names[lengthName] {
					return nil, contractErrorf(ErrDuplicateMember, joinPath(path, lengthName),
						"member name collides with the length of dynamic array %q", m.Name)
				}
				names[lengthName] = true
				out = append(out, Member{Name: lengthName, Type: resolved.lengthField})
			}
			// A resolved array keeps the length name of the member it was
			// first resolved under.
			if resolved.lengthName != lengthName {
				withName := *resolved
				withName.lengthName = lengthName
				resolved = &withName
			}
		}
		out = append(out, Member{Name: m.Name, Type: resolved})
	}
	return out, nil
}

// precededByLength reports whether the last member of out is the length
// member a dynamic array already carries.
func precededByLength(out []Member, lengthName string, lengthField *FieldType) bool {
	if len(out) == 0 {
		return false
	}
	last := out[len(out)-1]
	return last.Name == lengthName && last.Type == lengthField
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
