package ir

import "fmt"

// Contract violation codes (E201-E219). The core only receives pre-validated
// graphs, so every one of these indicates a broken upstream contract.
const (
	ErrBadAlignment     = "E201" // alignment not a power of two
	ErrDuplicateMember  = "E202" // duplicate structure member name
	ErrBadArrayElement  = "E203" // structure or dynamic array as array element
	ErrUnknownKind      = "E204" // unknown field-type kind
	ErrUnresolved       = "E205" // byte order unresolved or graph not frozen
	ErrMissingLength    = "E206" // dynamic array without preceding length member
	ErrRootNotStructure = "E207" // root scope is not a structure
	ErrBadSize          = "E208" // invalid bit size
	ErrBadMapping       = "E209" // invalid enumeration mapping
	ErrDuplicateType    = "E210" // duplicate data stream / event record name or id
	ErrBadSpecialMember = "E211" // magic/uuid/stream_id with the wrong shape
)

// ContractError reports a violated field-type graph invariant.
type ContractError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func contractErrorf(code, path, format string, args ...any) *ContractError {
	return &ContractError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}
