package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tracelayout/internal/export"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

func checkAssertion(doc *export.Document, a Assertion) error {
	sc, err := findScope(doc, a.Stream, a.Record, a.Scope)
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertOperation:
		return assertOperation(sc.Tree, a)
	case AssertChildren:
		return assertChildren(sc.Tree, a)
	case AssertStaticSize:
		return assertStaticSize(sc, a)
	case AssertCount:
		if sc.Operations != a.Count {
			return &AssertionError{Expected: fmt.Sprintf("%d operations", a.Count), Actual: strconv.Itoa(sc.Operations)}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// findScope returns the named root scope tree. Records are looked up in
// the stream; an empty record selects a packet scope.
func findScope(doc *export.Document, stream, record, scopeName string) (*export.Scope, error) {
	i := slices.IndexFunc(doc.Streams, func(s export.Stream) bool { return s.Name == stream })
	if i < 0 {
		return nil, fmt.Errorf("no data stream type %q", stream)
	}
	s := doc.Streams[i]

	scopes := s.Scopes
	where := fmt.Sprintf("data stream type %q", stream)
	if record != "" {
		j := slices.IndexFunc(s.Records, func(r export.Record) bool { return r.Name == record })
		if j < 0 {
			return nil, fmt.Errorf("no event record type %q in %s", record, where)
		}
		scopes = s.Records[j].Scopes
		where = fmt.Sprintf("event record type %q", record)
	}

	for k := range scopes {
		if scopes[k].Scope == scopeName {
			return &scopes[k], nil
		}
	}
	return nil, fmt.Errorf("no %s scope in %s", scopeName, where)
}

// findNode returns the first node, in emission order, with the given name
// and kind.
func findNode(n *export.Node, name, op string) *export.Node {
	if n.Name == name && n.Op == op {
		return n
	}
	for _, child := range n.Children {
		if found := findNode(child, name, op); found != nil {
			return found
		}
	}
	return nil
}

func assertOperation(root *export.Node, a Assertion) error {
	n := findNode(root, a.Path, a.Kind)
	if n == nil {
		return &AssertionError{Expected: fmt.Sprintf("%s %s", a.Kind, a.Path), Actual: "no such operation"}
	}

	if a.Writer != "" && n.Writer != a.Writer {
		return &AssertionError{Expected: "writer " + a.Writer, Actual: "writer " + orNone(n.Writer)}
	}
	if a.Alignment != 0 && n.Alignment != a.Alignment {
		return &AssertionError{Expected: fmt.Sprintf("alignment %d", a.Alignment), Actual: fmt.Sprintf("alignment %d", n.Alignment)}
	}
	if a.Offset != nil {
		got := "?"
		if n.Offset != nil {
			got = strconv.FormatUint(uint64(*n.Offset), 10)
		}
		if got != strings.TrimSpace(*a.Offset) {
			return &AssertionError{Expected: "offset " + *a.Offset, Actual: "offset " + got}
		}
	}
	return nil
}

func assertChildren(root *export.Node, a Assertion) error {
	n := root
	if a.Path != "" {
		if n = findNode(root, a.Path, "compound"); n == nil {
			return &AssertionError{Expected: "compound " + a.Path, Actual: "no such operation"}
		}
	}

	got := make([]string, len(n.Children))
	for i, child := range n.Children {
		got[i] = child.Op + " " + child.Name
	}
	if !slices.Equal(got, a.Ops) {
		return &AssertionError{Expected: fmt.Sprintf("%q", a.Ops), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}

func assertStaticSize(sc *export.Scope, a Assertion) error {
	got := "?"
	if sc.StaticSize != nil {
		got = strconv.FormatUint(uint64(*sc.StaticSize), 10)
	}
	if got != a.Size {
		return &AssertionError{Expected: "static size " + a.Size, Actual: "static size " + got}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
