package layout

import (
	"errors"
	"fmt"

	"github.com/roach88/tracelayout/internal/ir"
)

// ErrNoStaticSize is returned by Simulate for trees whose size depends on
// runtime values: strings and dynamic arrays.
var ErrNoStaticSize = errors.New("layout has no static size")

// Walk visits op and its descendants in pre-order. Returning false from fn
// skips the children of the visited operation.
func Walk(op Operation, fn func(Operation) bool) {
	if !fn(op) {
		return
	}
	if c, ok := op.(*Compound); ok {
		for _, child := range c.children {
			Walk(child, fn)
		}
	}
}

// Writes returns every Write leaf under op in emission order.
func Writes(op Operation) []*Write {
	var out []*Write
	Walk(op, func(o Operation) bool {
		if w, ok := o.(*Write); ok {
			out = append(out, w)
		}
		return true
	})
	return out
}

// Placement is one executed Write in a simulation.
type Placement struct {
	Write *Write
	// Position is the absolute bit position of the field.
	Position uint
	// Indexes holds the element index of each enclosing array.
	Indexes []uint
}

// Simulate runs the tree against a byte cursor starting at bit 0, expanding
// static arrays, and returns every executed write with its true position
// together with the final cursor.
func Simulate(root Operation) ([]Placement, uint, error) {
	s := &simulation{}
	if err := s.run(root, nil); err != nil {
		return nil, 0, err
	}
	return s.placements, s.cursor, nil
}

// StaticSize returns the size in bits of the data the tree writes, when it
// does not depend on runtime values.
func StaticSize(root Operation) (uint, bool) {
	_, size, err := Simulate(root)
	if err != nil {
		return 0, false
	}
	return size, true
}

type simulation struct {
	cursor     uint
	placements []Placement
}

func (s *simulation) run(op Operation, indexes []uint) error {
	switch op := op.(type) {
	case *Align:
		s.cursor = ir.AlignUp(s.cursor, op.alignment)
	case *Write:
		size, ok := op.ft.Size()
		if !ok {
			return fmt.Errorf("%w: %s is a %s", ErrNoStaticSize, op.path, op.ft.Kind())
		}
		s.placements = append(s.placements, Placement{Write: op, Position: s.cursor, Indexes: indexes})
		s.cursor += size
	case *Compound:
		switch op.ft.Kind() {
		case ir.KindStructure:
			return s.runChildren(op, indexes)
		case ir.KindStaticArray:
			for i := uint(0); i < op.ft.Length(); i++ {
				if err := s.runChildren(op, append(indexes[:len(indexes):len(indexes)], i)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: %s is a %s", ErrNoStaticSize, op.path, op.ft.Kind())
		}
	}
	return nil
}

func (s *simulation) runChildren(c *Compound, indexes []uint) error {
	for _, child := range c.children {
		if err := s.run(child, indexes); err != nil {
			return err
		}
	}
	return nil
}
