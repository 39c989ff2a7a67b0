package formula

import (
	"strings"

	"fortio.org/safecast"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// Axis selects rows or columns for reference shifting.
type Axis uint8

const (
	AxisRow Axis = iota
	AxisCol
)

func (a Axis) String() string {
	if a == AxisRow {
		return "row"
	}
	return "col"
}

// ShiftReferences rewrites e for rows or columns inserted (delta > 0) or
// deleted (delta < 0) at position at. every non-absolute reference
// component at or after at moves by delta, sheet-qualified or not. if a
// reference falls inside a deleted span [at, at-delta) the whole rewrite
// fails with ErrInvalidated.
func ShiftReferences(e Expr, axis Axis, at uint32, delta int) (Expr, error) {
	s := &shifter{axis: axis, at: at, delta: int64(delta), all: true}
	out, ok := s.rewrite(e, "")
	if !ok {
		return nil, ErrInvalidated
	}
	return out, nil
}

// ShiftScope limits which references a workbook-level structural edit
// touches. Sheet is the edited sheet; Local says whether the formula being
// rewritten lives on that sheet, in which case its unqualified references
// shift too.
type ShiftScope struct {
	Sheet string
	Local bool
}

// ShiftSheetReferences is ShiftReferences restricted to references that
// point at scope.Sheet. references inside a deleted span are replaced by a
// #REF! literal instead of failing, so the result is always a valid tree.
// invalidated reports whether any replacement happened.
func ShiftSheetReferences(e Expr, scope ShiftScope, axis Axis, at uint32, delta int) (out Expr, invalidated bool) {
	s := &shifter{axis: axis, at: at, delta: int64(delta), scope: scope, replace: true}
	out, _ = s.rewrite(e, "")
	return out, s.invalidated
}

type shifter struct {
	axis  Axis
	at    uint32
	delta int64

	all   bool // shift every reference regardless of sheet
	scope ShiftScope

	replace     bool // substitute #REF! instead of failing
	invalidated bool
}

func (s *shifter) applies(sheet string) bool {
	if s.all {
		return true
	}
	if sheet == "" {
		return s.scope.Local
	}
	return strings.EqualFold(sheet, s.scope.Sheet)
}

func (s *shifter) limit() int64 {
	if s.axis == AxisRow {
		return int64(cell.MaxRows)
	}
	return int64(cell.MaxCols)
}

// moveIndex shifts one coordinate component, reporting false when it was
// deleted or pushed off the sheet
func (s *shifter) moveIndex(pos uint32) (uint32, bool) {
	if pos < s.at {
		return pos, true
	}
	if s.delta < 0 && int64(pos) < int64(s.at)-s.delta {
		return 0, false
	}
	next := int64(pos) + s.delta
	if next >= s.limit() {
		return 0, false
	}
	out, err := safecast.Conv[uint32](next)
	if err != nil {
		return 0, false
	}
	return out, true
}

func (s *shifter) shiftRef(n *CellRefNode) (*CellRefNode, bool) {
	if s.axis == AxisRow {
		if n.RowAbsolute {
			return n, true
		}
		row, ok := s.moveIndex(n.Row)
		if !ok {
			return nil, false
		}
		if row == n.Row {
			return n, true
		}
		moved := *n
		moved.Row = row
		return &moved, true
	}
	if n.ColAbsolute {
		return n, true
	}
	col, ok := s.moveIndex(n.Col)
	if !ok {
		return nil, false
	}
	if col == n.Col {
		return n, true
	}
	moved := *n
	moved.Col = col
	return &moved, true
}

// fail records an invalidated subtree. in replace mode the subtree becomes
// #REF! and the walk continues.
func (s *shifter) fail() (Expr, bool) {
	if s.replace {
		s.invalidated = true
		return &ErrorNode{Kind: cell.ErrorRef}, true
	}
	return nil, false
}

func (s *shifter) rewrite(e Expr, sheet string) (Expr, bool) {
	switch n := e.(type) {
	case *CellRefNode:
		if !s.applies(sheet) {
			return n, true
		}
		moved, ok := s.shiftRef(n)
		if !ok {
			return s.fail()
		}
		return moved, true

	case *RangeNode:
		if !s.applies(sheet) {
			return n, true
		}
		start, ok := s.shiftRef(n.Start)
		if !ok {
			return s.fail()
		}
		end, ok := s.shiftRef(n.End)
		if !ok {
			return s.fail()
		}
		if start == n.Start && end == n.End {
			return n, true
		}
		return &RangeNode{Start: start, End: end}, true

	case *SheetRefNode:
		inner, ok := s.rewrite(n.Inner, n.Sheet)
		if !ok {
			return nil, false
		}
		if _, replaced := inner.(*ErrorNode); replaced {
			return inner, true
		}
		if inner == n.Inner {
			return n, true
		}
		return &SheetRefNode{Sheet: n.Sheet, Inner: inner}, true

	case *BinaryOpNode:
		left, ok := s.rewrite(n.Left, sheet)
		if !ok {
			return nil, false
		}
		right, ok := s.rewrite(n.Right, sheet)
		if !ok {
			return nil, false
		}
		if left == n.Left && right == n.Right {
			return n, true
		}
		return &BinaryOpNode{Op: n.Op, Left: left, Right: right}, true

	case *UnaryOpNode:
		operand, ok := s.rewrite(n.Operand, sheet)
		if !ok {
			return nil, false
		}
		if operand == n.Operand {
			return n, true
		}
		return &UnaryOpNode{Op: n.Op, Operand: operand}, true

	case *FunctionCallNode:
		var args []Expr
		for i, arg := range n.Args {
			next, ok := s.rewrite(arg, sheet)
			if !ok {
				return nil, false
			}
			if next != arg && args == nil {
				args = make([]Expr, len(n.Args))
				copy(args, n.Args[:i])
			}
			if args != nil {
				args[i] = next
			}
		}
		if args == nil {
			return n, true
		}
		return &FunctionCallNode{Name: n.Name, Args: args}, true

	case *GroupNode:
		inner, ok := s.rewrite(n.Inner, sheet)
		if !ok {
			return nil, false
		}
		if inner == n.Inner {
			return n, true
		}
		return &GroupNode{Inner: inner}, true

	default:
		return e, true
	}
}

// RenameSheet rewrites sheet-qualified references naming from (compared
// case-insensitively) to name to. changed reports whether anything was
// rewritten.
func RenameSheet(e Expr, from, to string) (out Expr, changed bool) {
	return replaceLeaves(e, func(e Expr) (Expr, bool) {
		n, ok := e.(*SheetRefNode)
		if !ok || !strings.EqualFold(n.Sheet, from) {
			return e, false
		}
		return &SheetRefNode{Sheet: to, Inner: n.Inner}, true
	})
}

// replaceLeaves rebuilds e with fn applied to every node below the operator
// and call structure. e is returned untouched when fn replaced nothing.
func replaceLeaves(e Expr, fn func(Expr) (Expr, bool)) (out Expr, changed bool) {
	var walk func(e Expr) Expr
	walk = func(e Expr) Expr {
		switch n := e.(type) {
		case *BinaryOpNode:
			return &BinaryOpNode{Op: n.Op, Left: walk(n.Left), Right: walk(n.Right)}
		case *UnaryOpNode:
			return &UnaryOpNode{Op: n.Op, Operand: walk(n.Operand)}
		case *FunctionCallNode:
			args := make([]Expr, len(n.Args))
			for i, arg := range n.Args {
				args[i] = walk(arg)
			}
			return &FunctionCallNode{Name: n.Name, Args: args}
		case *GroupNode:
			return &GroupNode{Inner: walk(n.Inner)}
		default:
			next, ok := fn(e)
			if ok {
				changed = true
			}
			return next
		}
	}
	out = walk(e)
	if !changed {
		return e, false
	}
	return out, true
}
