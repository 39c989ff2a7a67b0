package formula

import (
	"iter"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// Walk calls fn for e and each descendant in depth-first order. returning
// false from fn skips that node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *RangeNode:
		Walk(n.Start, fn)
		Walk(n.End, fn)
	case *SheetRefNode:
		Walk(n.Inner, fn)
	case *BinaryOpNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryOpNode:
		Walk(n.Operand, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	case *GroupNode:
		Walk(n.Inner, fn)
	}
}

// Reference is one reference occurrence in a formula: a single cell when
// From == To, otherwise a normalized rectangle. Sheet is empty for
// references to the formula's own sheet.
type Reference struct {
	Sheet string
	From  cell.Coord
	To    cell.Coord
}

// Size returns the number of cells covered.
func (r Reference) Size() uint64 {
	return (uint64(r.To.Row-r.From.Row) + 1) * (uint64(r.To.Col-r.From.Col) + 1)
}

// Cells iterates the covered coordinates row-major.
func (r Reference) Cells() iter.Seq[cell.Coord] {
	return func(yield func(cell.Coord) bool) {
		for row := uint64(r.From.Row); row <= uint64(r.To.Row); row++ {
			for col := uint64(r.From.Col); col <= uint64(r.To.Col); col++ {
				if !yield(cell.Coord{Row: uint32(row), Col: uint32(col)}) {
					return
				}
			}
		}
	}
}

// References lists every reference occurrence in e, in source order.
func References(e Expr) []Reference {
	var out []Reference
	var visit func(e Expr, sheet string)
	visit = func(e Expr, sheet string) {
		Walk(e, func(node Expr) bool {
			switch n := node.(type) {
			case *SheetRefNode:
				visit(n.Inner, n.Sheet)
				return false
			case *CellRefNode:
				out = append(out, Reference{Sheet: sheet, From: n.Coord(), To: n.Coord()})
			case *RangeNode:
				tl, br := n.Bounds()
				out = append(out, Reference{Sheet: sheet, From: tl, To: br})
				return false
			}
			return true
		})
	}
	visit(e, "")
	return out
}

// ExtractReferences returns every coordinate on the formula's own sheet
// that e reads, with ranges expanded row-major. each coordinate appears
// once, in first-seen order. sheet-qualified references are excluded; use
// References for those.
func ExtractReferences(e Expr) []cell.Coord {
	seen := make(map[cell.Coord]struct{})
	var out []cell.Coord
	for _, ref := range References(e) {
		if ref.Sheet != "" {
			continue
		}
		for c := range ref.Cells() {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Functions returns the upper-cased names of every function e calls.
func Functions(e Expr) []string {
	var names []string
	Walk(e, func(node Expr) bool {
		if call, ok := node.(*FunctionCallNode); ok {
			names = append(names, call.Name)
		}
		return true
	})
	return names
}
