package sheet

import (
	"fmt"
	"time"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
	"github.com/chrischeng-c4/rusheet-sub000/internal/grid"
	"github.com/chrischeng-c4/rusheet-sub000/internal/spatial"
)

// InsertRows opens count empty rows at row at. cells pushed past the last
// row are dropped.
func (s *Sheet) InsertRows(at, count uint32) error {
	return s.shift(formula.AxisRow, at, count, grid.Insert)
}

// DeleteRows removes count rows starting at row at. formulas that read a
// deleted cell get #REF! in its place.
func (s *Sheet) DeleteRows(at, count uint32) error {
	return s.shift(formula.AxisRow, at, count, grid.Delete)
}

func (s *Sheet) InsertCols(at, count uint32) error {
	return s.shift(formula.AxisCol, at, count, grid.Insert)
}

func (s *Sheet) DeleteCols(at, count uint32) error {
	return s.shift(formula.AxisCol, at, count, grid.Delete)
}

// shift applies one structural edit to the grid, the layout and every
// formula in the workbook, then relinks and recalculates everything.
func (s *Sheet) shift(axis formula.Axis, at, count uint32, dir grid.Direction) error {
	limit, layout := cell.MaxRows, s.layout.Rows
	if axis == formula.AxisCol {
		limit, layout = cell.MaxCols, s.layout.Cols
	}
	if at >= limit {
		return fmt.Errorf("%w: %s %d", ErrOutOfBounds, axis, at)
	}
	count = min(count, limit-at)
	if count == 0 {
		return nil
	}
	start := time.Now()

	var err error
	if dir == grid.Insert {
		err = layout.Insert(at, count)
	} else {
		err = layout.Delete(at, count)
	}
	if err != nil {
		return fmt.Errorf("sheet %q: %w", s.name, err)
	}

	var result grid.Shift[entry]
	if axis == formula.AxisRow {
		result = s.cells.ShiftRows(at, count, dir)
	} else {
		result = s.cells.ShiftCols(at, count, dir)
	}
	for _, removed := range result.Removed {
		s.wb.formulas.release(removed.Value.formula)
	}

	delta := int(count)
	if dir == grid.Delete {
		delta = -delta
	}
	rewritten, invalidated := 0, 0
	for _, other := range s.wb.sheets {
		scope := formula.ShiftScope{Sheet: s.name, Local: other == s}
		for _, c := range other.formulaCells() {
			e, _ := other.cells.Get(c.Row, c.Col)
			old := s.wb.formulas.tree(e.formula)
			out, bad := formula.ShiftSheetReferences(old, scope, axis, at, delta)
			if bad {
				invalidated++
			}
			if out == old {
				continue
			}
			other.replaceFormula(c, e, out)
			rewritten++
		}
	}

	s.wb.names.rewrite(func(target formula.Expr) formula.Expr {
		out, bad := formula.ShiftSheetReferences(target, formula.ShiftScope{Sheet: s.name}, axis, at, delta)
		if bad {
			invalidated++
		}
		return out
	})

	s.wb.log.Debug("structural edit",
		"sheet", s.name,
		"axis", axis.String(),
		"at", at,
		"delta", delta,
		"moved", len(result.Moved),
		"removed", len(result.Removed),
		"rewritten", rewritten,
		"invalidated", invalidated,
		"elapsed", time.Since(start))
	s.wb.rebuild()
	return nil
}

// SetRowHeight and the other layout helpers forward to the spatial index
// and wrap its errors with the sheet name.
func (s *Sheet) SetRowHeight(row uint32, height float64) error {
	return s.layoutErr(s.layout.Rows.SetSize(row, height))
}

func (s *Sheet) SetColWidth(col uint32, width float64) error {
	return s.layoutErr(s.layout.Cols.SetSize(col, width))
}

func (s *Sheet) HideRow(row uint32) error   { return s.layoutErr(s.layout.Rows.Hide(row)) }
func (s *Sheet) UnhideRow(row uint32) error { return s.layoutErr(s.layout.Rows.Unhide(row)) }
func (s *Sheet) HideCol(col uint32) error   { return s.layoutErr(s.layout.Cols.Hide(col)) }
func (s *Sheet) UnhideCol(col uint32) error { return s.layoutErr(s.layout.Cols.Unhide(col)) }

// CellRect returns the pixel box of (row, col).
func (s *Sheet) CellRect(row, col uint32) spatial.Rect {
	return s.layout.CellRect(cell.At(row, col))
}

func (s *Sheet) layoutErr(err error) error {
	if err != nil {
		return fmt.Errorf("sheet %q: %w", s.name, err)
	}
	return nil
}
