package spatial

import "github.com/chrischeng-c4/rusheet-sub000/internal/cell"

// Index pairs the row and column axes of one sheet.
type Index struct {
	Rows *Axis
	Cols *Axis
}

// NewIndex creates an index over the full sheet bounds.
func NewIndex(rowHeight, colWidth float64) *Index {
	return &Index{
		Rows: NewAxis(cell.MaxRows, rowHeight),
		Cols: NewAxis(cell.MaxCols, colWidth),
	}
}

// Rect is the pixel box of a cell.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// CellRect returns the pixel box of c. hidden rows or columns yield a zero
// height or width.
func (ix *Index) CellRect(c cell.Coord) Rect {
	return Rect{
		X:      ix.Cols.OffsetOf(c.Col),
		Y:      ix.Rows.OffsetOf(c.Row),
		Width:  ix.Cols.EffectiveSize(c.Col),
		Height: ix.Rows.EffectiveSize(c.Row),
	}
}

// CellAt hit-tests a pixel position.
func (ix *Index) CellAt(x, y float64) cell.Coord {
	return cell.Coord{Row: ix.Rows.IndexAt(y), Col: ix.Cols.IndexAt(x)}
}

// Visible returns the inclusive index span that a viewport starting at
// offset and extending for length pixels covers.
func (a *Axis) Visible(offset, length float64) (first, last uint32) {
	first = a.IndexAt(offset)
	last = a.IndexAt(offset + length)
	return first, last
}
