package grid

import (
	"slices"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// Direction selects whether a shift opens a gap or closes one.
type Direction uint8

const (
	// Insert moves cells away from the origin.
	Insert Direction = iota
	// Delete moves cells toward the origin, dropping the deleted span.
	Delete
)

// Move records a relocated cell.
type Move struct {
	From cell.Coord
	To   cell.Coord
}

// Shift is the outcome of ShiftRows or ShiftCols. Moved lists relocated
// cells; Removed lists cells dropped because they were inside a deleted span
// or were pushed past the sheet bounds by an insert. both are sorted by
// original coordinate.
type Shift[T any] struct {
	Moved   []Move
	Removed []Entry[T]
}

type axis uint8

const (
	rowAxis axis = iota
	colAxis
)

func (a axis) pos(c cell.Coord) uint32 {
	if a == rowAxis {
		return c.Row
	}
	return c.Col
}

func (a axis) with(c cell.Coord, p uint32) cell.Coord {
	if a == rowAxis {
		c.Row = p
	} else {
		c.Col = p
	}
	return c
}

func (a axis) limit() uint64 {
	if a == rowAxis {
		return uint64(cell.MaxRows)
	}
	return uint64(cell.MaxCols)
}

func (a axis) chunkBase(k ChunkKey) uint64 {
	if a == rowAxis {
		return uint64(k.Row) << chunkShift
	}
	return uint64(k.Col) << chunkShift
}

// ShiftRows relocates every cell at row >= at by count rows.
func (g *Grid[T]) ShiftRows(at, count uint32, dir Direction) Shift[T] {
	return g.shift(rowAxis, at, count, dir)
}

// ShiftCols relocates every cell at column >= at by count columns.
func (g *Grid[T]) ShiftCols(at, count uint32, dir Direction) Shift[T] {
	return g.shift(colAxis, at, count, dir)
}

func (g *Grid[T]) shift(ax axis, at, count uint32, dir Direction) Shift[T] {
	var result Shift[T]
	if count == 0 {
		return result
	}

	// lift every affected cell out first so relocation never collides with a
	// cell that has not moved yet
	var affected []Entry[T]
	for key, ch := range g.chunks {
		if ax.chunkBase(key)+chunkMask < uint64(at) {
			continue
		}
		for local, v := range ch.cells {
			c := Compose(key, local)
			if ax.pos(c) >= at {
				affected = append(affected, Entry[T]{Coord: c, Value: v})
			}
		}
	}
	slices.SortFunc(affected, func(a, b Entry[T]) int { return cell.Compare(a.Coord, b.Coord) })
	for _, e := range affected {
		g.Remove(e.Coord.Row, e.Coord.Col)
	}

	end := uint64(at) + uint64(count)
	for _, e := range affected {
		p := uint64(ax.pos(e.Coord))
		var np uint64
		switch dir {
		case Insert:
			np = p + uint64(count)
			if np >= ax.limit() {
				result.Removed = append(result.Removed, e)
				continue
			}
		case Delete:
			if p < end {
				result.Removed = append(result.Removed, e)
				continue
			}
			np = p - uint64(count)
		}
		to := ax.with(e.Coord, uint32(np))
		g.Insert(to.Row, to.Col, e.Value)
		result.Moved = append(result.Moved, Move{From: e.Coord, To: to})
	}
	return result
}
