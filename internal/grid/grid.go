// Package grid stores sparse per-cell payloads in fixed 16x16 chunks so
// viewport-sized range queries only touch the chunks they overlap.
package grid

import (
	"iter"
	"slices"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

const (
	ChunkSize  = 16
	chunkShift = 4
	chunkMask  = ChunkSize - 1
)

// ChunkKey identifies a chunk: (row/16, col/16).
type ChunkKey struct {
	Row uint32
	Col uint32
}

// Local is a coordinate inside a chunk, each component in [0, 16).
type Local struct {
	Row uint8
	Col uint8
}

// Decompose splits a coordinate into its owning chunk and the local offset
// inside that chunk.
func Decompose(c cell.Coord) (ChunkKey, Local) {
	return ChunkKey{Row: c.Row >> chunkShift, Col: c.Col >> chunkShift},
		Local{Row: uint8(c.Row & chunkMask), Col: uint8(c.Col & chunkMask)}
}

// Compose is the inverse of Decompose.
func Compose(k ChunkKey, l Local) cell.Coord {
	return cell.Coord{
		Row: k.Row<<chunkShift | uint32(l.Row),
		Col: k.Col<<chunkShift | uint32(l.Col),
	}
}

// chunk holds only the occupied cells of one 16x16 block
type chunk[T any] struct {
	cells map[Local]T
}

// Entry is a stored coordinate and its payload.
type Entry[T any] struct {
	Coord cell.Coord
	Value T
}

// Grid maps cell coordinates to payloads. A chunk exists only while it holds
// at least one cell, and Len always equals the sum of per-chunk counts.
type Grid[T any] struct {
	chunks map[ChunkKey]*chunk[T]
	count  int
}

// New creates an empty grid
func New[T any]() *Grid[T] {
	return &Grid[T]{chunks: make(map[ChunkKey]*chunk[T])}
}

// Len returns the number of occupied cells.
func (g *Grid[T]) Len() int {
	return g.count
}

// ChunkCount returns the number of live chunks.
func (g *Grid[T]) ChunkCount() int {
	return len(g.chunks)
}

// Get returns the payload stored at (row, col).
func (g *Grid[T]) Get(row, col uint32) (T, bool) {
	key, local := Decompose(cell.At(row, col))
	ch, exists := g.chunks[key]
	if !exists {
		var zero T
		return zero, false
	}
	v, ok := ch.cells[local]
	return v, ok
}

// Insert stores v at (row, col), creating the owning chunk if needed.
// returns the previous payload, if any.
func (g *Grid[T]) Insert(row, col uint32, v T) (T, bool) {
	key, local := Decompose(cell.At(row, col))
	ch, exists := g.chunks[key]
	if !exists {
		ch = &chunk[T]{cells: make(map[Local]T, 4)}
		g.chunks[key] = ch
	}
	prev, replaced := ch.cells[local]
	ch.cells[local] = v
	if !replaced {
		g.count++
	}
	return prev, replaced
}

// Remove deletes the payload at (row, col). the owning chunk is dropped once
// it is empty.
func (g *Grid[T]) Remove(row, col uint32) (T, bool) {
	key, local := Decompose(cell.At(row, col))
	ch, exists := g.chunks[key]
	if !exists {
		var zero T
		return zero, false
	}
	prev, ok := ch.cells[local]
	if !ok {
		return prev, false
	}
	delete(ch.cells, local)
	g.count--
	if len(ch.cells) == 0 {
		delete(g.chunks, key)
	}
	return prev, true
}

// Clear removes every cell.
func (g *Grid[T]) Clear() {
	g.chunks = make(map[ChunkKey]*chunk[T])
	g.count = 0
}

// All iterates every stored cell in unspecified order.
func (g *Grid[T]) All() iter.Seq2[cell.Coord, T] {
	return func(yield func(cell.Coord, T) bool) {
		for key, ch := range g.chunks {
			for local, v := range ch.cells {
				if !yield(Compose(key, local), v) {
					return
				}
			}
		}
	}
}

// RangeQuery iterates the cells inside the inclusive box (r0,c0)-(r1,c1).
// reversed corners are normalized. only chunks overlapping the box are
// visited; when the box spans more chunk slots than there are live chunks,
// the live chunks are scanned instead.
func (g *Grid[T]) RangeQuery(r0, c0, r1, c1 uint32) iter.Seq2[cell.Coord, T] {
	if r0 > r1 {
		r0, r1 = r1, r0
	}
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	kr0, kr1 := r0>>chunkShift, r1>>chunkShift
	kc0, kc1 := c0>>chunkShift, c1>>chunkShift

	return func(yield func(cell.Coord, T) bool) {
		visit := func(key ChunkKey, ch *chunk[T]) bool {
			for local, v := range ch.cells {
				c := Compose(key, local)
				if c.Row < r0 || c.Row > r1 || c.Col < c0 || c.Col > c1 {
					continue
				}
				if !yield(c, v) {
					return false
				}
			}
			return true
		}

		slots := (uint64(kr1-kr0) + 1) * (uint64(kc1-kc0) + 1)
		if slots > uint64(len(g.chunks)) {
			for key, ch := range g.chunks {
				if key.Row < kr0 || key.Row > kr1 || key.Col < kc0 || key.Col > kc1 {
					continue
				}
				if !visit(key, ch) {
					return
				}
			}
			return
		}

		for kr := kr0; kr <= kr1; kr++ {
			for kc := kc0; kc <= kc1; kc++ {
				key := ChunkKey{Row: kr, Col: kc}
				ch, exists := g.chunks[key]
				if !exists {
					continue
				}
				if !visit(key, ch) {
					return
				}
			}
		}
	}
}

// Collect gathers the cells of a range query sorted row-major.
func (g *Grid[T]) Collect(r0, c0, r1, c1 uint32) []Entry[T] {
	var out []Entry[T]
	for c, v := range g.RangeQuery(r0, c0, r1, c1) {
		out = append(out, Entry[T]{Coord: c, Value: v})
	}
	slices.SortFunc(out, func(a, b Entry[T]) int { return cell.Compare(a.Coord, b.Coord) })
	return out
}
