// Package spatial maps row and column indices to pixel offsets and back.
//
// Each axis keeps a Fenwick tree over the effective sizes (0 when hidden)
// next to the raw sizes, so hiding never loses the size it hides. Elements
// past the materialized length have the default size, which lets an axis
// answer queries over an unbounded sheet while only storing the prefix that
// was ever customized.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"slices"

	"fortio.org/safecast"
)

var (
	ErrInvalidSize  = errors.New("spatial: size must be a finite, non-negative number")
	ErrOutOfRange   = errors.New("spatial: index out of range")
	ErrInvalidCount = errors.New("spatial: invalid count")
)

// Axis is one dimension (rows or columns) of the layout.
type Axis struct {
	defaultSize float64
	limit       int // number of addressable elements

	sizes  []float64 // raw size per materialized element
	hidden map[int]struct{}
	tree   []float64 // 1-based Fenwick tree over effective sizes
}

// NewAxis creates an axis with limit addressable elements that all start at
// defaultSize.
func NewAxis(limit uint32, defaultSize float64) *Axis {
	if math.IsNaN(defaultSize) || math.IsInf(defaultSize, 0) || defaultSize <= 0 {
		defaultSize = 1
	}
	return &Axis{
		defaultSize: defaultSize,
		limit:       int(limit),
		hidden:      make(map[int]struct{}),
		tree:        make([]float64, 1),
	}
}

// NewAxisWithSizes creates an axis whose first len(sizes) elements are
// materialized with the given raw sizes.
func NewAxisWithSizes(limit uint32, defaultSize float64, sizes []float64) (*Axis, error) {
	a := NewAxis(limit, defaultSize)
	if len(sizes) > a.limit {
		return nil, fmt.Errorf("%w: %d sizes for %d elements", ErrOutOfRange, len(sizes), a.limit)
	}
	for i, s := range sizes {
		if !validSize(s) {
			return nil, fmt.Errorf("%w: element %d = %v", ErrInvalidSize, i, s)
		}
	}
	a.sizes = slices.Clone(sizes)
	a.tree = make([]float64, len(a.sizes)+1)
	a.rebuildFrom(0)
	return a, nil
}

func validSize(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= 0
}

// DefaultSize returns the size of elements never customized.
func (a *Axis) DefaultSize() float64 { return a.defaultSize }

// Limit returns the number of addressable elements.
func (a *Axis) Limit() uint32 {
	n, err := safecast.Conv[uint32](a.limit)
	if err != nil {
		return math.MaxUint32
	}
	return n
}

// Len returns the number of materialized elements.
func (a *Axis) Len() int { return len(a.sizes) }

// Size returns the raw size of element i, hidden or not.
func (a *Axis) Size(i uint32) float64 {
	idx := int(i)
	if idx < len(a.sizes) {
		return a.sizes[idx]
	}
	return a.defaultSize
}

// IsHidden reports whether element i is hidden.
func (a *Axis) IsHidden(i uint32) bool {
	_, ok := a.hidden[int(i)]
	return ok
}

// Hidden returns the hidden indices in ascending order.
func (a *Axis) Hidden() []uint32 {
	out := make([]uint32, 0, len(a.hidden))
	for i := range a.hidden {
		if v, err := safecast.Conv[uint32](i); err == nil {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// Sizes returns a copy of the materialized raw sizes.
func (a *Axis) Sizes() []float64 { return slices.Clone(a.sizes) }

// EffectiveSize is the rendered size of element i: 0 if hidden.
func (a *Axis) EffectiveSize(i uint32) float64 {
	if a.IsHidden(i) {
		return 0
	}
	return a.Size(i)
}

// Total is the rendered size of the materialized prefix.
func (a *Axis) Total() float64 {
	return a.prefix(len(a.sizes))
}

// OffsetOf returns the pixel offset of the start of element i, which is the
// sum of effective sizes over [0, i).
func (a *Axis) OffsetOf(i uint32) float64 {
	idx := int(i)
	if idx <= len(a.sizes) {
		return a.prefix(idx)
	}
	return a.Total() + float64(idx-len(a.sizes))*a.defaultSize
}

// IndexAt returns the element containing pixel offset x. an element owns the
// interval (start, end]; offsets at or before 0 resolve to the first visible
// element and results are clamped to the addressable range.
func (a *Axis) IndexAt(x float64) uint32 {
	n := len(a.sizes)
	var idx int
	if total := a.Total(); x > total {
		idx = n + int(math.Ceil((x-total)/a.defaultSize)) - 1
	} else {
		idx = a.lowerBound(x)
		for idx < n && a.effective(idx) == 0 {
			idx++
		}
	}
	if idx >= a.limit {
		idx = a.limit - 1
	}
	if idx < 0 {
		idx = 0
	}
	out, err := safecast.Conv[uint32](idx)
	if err != nil {
		return 0
	}
	return out
}

// SetSize changes the raw size of element i. a hidden element keeps the new
// size for when it is unhidden.
func (a *Axis) SetSize(i uint32, size float64) error {
	if !validSize(size) {
		return fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	idx, err := a.materialize(i)
	if err != nil {
		return err
	}
	old := a.sizes[idx]
	a.sizes[idx] = size
	if !a.isHidden(idx) {
		a.add(idx, size-old)
	}
	return nil
}

// Hide removes element i's contribution without discarding its size.
func (a *Axis) Hide(i uint32) error {
	idx, err := a.materialize(i)
	if err != nil {
		return err
	}
	if a.isHidden(idx) {
		return nil
	}
	a.hidden[idx] = struct{}{}
	a.add(idx, -a.sizes[idx])
	return nil
}

// Unhide restores element i's raw size.
func (a *Axis) Unhide(i uint32) error {
	idx := int(i)
	if !a.isHidden(idx) {
		return nil
	}
	delete(a.hidden, idx)
	a.add(idx, a.sizes[idx])
	return nil
}

// Insert opens count default-sized elements at at. hidden indices at or after
// at move by count; elements pushed past the limit are dropped.
func (a *Axis) Insert(at, count uint32) error {
	if count == 0 {
		return nil
	}
	pos, n := int(at), int(count)
	if pos >= a.limit || n > a.limit {
		return fmt.Errorf("%w: insert %d at %d", ErrInvalidCount, count, at)
	}
	if pos >= len(a.sizes) {
		// every element at or past the materialized end already has the
		// default size and nothing there is hidden
		return nil
	}

	gap := make([]float64, n)
	for i := range gap {
		gap[i] = a.defaultSize
	}
	a.sizes = slices.Insert(a.sizes, pos, gap...)

	hidden := make(map[int]struct{}, len(a.hidden))
	for h := range a.hidden {
		if h >= pos {
			h += n
		}
		if h < a.limit {
			hidden[h] = struct{}{}
		}
	}
	a.hidden = hidden

	if len(a.sizes) > a.limit {
		a.sizes = a.sizes[:a.limit]
	}
	a.resizeTree()
	a.rebuildFrom(pos)
	return nil
}

// Delete removes count elements starting at at. hidden indices inside the
// span are dropped, those after it move back by count.
func (a *Axis) Delete(at, count uint32) error {
	if count == 0 {
		return nil
	}
	pos := int(at)
	if pos >= len(a.sizes) {
		return nil
	}
	end := min(pos+int(count), len(a.sizes))
	a.sizes = slices.Delete(a.sizes, pos, end)

	hidden := make(map[int]struct{}, len(a.hidden))
	for h := range a.hidden {
		switch {
		case h < pos:
			hidden[h] = struct{}{}
		case h >= pos+int(count):
			hidden[h-int(count)] = struct{}{}
		}
	}
	a.hidden = hidden

	a.resizeTree()
	a.rebuildFrom(pos)
	return nil
}

func (a *Axis) isHidden(idx int) bool {
	_, ok := a.hidden[idx]
	return ok
}

func (a *Axis) effective(idx int) float64 {
	if a.isHidden(idx) {
		return 0
	}
	return a.sizes[idx]
}

// materialize grows the stored prefix so that index i has a slot.
func (a *Axis) materialize(i uint32) (int, error) {
	idx := int(i)
	if idx >= a.limit {
		return 0, fmt.Errorf("%w: %d >= %d", ErrOutOfRange, i, a.limit)
	}
	if idx < len(a.sizes) {
		return idx, nil
	}
	from := len(a.sizes)
	for len(a.sizes) <= idx {
		a.sizes = append(a.sizes, a.defaultSize)
	}
	a.resizeTree()
	a.rebuildFrom(from)
	return idx, nil
}

func (a *Axis) resizeTree() {
	n := len(a.sizes) + 1
	if cap(a.tree) >= n {
		a.tree = a.tree[:n]
		return
	}
	tree := make([]float64, n, n+n/4)
	copy(tree, a.tree)
	a.tree = tree
}

// add applies delta to the contribution at 0-based idx.
func (a *Axis) add(idx int, delta float64) {
	for j := idx + 1; j < len(a.tree); j += j & -j {
		a.tree[j] += delta
	}
}

// prefix sums the effective sizes of the first n elements.
func (a *Axis) prefix(n int) float64 {
	sum := 0.0
	for j := n; j > 0; j -= j & -j {
		sum += a.tree[j]
	}
	return sum
}

// lowerBound returns the smallest 0-based i with prefix(i+1) >= x, or
// len(sizes) when no such element exists.
func (a *Axis) lowerBound(x float64) int {
	n := len(a.sizes)
	if n == 0 {
		return 0
	}
	pos := 0
	rem := x
	for step := 1 << (bits.Len(uint(n)) - 1); step > 0; step >>= 1 {
		next := pos + step
		if next <= n && a.tree[next] < rem {
			pos = next
			rem -= a.tree[next]
		}
	}
	return pos
}

// rebuildFrom recomputes every tree node whose span reaches index at or
// later. nodes covering only [0, at) are already correct.
func (a *Axis) rebuildFrom(at int) {
	n := len(a.sizes)
	for j := at + 1; j <= n; j++ {
		a.tree[j] = a.effective(j - 1)
	}
	for j := 1; j <= n; j++ {
		parent := j + (j & -j)
		if parent <= n && parent > at {
			a.tree[parent] += a.tree[j]
		}
	}
}
