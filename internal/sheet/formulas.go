package sheet

import "github.com/chrischeng-c4/rusheet-sub000/internal/formula"

// formulaTable interns parsed formulas by their rendered source so that
// cells holding the same formula share one tree. ids are reference counted
// and never reused; 0 means no formula.
type formulaTable struct {
	keyToID   map[string]uint32
	trees     map[uint32]formula.Expr
	refCounts map[uint32]int
	nextID    uint32
}

func newFormulaTable() *formulaTable {
	return &formulaTable{
		keyToID:   make(map[string]uint32),
		trees:     make(map[uint32]formula.Expr),
		refCounts: make(map[uint32]int),
		nextID:    1,
	}
}

// intern adds a reference to expr and returns its id and canonical source.
func (ft *formulaTable) intern(expr formula.Expr) (uint32, string) {
	source := formula.Render(expr)
	if id, ok := ft.keyToID[source]; ok {
		ft.refCounts[id]++
		return id, source
	}
	id := ft.nextID
	ft.nextID++
	ft.keyToID[source] = id
	ft.trees[id] = expr
	ft.refCounts[id] = 1
	return id, source
}

// release drops one reference to id, forgetting the tree at zero.
func (ft *formulaTable) release(id uint32) {
	if id == 0 {
		return
	}
	n, ok := ft.refCounts[id]
	if !ok {
		return
	}
	if n > 1 {
		ft.refCounts[id] = n - 1
		return
	}
	source := formula.Render(ft.trees[id])
	delete(ft.keyToID, source)
	delete(ft.trees, id)
	delete(ft.refCounts, id)
}

func (ft *formulaTable) tree(id uint32) formula.Expr {
	return ft.trees[id]
}

// Len returns the number of distinct formulas held.
func (ft *formulaTable) Len() int {
	return len(ft.trees)
}

func (ft *formulaTable) refCount(id uint32) int {
	return ft.refCounts[id]
}
