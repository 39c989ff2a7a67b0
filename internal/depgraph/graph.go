// Package depgraph tracks which cells read which, and orders recalculation
// so that every cell is computed after the cells it depends on.
package depgraph

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCircular is matched by every *CycleError.
var ErrCircular = errors.New("depgraph: circular reference")

// CycleError reports a dependency cycle. Cells lists the cycle in path
// order, starting from the first cell found to be revisited.
type CycleError[K comparable] struct {
	Cells []K
}

func (e *CycleError[K]) Error() string {
	return fmt.Sprintf("depgraph: circular reference through %v", e.Cells)
}

func (e *CycleError[K]) Is(target error) bool {
	return target == ErrCircular
}

type set[K comparable] map[K]struct{}

// Graph manages cell dependencies and calculation order. Keys are cell
// identifiers; compare gives them a total order so that every traversal is
// deterministic.
//
// for all (a, b): b is in dependencies[a] iff a is in dependents[b].
type Graph[K comparable] struct {
	dependencies map[K]set[K] // cell -> cells its formula reads
	dependents   map[K]set[K] // cell -> cells whose formulas read it
	volatile     set[K]       // cells that recalculate on every pass
	compare      func(a, b K) int
}

// New creates an empty graph ordered by compare.
func New[K comparable](compare func(a, b K) int) *Graph[K] {
	return &Graph[K]{
		dependencies: make(map[K]set[K]),
		dependents:   make(map[K]set[K]),
		volatile:     make(set[K]),
		compare:      compare,
	}
}

// SetDependencies replaces the cells that cell reads. an empty deps removes
// the forward entry entirely.
func (g *Graph[K]) SetDependencies(cell K, deps []K) {
	for dep := range g.dependencies[cell] {
		g.unlink(cell, dep)
	}
	delete(g.dependencies, cell)

	if len(deps) == 0 {
		return
	}
	forward := make(set[K], len(deps))
	for _, dep := range deps {
		forward[dep] = struct{}{}
		reverse, ok := g.dependents[dep]
		if !ok {
			reverse = make(set[K])
			g.dependents[dep] = reverse
		}
		reverse[cell] = struct{}{}
	}
	g.dependencies[cell] = forward
}

func (g *Graph[K]) unlink(cell, dep K) {
	reverse := g.dependents[dep]
	delete(reverse, cell)
	if len(reverse) == 0 {
		delete(g.dependents, dep)
	}
}

// Remove forgets cell's own formula: its outgoing edges and volatile mark.
// cells that read cell keep their edges to it.
func (g *Graph[K]) Remove(cell K) {
	g.SetDependencies(cell, nil)
	delete(g.volatile, cell)
}

// Clear removes all nodes and dependencies from the graph
func (g *Graph[K]) Clear() {
	g.dependencies = make(map[K]set[K])
	g.dependents = make(map[K]set[K])
	g.volatile = make(set[K])
}

// Len returns the number of cells with outgoing edges.
func (g *Graph[K]) Len() int {
	return len(g.dependencies)
}

// Dependencies returns the cells that cell reads, sorted.
func (g *Graph[K]) Dependencies(cell K) []K {
	return g.sorted(g.dependencies[cell])
}

// Dependents returns the cells that read cell directly, sorted.
func (g *Graph[K]) Dependents(cell K) []K {
	return g.sorted(g.dependents[cell])
}

// Cells returns every cell with outgoing edges, sorted.
func (g *Graph[K]) Cells() []K {
	out := make([]K, 0, len(g.dependencies))
	for cell := range g.dependencies {
		out = append(out, cell)
	}
	slices.SortFunc(out, g.compare)
	return out
}

// MarkVolatile sets or clears the volatile mark on cell
func (g *Graph[K]) MarkVolatile(cell K, volatile bool) {
	if volatile {
		g.volatile[cell] = struct{}{}
	} else {
		delete(g.volatile, cell)
	}
}

// IsVolatile checks if a cell contains volatile functions
func (g *Graph[K]) IsVolatile(cell K) bool {
	_, ok := g.volatile[cell]
	return ok
}

// Volatile returns all cells marked as volatile, sorted.
func (g *Graph[K]) Volatile() []K {
	return g.sorted(g.volatile)
}

func (g *Graph[K]) sorted(s set[K]) []K {
	if len(s) == 0 {
		return nil
	}
	out := make([]K, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.SortFunc(out, g.compare)
	return out
}

// Affected returns changed plus every cell that transitively depends on
// them, in breadth-first order over the reverse edges.
func (g *Graph[K]) Affected(changed ...K) []K {
	seen := make(set[K], len(changed))
	var queue []K
	for _, c := range changed {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			queue = append(queue, c)
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, dep := range g.Dependents(queue[i]) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return queue
}

// visit states for the depth-first sort
const (
	unvisited = iota
	visiting
	done
)

// RecalculationOrder returns the affected set of changed, dependencies
// before dependents. it fails with a *CycleError as soon as the sort
// revisits a cell still on the current path.
func (g *Graph[K]) RecalculationOrder(changed ...K) ([]K, error) {
	affected := g.Affected(changed...)
	inSet := make(map[K]int, len(affected))
	for _, c := range affected {
		inSet[c] = unvisited
	}

	order := make([]K, 0, len(affected))
	var path []K
	var cycle []K

	var visit func(c K) bool
	visit = func(c K) bool {
		switch inSet[c] {
		case done:
			return true
		case visiting:
			start := slices.Index(path, c)
			cycle = slices.Clone(path[start:])
			return false
		}
		inSet[c] = visiting
		path = append(path, c)
		for _, dep := range g.Dependencies(c) {
			if _, ok := inSet[dep]; !ok {
				continue
			}
			if !visit(dep) {
				return false
			}
		}
		path = path[:len(path)-1]
		inSet[c] = done
		order = append(order, c)
		return true
	}

	for _, c := range affected {
		if !visit(c) {
			return nil, &CycleError[K]{Cells: cycle}
		}
	}
	return order, nil
}

// Plan is a recalculation schedule that tolerates cycles.
type Plan[K comparable] struct {
	// Order lists the affected cells that are not on a cycle, dependencies
	// before dependents.
	Order []K
	// Circular lists every affected cell that lies on a cycle, sorted.
	Circular []K
}

// Plan schedules recalculation for changed like RecalculationOrder, but
// instead of stopping at the first cycle it separates out every cell that
// lies on one. cells downstream of a cycle stay in Order after it.
func (g *Graph[K]) Plan(changed ...K) Plan[K] {
	affected := g.Affected(changed...)
	inSet := make(set[K], len(affected))
	for _, c := range affected {
		inSet[c] = struct{}{}
	}

	// Tarjan's algorithm over forward edges emits each strongly connected
	// component after every component it reads from.
	var (
		plan    Plan[K]
		index   = make(map[K]int, len(affected))
		lowlink = make(map[K]int, len(affected))
		onStack = make(set[K])
		stack   []K
		next    int
	)
	var strongConnect func(c K)
	strongConnect = func(c K) {
		index[c] = next
		lowlink[c] = next
		next++
		stack = append(stack, c)
		onStack[c] = struct{}{}

		selfLoop := false
		for _, dep := range g.Dependencies(c) {
			if _, ok := inSet[dep]; !ok {
				continue
			}
			if dep == c {
				selfLoop = true
			}
			if _, seen := index[dep]; !seen {
				strongConnect(dep)
				lowlink[c] = min(lowlink[c], lowlink[dep])
			} else if _, ok := onStack[dep]; ok {
				lowlink[c] = min(lowlink[c], index[dep])
			}
		}

		if lowlink[c] != index[c] {
			return
		}
		var component []K
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			delete(onStack, top)
			component = append(component, top)
			if top == c {
				break
			}
		}
		if len(component) > 1 || selfLoop {
			plan.Circular = append(plan.Circular, component...)
		} else {
			plan.Order = append(plan.Order, c)
		}
	}

	for _, c := range affected {
		if _, seen := index[c]; !seen {
			strongConnect(c)
		}
	}
	slices.SortFunc(plan.Circular, g.compare)
	return plan
}

// WouldCreateCycle reports whether making cell read candidate would close
// a cycle, that is whether candidate already reaches cell through forward
// edges.
func (g *Graph[K]) WouldCreateCycle(cell, candidate K) bool {
	if cell == candidate {
		return true
	}
	seen := set[K]{candidate: {}}
	queue := []K{candidate}
	for i := 0; i < len(queue); i++ {
		for dep := range g.dependencies[queue[i]] {
			if dep == cell {
				return true
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return false
}

// HasCycle checks if there are circular dependencies anywhere in the graph
func (g *Graph[K]) HasCycle() bool {
	_, err := g.RecalculationOrder(g.Cells()...)
	return err != nil
}
