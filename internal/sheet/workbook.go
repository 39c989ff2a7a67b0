// Package sheet ties the grid, layout, formula, evaluator and dependency
// graph packages together into workbooks of editable sheets.
//
// A Workbook is not safe for concurrent use. Independent workbooks share
// nothing and may be used from different goroutines.
package sheet

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/config"
	"github.com/chrischeng-c4/rusheet-sub000/internal/depgraph"
	"github.com/chrischeng-c4/rusheet-sub000/internal/eval"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
)

// Workbook owns its sheets together with the dependency graph that spans
// them. Graph keys carry sheet ids, which stay fixed across renames.
type Workbook struct {
	sheets   []*Sheet
	nextID   uint32
	graph    *depgraph.Graph[cell.Address]
	formulas *formulaTable
	names    *nameTable
	eval     *eval.Evaluator
	evalOpts []eval.Option
	engine   config.Engine
	log      *slog.Logger
	batch    int
}

type Option func(*Workbook)

// WithLogger sets the logger. the default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(wb *Workbook) {
		if logger != nil {
			wb.log = logger
		}
	}
}

// WithEngine applies engine settings from a config file. zero sizes and
// limits fall back to their defaults.
func WithEngine(engine config.Engine) Option {
	return func(wb *Workbook) { wb.engine = engine }
}

// WithEvaluatorOptions passes extra options to the evaluator, after the
// ones derived from the engine settings.
func WithEvaluatorOptions(opts ...eval.Option) Option {
	return func(wb *Workbook) { wb.evalOpts = append(wb.evalOpts, opts...) }
}

// NewWorkbook creates a workbook without sheets.
func NewWorkbook(opts ...Option) *Workbook {
	wb := &Workbook{
		nextID:   1,
		graph:    depgraph.New[cell.Address](cell.CompareAddress),
		formulas: newFormulaTable(),
		names:    newNameTable(),
		engine:   config.Default().Engine,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(wb)
	}
	wb.engine = wb.engine.WithDefaults()
	evalOpts := []eval.Option{
		eval.WithSheets(wb.lookupSheet),
		eval.WithNames(wb.resolveName),
		eval.WithMaxRangeCells(wb.engine.MaxRangeCells),
		eval.WithEagerConditionals(wb.engine.EagerConditionals),
	}
	wb.eval = eval.New(append(evalOpts, wb.evalOpts...)...)
	return wb
}

func (wb *Workbook) lookupSheet(name string) (eval.Lookup, bool) {
	s := wb.findSheet(name)
	if s == nil {
		return nil, false
	}
	return s.value, true
}

func (wb *Workbook) findSheet(name string) *Sheet {
	for _, s := range wb.sheets {
		if strings.EqualFold(s.name, name) {
			return s
		}
	}
	return nil
}

func (wb *Workbook) sheetByID(id uint32) *Sheet {
	for _, s := range wb.sheets {
		if s.id == id {
			return s
		}
	}
	return nil
}

func validateSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidSheetName)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidSheetName, name)
	case strings.ContainsRune(name, '\''):
		return fmt.Errorf("%w: %q contains an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}

// Sheet finds a sheet by name, ignoring case.
func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	s := wb.findSheet(name)
	return s, s != nil
}

// SheetByID finds a sheet by the id it was created with.
func (wb *Workbook) SheetByID(id uint32) (*Sheet, bool) {
	s := wb.sheetByID(id)
	return s, s != nil
}

// Sheets returns the sheets in creation order.
func (wb *Workbook) Sheets() []*Sheet {
	return slices.Clone(wb.sheets)
}

// AddSheet appends an empty sheet. formulas that already name it start
// resolving immediately.
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	if err := validateSheetName(name); err != nil {
		return nil, err
	}
	if wb.findSheet(name) != nil {
		return nil, fmt.Errorf("%w: %q", ErrSheetExists, name)
	}
	s := newSheet(wb, wb.nextID, name)
	wb.nextID++
	wb.sheets = append(wb.sheets, s)
	wb.log.Debug("sheet added", "sheet", name, "id", s.id)
	if wb.formulas.Len() > 0 {
		wb.rebuild()
	}
	return s, nil
}

// RemoveSheet deletes a sheet and its cells. formulas on other sheets that
// read it evaluate to #REF!.
func (wb *Workbook) RemoveSheet(name string) error {
	s := wb.findSheet(name)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	for _, e := range s.cells.All() {
		wb.formulas.release(e.formula)
	}
	s.cells.Clear()
	wb.sheets = slices.DeleteFunc(wb.sheets, func(other *Sheet) bool { return other == s })
	wb.log.Debug("sheet removed", "sheet", s.name, "id", s.id)
	wb.rebuild()
	return nil
}

// RenameSheet renames a sheet and rewrites every formula in the workbook
// that names it.
func (wb *Workbook) RenameSheet(from, to string) error {
	s := wb.findSheet(from)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, from)
	}
	if err := validateSheetName(to); err != nil {
		return err
	}
	if other := wb.findSheet(to); other != nil && other != s {
		return fmt.Errorf("%w: %q", ErrSheetExists, to)
	}
	old := s.name
	s.name = to

	rewritten := 0
	for _, other := range wb.sheets {
		for _, c := range other.formulaCells() {
			e, _ := other.cells.Get(c.Row, c.Col)
			out, changed := formula.RenameSheet(wb.formulas.tree(e.formula), old, to)
			if !changed {
				continue
			}
			other.replaceFormula(c, e, out)
			rewritten++
		}
	}
	wb.names.rewrite(func(target formula.Expr) formula.Expr {
		out, _ := formula.RenameSheet(target, old, to)
		return out
	})
	wb.log.Debug("sheet renamed", "from", old, "to", to, "formulas", rewritten)
	wb.rebuild()
	return nil
}

// Batch runs fn with recalculation suspended, then relinks and recalculates
// the whole workbook once. batches nest.
func (wb *Workbook) Batch(fn func() error) error {
	wb.batch++
	defer func() {
		wb.batch--
		if wb.batch == 0 {
			wb.rebuild()
		}
	}()
	return fn()
}

// Recalculate re-evaluates volatile cells and everything that depends on
// them.
func (wb *Workbook) Recalculate() {
	wb.recalc(wb.graph.Volatile()...)
}

// RecalculateAll relinks and re-evaluates every formula.
func (wb *Workbook) RecalculateAll() {
	wb.rebuild()
}

// CheckCircular reports the first dependency cycle found, if any. cells on
// a cycle hold #CIRCULAR! either way.
func (wb *Workbook) CheckCircular() error {
	_, err := wb.graph.RecalculationOrder(wb.graph.Cells()...)
	if err == nil {
		return nil
	}
	var names []string
	var cycle *depgraph.CycleError[cell.Address]
	if errors.As(err, &cycle) {
		for _, addr := range cycle.Cells {
			names = append(names, wb.FormatAddress(addr))
		}
	}
	return fmt.Errorf("sheet: circular reference %s: %w", strings.Join(names, " -> "), err)
}

// WouldCreateCycle reports whether making target read candidate would close
// a dependency cycle.
func (wb *Workbook) WouldCreateCycle(target, candidate cell.Address) bool {
	return wb.graph.WouldCreateCycle(target, candidate)
}

// FormatAddress renders addr as Sheet!A1, quoting the sheet name when
// needed.
func (wb *Workbook) FormatAddress(addr cell.Address) string {
	name := fmt.Sprintf("#%d", addr.Sheet)
	if s := wb.sheetByID(addr.Sheet); s != nil {
		name = formula.QuoteSheetName(s.name)
	}
	return name + "!" + cell.FormatA1(addr.Coord)
}

// FormulaCount returns the number of distinct formulas in the workbook.
func (wb *Workbook) FormulaCount() int {
	return wb.formulas.Len()
}

// link records the cells expr reads, including those behind defined names.
// references to missing sheets and ranges too large to evaluate contribute
// no edges.
func (wb *Workbook) link(s *Sheet, addr cell.Address, expr formula.Expr) {
	refs := formula.References(expr)
	for _, name := range formula.Names(expr) {
		if target, ok := wb.names.lookup(name); ok {
			refs = append(refs, formula.References(target)...)
		}
	}
	var deps []cell.Address
	for _, ref := range refs {
		target := s
		if ref.Sheet != "" {
			if target = wb.findSheet(ref.Sheet); target == nil {
				continue
			}
		}
		if ref.Size() > wb.eval.MaxRangeCells() {
			continue
		}
		for c := range ref.Cells() {
			deps = append(deps, cell.Address{Sheet: target.id, Coord: c})
		}
	}
	wb.graph.SetDependencies(addr, deps)

	volatile := false
	for _, name := range formula.Functions(expr) {
		if eval.IsVolatile(name) {
			volatile = true
			break
		}
	}
	wb.graph.MarkVolatile(addr, volatile)
}

// rebuild relinks every formula from scratch and recalculates all of them.
func (wb *Workbook) rebuild() {
	if wb.batch > 0 {
		return
	}
	wb.graph.Clear()
	var all []cell.Address
	for _, s := range wb.sheets {
		for _, c := range s.formulaCells() {
			e, _ := s.cells.Get(c.Row, c.Col)
			addr := s.addr(c)
			wb.link(s, addr, wb.formulas.tree(e.formula))
			all = append(all, addr)
		}
	}
	wb.recalc(all...)
}

// recalc evaluates changed and everything downstream of it, dependencies
// first. cells on a cycle get #CIRCULAR! and their dependents see it.
func (wb *Workbook) recalc(changed ...cell.Address) {
	if wb.batch > 0 || len(changed) == 0 {
		return
	}
	start := time.Now()
	plan := wb.graph.Plan(changed...)
	for _, addr := range plan.Circular {
		wb.store(addr, cell.Error(cell.ErrorCircular))
	}
	if len(plan.Circular) > 0 {
		names := make([]string, len(plan.Circular))
		for i, addr := range plan.Circular {
			names[i] = wb.FormatAddress(addr)
		}
		wb.log.Warn("circular reference", "cells", names)
	}

	evaluated := 0
	for _, addr := range plan.Order {
		s := wb.sheetByID(addr.Sheet)
		if s == nil {
			continue
		}
		e, ok := s.cells.Get(addr.Row, addr.Col)
		if !ok || e.formula == 0 {
			continue
		}
		wb.store(addr, wb.eval.Evaluate(wb.formulas.tree(e.formula), s.value))
		evaluated++
	}
	wb.log.Debug("recalculated",
		"cells", evaluated,
		"circular", len(plan.Circular),
		"elapsed", time.Since(start))
}

// store overwrites the cached value of a formula cell.
func (wb *Workbook) store(addr cell.Address, v cell.Value) {
	s := wb.sheetByID(addr.Sheet)
	if s == nil {
		return
	}
	e, ok := s.cells.Get(addr.Row, addr.Col)
	if !ok || !e.content.IsFormula() {
		return
	}
	e.content.Value = v
	s.cells.Insert(addr.Row, addr.Col, e)
}
