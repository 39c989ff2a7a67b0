package sheet

import (
	"fmt"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
	"github.com/chrischeng-c4/rusheet-sub000/internal/grid"
	"github.com/chrischeng-c4/rusheet-sub000/internal/spatial"
)

// entry is what the grid stores per occupied cell. formula is the interned
// tree id, 0 for literals and for formulas that failed to parse.
type entry struct {
	content cell.Content
	formula uint32
}

// Sheet is one named grid of cells with its row and column layout.
type Sheet struct {
	wb     *Workbook
	id     uint32
	name   string
	cells  *grid.Grid[entry]
	layout *spatial.Index
}

func newSheet(wb *Workbook, id uint32, name string) *Sheet {
	return &Sheet{
		wb:     wb,
		id:     id,
		name:   name,
		cells:  grid.New[entry](),
		layout: spatial.NewIndex(wb.engine.DefaultRowHeight, wb.engine.DefaultColWidth),
	}
}

func (s *Sheet) ID() uint32   { return s.id }
func (s *Sheet) Name() string { return s.name }

// Workbook returns the workbook that owns s.
func (s *Sheet) Workbook() *Workbook { return s.wb }

// Len returns the number of occupied cells.
func (s *Sheet) Len() int { return s.cells.Len() }

// Layout exposes row heights, column widths and hidden state.
func (s *Sheet) Layout() *spatial.Index { return s.layout }

func (s *Sheet) addr(c cell.Coord) cell.Address {
	return cell.Address{Sheet: s.id, Coord: c}
}

func (s *Sheet) ref(c cell.Coord) string {
	return s.wb.FormatAddress(s.addr(c))
}

func (s *Sheet) checkBounds(row, col uint32) (cell.Coord, error) {
	c := cell.At(row, col)
	if !c.InBounds() {
		return c, fmt.Errorf("%w: row %d, col %d", ErrOutOfBounds, row, col)
	}
	return c, nil
}

// value is the evaluator's view of the sheet
func (s *Sheet) value(c cell.Coord) cell.Value {
	e, ok := s.cells.Get(c.Row, c.Col)
	if !ok {
		return cell.Empty
	}
	return e.content.Value
}

// Value returns the literal or the last computed result at (row, col).
func (s *Sheet) Value(row, col uint32) cell.Value {
	return s.value(cell.At(row, col))
}

// Content returns what is stored at (row, col).
func (s *Sheet) Content(row, col uint32) (cell.Content, bool) {
	e, ok := s.cells.Get(row, col)
	return e.content, ok
}

// Formula returns the parsed formula at (row, col), if the cell holds one
// that parsed.
func (s *Sheet) Formula(row, col uint32) (formula.Expr, bool) {
	e, ok := s.cells.Get(row, col)
	if !ok || e.formula == 0 {
		return nil, false
	}
	return s.wb.formulas.tree(e.formula), true
}

// Evaluate computes expr as if it were entered on s, without storing it.
func (s *Sheet) Evaluate(expr formula.Expr) cell.Value {
	return s.wb.eval.Evaluate(expr, s.value)
}

// Set stores typed input at (row, col) and recalculates what depends on
// it. input starting with '=' is a formula; an empty input clears the cell.
//
// a formula that does not parse is still stored, with #VALUE! as its
// value, and the parse error is returned.
func (s *Sheet) Set(row, col uint32, input string) error {
	c, err := s.checkBounds(row, col)
	if err != nil {
		return err
	}
	if input == "" {
		s.clear(c)
		return nil
	}
	if !IsFormulaInput(input) {
		s.store(c, entry{content: cell.Literal(ParseLiteral(input), input)}, nil)
		return nil
	}

	broken := entry{content: cell.Formula(input, cell.Error(cell.ErrorValue))}
	if limit := s.wb.engine.MaxFormulaLength; limit > 0 && len(input) > limit {
		s.store(c, broken, nil)
		return fmt.Errorf("%s: %w: %d bytes, limit %d", s.ref(c), ErrFormulaTooLong, len(input), limit)
	}
	expr, err := formula.Parse(input)
	if err != nil {
		s.wb.log.Debug("formula stored as #VALUE!", "cell", s.ref(c), "err", err)
		s.store(c, broken, nil)
		return fmt.Errorf("%s: %w", s.ref(c), err)
	}
	id, source := s.wb.formulas.intern(expr)
	s.store(c, entry{content: cell.Formula(source, cell.Empty), formula: id}, s.wb.formulas.tree(id))
	return nil
}

// SetA1 is Set addressed by an A1 reference such as "B12".
func (s *Sheet) SetA1(ref, input string) error {
	c, err := cell.ParseA1(ref)
	if err != nil {
		return err
	}
	return s.Set(c.Row, c.Col, input)
}

// SetValue stores a literal value directly, bypassing input parsing.
func (s *Sheet) SetValue(row, col uint32, v cell.Value) error {
	return s.SetLiteral(row, col, v, "")
}

// SetLiteral stores a literal together with the text it was typed as.
func (s *Sheet) SetLiteral(row, col uint32, v cell.Value, input string) error {
	c, err := s.checkBounds(row, col)
	if err != nil {
		return err
	}
	if v.IsEmpty() && input == "" {
		s.clear(c)
		return nil
	}
	s.store(c, entry{content: cell.Literal(v, input)}, nil)
	return nil
}

// Clear empties (row, col).
func (s *Sheet) Clear(row, col uint32) error {
	c, err := s.checkBounds(row, col)
	if err != nil {
		return err
	}
	s.clear(c)
	return nil
}

func (s *Sheet) clear(c cell.Coord) {
	old, ok := s.cells.Remove(c.Row, c.Col)
	if !ok {
		return
	}
	s.wb.formulas.release(old.formula)
	addr := s.addr(c)
	s.wb.graph.Remove(addr)
	s.wb.recalc(addr)
}

// store puts e at c, relinks it and recalculates its dependents. expr is
// the parsed formula, nil for anything else. the caller has already taken
// the formula reference e holds.
func (s *Sheet) store(c cell.Coord, e entry, expr formula.Expr) {
	old, replaced := s.cells.Insert(c.Row, c.Col, e)
	if replaced {
		s.wb.formulas.release(old.formula)
	}
	addr := s.addr(c)
	if expr == nil {
		s.wb.graph.Remove(addr)
	} else if s.wb.batch == 0 {
		s.wb.link(s, addr, expr)
	}
	s.wb.recalc(addr)
}

// replaceFormula swaps the tree of an existing formula cell without
// relinking it.
func (s *Sheet) replaceFormula(c cell.Coord, e entry, expr formula.Expr) {
	id, source := s.wb.formulas.intern(expr)
	s.wb.formulas.release(e.formula)
	e.formula = id
	e.content.Input = source
	s.cells.Insert(c.Row, c.Col, e)
}

// formulaCells lists the cells holding a parsed formula, row-major.
func (s *Sheet) formulaCells() []cell.Coord {
	var out []cell.Coord
	for _, en := range s.entries() {
		if en.Value.formula != 0 {
			out = append(out, en.Coord)
		}
	}
	return out
}

func (s *Sheet) entries() []grid.Entry[entry] {
	return s.cells.Collect(0, 0, cell.MaxRows-1, cell.MaxCols-1)
}

// Entries returns every occupied cell, row-major.
func (s *Sheet) Entries() []grid.Entry[cell.Content] {
	entries := s.entries()
	out := make([]grid.Entry[cell.Content], len(entries))
	for i, en := range entries {
		out[i] = grid.Entry[cell.Content]{Coord: en.Coord, Value: en.Value.content}
	}
	return out
}

// Bounds returns the largest occupied row and column. ok is false for an
// empty sheet.
func (s *Sheet) Bounds() (last cell.Coord, ok bool) {
	for c := range s.cells.All() {
		last.Row = max(last.Row, c.Row)
		last.Col = max(last.Col, c.Col)
		ok = true
	}
	return last, ok
}

// Precedents lists the cells the formula at (row, col) reads.
func (s *Sheet) Precedents(row, col uint32) []cell.Address {
	return s.wb.graph.Dependencies(s.addr(cell.At(row, col)))
}

// Dependents lists the formulas that read (row, col) directly.
func (s *Sheet) Dependents(row, col uint32) []cell.Address {
	return s.wb.graph.Dependents(s.addr(cell.At(row, col)))
}
