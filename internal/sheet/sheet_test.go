package sheet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/config"
	"github.com/chrischeng-c4/rusheet-sub000/internal/depgraph"
	"github.com/chrischeng-c4/rusheet-sub000/internal/eval"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
)

// WorkbookTestCase chains edits and assertions against one workbook. the
// first failing edit stops the chain; ExpectError consumes an expected
// failure.
type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	err      error
	skipped  bool
}

func NewWorkbookTestCase(t *testing.T, name string, opts ...Option) *WorkbookTestCase {
	tc := &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: NewWorkbook(opts...),
	}
	return tc.AddSheet("Sheet1")
}

func (tc *WorkbookTestCase) Skip(reason string) *WorkbookTestCase {
	if !tc.skipped {
		tc.t.Skipf("%s: %s", tc.name, reason)
		tc.skipped = true
	}
	return tc
}

func (tc *WorkbookTestCase) done() bool {
	return tc.skipped || tc.err != nil
}

// locate resolves "A1" on Sheet1 or "Name!A1" on another sheet.
func (tc *WorkbookTestCase) locate(address string) (*Sheet, cell.Coord, bool) {
	tc.t.Helper()
	sheetName, ref := "Sheet1", address
	if i := strings.LastIndexByte(address, '!'); i >= 0 {
		sheetName, ref = strings.Trim(address[:i], "'"), address[i+1:]
	}
	s, ok := tc.workbook.Sheet(sheetName)
	if !ok {
		tc.t.Errorf("%s: no sheet %q", tc.name, sheetName)
		return nil, cell.Coord{}, false
	}
	c, err := cell.ParseA1(ref)
	if err != nil {
		tc.t.Errorf("%s: bad address %q: %v", tc.name, address, err)
		return nil, cell.Coord{}, false
	}
	return s, c, true
}

func (tc *WorkbookTestCase) sheet(name string) *Sheet {
	tc.t.Helper()
	s, ok := tc.workbook.Sheet(name)
	if !ok {
		tc.t.Fatalf("%s: no sheet %q", tc.name, name)
	}
	return s
}

func (tc *WorkbookTestCase) Set(address, input string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	if err := s.Set(c.Row, c.Col, input); err != nil {
		tc.err = fmt.Errorf("Set(%s, %q): %w", address, input, err)
	}
	return tc
}

// SetInvalid stores input and expects it to be rejected as a formula.
func (tc *WorkbookTestCase) SetInvalid(address, input string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	if err := s.Set(c.Row, c.Col, input); !errors.Is(err, formula.ErrParse) {
		tc.t.Errorf("%s: Set(%s, %q) = %v, want a parse error", tc.name, address, input, err)
	}
	return tc
}

func (tc *WorkbookTestCase) Clear(address string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	tc.err = s.Clear(c.Row, c.Col)
	return tc
}

func (tc *WorkbookTestCase) AddSheet(name string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	_, tc.err = tc.workbook.AddSheet(name)
	return tc
}

func (tc *WorkbookTestCase) RemoveSheet(name string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.err = tc.workbook.RemoveSheet(name)
	return tc
}

func (tc *WorkbookTestCase) RenameSheet(from, to string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.err = tc.workbook.RenameSheet(from, to)
	return tc
}

func (tc *WorkbookTestCase) DefineName(name, ref string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.err = tc.workbook.DefineName(name, ref)
	return tc
}

func (tc *WorkbookTestCase) UndefineName(name string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.err = tc.workbook.UndefineName(name)
	return tc
}

func (tc *WorkbookTestCase) RenameName(from, to string) *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.err = tc.workbook.RenameName(from, to)
	return tc
}

func (tc *WorkbookTestCase) InsertRows(sheet string, at, count uint32) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	tc.err = tc.sheet(sheet).InsertRows(at, count)
	return tc
}

func (tc *WorkbookTestCase) DeleteRows(sheet string, at, count uint32) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	tc.err = tc.sheet(sheet).DeleteRows(at, count)
	return tc
}

func (tc *WorkbookTestCase) InsertCols(sheet string, at, count uint32) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	tc.err = tc.sheet(sheet).InsertCols(at, count)
	return tc
}

func (tc *WorkbookTestCase) DeleteCols(sheet string, at, count uint32) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	tc.err = tc.sheet(sheet).DeleteCols(at, count)
	return tc
}

func (tc *WorkbookTestCase) Recalculate() *WorkbookTestCase {
	if tc.done() {
		return tc
	}
	tc.workbook.Recalculate()
	return tc
}

// AssertValue compares the value at address with expected, which may be a
// number, string, bool, cell.ErrorKind or nil for an empty cell.
func (tc *WorkbookTestCase) AssertValue(address string, expected any) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	actual := s.Value(c.Row, c.Col)

	var want cell.Value
	switch exp := expected.(type) {
	case float64:
		if actual.Kind() == cell.KindNumber && math.Abs(actual.Num()-exp) <= 1e-10 {
			return tc
		}
		want = cell.Number(exp)
	case int:
		if actual.Kind() == cell.KindNumber && math.Abs(actual.Num()-float64(exp)) <= 1e-10 {
			return tc
		}
		want = cell.Number(float64(exp))
	case string:
		want = cell.Text(exp)
	case bool:
		want = cell.Bool(exp)
	case cell.ErrorKind:
		want = cell.Error(exp)
	case nil:
		want = cell.Empty
	default:
		tc.t.Fatalf("%s: unsupported expectation %T", tc.name, expected)
	}
	if actual != want {
		tc.t.Errorf("%s: cell %s = %v (%s), want %v (%s)", tc.name, address, actual, actual.Kind(), want, want.Kind())
	}
	return tc
}

func (tc *WorkbookTestCase) AssertError(address string, kind cell.ErrorKind) *WorkbookTestCase {
	tc.t.Helper()
	return tc.AssertValue(address, kind)
}

// AssertInput checks the text the cell would show for editing.
func (tc *WorkbookTestCase) AssertInput(address, expected string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	content, found := s.Content(c.Row, c.Col)
	if !found {
		tc.t.Errorf("%s: cell %s is empty, want input %q", tc.name, address, expected)
		return tc
	}
	if got := content.EditText(); got != expected {
		tc.t.Errorf("%s: cell %s input = %q, want %q", tc.name, address, got, expected)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertEmpty(address string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	s, c, ok := tc.locate(address)
	if !ok {
		return tc
	}
	if content, found := s.Content(c.Row, c.Col); found {
		tc.t.Errorf("%s: cell %s = %q, want empty", tc.name, address, content.EditText())
	}
	return tc
}

func (tc *WorkbookTestCase) AssertFn(fn func(t *testing.T, wb *Workbook)) *WorkbookTestCase {
	tc.t.Helper()
	if tc.done() {
		return tc
	}
	fn(tc.t, tc.workbook)
	return tc
}

// ExpectError asserts that the previous edit failed with target and clears
// the failure so the chain continues.
func (tc *WorkbookTestCase) ExpectError(target error) *WorkbookTestCase {
	tc.t.Helper()
	if tc.skipped {
		return tc
	}
	if !errors.Is(tc.err, target) {
		tc.t.Errorf("%s: got error %v, want %v", tc.name, tc.err, target)
	}
	tc.err = nil
	return tc
}

func (tc *WorkbookTestCase) End() {
	tc.t.Helper()
	if tc.err != nil && !tc.skipped {
		tc.t.Errorf("%s: unexpected error: %v", tc.name, tc.err)
	}
}

func TestLiteralInput(t *testing.T) {
	NewWorkbookTestCase(t, "literals").
		Set("A1", "42").
		Set("A2", "hello").
		Set("A3", "true").
		Set("A4", "'123").
		Set("A5", "#n/a").
		Set("A6", "12.5%").
		Set("A7", " -1.5e3 ").
		Set("A8", "0x10").
		Set("A9", "=").
		AssertValue("A1", 42).
		AssertValue("A2", "hello").
		AssertValue("A3", true).
		AssertValue("A4", "123").
		AssertInput("A4", "'123").
		AssertError("A5", cell.ErrorNA).
		AssertValue("A6", 0.125).
		AssertValue("A7", -1500).
		AssertValue("A8", "0x10").
		AssertValue("A9", "=").
		AssertValue("B1", nil).
		Set("A1", "").
		AssertEmpty("A1").
		End()
}

func TestFormulaRecalculation(t *testing.T) {
	t.Run("dependents follow their inputs", func(t *testing.T) {
		NewWorkbookTestCase(t, "chain").
			Set("A1", "10").
			Set("A2", "20").
			Set("A3", "=A1+A2").
			Set("B1", "=A3*2").
			AssertValue("A3", 30).
			AssertValue("B1", 60).
			Set("A1", "5").
			AssertValue("A3", 25).
			AssertValue("B1", 50).
			End()
	})

	t.Run("formula entered before its inputs", func(t *testing.T) {
		NewWorkbookTestCase(t, "forward").
			Set("C1", "=SUM(A1:B2)").
			AssertValue("C1", 0).
			Set("A1", "1").
			Set("B2", "2").
			AssertValue("C1", 3).
			End()
	})

	t.Run("canonical source", func(t *testing.T) {
		NewWorkbookTestCase(t, "canonical").
			Set("C1", "=sum( a1:a2 ) * 2").
			AssertInput("C1", "=SUM(A1:A2)*2").
			End()
	})

	t.Run("clearing an input", func(t *testing.T) {
		NewWorkbookTestCase(t, "clear").
			Set("A1", "4").
			Set("B1", "=A1*2").
			AssertValue("B1", 8).
			Clear("A1").
			AssertEmpty("A1").
			AssertValue("B1", 0).
			End()
	})

	t.Run("replacing a formula with a literal", func(t *testing.T) {
		NewWorkbookTestCase(t, "replace").
			Set("A1", "1").
			Set("B1", "=A1").
			Set("C1", "=B1+1").
			Set("B1", "7").
			Set("A1", "100").
			AssertValue("B1", 7).
			AssertValue("C1", 8).
			AssertFn(func(t *testing.T, wb *Workbook) {
				s, _ := wb.Sheet("Sheet1")
				if got := s.Precedents(0, 1); len(got) != 0 {
					t.Errorf("B1 still reads %v", got)
				}
			}).
			End()
	})

	t.Run("deep chain", func(t *testing.T) {
		tc := NewWorkbookTestCase(t, "deep").Set("A1", "1")
		for row := 2; row <= 200; row++ {
			tc.Set(fmt.Sprintf("A%d", row), fmt.Sprintf("=A%d+1", row-1))
		}
		tc.AssertValue("A200", 200).
			Set("A1", "11").
			AssertValue("A200", 210).
			End()
	})

	t.Run("error propagation", func(t *testing.T) {
		NewWorkbookTestCase(t, "errors").
			Set("A1", "=1/0").
			Set("B1", "=A1+1").
			Set("C1", "=IFERROR(B1, -1)").
			AssertError("A1", cell.ErrorDivZero).
			AssertError("B1", cell.ErrorDivZero).
			AssertValue("C1", -1).
			Set("A1", "=1/4").
			AssertValue("B1", 1.25).
			AssertValue("C1", 1.25).
			End()
	})
}

func TestParseFailures(t *testing.T) {
	NewWorkbookTestCase(t, "parse failure").
		SetInvalid("A1", "=1+").
		Set("B1", "=A1*2").
		AssertError("A1", cell.ErrorValue).
		AssertInput("A1", "=1+").
		AssertError("B1", cell.ErrorValue).
		Set("A1", "=1+2").
		AssertValue("B1", 6).
		End()

	NewWorkbookTestCase(t, "formula too long", WithEngine(func() config.Engine {
		e := config.Default().Engine
		e.MaxFormulaLength = 8
		return e
	}())).
		Set("A1", "=1+2").
		AssertValue("A1", 3).
		Set("A2", "=1+2+3+4+5").
		ExpectError(ErrFormulaTooLong).
		AssertError("A2", cell.ErrorValue).
		End()
}

func TestPartialEngineSettings(t *testing.T) {
	NewWorkbookTestCase(t, "unset limits", WithEngine(config.Engine{EagerConditionals: true})).
		Set("A1", "1").
		Set("B1", "=A1*10").
		Set("C1", "=SUM(A1:A3)").
		AssertValue("B1", 10).
		Set("A1", "5").
		AssertValue("B1", 50).
		AssertValue("C1", 5).
		AssertFn(func(t *testing.T, wb *Workbook) {
			s, _ := wb.Sheet("Sheet1")
			if got := s.Precedents(0, 1); len(got) != 1 || got[0] != s.addr(cell.At(0, 0)) {
				t.Errorf("B1 precedents = %v, want A1", got)
			}
			if h := s.Layout().Rows.Size(0); h != config.DefaultRowHeight {
				t.Errorf("row height = %v, want default %v", h, config.DefaultRowHeight)
			}
		}).
		End()

	NewWorkbookTestCase(t, "evaluator limit wins", WithEvaluatorOptions(eval.WithMaxRangeCells(2))).
		Set("A1", "1").
		Set("B1", "=SUM(A1:A3)").
		AssertError("B1", cell.ErrorValue).
		AssertFn(func(t *testing.T, wb *Workbook) {
			s, _ := wb.Sheet("Sheet1")
			if got := s.Precedents(0, 1); len(got) != 0 {
				t.Errorf("B1 precedents = %v, want none past the range limit", got)
			}
		}).
		End()
}

func TestCircularReferences(t *testing.T) {
	t.Run("two cells", func(t *testing.T) {
		NewWorkbookTestCase(t, "pair").
			Set("A1", "=B1").
			Set("B1", "=A1").
			Set("C1", "=A1+1").
			AssertError("A1", cell.ErrorCircular).
			AssertError("B1", cell.ErrorCircular).
			AssertError("C1", cell.ErrorCircular).
			Set("B1", "5").
			AssertValue("A1", 5).
			AssertValue("C1", 6).
			End()
	})

	t.Run("three cells", func(t *testing.T) {
		NewWorkbookTestCase(t, "triangle").
			Set("A1", "=B1+1").
			Set("B1", "=C1+1").
			Set("C1", "=A1+1").
			AssertError("A1", cell.ErrorCircular).
			AssertError("B1", cell.ErrorCircular).
			AssertError("C1", cell.ErrorCircular).
			End()
	})

	t.Run("through a range", func(t *testing.T) {
		NewWorkbookTestCase(t, "range").
			Set("A2", "1").
			Set("A1", "=SUM(A1:A3)").
			AssertError("A1", cell.ErrorCircular).
			End()
	})

	t.Run("through an untaken branch", func(t *testing.T) {
		NewWorkbookTestCase(t, "if").
			Set("A1", "=IF(TRUE, 1, B1)").
			Set("B1", "=A1").
			AssertError("A1", cell.ErrorCircular).
			AssertError("B1", cell.ErrorCircular).
			End()
	})

	t.Run("reported by CheckCircular", func(t *testing.T) {
		NewWorkbookTestCase(t, "check").
			Set("A1", "1").
			Set("B1", "=A1").
			AssertFn(func(t *testing.T, wb *Workbook) {
				if err := wb.CheckCircular(); err != nil {
					t.Errorf("CheckCircular = %v on an acyclic workbook", err)
				}
				a1 := cell.Address{Sheet: 1, Coord: cell.At(0, 0)}
				b1 := cell.Address{Sheet: 1, Coord: cell.At(0, 1)}
				if !wb.WouldCreateCycle(a1, b1) {
					t.Error("A1 reading B1 should close a cycle")
				}
				if wb.WouldCreateCycle(b1, cell.Address{Sheet: 1, Coord: cell.At(5, 5)}) {
					t.Error("B1 reading F6 should not close a cycle")
				}
			}).
			Set("A1", "=B1").
			AssertFn(func(t *testing.T, wb *Workbook) {
				err := wb.CheckCircular()
				if !errors.Is(err, depgraph.ErrCircular) {
					t.Fatalf("CheckCircular = %v, want ErrCircular", err)
				}
				if !strings.Contains(err.Error(), "Sheet1!A1") {
					t.Errorf("error %q does not name Sheet1!A1", err)
				}
			}).
			End()
	})

	t.Run("across sheets", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross-sheet cycle").
			AddSheet("Data").
			Set("Data!A1", "=Sheet1!A1").
			Set("A1", "=Data!A1").
			AssertError("A1", cell.ErrorCircular).
			AssertError("Data!A1", cell.ErrorCircular).
			AssertFn(func(t *testing.T, wb *Workbook) {
				err := wb.CheckCircular()
				var cycle *depgraph.CycleError[cell.Address]
				if !errors.As(err, &cycle) {
					t.Fatalf("CheckCircular = %v, want a *CycleError", err)
				}
				for _, want := range []string{"#1!A1", "#2!A1", "Data!A1"} {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("error %q does not mention %s", err, want)
					}
				}
			}).
			End()
	})
}

func TestSheets(t *testing.T) {
	t.Run("cross-sheet references", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross").
			AddSheet("Data").
			Set("Data!A1", "7").
			Set("A1", "=Data!A1*2").
			Set("B1", "=data!A1").
			AssertValue("A1", 14).
			AssertValue("B1", 7).
			Set("Data!A1", "8").
			AssertValue("A1", 16).
			RenameSheet("data", "Inputs").
			AssertInput("A1", "=Inputs!A1*2").
			AssertInput("B1", "=Inputs!A1").
			AssertValue("A1", 16).
			RemoveSheet("Inputs").
			AssertError("A1", cell.ErrorRef).
			AddSheet("Inputs").
			AssertValue("A1", 0).
			End()
	})

	t.Run("sheet created after the formula", func(t *testing.T) {
		NewWorkbookTestCase(t, "late").
			Set("A1", "='Q1 Sales'!B2+1").
			AssertError("A1", cell.ErrorRef).
			AddSheet("Q1 Sales").
			AssertValue("A1", 1).
			Set("'Q1 Sales'!B2", "41").
			AssertValue("A1", 42).
			End()
	})

	t.Run("name validation", func(t *testing.T) {
		NewWorkbookTestCase(t, "names").
			AddSheet("").
			ExpectError(ErrInvalidSheetName).
			AddSheet("it's").
			ExpectError(ErrInvalidSheetName).
			AddSheet("SHEET1").
			ExpectError(ErrSheetExists).
			RemoveSheet("Missing").
			ExpectError(ErrSheetNotFound).
			AddSheet("Other").
			RenameSheet("Other", "sheet1").
			ExpectError(ErrSheetExists).
			RenameSheet("Other", "other").
			AssertFn(func(t *testing.T, wb *Workbook) {
				names := make([]string, 0, 2)
				for _, s := range wb.Sheets() {
					names = append(names, s.Name())
				}
				if got := strings.Join(names, ","); got != "Sheet1,other" {
					t.Errorf("sheets = %s", got)
				}
			}).
			End()
	})

	t.Run("out of bounds", func(t *testing.T) {
		wb := NewWorkbook()
		s, err := wb.AddSheet("Sheet1")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Set(cell.MaxRows, 0, "1"); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Set past the last row = %v", err)
		}
		if err := s.Clear(0, cell.MaxCols); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Clear past the last column = %v", err)
		}
		if err := s.InsertRows(cell.MaxRows, 1); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("InsertRows past the last row = %v", err)
		}
	})
}

func TestStructuralEdits(t *testing.T) {
	t.Run("insert and delete rows", func(t *testing.T) {
		NewWorkbookTestCase(t, "rows").
			Set("A1", "1").
			Set("A2", "2").
			Set("A3", "3").
			Set("A4", "=SUM(A1:A3)").
			AssertValue("A4", 6).
			InsertRows("Sheet1", 1, 1).
			AssertEmpty("A2").
			AssertValue("A3", 2).
			AssertInput("A5", "=SUM(A1:A4)").
			AssertValue("A5", 6).
			Set("A2", "10").
			AssertValue("A5", 16).
			DeleteRows("Sheet1", 1, 1).
			AssertInput("A4", "=SUM(A1:A3)").
			AssertValue("A4", 6).
			End()
	})

	t.Run("deleting a referenced column", func(t *testing.T) {
		NewWorkbookTestCase(t, "ref").
			Set("A1", "5").
			Set("B1", "=A1*2").
			Set("C1", "=B1+1").
			AssertValue("C1", 11).
			DeleteCols("Sheet1", 0, 1).
			AssertInput("A1", "=#REF!*2").
			AssertError("A1", cell.ErrorRef).
			AssertInput("B1", "=A1+1").
			AssertError("B1", cell.ErrorRef).
			End()
	})

	t.Run("absolute references stay put", func(t *testing.T) {
		NewWorkbookTestCase(t, "absolute").
			Set("A1", "1").
			Set("B2", "=$A$1+A1").
			AssertValue("B2", 2).
			InsertRows("Sheet1", 0, 1).
			AssertInput("B3", "=$A$1+A2").
			AssertValue("B3", 1).
			End()
	})

	t.Run("other sheets follow qualified references", func(t *testing.T) {
		NewWorkbookTestCase(t, "qualified").
			AddSheet("Data").
			Set("Data!A1", "4").
			Set("A1", "=Data!A1").
			Set("B1", "=A1").
			InsertRows("Data", 0, 2).
			AssertInput("A1", "=Data!A3").
			AssertInput("B1", "=A1").
			AssertValue("A1", 4).
			AssertValue("B1", 4).
			InsertCols("Sheet1", 0, 1).
			AssertInput("B1", "=Data!A3").
			AssertInput("C1", "=B1").
			AssertValue("C1", 4).
			End()
	})

	t.Run("layout moves with the rows", func(t *testing.T) {
		NewWorkbookTestCase(t, "layout").
			AssertFn(func(t *testing.T, wb *Workbook) {
				s, _ := wb.Sheet("Sheet1")
				if err := s.SetRowHeight(2, 40); err != nil {
					t.Fatal(err)
				}
				if err := s.HideRow(4); err != nil {
					t.Fatal(err)
				}
				if err := s.InsertRows(0, 1); err != nil {
					t.Fatal(err)
				}
				rows := s.Layout().Rows
				if got := rows.Size(3); got != 40 {
					t.Errorf("row 3 height = %v, want 40", got)
				}
				if !rows.IsHidden(5) || rows.IsHidden(4) {
					t.Errorf("hidden rows = %v, want [5]", rows.Hidden())
				}
				if err := s.DeleteRows(0, 4); err != nil {
					t.Fatal(err)
				}
				if !rows.IsHidden(1) {
					t.Errorf("hidden rows = %v, want [1]", rows.Hidden())
				}
				if r := s.CellRect(2, 0); r.Y != 21 {
					t.Errorf("row 2 offset = %v, want 21", r.Y)
				}
			}).
			End()
	})
}

func TestFormulaInterning(t *testing.T) {
	NewWorkbookTestCase(t, "interning").
		Set("A1", "=1+2").
		Set("B1", "=1 + 2").
		Set("C1", "=1+3").
		AssertFn(func(t *testing.T, wb *Workbook) {
			if got := wb.FormulaCount(); got != 2 {
				t.Errorf("FormulaCount = %d, want 2", got)
			}
			s, _ := wb.Sheet("Sheet1")
			a, _ := s.Formula(0, 0)
			b, _ := s.Formula(0, 1)
			if a != b {
				t.Error("identical formulas do not share a tree")
			}
		}).
		Clear("A1").
		Clear("C1").
		AssertFn(func(t *testing.T, wb *Workbook) {
			if got := wb.FormulaCount(); got != 1 {
				t.Errorf("FormulaCount = %d, want 1", got)
			}
		}).
		Clear("B1").
		AssertFn(func(t *testing.T, wb *Workbook) {
			if got := wb.FormulaCount(); got != 0 {
				t.Errorf("FormulaCount = %d, want 0", got)
			}
		}).
		End()
}

type tickingRand struct{ n float64 }

func (r *tickingRand) Float64() float64 {
	r.n += 0.25
	return r.n
}

func TestVolatileRecalculation(t *testing.T) {
	rng := &tickingRand{}
	NewWorkbookTestCase(t, "volatile", WithEvaluatorOptions(eval.WithRand(rng))).
		Set("A1", "=RAND()").
		Set("B1", "=A1*4").
		Set("C1", "=1+1").
		AssertValue("A1", 0.25).
		AssertValue("B1", 1).
		Recalculate().
		AssertValue("A1", 0.5).
		AssertValue("B1", 2).
		AssertValue("C1", 2).
		AssertFn(func(t *testing.T, wb *Workbook) {
			if got := len(wb.graph.Volatile()); got != 1 {
				t.Errorf("%d volatile cells, want 1", got)
			}
		}).
		End()
}

func TestBatch(t *testing.T) {
	wb := NewWorkbook()
	var s *Sheet
	err := wb.Batch(func() error {
		var err error
		if s, err = wb.AddSheet("Sheet1"); err != nil {
			return err
		}
		if err := s.SetA1("B1", "=A1*2"); err != nil {
			return err
		}
		if err := s.SetA1("C1", "=Other!A1"); err != nil {
			return err
		}
		if err := s.SetA1("A1", "3"); err != nil {
			return err
		}
		other, err := wb.AddSheet("Other")
		if err != nil {
			return err
		}
		return other.SetA1("A1", "9")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Value(0, 1); got != cell.Number(6) {
		t.Errorf("B1 = %v, want 6", got)
	}
	if got := s.Value(0, 2); got != cell.Number(9) {
		t.Errorf("C1 = %v, want 9", got)
	}
	if err := s.SetA1("A1", "4"); err != nil {
		t.Fatal(err)
	}
	if got := s.Value(0, 1); got != cell.Number(8) {
		t.Errorf("B1 = %v after the batch, want 8", got)
	}
}

func TestEntriesAndBounds(t *testing.T) {
	wb := NewWorkbook()
	s, _ := wb.AddSheet("Sheet1")
	if _, ok := s.Bounds(); ok {
		t.Error("empty sheet reports bounds")
	}
	for _, in := range []struct{ ref, input string }{{"C5", "x"}, {"A1", "1"}, {"B2", "=A1"}} {
		if err := s.SetA1(in.ref, in.input); err != nil {
			t.Fatal(err)
		}
	}
	entries := s.Entries()
	var refs []string
	for _, e := range entries {
		refs = append(refs, cell.FormatA1(e.Coord))
	}
	if got := strings.Join(refs, " "); got != "A1 B2 C5" {
		t.Errorf("entries = %s, want row-major A1 B2 C5", got)
	}
	last, ok := s.Bounds()
	if !ok || last != cell.At(4, 2) {
		t.Errorf("Bounds = %v, %v", last, ok)
	}
	if got := s.Dependents(0, 0); len(got) != 1 || got[0].Coord != cell.At(1, 1) {
		t.Errorf("Dependents(A1) = %v", got)
	}
}

func TestEvaluateDoesNotStore(t *testing.T) {
	wb := NewWorkbook()
	s, _ := wb.AddSheet("Sheet1")
	if err := s.SetA1("A1", "4"); err != nil {
		t.Fatal(err)
	}
	expr, err := formula.Parse("=A1*2+Z9")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Evaluate(expr); got != cell.Number(8) {
		t.Errorf("Evaluate = %v, want 8", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after Evaluate, want 1", s.Len())
	}
}

func TestNamedRanges(t *testing.T) {
	t.Run("define and redefine", func(t *testing.T) {
		NewWorkbookTestCase(t, "define").
			Set("A1", "10").
			Set("A2", "20").
			Set("A3", "30").
			Set("B1", "=SUM(Prices)").
			AssertError("B1", cell.ErrorName).
			DefineName("Prices", "Sheet1!A1:A2").
			AssertValue("B1", 30).
			Set("A2", "25").
			AssertValue("B1", 35).
			DefineName("PRICES", "=Sheet1!A1:A3").
			AssertValue("B1", 65).
			AssertInput("B1", "=SUM(Prices)").
			UndefineName("prices").
			AssertError("B1", cell.ErrorName).
			UndefineName("prices").
			ExpectError(ErrNameNotFound).
			End()
	})

	t.Run("validation", func(t *testing.T) {
		NewWorkbookTestCase(t, "validation").
			DefineName("B2", "Sheet1!A1").
			ExpectError(ErrInvalidName).
			DefineName("TRUE", "Sheet1!A1").
			ExpectError(ErrInvalidName).
			DefineName("Rate", "A1").
			ExpectError(ErrInvalidName).
			DefineName("Rate", "Sheet1!A1+1").
			ExpectError(ErrInvalidName).
			DefineName("Rate", "Sheet1!").
			ExpectError(ErrInvalidName).
			DefineName("Rate", "Later!A1").
			Set("A1", "=Rate").
			AssertError("A1", cell.ErrorRef).
			AddSheet("Later").
			Set("Later!A1", "3").
			AssertValue("A1", 3).
			End()
	})

	t.Run("structural edits move targets", func(t *testing.T) {
		NewWorkbookTestCase(t, "shift").
			AddSheet("Data").
			Set("Data!A1", "1").
			Set("Data!A2", "2").
			DefineName("Rate", "Data!A2").
			DefineName("Both", "Data!A1:A2").
			Set("A1", "=Rate*10").
			Set("A2", "=SUM(Both)").
			InsertRows("Data", 0, 2).
			AssertValue("A1", 20).
			AssertValue("A2", 3).
			AssertFn(func(t *testing.T, wb *Workbook) {
				want := []Name{{"Both", "Data!A3:A4"}, {"Rate", "Data!A4"}}
				if got := wb.Names(); !slices.Equal(got, want) {
					t.Errorf("Names() = %v, want %v", got, want)
				}
			}).
			DeleteRows("Data", 3, 1).
			AssertError("A1", cell.ErrorRef).
			AssertError("A2", cell.ErrorRef).
			AssertFn(func(t *testing.T, wb *Workbook) {
				want := []Name{{"Both", "#REF!"}, {"Rate", "#REF!"}}
				if got := wb.Names(); !slices.Equal(got, want) {
					t.Errorf("Names() = %v, want %v", got, want)
				}
			}).
			End()
	})

	t.Run("edits on other sheets leave targets alone", func(t *testing.T) {
		NewWorkbookTestCase(t, "other sheet").
			AddSheet("Data").
			Set("Data!A1", "5").
			DefineName("Rate", "Data!A1").
			Set("A2", "=Rate").
			InsertRows("Sheet1", 0, 1).
			AssertValue("A3", 5).
			AssertFn(func(t *testing.T, wb *Workbook) {
				if got := wb.Names(); len(got) != 1 || got[0].Ref != "Data!A1" {
					t.Errorf("Names() = %v", got)
				}
			}).
			End()
	})

	t.Run("rename a name", func(t *testing.T) {
		NewWorkbookTestCase(t, "rename name").
			Set("A1", "2").
			DefineName("Rate", "Sheet1!A1").
			DefineName("Other", "Sheet1!A2").
			Set("B1", "=rate*3").
			Set("B2", "=Rate+Other").
			RenameName("RATE", "Factor").
			AssertInput("B1", "=Factor*3").
			AssertInput("B2", "=Factor+Other").
			AssertValue("B1", 6).
			RenameName("Factor", "other").
			ExpectError(ErrNameExists).
			RenameName("Factor", "A1").
			ExpectError(ErrInvalidName).
			RenameName("Missing", "X").
			ExpectError(ErrNameNotFound).
			RenameName("factor", "FACTOR").
			AssertInput("B1", "=FACTOR*3").
			Set("A1", "5").
			AssertValue("B1", 15).
			AssertFn(func(t *testing.T, wb *Workbook) {
				want := []Name{{"FACTOR", "Sheet1!A1"}, {"Other", "Sheet1!A2"}}
				if got := wb.Names(); !slices.Equal(got, want) {
					t.Errorf("Names() = %v, want %v", got, want)
				}
			}).
			End()
	})

	t.Run("rename and cycles", func(t *testing.T) {
		NewWorkbookTestCase(t, "rename").
			AddSheet("Data").
			Set("Data!A1", "4").
			DefineName("Rate", "Data!A1").
			Set("A1", "=Rate+1").
			RenameSheet("Data", "Inputs").
			AssertValue("A1", 5).
			AssertFn(func(t *testing.T, wb *Workbook) {
				if got := wb.Names(); got[0].Ref != "Inputs!A1" {
					t.Errorf("Names() = %v", got)
				}
			}).
			Set("Inputs!A1", "=Sheet1!A1").
			AssertError("A1", cell.ErrorCircular).
			AssertError("Inputs!A1", cell.ErrorCircular).
			End()
	})
}
