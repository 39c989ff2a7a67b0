// Package bookfile reads and writes workbook definitions in TOML:
//
//	[[sheet]]
//	name = "Budget"
//	col_widths = { A = 160.0 }
//	hidden_rows = [4]
//
//	[sheet.cells]
//	A1 = "Rent"
//	B1 = 1200
//	B2 = "=B1*12"
//
//	[[name]]
//	name = "Rent"
//	ref = "Budget!B1"
//
// Rows in row_heights and hidden_rows are 1-based like A1 references;
// columns are letters.
package bookfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
)

var ErrInvalid = errors.New("bookfile: invalid workbook definition")

type File struct {
	Sheets []Sheet `toml:"sheet"`
	Names  []Name  `toml:"name,omitempty"`
}

// Name is a defined name. Ref is a sheet-qualified cell or range.
type Name struct {
	Name string `toml:"name"`
	Ref  string `toml:"ref"`
}

type Sheet struct {
	Name       string             `toml:"name"`
	RowHeights map[string]float64 `toml:"row_heights,omitempty"`
	ColWidths  map[string]float64 `toml:"col_widths,omitempty"`
	HiddenRows []int              `toml:"hidden_rows,omitempty"`
	HiddenCols []string           `toml:"hidden_cols,omitempty"`
	// Cells maps A1 references to typed input. strings go through the same
	// classification as typing into a cell; TOML numbers and booleans are
	// stored as they are.
	Cells map[string]any `toml:"cells"`
}

// Parse reads the definition at path.
func Parse(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := check(meta, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Decode reads a definition from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	meta, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := check(meta, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func check(meta toml.MetaData, f *File) error {
	if !meta.IsDefined("sheet") || len(f.Sheets) == 0 {
		return fmt.Errorf("%w: missing [[sheet]]", ErrInvalid)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %s", ErrInvalid, undecoded[0])
	}
	for i, s := range f.Sheets {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: [[sheet]] #%d has no name", ErrInvalid, i+1)
		}
	}
	for i, n := range f.Names {
		if n.Name == "" || n.Ref == "" {
			return fmt.Errorf("%w: [[name]] #%d needs both name and ref", ErrInvalid, i+1)
		}
	}
	return nil
}

// Load parses path and builds the workbook it describes.
func Load(path string, opts ...sheet.Option) (*sheet.Workbook, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	wb, err := f.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}

// Build creates the workbook, recalculated once at the end. formulas that
// do not parse are kept and evaluate to #VALUE!, as when typed.
func (f *File) Build(opts ...sheet.Option) (*sheet.Workbook, error) {
	wb := sheet.NewWorkbook(opts...)
	err := wb.Batch(func() error {
		for _, def := range f.Sheets {
			s, err := wb.AddSheet(def.Name)
			if err != nil {
				return err
			}
			if err := def.apply(s); err != nil {
				return fmt.Errorf("sheet %q: %w", def.Name, err)
			}
		}
		for _, n := range f.Names {
			if err := wb.DefineName(n.Name, n.Ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wb, nil
}

func (def *Sheet) apply(s *sheet.Sheet) error {
	for key, h := range def.RowHeights {
		row, err := parseRow(key)
		if err != nil {
			return err
		}
		if err := s.SetRowHeight(row, h); err != nil {
			return err
		}
	}
	for key, w := range def.ColWidths {
		col, err := parseCol(key)
		if err != nil {
			return err
		}
		if err := s.SetColWidth(col, w); err != nil {
			return err
		}
	}
	for _, n := range def.HiddenRows {
		row, err := parseRow(strconv.Itoa(n))
		if err != nil {
			return err
		}
		if err := s.HideRow(row); err != nil {
			return err
		}
	}
	for _, key := range def.HiddenCols {
		col, err := parseCol(key)
		if err != nil {
			return err
		}
		if err := s.HideCol(col); err != nil {
			return err
		}
	}

	for ref, raw := range def.Cells {
		c, err := cell.ParseA1(ref)
		if err != nil {
			return fmt.Errorf("%w: cell %q: %v", ErrInvalid, ref, err)
		}
		if err := setCell(s, c, raw); err != nil {
			return fmt.Errorf("cell %s: %w", ref, err)
		}
	}
	return nil
}

func setCell(s *sheet.Sheet, c cell.Coord, raw any) error {
	switch v := raw.(type) {
	case string:
		err := s.Set(c.Row, c.Col, v)
		if errors.Is(err, formula.ErrParse) || errors.Is(err, sheet.ErrFormulaTooLong) {
			return nil
		}
		return err
	case int64:
		return s.SetValue(c.Row, c.Col, cell.Number(float64(v)))
	case float64:
		return s.SetValue(c.Row, c.Col, cell.NumberOrError(v))
	case bool:
		return s.SetValue(c.Row, c.Col, cell.Bool(v))
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalid, raw)
	}
}

func parseRow(key string) (uint32, error) {
	n, ok := cell.RowIndex(strings.TrimSpace(key))
	if !ok {
		return 0, fmt.Errorf("%w: row %q", ErrInvalid, key)
	}
	return n, nil
}

func parseCol(key string) (uint32, error) {
	n, ok := cell.ColumnIndex(strings.TrimSpace(key))
	if !ok {
		return 0, fmt.Errorf("%w: column %q", ErrInvalid, key)
	}
	return n, nil
}

// FromWorkbook describes wb. literals typed by hand keep their input text;
// values set directly are written as TOML values.
func FromWorkbook(wb *sheet.Workbook) (*File, error) {
	f := &File{}
	for _, s := range wb.Sheets() {
		def := Sheet{Name: s.Name(), Cells: make(map[string]any)}
		layout := s.Layout()
		for i, size := range layout.Rows.Sizes() {
			if size != layout.Rows.DefaultSize() {
				def.RowHeights = setSize(def.RowHeights, strconv.Itoa(i+1), size)
			}
		}
		for i, size := range layout.Cols.Sizes() {
			col, err := safecast.Conv[uint32](i)
			if err != nil {
				return nil, err
			}
			if size != layout.Cols.DefaultSize() {
				def.ColWidths = setSize(def.ColWidths, cell.ColumnName(col), size)
			}
		}
		for _, row := range layout.Rows.Hidden() {
			def.HiddenRows = append(def.HiddenRows, int(row)+1)
		}
		for _, col := range layout.Cols.Hidden() {
			def.HiddenCols = append(def.HiddenCols, cell.ColumnName(col))
		}
		for _, e := range s.Entries() {
			def.Cells[cell.FormatA1(e.Coord)] = encodeContent(e.Value)
		}
		f.Sheets = append(f.Sheets, def)
	}
	for _, n := range wb.Names() {
		f.Names = append(f.Names, Name{Name: n.Name, Ref: n.Ref})
	}
	return f, nil
}

func setSize(m map[string]float64, key string, size float64) map[string]float64 {
	if m == nil {
		m = make(map[string]float64)
	}
	m[key] = size
	return m
}

func encodeContent(content cell.Content) any {
	if content.IsFormula() || content.Input != "" {
		return content.Input
	}
	v := content.Value
	switch v.Kind() {
	case cell.KindNumber:
		return v.Num()
	case cell.KindBoolean:
		return v.Boolean()
	case cell.KindText:
		// force text so that "12" or "TRUE" stays a string
		return "'" + v.Str()
	default:
		return v.String()
	}
}

// Encode writes f as TOML.
func (f *File) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return nil
}

// Write saves f to path, keeping the mode of an existing file.
func (f *File) Write(path string) error {
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
