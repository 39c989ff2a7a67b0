// Package snapshot saves whole workbooks to a compact msgpack file and
// loads them back.
//
// Only inputs are stored: literals with their typed text, formula sources
// and the layout. Loading re-parses every formula and recalculates, so a
// snapshot never carries stale cached results.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
	"github.com/chrischeng-c4/rusheet-sub000/internal/spatial"
)

// increment when Payload changes shape
const schemaVersion uint16 = 1

var ErrSchema = errors.New("snapshot: unsupported schema version")

// kindFormula marks a formula cell in CellPayload.Kind; literal cells use
// their cell.Kind.
const kindFormula uint8 = 0xff

type Payload struct {
	Schema  uint16
	Strings []string
	Sheets  []SheetPayload
	Names   []NamePayload `msgpack:",omitempty"`
}

// NamePayload is a defined name. both fields are string ids.
type NamePayload struct {
	_msgpack struct{} `msgpack:",as_array"`

	Name uint32
	Ref  uint32
}

type SheetPayload struct {
	Name       uint32
	RowHeights []float64 `msgpack:",omitempty"`
	ColWidths  []float64 `msgpack:",omitempty"`
	HiddenRows []uint32  `msgpack:",omitempty"`
	HiddenCols []uint32  `msgpack:",omitempty"`
	Cells      []CellPayload
}

// CellPayload is one occupied cell. Str holds the string id of the text
// value or formula source, Input the id of a literal's typed text.
type CellPayload struct {
	_msgpack struct{} `msgpack:",as_array"`

	Row   uint32
	Col   uint32
	Kind  uint8
	Num   float64
	Bool  bool
	Err   uint8
	Str   uint32
	Input uint32
}

// Build captures wb as a payload.
func Build(wb *sheet.Workbook) (*Payload, error) {
	st := NewStringTable()
	p := &Payload{Schema: schemaVersion}
	for _, s := range wb.Sheets() {
		name, err := st.Intern(s.Name())
		if err != nil {
			return nil, err
		}
		layout := s.Layout()
		sp := SheetPayload{
			Name:       name,
			RowHeights: trimDefaults(layout.Rows),
			ColWidths:  trimDefaults(layout.Cols),
			HiddenRows: layout.Rows.Hidden(),
			HiddenCols: layout.Cols.Hidden(),
		}
		for _, e := range s.Entries() {
			cp, err := encodeCell(st, e.Coord, e.Value)
			if err != nil {
				return nil, fmt.Errorf("%s!%s: %w", s.Name(), cell.FormatA1(e.Coord), err)
			}
			sp.Cells = append(sp.Cells, cp)
		}
		p.Sheets = append(p.Sheets, sp)
	}
	for _, n := range wb.Names() {
		name, err := st.Intern(n.Name)
		if err != nil {
			return nil, err
		}
		ref, err := st.Intern(n.Ref)
		if err != nil {
			return nil, err
		}
		p.Names = append(p.Names, NamePayload{Name: name, Ref: ref})
	}
	p.Strings = st.Strings()
	return p, nil
}

// trimDefaults drops the trailing run of default sizes, which an axis
// reproduces on its own.
func trimDefaults(a *spatial.Axis) []float64 {
	sizes := a.Sizes()
	n := len(sizes)
	for n > 0 && sizes[n-1] == a.DefaultSize() {
		n--
	}
	return sizes[:n]
}

func encodeCell(st *StringTable, c cell.Coord, content cell.Content) (CellPayload, error) {
	cp := CellPayload{Row: c.Row, Col: c.Col}
	var err error
	if content.IsFormula() {
		cp.Kind = kindFormula
		cp.Str, err = st.Intern(content.Input)
		return cp, err
	}
	v := content.Value
	cp.Kind = uint8(v.Kind())
	switch v.Kind() {
	case cell.KindNumber:
		cp.Num = v.Num()
	case cell.KindBoolean:
		cp.Bool = v.Boolean()
	case cell.KindError:
		cp.Err = uint8(v.ErrKind())
	case cell.KindText:
		if cp.Str, err = st.Intern(v.Str()); err != nil {
			return cp, err
		}
	}
	cp.Input, err = st.Intern(content.Input)
	return cp, err
}

// Restore builds a workbook from p. opts configure the new workbook.
func Restore(p *Payload, opts ...sheet.Option) (*sheet.Workbook, error) {
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %d, want %d", ErrSchema, p.Schema, schemaVersion)
	}
	st := tableFrom(p.Strings)
	lookup := func(id uint32) (string, error) {
		s, ok := st.Lookup(id)
		if !ok {
			return "", fmt.Errorf("snapshot: string id %d out of range", id)
		}
		return s, nil
	}

	wb := sheet.NewWorkbook(opts...)
	err := wb.Batch(func() error {
		for _, sp := range p.Sheets {
			name, err := lookup(sp.Name)
			if err != nil {
				return err
			}
			s, err := wb.AddSheet(name)
			if err != nil {
				return err
			}
			if err := restoreLayout(s, sp); err != nil {
				return err
			}
			for _, cp := range sp.Cells {
				if err := restoreCell(s, cp, lookup); err != nil {
					return fmt.Errorf("%s!%s: %w", name, cell.FormatA1(cell.At(cp.Row, cp.Col)), err)
				}
			}
		}
		for _, np := range p.Names {
			name, err := lookup(np.Name)
			if err != nil {
				return err
			}
			ref, err := lookup(np.Ref)
			if err != nil {
				return err
			}
			if err := wb.DefineName(name, ref); err != nil {
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

func restoreLayout(s *sheet.Sheet, sp SheetPayload) error {
	layout := s.Layout()
	for i, h := range sp.RowHeights {
		if h == layout.Rows.DefaultSize() {
			continue
		}
		row, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		if err := s.SetRowHeight(row, h); err != nil {
			return err
		}
	}
	for i, w := range sp.ColWidths {
		if w == layout.Cols.DefaultSize() {
			continue
		}
		col, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		if err := s.SetColWidth(col, w); err != nil {
			return err
		}
	}
	for _, r := range sp.HiddenRows {
		if err := s.HideRow(r); err != nil {
			return err
		}
	}
	for _, c := range sp.HiddenCols {
		if err := s.HideCol(c); err != nil {
			return err
		}
	}
	return nil
}

func restoreCell(s *sheet.Sheet, cp CellPayload, lookup func(uint32) (string, error)) error {
	str, err := lookup(cp.Str)
	if err != nil {
		return err
	}
	if cp.Kind == kindFormula {
		// a formula that did not parse when saved is restored the same way
		if err := s.Set(cp.Row, cp.Col, str); err != nil &&
			!errors.Is(err, formula.ErrParse) && !errors.Is(err, sheet.ErrFormulaTooLong) {
			return err
		}
		return nil
	}
	input, err := lookup(cp.Input)
	if err != nil {
		return err
	}
	var v cell.Value
	switch cell.Kind(cp.Kind) {
	case cell.KindNumber:
		v = cell.Number(cp.Num)
	case cell.KindBoolean:
		v = cell.Bool(cp.Bool)
	case cell.KindError:
		v = cell.Error(cell.ErrorKind(cp.Err))
	case cell.KindText:
		v = cell.Text(str)
	case cell.KindEmpty:
		v = cell.Empty
	default:
		return fmt.Errorf("snapshot: unknown cell kind %d", cp.Kind)
	}
	return s.SetLiteral(cp.Row, cp.Col, v, input)
}

// Encode writes wb to w.
func Encode(w io.Writer, wb *sheet.Workbook) error {
	p, err := Build(wb)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(p)
}

// Decode reads a workbook written by Encode.
func Decode(r io.Reader, opts ...sheet.Option) (*sheet.Workbook, error) {
	var p Payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return Restore(&p, opts...)
}

// Save writes wb to path through a temporary file in the same directory, so
// readers never see a partial snapshot.
func Save(path string, wb *sheet.Workbook) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".rusheet-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err = Encode(f, wb); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Load reads the snapshot at path.
func Load(path string, opts ...sheet.Option) (*sheet.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	wb, err := Decode(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}
