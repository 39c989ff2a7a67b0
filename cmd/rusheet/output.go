package main

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/sheet"
)

var (
	headerColor  = color.New(color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	formulaColor = color.New(color.FgCyan)
	dimColor     = color.New(color.Faint)
)

// displayValue renders v the way a cell shows it.
func displayValue(v cell.Value) string {
	return v.String()
}

// paintValue colors an already padded cell text according to its kind.
func paintValue(v cell.Value, text string) string {
	if v.IsError() {
		return errorColor.Sprint(text)
	}
	return text
}

// fit pads or truncates s to exactly width display columns. numbers are
// aligned right.
func fit(s string, width int, right bool) string {
	s = runewidth.Truncate(s, width, "…")
	if right {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

// jsonValue maps a cell value onto the closest JSON type. errors become
// their token text.
func jsonValue(v cell.Value) any {
	switch v.Kind() {
	case cell.KindNumber:
		return v.Num()
	case cell.KindText:
		return v.Str()
	case cell.KindBoolean:
		return v.Boolean()
	case cell.KindError:
		return v.ErrKind().String()
	default:
		return nil
	}
}

func parseRowArg(s string) (uint32, bool) {
	return cell.RowIndex(strings.TrimSpace(s))
}

// parseColArg accepts column letters or a 1-based column number.
func parseColArg(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		col, err := safecast.Conv[uint32](n - 1)
		return col, err == nil && n > 0 && col < cell.MaxCols
	}
	return cell.ColumnIndex(s)
}

// pickSheet returns the named sheet, or the first one when name is empty.
func pickSheet(wb *sheet.Workbook, name string) (*sheet.Sheet, error) {
	if name == "" {
		sheets := wb.Sheets()
		if len(sheets) == 0 {
			return nil, sheet.ErrSheetNotFound
		}
		return sheets[0], nil
	}
	s, ok := wb.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", sheet.ErrSheetNotFound, name)
	}
	return s, nil
}
