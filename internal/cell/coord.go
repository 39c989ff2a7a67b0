package cell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// sheet bounds, matching the common xlsx limits
const (
	MaxRows uint32 = 1 << 20 // 1,048,576
	MaxCols uint32 = 1 << 14 // 16,384 (XFD)
)

// maxColumnLetters is the longest column name inside MaxCols.
const maxColumnLetters = 3

var ErrBadReference = errors.New("cell: invalid A1 reference")

// Coord is a zero-based (row, column) pair.
type Coord struct {
	Row uint32
	Col uint32
}

// At is shorthand for Coord{row, col}.
func At(row, col uint32) Coord {
	return Coord{Row: row, Col: col}
}

// InBounds reports whether c lies inside the sheet bounds.
func (c Coord) InBounds() bool {
	return c.Row < MaxRows && c.Col < MaxCols
}

func (c Coord) String() string {
	return FormatA1(c)
}

// Compare orders coordinates row-major.
func Compare(a, b Coord) int {
	switch {
	case a.Row < b.Row:
		return -1
	case a.Row > b.Row:
		return 1
	case a.Col < b.Col:
		return -1
	case a.Col > b.Col:
		return 1
	default:
		return 0
	}
}

// Address qualifies a coordinate with the id of the sheet that owns it.
type Address struct {
	Sheet uint32
	Coord
}

// String renders the address as #<sheet id>!A1; only the workbook knows
// sheet names.
func (a Address) String() string {
	return "#" + strconv.FormatUint(uint64(a.Sheet), 10) + "!" + FormatA1(a.Coord)
}

func CompareAddress(a, b Address) int {
	if a.Sheet != b.Sheet {
		if a.Sheet < b.Sheet {
			return -1
		}
		return 1
	}
	return Compare(a.Coord, b.Coord)
}

// ColumnName converts a zero-based column index to letters: 0 -> A,
// 25 -> Z, 26 -> AA.
func ColumnName(col uint32) string {
	var buf [8]byte
	i := len(buf)
	n := uint64(col) + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ColumnIndex converts column letters (any case) back to a zero-based index.
func ColumnIndex(letters string) (uint32, bool) {
	if letters == "" || len(letters) > maxColumnLetters {
		return 0, false
	}
	var col uint32
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			col = col*26 + uint32(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			col = col*26 + uint32(ch-'a') + 1
		default:
			return 0, false
		}
	}
	col--
	if col >= MaxCols {
		return 0, false
	}
	return col, true
}

// RowIndex converts a one-based row number string to a zero-based index.
func RowIndex(digits string) (uint32, bool) {
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	row, err := safecast.Conv[uint32](n - 1)
	if err != nil || row >= MaxRows {
		return 0, false
	}
	return row, true
}

// FormatA1 renders c as an A1 reference without absolute markers.
func FormatA1(c Coord) string {
	return ColumnName(c.Col) + strconv.FormatUint(uint64(c.Row)+1, 10)
}

// ParseA1 parses references like "B12" or "$B$12". Absolute markers are
// accepted and ignored.
func ParseA1(s string) (Coord, error) {
	ref := strings.ReplaceAll(strings.TrimSpace(s), "$", "")
	split := 0
	for split < len(ref) && isLetter(ref[split]) {
		split++
	}
	col, ok := ColumnIndex(ref[:split])
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadReference, s)
	}
	row, ok := RowIndex(ref[split:])
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadReference, s)
	}
	return Coord{Row: row, Col: col}, nil
}

func isLetter(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
}
