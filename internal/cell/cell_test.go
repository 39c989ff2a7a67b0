package cell

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestColumnNameRoundTrip(t *testing.T) {
	tests := []struct {
		col  uint32
		name string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{701, "ZZ"},
		{702, "AAA"},
		{MaxCols - 1, "XFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColumnName(tt.col); got != tt.name {
				t.Fatalf("ColumnName(%d) = %q, want %q", tt.col, got, tt.name)
			}
			got, ok := ColumnIndex(tt.name)
			if !ok || got != tt.col {
				t.Fatalf("ColumnIndex(%q) = %d, %v, want %d", tt.name, got, ok, tt.col)
			}
		})
	}

	if _, ok := ColumnIndex("XFE"); ok {
		t.Errorf("ColumnIndex(XFE) should be out of bounds")
	}
	if _, ok := ColumnIndex("ABCD"); ok {
		t.Errorf("ColumnIndex(ABCD) should be rejected")
	}
}

func TestParseA1(t *testing.T) {
	tests := []struct {
		in   string
		want Coord
	}{
		{"A1", At(0, 0)},
		{"b12", At(11, 1)},
		{"$C$3", At(2, 2)},
		{"AA100", At(99, 26)},
	}
	for _, tt := range tests {
		got, err := ParseA1(tt.in)
		if err != nil {
			t.Fatalf("ParseA1(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseA1(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if FormatA1(got) == "" {
			t.Errorf("FormatA1(%v) is empty", got)
		}
	}

	for _, bad := range []string{"", "A", "1", "A0", "1A", "A1B", "A-1"} {
		if _, err := ParseA1(bad); !errors.Is(err, ErrBadReference) {
			t.Errorf("ParseA1(%q) error = %v, want ErrBadReference", bad, err)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Empty, ""},
		{Number(3), "3"},
		{Number(-2.5), "-2.5"},
		{Number(0.1 + 0.2), "0.30000000000000004"},
		{Text("hi"), "hi"},
		{Bool(true), "TRUE"},
		{Bool(false), "FALSE"},
		{Error(ErrorDivZero), "#DIV/0!"},
		{Error(ErrorCircular), "#CIRCULAR!"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.v.Kind(), got, tt.want)
		}
	}
}

func TestNumberOrError(t *testing.T) {
	if v := NumberOrError(math.Inf(1)); v != Error(ErrorNum) {
		t.Errorf("Inf = %v, want #NUM!", v)
	}
	if v := NumberOrError(math.NaN()); v != Error(ErrorNum) {
		t.Errorf("NaN = %v, want #NUM!", v)
	}
	if v := NumberOrError(4); v != Number(4) {
		t.Errorf("4 = %v, want 4", v)
	}
}

func TestErrorTokens(t *testing.T) {
	for _, kind := range ErrorKinds() {
		got, ok := ParseErrorToken(kind.String())
		if !ok || got != kind {
			t.Errorf("ParseErrorToken(%q) = %v, %v", kind.String(), got, ok)
		}
	}
	if kind, ok := ParseErrorToken("#n/a"); !ok || kind != ErrorNA {
		t.Errorf("lowercase token not recognized")
	}
	if _, ok := ParseErrorToken("#BOGUS!"); ok {
		t.Errorf("unknown token recognized")
	}
}

func TestAddressString(t *testing.T) {
	addr := Address{Sheet: 3, Coord: At(9, 27)}
	if got := addr.String(); got != "#3!AB10" {
		t.Errorf("String() = %q, want #3!AB10", got)
	}
	if got := fmt.Sprint([]Address{{Sheet: 1}, {Sheet: 2}}); got != "[#1!A1 #2!A1]" {
		t.Errorf("Sprint = %q", got)
	}
}

func TestCompare(t *testing.T) {
	if Compare(At(0, 5), At(1, 0)) >= 0 {
		t.Errorf("row should dominate")
	}
	if Compare(At(2, 1), At(2, 3)) >= 0 {
		t.Errorf("col breaks ties")
	}
	if CompareAddress(Address{Sheet: 1, Coord: At(9, 9)}, Address{Sheet: 2}) >= 0 {
		t.Errorf("sheet should dominate")
	}
}
