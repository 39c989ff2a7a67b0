package formula

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"='My Sheet'!A1",
		"='It''s'!B2",
		"=$A$1+A$2+$B3",
		"=-A1%",
		"=2^3^2",
		"=1!=2",
		"=IF(A1>0;\"pos\";\"neg\")",
		"=#N/A",
		"=NOW()",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		"1+2",
		"=TaxRate*2",
		"=SUM(Prices)+q1.total",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err != nil {
				t.Errorf("Failed to parse valid formula %s: %v", formula, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=(1",
		"=1 2",
		"=SUM(1,)",
		"=foo bar",
		"=Prices:A1",
		"=A0",
		"=XFE1",
		"=A1048577",
		"=Sheet1!",
		"=Sheet1!1",
		"='abc'A1",
		"='abc",
		"=#BOGUS",
		"=@",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := Parse(formula)
			if err == nil {
				t.Fatalf("Expected formula to fail but it succeeded: %s", formula)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v does not match ErrParse", err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("=1+")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Pos != 3 {
		t.Errorf("Pos = %d, want 3", pe.Pos)
	}
}

func TestParsePrecedence(t *testing.T) {
	num := func(v float64) Expr { return &NumberNode{Value: v} }
	ref := func(s string) *CellRefNode {
		r, err := parseReference(s)
		if err != nil {
			t.Fatalf("bad reference %s", s)
		}
		return r
	}

	tests := []struct {
		formula string
		want    Expr
	}{
		{
			"=1+2*3",
			&BinaryOpNode{Op: BinOpAdd, Left: num(1), Right: &BinaryOpNode{Op: BinOpMultiply, Left: num(2), Right: num(3)}},
		},
		{
			"=1-2-3",
			&BinaryOpNode{Op: BinOpSubtract, Left: &BinaryOpNode{Op: BinOpSubtract, Left: num(1), Right: num(2)}, Right: num(3)},
		},
		{
			"=2^3^2",
			&BinaryOpNode{Op: BinOpPower, Left: num(2), Right: &BinaryOpNode{Op: BinOpPower, Left: num(3), Right: num(2)}},
		},
		{
			"=-2^2",
			&BinaryOpNode{Op: BinOpPower, Left: &UnaryOpNode{Op: UnaryOpMinus, Operand: num(2)}, Right: num(2)},
		},
		{
			"=1&2=3",
			&BinaryOpNode{Op: BinOpEqual, Left: &BinaryOpNode{Op: BinOpConcat, Left: num(1), Right: num(2)}, Right: num(3)},
		},
		{
			"=A1%%",
			&UnaryOpNode{Op: UnaryOpPercent, Operand: &UnaryOpNode{Op: UnaryOpPercent, Operand: ref("A1")}},
		},
		{
			"=(1+2)*3",
			&BinaryOpNode{Op: BinOpMultiply, Left: &GroupNode{Inner: &BinaryOpNode{Op: BinOpAdd, Left: num(1), Right: num(2)}}, Right: num(3)},
		},
		{
			"=Data!$B$2:c3",
			&SheetRefNode{Sheet: "Data", Inner: &RangeNode{Start: ref("$B$2"), End: ref("C3")}},
		},
		{
			"=sum(1;#div/0!)",
			&FunctionCallNode{Name: "SUM", Args: []Expr{num(1), &ErrorNode{Kind: cell.ErrorDivZero}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := Parse(tt.formula)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.formula, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.formula, got, tt.want)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"=1+2*3", "=1+2*3"},
		{"=(1+2)*3", "=(1+2)*3"},
		{"=2^3^2", "=2^3^2"},
		{"=-A1%", "=-A1%"},
		{"= a1 + b2", "=A1+B2"},
		{"=sum(a1:b2; 3)", "=SUM(A1:B2,3)"},
		{`="say ""hi"""`, `="say ""hi"""`},
		{"='My Sheet'!A1", "='My Sheet'!A1"},
		{"=sheet2!$A$1:B2", "=sheet2!$A$1:B2"},
		{"='A1'!C3", "='A1'!C3"},
		{"=1!=2", "=1<>2"},
		{"=1.5E3", "=1500"},
		{"=0.25", "=0.25"},
		{"=#ref!", "=#REF!"},
		{"=true", "=TRUE"},
		{`=A1&"x"`, `=A1&"x"`},
		{"=IF(A1>=10,\"big\",\"small\")", "=IF(A1>=10,\"big\",\"small\")"},
		{"=sum(Prices) * tax_rate", "=SUM(Prices)*tax_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got := Render(expr); got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
			again, err := Parse(Render(expr))
			if err != nil {
				t.Fatalf("re-parse %q: %v", Render(expr), err)
			}
			if !reflect.DeepEqual(again, expr) {
				t.Errorf("re-parsed tree differs: %s vs %s", again, expr)
			}
		})
	}
}

func TestRenderInsertsParentheses(t *testing.T) {
	num := func(v float64) Expr { return &NumberNode{Value: v} }
	tests := []struct {
		expr Expr
		want string
	}{
		{&BinaryOpNode{Op: BinOpSubtract, Left: num(1), Right: &BinaryOpNode{Op: BinOpSubtract, Left: num(2), Right: num(3)}}, "=1-(2-3)"},
		{&BinaryOpNode{Op: BinOpPower, Left: &BinaryOpNode{Op: BinOpPower, Left: num(2), Right: num(3)}, Right: num(2)}, "=(2^3)^2"},
		{&BinaryOpNode{Op: BinOpMultiply, Left: &BinaryOpNode{Op: BinOpAdd, Left: num(1), Right: num(2)}, Right: num(3)}, "=(1+2)*3"},
		{&UnaryOpNode{Op: UnaryOpPercent, Operand: &BinaryOpNode{Op: BinOpAdd, Left: num(1), Right: num(2)}}, "=(1+2)%"},
	}
	for _, tt := range tests {
		if got := Render(tt.expr); got != tt.want {
			t.Errorf("Render = %q, want %q", got, tt.want)
		}
	}
}

func TestQuoteSheetName(t *testing.T) {
	tests := map[string]string{
		"Sheet1":    "Sheet1",
		"My Sheet":  "'My Sheet'",
		"It's":      "'It''s'",
		"B2":        "'B2'",
		"true":      "'true'",
		"2024":      "'2024'",
		"data_v1.2": "data_v1.2",
	}
	for name, want := range tests {
		if got := QuoteSheetName(name); got != want {
			t.Errorf("QuoteSheetName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestReferences(t *testing.T) {
	expr, err := Parse("=SUM(B2:A1)+Sheet2!C3+A1")
	if err != nil {
		t.Fatal(err)
	}

	want := []Reference{
		{From: cell.At(0, 0), To: cell.At(1, 1)},
		{Sheet: "Sheet2", From: cell.At(2, 2), To: cell.At(2, 2)},
		{From: cell.At(0, 0), To: cell.At(0, 0)},
	}
	if got := References(expr); !reflect.DeepEqual(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}

	wantCoords := []cell.Coord{cell.At(0, 0), cell.At(0, 1), cell.At(1, 0), cell.At(1, 1)}
	if got := ExtractReferences(expr); !reflect.DeepEqual(got, wantCoords) {
		t.Errorf("ExtractReferences = %v, want %v", got, wantCoords)
	}

	if got := Functions(expr); !reflect.DeepEqual(got, []string{"SUM"}) {
		t.Errorf("Functions = %v", got)
	}
}

func TestTokenize(t *testing.T) {
	tokens, err := NewLexer(`Sheet1!A1<=-2.5e1&"x"`).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	want := []TokenType{TokenSheet, TokenReference, TokenOperator, TokenOperator, TokenNumber, TokenOperator, TokenString, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tok := range tokens {
		if tok.Type != want[i] {
			t.Errorf("token %d: %s, want %s", i, tok.Type, want[i])
		}
	}
	if tokens[4].Value != "2.5e1" {
		t.Errorf("number token = %q", tokens[4].Value)
	}
}

func TestNames(t *testing.T) {
	expr, err := Parse("=SUM(Prices)*Rate+prices+Sheet2!A1")
	if err != nil {
		t.Fatal(err)
	}
	if got := Names(expr); !reflect.DeepEqual(got, []string{"Prices", "Rate"}) {
		t.Errorf("Names = %v", got)
	}
	if got := References(expr); len(got) != 1 || got[0].Sheet != "Sheet2" {
		t.Errorf("References = %v, names must not count as references", got)
	}
}

func TestRenameName(t *testing.T) {
	expr, err := Parse("=SUM(prices)*Rate+IF(Prices>0,1,2)")
	if err != nil {
		t.Fatal(err)
	}
	out, changed := RenameName(expr, "PRICES", "Costs")
	if !changed {
		t.Fatal("RenameName reported no change")
	}
	if got, want := Render(out), "=SUM(Costs)*Rate+IF(Costs>0,1,2)"; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
	if got := Render(expr); got != "=SUM(prices)*Rate+IF(Prices>0,1,2)" {
		t.Errorf("input was modified: %q", got)
	}
	if same, changed := RenameName(expr, "Other", "X"); changed || same != expr {
		t.Error("renaming an unused name changed the tree")
	}
}

func TestIsValidName(t *testing.T) {
	tests := map[string]bool{
		"TaxRate":   true,
		"q1.total":  true,
		"_hidden":   true,
		"R1C1":      true,
		"":          false,
		"B2":        false,
		"XFE1":      false,
		"TRUE":      false,
		"false":     false,
		"Tax Rate":  false,
		"1st":       false,
		"Sheet1!A1": false,
		"$A$1":      false,
		"SUM(":      false,
	}
	for name, want := range tests {
		if got := IsValidName(name); got != want {
			t.Errorf("IsValidName(%q) = %v, want %v", name, got, want)
		}
	}
}
