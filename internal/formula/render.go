package formula

import (
	"strconv"
	"strings"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// binding strength used when rendering, mirroring the parser's precedence
const (
	precComparison = iota + 1
	precConcat
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPostfix
	precPrimary
)

func precedence(e Expr) int {
	switch n := e.(type) {
	case *BinaryOpNode:
		switch n.Op {
		case BinOpConcat:
			return precConcat
		case BinOpAdd, BinOpSubtract:
			return precAdditive
		case BinOpMultiply, BinOpDivide:
			return precMultiplicative
		case BinOpPower:
			return precPower
		default:
			return precComparison
		}
	case *UnaryOpNode:
		if n.Op == UnaryOpPercent {
			return precPostfix
		}
		return precUnary
	case *NumberNode:
		if n.Value < 0 {
			return precUnary
		}
	}
	return precPrimary
}

// Render produces canonical formula text, including the leading '='.
// parsing the result yields an equivalent tree.
func Render(e Expr) string {
	var sb strings.Builder
	sb.WriteByte('=')
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *NumberNode:
		sb.WriteString(cell.FormatNumber(n.Value))
	case *StringNode:
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(n.Value, `"`, `""`))
		sb.WriteByte('"')
	case *BooleanNode:
		if n.Value {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case *ErrorNode:
		sb.WriteString(n.Kind.String())
	case *CellRefNode:
		writeCellRef(sb, n)
	case *RangeNode:
		writeCellRef(sb, n.Start)
		sb.WriteByte(':')
		writeCellRef(sb, n.End)
	case *SheetRefNode:
		sb.WriteString(QuoteSheetName(n.Sheet))
		sb.WriteByte('!')
		writeExpr(sb, n.Inner)
	case *NameNode:
		sb.WriteString(n.Name)
	case *BinaryOpNode:
		prec := precedence(n)
		// power is right-associative, everything else left-associative
		leftNeeds := precedence(n.Left) < prec || (n.Op == BinOpPower && precedence(n.Left) == prec)
		rightNeeds := precedence(n.Right) < prec || (n.Op != BinOpPower && precedence(n.Right) == prec)
		writeOperand(sb, n.Left, leftNeeds)
		sb.WriteString(n.Op.String())
		writeOperand(sb, n.Right, rightNeeds)
	case *UnaryOpNode:
		switch n.Op {
		case UnaryOpPercent:
			writeOperand(sb, n.Operand, precedence(n.Operand) < precPostfix)
			sb.WriteByte('%')
		case UnaryOpMinus:
			sb.WriteByte('-')
			writeOperand(sb, n.Operand, precedence(n.Operand) < precUnary)
		default:
			sb.WriteByte('+')
			writeOperand(sb, n.Operand, precedence(n.Operand) < precUnary)
		}
	case *FunctionCallNode:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeExpr(sb, arg)
		}
		sb.WriteByte(')')
	case *GroupNode:
		sb.WriteByte('(')
		writeExpr(sb, n.Inner)
		sb.WriteByte(')')
	}
}

func writeOperand(sb *strings.Builder, e Expr, parens bool) {
	if parens {
		sb.WriteByte('(')
	}
	writeExpr(sb, e)
	if parens {
		sb.WriteByte(')')
	}
}

func writeCellRef(sb *strings.Builder, n *CellRefNode) {
	if n.ColAbsolute {
		sb.WriteByte('$')
	}
	sb.WriteString(cell.ColumnName(n.Col))
	if n.RowAbsolute {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.FormatUint(uint64(n.Row)+1, 10))
}

// QuoteSheetName returns name as it must appear before '!'. names that are
// not plain words, or that would lex as something else, are single-quoted.
func QuoteSheetName(name string) string {
	plain := name != ""
	for i, r := range name {
		if !(isAlpha(r) || r == charUnderscore || (i > 0 && (isDigit(r) || r == charPeriod))) {
			plain = false
			break
		}
	}
	upper := strings.ToUpper(name)
	if plain && (isReference(name) || upper == "TRUE" || upper == "FALSE") {
		plain = false
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func (n *NumberNode) String() string       { return Render(n) }
func (n *StringNode) String() string       { return Render(n) }
func (n *BooleanNode) String() string      { return Render(n) }
func (n *ErrorNode) String() string        { return Render(n) }
func (n *CellRefNode) String() string      { return Render(n) }
func (n *RangeNode) String() string        { return Render(n) }
func (n *SheetRefNode) String() string     { return Render(n) }
func (n *NameNode) String() string         { return Render(n) }
func (n *BinaryOpNode) String() string     { return Render(n) }
func (n *UnaryOpNode) String() string      { return Render(n) }
func (n *FunctionCallNode) String() string { return Render(n) }
func (n *GroupNode) String() string        { return Render(n) }
