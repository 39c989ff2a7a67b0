package formula

import "github.com/chrischeng-c4/rusheet-sub000/internal/cell"

// Expr is a parsed formula expression. Trees are immutable once built;
// rewrites such as ShiftReferences return new nodes and share untouched
// subtrees.
//
// The set of node types is closed: NumberNode, StringNode, BooleanNode,
// ErrorNode, CellRefNode, RangeNode, SheetRefNode, NameNode, BinaryOpNode,
// UnaryOpNode, FunctionCallNode and GroupNode.
type Expr interface {
	String() string
	exprNode()
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpText[op]
}

// IsComparison reports whether op yields a boolean.
func (op BinaryOp) IsComparison() bool {
	return op >= BinOpEqual
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent // postfix, divides by 100
)

// NumberNode represents a numeric literal
type NumberNode struct {
	Value float64
}

// StringNode represents a string literal
type StringNode struct {
	Value string
}

// BooleanNode represents TRUE or FALSE
type BooleanNode struct {
	Value bool
}

// ErrorNode represents an error literal such as #REF!
type ErrorNode struct {
	Kind cell.ErrorKind
}

// CellRefNode is a single-cell reference. absolute axes are pinned during
// structural edits.
type CellRefNode struct {
	Col         uint32
	Row         uint32
	ColAbsolute bool
	RowAbsolute bool
}

// Coord returns the referenced coordinate.
func (n *CellRefNode) Coord() cell.Coord {
	return cell.Coord{Row: n.Row, Col: n.Col}
}

// RangeNode is a rectangular reference between two corners, as written.
type RangeNode struct {
	Start *CellRefNode
	End   *CellRefNode
}

// Bounds returns the normalized top-left and bottom-right corners.
func (n *RangeNode) Bounds() (topLeft, bottomRight cell.Coord) {
	topLeft = cell.Coord{Row: min(n.Start.Row, n.End.Row), Col: min(n.Start.Col, n.End.Col)}
	bottomRight = cell.Coord{Row: max(n.Start.Row, n.End.Row), Col: max(n.Start.Col, n.End.Col)}
	return topLeft, bottomRight
}

// Size returns the number of cells the range covers.
func (n *RangeNode) Size() uint64 {
	tl, br := n.Bounds()
	return (uint64(br.Row-tl.Row) + 1) * (uint64(br.Col-tl.Col) + 1)
}

// SheetRefNode qualifies a CellRefNode or RangeNode with a sheet name.
type SheetRefNode struct {
	Sheet string
	Inner Expr
}

// NameNode is a defined name such as TaxRate. the evaluator resolves it to
// the range it currently stands for.
type NameNode struct {
	Name string
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOpNode represents a prefix +/- or postfix %
type UnaryOpNode struct {
	Op      UnaryOp
	Operand Expr
}

// FunctionCallNode represents a function call. Name is upper-cased.
type FunctionCallNode struct {
	Name string
	Args []Expr
}

// GroupNode preserves explicit parentheses so rendering reproduces them.
type GroupNode struct {
	Inner Expr
}

func (*NumberNode) exprNode()       {}
func (*StringNode) exprNode()       {}
func (*BooleanNode) exprNode()      {}
func (*ErrorNode) exprNode()        {}
func (*CellRefNode) exprNode()      {}
func (*RangeNode) exprNode()        {}
func (*SheetRefNode) exprNode()     {}
func (*NameNode) exprNode()         {}
func (*BinaryOpNode) exprNode()     {}
func (*UnaryOpNode) exprNode()      {}
func (*FunctionCallNode) exprNode() {}
func (*GroupNode) exprNode()        {}
