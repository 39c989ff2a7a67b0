// Package eval computes formula trees against a caller-supplied cell lookup.
//
// Evaluation never fails out-of-band: every problem, from division by zero
// to an unknown function name, is reported as an error cell.Value that
// propagates through the formulas that read it.
package eval

import (
	"cmp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
	"github.com/chrischeng-c4/rusheet-sub000/internal/formula"
)

// DefaultMaxRangeCells bounds how many cells a single range argument may
// expand to.
const DefaultMaxRangeCells = 1_000_000

// Lookup returns the current value of a cell on the sheet being evaluated.
type Lookup func(c cell.Coord) cell.Value

// SheetLookup resolves a sheet name from a sheet-qualified reference. ok is
// false when no such sheet exists.
type SheetLookup func(name string) (lookup Lookup, ok bool)

// NameResolver returns the sheet-qualified reference a defined name stands
// for. ok is false for names that are not defined.
type NameResolver func(name string) (target formula.Expr, ok bool)

// Arg is one evaluated function argument. ranges arrive flattened
// row-major with Range set; everything else is a single value.
type Arg struct {
	Values []cell.Value
	Range  bool
}

func scalarArg(v cell.Value) Arg {
	return Arg{Values: []cell.Value{v}}
}

// Evaluator holds the collaborators evaluation needs. It keeps no state
// between calls and is safe for concurrent use if its Clock and
// RandomGenerator are.
type Evaluator struct {
	builtins      *Builtins
	sheets        SheetLookup
	names         NameResolver
	maxRangeCells uint64
	eager         bool
}

type Option func(*Evaluator)

// WithSheets resolves sheet-qualified references. without it every
// sheet-qualified reference evaluates to #REF!.
func WithSheets(sheets SheetLookup) Option {
	return func(ev *Evaluator) { ev.sheets = sheets }
}

// WithNames resolves defined names. without it every name evaluates to
// #NAME?.
func WithNames(names NameResolver) Option {
	return func(ev *Evaluator) { ev.names = names }
}

// WithClock replaces the time source used by NOW and TODAY.
func WithClock(clock Clock) Option {
	return func(ev *Evaluator) { ev.builtins.clock = clock }
}

// WithRand replaces the generator used by RAND.
func WithRand(rng RandomGenerator) Option {
	return func(ev *Evaluator) { ev.builtins.rng = rng }
}

// WithMaxRangeCells makes any range larger than n evaluate to #VALUE!.
func WithMaxRangeCells(n uint64) Option {
	return func(ev *Evaluator) {
		if n > 0 {
			ev.maxRangeCells = n
		}
	}
}

// MaxRangeCells returns the largest range the evaluator will expand.
func (ev *Evaluator) MaxRangeCells() uint64 { return ev.maxRangeCells }

// WithEagerConditionals evaluates every argument of IF and IFERROR before
// selecting a result, instead of only the branch that is taken.
func WithEagerConditionals(eager bool) Option {
	return func(ev *Evaluator) { ev.eager = eager }
}

func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		builtins:      NewDefaultBuiltins(),
		maxRangeCells: DefaultMaxRangeCells,
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

var defaultEvaluator = New()

// Evaluate computes expr with the default evaluator.
func Evaluate(expr formula.Expr, lookup Lookup) cell.Value {
	return defaultEvaluator.Evaluate(expr, lookup)
}

// Evaluate computes expr, reading cells through lookup. a formula whose
// result is an empty cell yields 0.
func (ev *Evaluator) Evaluate(expr formula.Expr, lookup Lookup) cell.Value {
	if lookup == nil {
		lookup = func(cell.Coord) cell.Value { return cell.Empty }
	}
	v := ev.eval(expr, lookup)
	if v.IsEmpty() {
		return cell.Number(0)
	}
	return v
}

func (ev *Evaluator) eval(e formula.Expr, lookup Lookup) cell.Value {
	switch n := e.(type) {
	case *formula.NumberNode:
		return cell.NumberOrError(n.Value)
	case *formula.StringNode:
		return cell.Text(n.Value)
	case *formula.BooleanNode:
		return cell.Bool(n.Value)
	case *formula.ErrorNode:
		return cell.Error(n.Kind)
	case *formula.CellRefNode:
		return lookup(n.Coord())
	case *formula.RangeNode:
		// a range in scalar position only works when it is a single cell
		if n.Size() != 1 {
			return cell.Error(cell.ErrorValue)
		}
		return lookup(n.Start.Coord())
	case *formula.SheetRefNode:
		sheetLookup, ok := ev.resolve(n.Sheet)
		if !ok {
			return cell.Error(cell.ErrorRef)
		}
		return ev.eval(n.Inner, sheetLookup)
	case *formula.NameNode:
		target, ok := ev.resolveName(n.Name)
		if !ok {
			return cell.Error(cell.ErrorName)
		}
		return ev.eval(target, lookup)
	case *formula.GroupNode:
		return ev.eval(n.Inner, lookup)
	case *formula.UnaryOpNode:
		return ev.unary(n, lookup)
	case *formula.BinaryOpNode:
		return ev.binary(n, lookup)
	case *formula.FunctionCallNode:
		return ev.call(n, lookup)
	default:
		return cell.Error(cell.ErrorValue)
	}
}

// resolveName looks up a defined name. a target that is itself a name is
// rejected so resolution always terminates.
func (ev *Evaluator) resolveName(name string) (formula.Expr, bool) {
	if ev.names == nil {
		return nil, false
	}
	target, ok := ev.names(name)
	if !ok || target == nil {
		return nil, false
	}
	if _, nested := target.(*formula.NameNode); nested {
		return nil, false
	}
	return target, true
}

func (ev *Evaluator) resolve(sheet string) (Lookup, bool) {
	if ev.sheets == nil {
		return nil, false
	}
	lookup, ok := ev.sheets(sheet)
	if !ok || lookup == nil {
		return nil, false
	}
	return lookup, true
}

func (ev *Evaluator) unary(n *formula.UnaryOpNode, lookup Lookup) cell.Value {
	v := ev.eval(n.Operand, lookup)
	if v.IsError() {
		return v
	}
	num, ok := toNumber(v)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	switch n.Op {
	case formula.UnaryOpMinus:
		return cell.NumberOrError(-num)
	case formula.UnaryOpPercent:
		return cell.NumberOrError(num / 100)
	default:
		return cell.NumberOrError(num)
	}
}

func (ev *Evaluator) binary(n *formula.BinaryOpNode, lookup Lookup) cell.Value {
	left := ev.eval(n.Left, lookup)
	right := ev.eval(n.Right, lookup)
	if left.IsError() {
		return left
	}
	if right.IsError() {
		return right
	}

	if n.Op == formula.BinOpConcat {
		return cell.Text(toText(left) + toText(right))
	}
	if n.Op.IsComparison() {
		c := compareValues(left, right)
		switch n.Op {
		case formula.BinOpEqual:
			return cell.Bool(c == 0)
		case formula.BinOpNotEqual:
			return cell.Bool(c != 0)
		case formula.BinOpLess:
			return cell.Bool(c < 0)
		case formula.BinOpLessEqual:
			return cell.Bool(c <= 0)
		case formula.BinOpGreater:
			return cell.Bool(c > 0)
		default:
			return cell.Bool(c >= 0)
		}
	}

	l, ok := toNumber(left)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	r, ok := toNumber(right)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	switch n.Op {
	case formula.BinOpAdd:
		return cell.NumberOrError(l + r)
	case formula.BinOpSubtract:
		return cell.NumberOrError(l - r)
	case formula.BinOpMultiply:
		return cell.NumberOrError(l * r)
	case formula.BinOpDivide:
		if r == 0 {
			return cell.Error(cell.ErrorDivZero)
		}
		return cell.NumberOrError(l / r)
	case formula.BinOpPower:
		return power(l, r)
	default:
		return cell.Error(cell.ErrorValue)
	}
}

// compareValues orders two non-error values. an empty cell compares as the
// zero value of the other side; values of different kinds compare by their
// display text. text comparison ignores case.
func compareValues(l, r cell.Value) int {
	if l.IsEmpty() {
		l = zeroLike(r)
	}
	if r.IsEmpty() {
		r = zeroLike(l)
	}
	if l.Kind() == r.Kind() {
		switch l.Kind() {
		case cell.KindEmpty:
			return 0
		case cell.KindNumber:
			return cmp.Compare(l.Num(), r.Num())
		case cell.KindBoolean:
			return cmp.Compare(boolRank(l.Boolean()), boolRank(r.Boolean()))
		}
	}
	return strings.Compare(fold(l.String()), fold(r.String()))
}

func zeroLike(v cell.Value) cell.Value {
	switch v.Kind() {
	case cell.KindNumber:
		return cell.Number(0)
	case cell.KindText:
		return cell.Text("")
	case cell.KindBoolean:
		return cell.Bool(false)
	default:
		return cell.Empty
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// call dispatches a function by upper-cased name. IF and IFERROR only
// evaluate the branch they select unless the evaluator is eager.
func (ev *Evaluator) call(n *formula.FunctionCallNode, lookup Lookup) cell.Value {
	name := strings.ToUpper(n.Name)
	fn, ok := builtinTable[name]
	if !ok {
		return cell.Error(cell.ErrorName)
	}
	if !fn.accepts(len(n.Args)) {
		return cell.Error(cell.ErrorValue)
	}

	if !ev.eager {
		switch name {
		case "IF":
			return ev.lazyIf(n.Args, lookup)
		case "IFERROR":
			if v := ev.eval(n.Args[0], lookup); !v.IsError() {
				return v
			}
			return ev.eval(n.Args[1], lookup)
		}
	}

	args := make([]Arg, len(n.Args))
	for i, expr := range n.Args {
		args[i] = ev.arg(expr, lookup)
	}
	return fn.call(ev.builtins, args)
}

func (ev *Evaluator) lazyIf(args []formula.Expr, lookup Lookup) cell.Value {
	cond := ev.eval(args[0], lookup)
	if cond.IsError() {
		return cond
	}
	truth, ok := toBool(cond)
	if !ok {
		return cell.Error(cell.ErrorValue)
	}
	if truth {
		return ev.eval(args[1], lookup)
	}
	if len(args) == 3 {
		return ev.eval(args[2], lookup)
	}
	return cell.Bool(false)
}

// arg evaluates one function argument, expanding ranges
func (ev *Evaluator) arg(e formula.Expr, lookup Lookup) Arg {
	switch n := e.(type) {
	case *formula.RangeNode:
		return ev.expand(n, lookup)
	case *formula.SheetRefNode:
		if r, ok := n.Inner.(*formula.RangeNode); ok {
			sheetLookup, ok := ev.resolve(n.Sheet)
			if !ok {
				return scalarArg(cell.Error(cell.ErrorRef))
			}
			return ev.expand(r, sheetLookup)
		}
	case *formula.NameNode:
		target, ok := ev.resolveName(n.Name)
		if !ok {
			return scalarArg(cell.Error(cell.ErrorName))
		}
		return ev.arg(target, lookup)
	}
	return scalarArg(ev.eval(e, lookup))
}

func (ev *Evaluator) expand(n *formula.RangeNode, lookup Lookup) Arg {
	size := n.Size()
	if size > ev.maxRangeCells {
		return scalarArg(cell.Error(cell.ErrorValue))
	}
	tl, br := n.Bounds()
	values := make([]cell.Value, 0, size)
	for row := tl.Row; row <= br.Row; row++ {
		for col := tl.Col; col <= br.Col; col++ {
			values = append(values, lookup(cell.At(row, col)))
		}
	}
	return Arg{Values: values, Range: true}
}
