package cell

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind represents standard spreadsheet error codes following
// Excel conventions
type ErrorKind uint8

const (
	ErrorDivZero  ErrorKind = iota + 1 // #DIV/0! - division by zero
	ErrorValue                         // #VALUE! - wrong type of argument or operand
	ErrorRef                           // #REF! - invalid cell reference
	ErrorName                          // #NAME? - unrecognized function name
	ErrorNull                          // #NULL! - no cells in common between ranges
	ErrorNum                           // #NUM! - number too large or small to be represented
	ErrorNA                            // #N/A - value not available
	ErrorCircular                      // #CIRCULAR! - formula reads its own result
)

// errorTokens maps error kinds to the literal token used in formulas and
// cell display
var errorTokens = map[ErrorKind]string{
	ErrorDivZero:  "#DIV/0!",
	ErrorValue:    "#VALUE!",
	ErrorRef:      "#REF!",
	ErrorName:     "#NAME?",
	ErrorNull:     "#NULL!",
	ErrorNum:      "#NUM!",
	ErrorNA:       "#N/A",
	ErrorCircular: "#CIRCULAR!",
}

func (e ErrorKind) String() string {
	if s, ok := errorTokens[e]; ok {
		return s
	}
	return "#ERROR!"
}

// ErrorKinds lists every error kind in declaration order.
func ErrorKinds() []ErrorKind {
	return []ErrorKind{ErrorDivZero, ErrorValue, ErrorRef, ErrorName, ErrorNull, ErrorNum, ErrorNA, ErrorCircular}
}

// ParseErrorToken resolves a literal such as "#N/A" to its kind. Matching is
// case-insensitive.
func ParseErrorToken(s string) (ErrorKind, bool) {
	upper := strings.ToUpper(s)
	for kind, token := range errorTokens {
		if token == upper {
			return kind, true
		}
	}
	return 0, false
}

// Value is a computed or literal cell value. The zero Value is Empty.
// Values are comparable with ==.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	err  ErrorKind
}

// Empty is the value of a cell that holds nothing.
var Empty = Value{}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Text(s string) Value { return Value{kind: KindText, str: s} }

func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

func Error(e ErrorKind) Value { return Value{kind: KindError, err: e} }

// NumberOrError wraps f, converting NaN and infinities to #NUM!.
func NumberOrError(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Error(ErrorNum)
	}
	return Number(f)
}

func (v Value) Kind() Kind         { return v.kind }
func (v Value) Num() float64       { return v.num }
func (v Value) Str() string        { return v.str }
func (v Value) Boolean() bool      { return v.b }
func (v Value) ErrKind() ErrorKind { return v.err }

func (v Value) IsEmpty() bool { return v.kind == KindEmpty }
func (v Value) IsError() bool { return v.kind == KindError }

// String renders the value the way a cell displays it.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	case KindBoolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.err.String()
	default:
		return ""
	}
}

// FormatNumber prints integral values without a decimal point and everything
// else with the shortest representation that round-trips.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	abs := math.Abs(f)
	if abs >= 1e-5 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}
