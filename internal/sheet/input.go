package sheet

import (
	"strconv"
	"strings"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// IsFormulaInput reports whether typed input is a formula rather than a
// literal. a lone "=" is text.
func IsFormulaInput(input string) bool {
	return len(input) > 1 && input[0] == '='
}

// ParseLiteral classifies typed input that is not a formula. a leading
// apostrophe forces text and is not part of the value.
func ParseLiteral(input string) cell.Value {
	if input == "" {
		return cell.Empty
	}
	if rest, ok := strings.CutPrefix(input, "'"); ok {
		return cell.Text(rest)
	}
	trimmed := strings.TrimSpace(input)
	if f, ok := parseNumber(trimmed); ok {
		return cell.Number(f)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return cell.Bool(true)
	case "FALSE":
		return cell.Bool(false)
	}
	if kind, ok := cell.ParseErrorToken(trimmed); ok {
		return cell.Error(kind)
	}
	return cell.Text(input)
}

// parseNumber accepts plain decimal notation with an optional exponent and
// a trailing percent sign. strconv alone would also take hex floats,
// underscores, Inf and NaN.
func parseNumber(s string) (float64, bool) {
	percent := false
	if rest, ok := strings.CutSuffix(s, "%"); ok {
		s, percent = rest, true
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.', c == 'e', c == 'E', c == '+', c == '-':
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if percent {
		f /= 100
	}
	return f, true
}
