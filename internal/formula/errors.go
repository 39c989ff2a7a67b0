package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("formula: parse error")

	// ErrInvalidated reports that a structural edit deleted a cell the
	// formula reads.
	ErrInvalidated = errors.New("formula: reference invalidated by deletion")
)

// ParseError locates a lexing or parsing failure. Pos is a rune offset into
// the formula text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula: %s at position %d", e.Msg, e.Pos)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseErrorf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
