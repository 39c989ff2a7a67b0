package formula

import (
	"strings"
	"unicode"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenError // literal error value such as #N/A
	TokenReference
	TokenSheet // sheet prefix, '!' consumed, quotes removed
	TokenFunction
	TokenIdentifier
	TokenOperator
	TokenComma // ',' or ';'
	TokenColon
	TokenLeftParen
	TokenRightParen
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of formula"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenBoolean:
		return "boolean"
	case TokenError:
		return "error literal"
	case TokenReference:
		return "reference"
	case TokenSheet:
		return "sheet name"
	case TokenFunction:
		return "function"
	case TokenIdentifier:
		return "identifier"
	case TokenOperator:
		return "operator"
	case TokenComma:
		return "separator"
	case TokenColon:
		return "':'"
	case TokenLeftParen:
		return "'('"
	case TokenRightParen:
		return "')'"
	default:
		return "token"
	}
}

// Token is a lexeme with its rune offset in the formula text.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// character classification constants. slightly easier to read.
const (
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
)

// errorLiterals is ordered longest first so prefixes never shadow a longer
// token.
var errorLiterals = func() []string {
	out := make([]string, 0, len(cell.ErrorKinds()))
	for _, k := range cell.ErrorKinds() {
		out = append(out, k.String())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}()

// Lexer turns formula text into tokens. Whether '+' or '-' is unary is left
// to the parser.
type Lexer struct {
	runes []rune
	pos   int
}

// NewLexer creates a lexer over the formula body (without the leading '=').
func NewLexer(input string) *Lexer {
	return &Lexer{runes: []rune(input)}
}

// Tokenize tokenizes the entire input. the last token is always TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.current()

	switch {
	case ch == charQuote:
		return l.scanString()
	case ch == charApostrophe:
		return l.scanQuotedSheet()
	case ch == charHash:
		return l.scanErrorLiteral()
	case isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))):
		return l.scanNumber(), nil
	case ch == charDollar || isAlpha(ch) || ch == charUnderscore:
		return l.scanWord()
	}

	switch ch {
	case charLParen:
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: start}, nil
	case charRParen:
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: start}, nil
	case charComma, charSemicolon:
		l.pos++
		return Token{Type: TokenComma, Value: string(ch), Pos: start}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: start}, nil
	case charPlus, charMinus, charAsterisk, charSlash, charCaret, charAmpersand, charPercent, charEqual:
		l.pos++
		return Token{Type: TokenOperator, Value: string(ch), Pos: start}, nil
	case charLess:
		l.pos++
		switch l.current() {
		case charEqual:
			l.pos++
			return Token{Type: TokenOperator, Value: "<=", Pos: start}, nil
		case charGreater:
			l.pos++
			return Token{Type: TokenOperator, Value: "<>", Pos: start}, nil
		}
		return Token{Type: TokenOperator, Value: "<", Pos: start}, nil
	case charGreater:
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenOperator, Value: ">=", Pos: start}, nil
		}
		return Token{Type: TokenOperator, Value: ">", Pos: start}, nil
	case charExclaim:
		// "!=" is accepted as a synonym for "<>"
		if l.peek(1) == charEqual {
			l.pos += 2
			return Token{Type: TokenOperator, Value: "<>", Pos: start}, nil
		}
	}

	return Token{}, parseErrorf(start, "unexpected character %q", ch)
}

// helper methods for character navigation and classification

func (l *Lexer) current() rune {
	return l.peek(0)
}

func (l *Lexer) peek(offset int) rune {
	if l.pos+offset < len(l.runes) {
		return l.runes[l.pos+offset]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) && unicode.IsSpace(l.runes[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) substring(start, end int) string {
	return string(l.runes[start:end])
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isWordChar(ch rune) bool {
	return isAlpha(ch) || isDigit(ch) || ch == charUnderscore || ch == charPeriod
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	start := l.pos

	for isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		saved := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !isDigit(l.current()) {
			// not an exponent after all
			l.pos = saved
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(start, l.pos), Pos: start}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				sb.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: sb.String(), Pos: start}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, parseErrorf(start, "unclosed string literal")
}

// scanQuotedSheet scans 'Sheet Name'! where a doubled quote escapes an apostrophe
func (l *Lexer) scanQuotedSheet() (Token, error) {
	start := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				sb.WriteRune(charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++
			if l.current() != charExclaim {
				return Token{}, parseErrorf(l.pos, "expected '!' after quoted sheet name")
			}
			l.pos++
			if sb.Len() == 0 {
				return Token{}, parseErrorf(start, "empty sheet name")
			}
			return Token{Type: TokenSheet, Value: sb.String(), Pos: start}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, parseErrorf(start, "unclosed sheet name")
}

// scanErrorLiteral matches one of the error value tokens, case-insensitively
func (l *Lexer) scanErrorLiteral() (Token, error) {
	start := l.pos
	rest := strings.ToUpper(string(l.runes[l.pos:]))
	for _, lit := range errorLiterals {
		if strings.HasPrefix(rest, lit) {
			l.pos += len([]rune(lit))
			return Token{Type: TokenError, Value: lit, Pos: start}, nil
		}
	}
	return Token{}, parseErrorf(start, "unknown error literal")
}

// scanWord scans references, sheet prefixes, functions, booleans, and bare
// identifiers. a reference is a letter run and a digit run, each optionally
// preceded by '$'.
func (l *Lexer) scanWord() (Token, error) {
	start := l.pos

	if l.current() == charDollar {
		return l.scanAbsoluteReference()
	}

	for isAlpha(l.current()) {
		l.pos++
	}
	letterEnd := l.pos

	// A$1
	if letterEnd > start && l.current() == charDollar && isDigit(l.peek(1)) {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
		return l.finishReference(start)
	}

	for isWordChar(l.current()) {
		l.pos++
	}
	word := l.substring(start, l.pos)
	upper := strings.ToUpper(word)

	if l.current() == charExclaim && l.peek(1) != charEqual {
		l.pos++
		return Token{Type: TokenSheet, Value: word, Pos: start}, nil
	}
	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: upper, Pos: start}, nil
	}
	if isReference(word) {
		return Token{Type: TokenReference, Value: upper, Pos: start}, nil
	}
	if upper == "TRUE" || upper == "FALSE" {
		return Token{Type: TokenBoolean, Value: upper, Pos: start}, nil
	}
	return Token{Type: TokenIdentifier, Value: word, Pos: start}, nil
}

// scanAbsoluteReference scans references starting with '$': $A1, $A$1
func (l *Lexer) scanAbsoluteReference() (Token, error) {
	start := l.pos
	l.pos++ // '$'
	if !isAlpha(l.current()) {
		return Token{}, parseErrorf(start, "expected column letters after '$'")
	}
	for isAlpha(l.current()) {
		l.pos++
	}
	if l.current() == charDollar {
		l.pos++
	}
	if !isDigit(l.current()) {
		return Token{}, parseErrorf(start, "expected row number in reference")
	}
	for isDigit(l.current()) {
		l.pos++
	}
	return l.finishReference(start)
}

func (l *Lexer) finishReference(start int) (Token, error) {
	if isWordChar(l.current()) {
		return Token{}, parseErrorf(start, "malformed reference")
	}
	value := strings.ToUpper(l.substring(start, l.pos))
	if !isReference(value) {
		return Token{}, parseErrorf(start, "reference %s is outside the sheet", value)
	}
	return Token{Type: TokenReference, Value: value, Pos: start}, nil
}

// isReference reports whether s is a valid in-bounds reference such as A1,
// $B$2 or xfd1048576.
func isReference(s string) bool {
	_, err := parseReference(s)
	return err == nil
}

// parseReference converts reference text to a CellRefNode.
func parseReference(s string) (*CellRefNode, error) {
	ref := &CellRefNode{}
	i := 0
	if i < len(s) && s[i] == charDollar {
		ref.ColAbsolute = true
		i++
	}
	letters := i
	for i < len(s) && isAlpha(rune(s[i])) {
		i++
	}
	col, ok := cell.ColumnIndex(s[letters:i])
	if !ok {
		return nil, cell.ErrBadReference
	}
	if i < len(s) && s[i] == charDollar {
		ref.RowAbsolute = true
		i++
	}
	row, ok := cell.RowIndex(s[i:])
	if !ok {
		return nil, cell.ErrBadReference
	}
	ref.Col, ref.Row = col, row
	return ref, nil
}
