package formula

import (
	"strconv"
	"strings"

	"github.com/chrischeng-c4/rusheet-sub000/internal/cell"
)

// Parser parses tokens into an expression tree by recursive descent.
// precedence, low to high: comparison, '&', additive, multiplicative,
// power (right-associative), prefix unary, postfix '%'.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses formula text. the leading '=' is optional.
func Parse(text string) (Expr, error) {
	body := strings.TrimLeft(text, " \t")
	offset := len([]rune(text)) - len([]rune(body))
	if strings.HasPrefix(body, "=") {
		body = body[1:]
		offset++
	}

	tokens, err := NewLexer(body).Tokenize()
	if err != nil {
		return nil, shiftPos(err, offset)
	}
	node, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, shiftPos(err, offset)
	}
	return node, nil
}

// shiftPos makes positions relative to the caller's text rather than the
// formula body
func shiftPos(err error, offset int) error {
	if pe, ok := err.(*ParseError); ok {
		return &ParseError{Pos: pe.Pos + offset, Msg: pe.Msg}
	}
	return err
}

// NewParser creates a new parser over the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the tokens into an expression and requires that every token
// is consumed.
func (p *Parser) Parse() (Expr, error) {
	if p.peek().Type == TokenEOF {
		return nil, parseErrorf(p.peek().Pos, "empty formula")
	}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, parseErrorf(tok.Pos, "unexpected %s %q after expression", tok.Type, tok.Value)
	}
	return node, nil
}

func (p *Parser) peek() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	if len(p.tokens) > 0 {
		return Token{Type: TokenEOF, Pos: p.tokens[len(p.tokens)-1].Pos}
	}
	return Token{Type: TokenEOF}
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) isOperator(values ...string) (string, bool) {
	tok := p.peek()
	if tok.Type != TokenOperator {
		return "", false
	}
	for _, v := range values {
		if tok.Value == v {
			return v, true
		}
	}
	return "", false
}

var comparisonOps = map[string]BinaryOp{
	"=":  BinOpEqual,
	"<>": BinOpNotEqual,
	"<":  BinOpLess,
	"<=": BinOpLessEqual,
	">":  BinOpGreater,
	">=": BinOpGreaterEqual,
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}
	for {
		v, ok := p.isOperator("=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: comparisonOps[v], Left: left, Right: right}
	}
}

// parseConcatenation handles the '&' operator
func (p *Parser) parseConcatenation() (Expr, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOperator("&"); !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right}
	}
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Expr, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for {
		v, ok := p.isOperator("+", "-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		op := BinOpAdd
		if v == "-" {
			op = BinOpSubtract
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		v, ok := p.isOperator("*", "/")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		op := BinOpMultiply
		if v == "/" {
			op = BinOpDivide
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if _, ok := p.isOperator("^"); ok {
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right}, nil
	}
	return left, nil
}

// parseUnary handles prefix + and -
func (p *Parser) parseUnary() (Expr, error) {
	if v, ok := p.isOperator("+", "-"); ok {
		p.next()
		operand, err := p.parseUnary() // chained unary operators
		if err != nil {
			return nil, err
		}
		op := UnaryOpPlus
		if v == "-" {
			op = UnaryOpMinus
		}
		return &UnaryOpNode{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles postfix percent
func (p *Parser) parsePostfix() (Expr, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOperator("%"); !ok {
			return node, nil
		}
		p.next()
		node = &UnaryOpNode{Op: UnaryOpPercent, Operand: node}
	}
}

// parsePrimary handles literals, references, function calls and
// parentheses
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.next()

	switch tok.Type {
	case TokenNumber:
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, parseErrorf(tok.Pos, "invalid number %q", tok.Value)
		}
		return &NumberNode{Value: val}, nil

	case TokenString:
		return &StringNode{Value: tok.Value}, nil

	case TokenBoolean:
		return &BooleanNode{Value: tok.Value == "TRUE"}, nil

	case TokenError:
		kind, ok := cell.ParseErrorToken(tok.Value)
		if !ok {
			return nil, parseErrorf(tok.Pos, "unknown error literal %q", tok.Value)
		}
		return &ErrorNode{Kind: kind}, nil

	case TokenReference:
		return p.parseReferenceOrRange(tok)

	case TokenSheet:
		refTok := p.next()
		if refTok.Type != TokenReference {
			return nil, parseErrorf(refTok.Pos, "expected reference after sheet %q", tok.Value)
		}
		inner, err := p.parseReferenceOrRange(refTok)
		if err != nil {
			return nil, err
		}
		return &SheetRefNode{Sheet: tok.Value, Inner: inner}, nil

	case TokenFunction:
		return p.parseFunctionCall(tok)

	case TokenLeftParen:
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Type != TokenRightParen {
			return nil, parseErrorf(closing.Pos, "expected closing parenthesis")
		}
		return &GroupNode{Inner: inner}, nil

	case TokenIdentifier:
		if referenceShaped(tok.Value) {
			return nil, parseErrorf(tok.Pos, "invalid reference %q", tok.Value)
		}
		return &NameNode{Name: tok.Value}, nil

	case TokenEOF:
		return nil, parseErrorf(tok.Pos, "unexpected end of formula")

	default:
		return nil, parseErrorf(tok.Pos, "unexpected %s %q", tok.Type, tok.Value)
	}
}

// parseReferenceOrRange parses a reference, joining it with a following
// ':' reference into a range
func (p *Parser) parseReferenceOrRange(tok Token) (Expr, error) {
	start, err := parseReference(tok.Value)
	if err != nil {
		return nil, parseErrorf(tok.Pos, "invalid reference %q", tok.Value)
	}
	if p.peek().Type != TokenColon {
		return start, nil
	}
	p.next()
	endTok := p.next()
	if endTok.Type != TokenReference {
		return nil, parseErrorf(endTok.Pos, "expected reference after ':'")
	}
	end, err := parseReference(endTok.Value)
	if err != nil {
		return nil, parseErrorf(endTok.Pos, "invalid reference %q", endTok.Value)
	}
	return &RangeNode{Start: start, End: end}, nil
}

// parseFunctionCall parses NAME(arg, arg; arg)
func (p *Parser) parseFunctionCall(nameTok Token) (Expr, error) {
	if open := p.next(); open.Type != TokenLeftParen {
		return nil, parseErrorf(open.Pos, "expected '(' after function name")
	}

	call := &FunctionCallNode{Name: nameTok.Value}
	if p.peek().Type == TokenRightParen {
		p.next()
		return call, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch tok := p.next(); tok.Type {
		case TokenRightParen:
			return call, nil
		case TokenComma:
			continue
		case TokenEOF:
			return nil, parseErrorf(tok.Pos, "missing ')' in call to %s", nameTok.Value)
		default:
			return nil, parseErrorf(tok.Pos, "expected ',' or ')' in function arguments")
		}
	}
}
