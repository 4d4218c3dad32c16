package guard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	gpuCountIdent = "kernel.gpus.length"
	gpuModelIdent = "kernel.gpus.model"
)

var knownFields = map[string]Field{
	string(FieldPlatform): FieldPlatform,
	string(FieldArch):     FieldArch,
	string(FieldGPU):      FieldGPU,
	string(FieldGPUs):     FieldGPUs,
}

// SyntaxError describes a guard expression that could not be parsed.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid guard %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// Parse reads a guard expression such as
//
//	{{platform === 'win32' && kernel.gpu === 'nvidia' && kernel.gpus && kernel.gpus.length > 0}}
//
// The surrounding braces are optional. `===` and `!==` are accepted as
// spellings of `==` and `!=`.
func Parse(s string) (Expr, error) {
	src := strings.TrimSpace(s)
	if strings.HasPrefix(src, "{{") && strings.HasSuffix(src, "}}") {
		src = strings.TrimSpace(src[2 : len(src)-2])
	}
	if src == "" {
		return nil, &SyntaxError{Expr: s, Msg: "empty expression"}
	}

	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return expr, nil
}

// MustParse is Parse for expressions known to be valid, e.g. in built-in plans.
func MustParse(s string) Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// longest first
var operators = []string{"===", "!==", "==", "!=", "=~", ">=", "<=", "&&", "||", ">", "<", "!"}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == c {
					closed = true
					i++
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Expr: src, Pos: start, Msg: "unterminated string"}
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || src[i] == '.' || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &SyntaxError{Expr: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, v ...interface{}) error {
	return &SyntaxError{Expr: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, v...)}
}

func (p *parser) acceptOp(ops ...string) (Op, bool) {
	tok := p.peek()
	if tok.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			p.next()
			return normalizeOp(op), true
		}
	}
	return "", false
}

func normalizeOp(op string) Op {
	switch op {
	case "===":
		return OpEq
	case "!==":
		return OpNe
	default:
		return Op(op)
	}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	or := Or{left}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			break
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		or = append(or, right)
	}
	if len(or) == 1 {
		return left, nil
	}
	return or, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	and := And{left}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			break
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		and = append(and, right)
	}
	if len(and) == 1 {
		return left, nil
	}
	return and, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if _, ok := p.acceptOp("!"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return e, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return Const(true), nil
		case "false":
			return Const(false), nil
		}
		return p.parseFieldExpr(tok)
	case tokString:
		op, ok := p.acceptOp("===", "!==", "==", "!=")
		if !ok {
			return nil, p.errorf(p.peek(), "expected comparison after string literal")
		}
		fieldTok := p.next()
		field, err := p.comparableField(fieldTok)
		if err != nil {
			return nil, err
		}
		return Compare{Field: field, Op: op, Value: tok.text}, nil
	case tokNumber:
		n, _ := strconv.Atoi(tok.text)
		op, ok := p.acceptOp("===", "!==", "==", "!=", ">=", "<=", ">", "<")
		if !ok {
			return nil, p.errorf(p.peek(), "expected comparison after number")
		}
		if countTok := p.next(); countTok.kind != tokIdent || countTok.text != gpuCountIdent {
			return nil, p.errorf(countTok, "numbers can only be compared with %s", gpuCountIdent)
		}
		return Count{Op: flip(op), N: n}, nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

func (p *parser) parseFieldExpr(tok token) (Expr, error) {
	switch tok.text {
	case gpuCountIdent:
		op, ok := p.acceptOp("===", "!==", "==", "!=", ">=", "<=", ">", "<")
		if !ok {
			return Count{Op: OpGt, N: 0}, nil
		}
		numTok := p.next()
		if numTok.kind != tokNumber {
			return nil, p.errorf(numTok, "expected a number after %s", op)
		}
		n, _ := strconv.Atoi(numTok.text)
		return Count{Op: op, N: n}, nil
	case gpuModelIdent:
		if _, ok := p.acceptOp("=~"); !ok {
			return nil, p.errorf(p.peek(), "expected =~ after %s", gpuModelIdent)
		}
		patTok := p.next()
		if patTok.kind != tokString {
			return nil, p.errorf(patTok, "expected a quoted pattern")
		}
		re, err := regexp.Compile(patTok.text)
		if err != nil {
			return nil, p.errorf(patTok, "invalid pattern: %s", err)
		}
		return ModelMatch{Pattern: re}, nil
	}

	field, ok := knownFields[tok.text]
	if !ok {
		return nil, p.errorf(tok, "unknown field %q", tok.text)
	}
	op, ok := p.acceptOp("===", "!==", "==", "!=")
	if !ok {
		return Truthy{Field: field}, nil
	}
	if field == FieldGPUs {
		return nil, p.errorf(tok, "%s is a list and cannot be compared with a string", field)
	}
	valTok := p.next()
	if valTok.kind != tokString {
		return nil, p.errorf(valTok, "expected a quoted string after %s", op)
	}
	return Compare{Field: field, Op: op, Value: valTok.text}, nil
}

func (p *parser) comparableField(tok token) (Field, error) {
	field, ok := knownFields[tok.text]
	if tok.kind != tokIdent || !ok {
		return "", p.errorf(tok, "expected a field, got %q", tok.text)
	}
	if field == FieldGPUs {
		return "", p.errorf(tok, "%s is a list and cannot be compared with a string", field)
	}
	return field, nil
}

// flip mirrors an operator so `0 < n` can be stored as `n > 0`.
func flip(op Op) Op {
	switch op {
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	default:
		return op
	}
}
