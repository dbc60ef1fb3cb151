// Package grammar is the front-end for the environment scripting language.
//
// A script is a list of statements separated by ';' or newlines. Each
// statement is an expression:
//
//	expr    := IDENT '=' expr | sum
//	sum     := unary { ('+' | '-') unary }
//	unary   := '-' unary | primary
//	primary := NUMBER | STRING | true | false | IDENT
//	         | IDENT '(' [ expr { ',' expr } ] ')' | '(' expr ')'
//
// Operators are reported to the Builder as calls named "=", "+" and "-".
// Comments start with '#' and run to the end of the line. Newlines inside
// parentheses are ignored.
package grammar

import (
	"fmt"
	"io"
	"strings"
)

// Builder creates nodes of type N as the parser recognises them.
type Builder[N any] interface {
	Number(v int32) N
	// QuotedString receives the literal including its surrounding quotes.
	QuotedString(lexeme string) N
	Boolean(v bool) N
	Identifier(name string) N
	Call(name string, args []N) N
}

// SyntaxError reports the first problem found in the input.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Error on line %d: %s", e.Line, e.Msg)
}

// Parse reads the whole script from r and calls emit once for every
// top-level statement, left to right. Parsing stops at the first error;
// statements emitted before it remain emitted.
func Parse[N any](r io.Reader, b Builder[N], emit func(N)) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p := &parser[N]{lex: newLexer(string(src)), b: b}
	return p.run(emit)
}

// ParseString is Parse over an in-memory script.
func ParseString[N any](src string, b Builder[N], emit func(N)) error {
	return Parse(strings.NewReader(src), b, emit)
}

type parser[N any] struct {
	lex   *lexer
	b     Builder[N]
	tok   token
	ahead *token
	depth int
}

func (p *parser[N]) run(emit func(N)) error {
	p.advance()
	for {
		for p.tok.kind == tokNewline || p.tok.kind == tokSemicolon {
			p.advance()
		}
		if p.tok.kind == tokEOF {
			return nil
		}

		stmt, err := p.expression()
		if err != nil {
			return err
		}

		switch p.tok.kind {
		case tokNewline, tokSemicolon, tokEOF:
		default:
			return p.unexpected()
		}
		emit(stmt)
	}
}

func (p *parser[N]) advance() {
	for {
		if p.ahead != nil {
			p.tok = *p.ahead
			p.ahead = nil
		} else {
			p.tok = p.lex.next()
		}
		if p.tok.kind == tokNewline && p.depth > 0 {
			continue
		}
		return
	}
}

func (p *parser[N]) peek() token {
	if p.ahead == nil {
		t := p.lex.next()
		p.ahead = &t
	}
	return *p.ahead
}

func (p *parser[N]) unexpected() error {
	if p.tok.kind == tokIllegal {
		return &SyntaxError{Line: p.tok.line, Msg: p.tok.err}
	}
	return &SyntaxError{Line: p.tok.line, Msg: "syntax error, unexpected " + p.tok.String()}
}

func (p *parser[N]) expression() (N, error) {
	if p.tok.kind == tokIdent && p.peek().kind == tokAssign {
		name := p.tok.text
		p.advance()
		p.advance()
		rhs, err := p.expression()
		if err != nil {
			return rhs, err
		}
		return p.b.Call("=", []N{p.b.Identifier(name), rhs}), nil
	}
	return p.sum()
}

func (p *parser[N]) sum() (N, error) {
	left, err := p.unary()
	if err != nil {
		return left, err
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := p.tok.text
		p.advance()
		right, err := p.unary()
		if err != nil {
			return right, err
		}
		left = p.b.Call(op, []N{left, right})
	}
	return left, nil
}

func (p *parser[N]) unary() (N, error) {
	if p.tok.kind != tokMinus {
		return p.primary()
	}
	if next := p.peek(); next.kind == tokNumber {
		p.advance()
		n := p.b.Number(int32(-p.tok.number))
		p.advance()
		return n, nil
	}
	p.advance()
	operand, err := p.unary()
	if err != nil {
		return operand, err
	}
	return p.b.Call("-", []N{p.b.Number(0), operand}), nil
}

func (p *parser[N]) primary() (N, error) {
	var zero N
	t := p.tok
	switch t.kind {
	case tokNumber:
		p.advance()
		return p.b.Number(int32(t.number)), nil
	case tokString:
		p.advance()
		return p.b.QuotedString(t.text), nil
	case tokTrue, tokFalse:
		p.advance()
		return p.b.Boolean(t.kind == tokTrue), nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			p.advance()
			return p.call(t.text)
		}
		p.advance()
		return p.b.Identifier(t.text), nil
	case tokLParen:
		p.depth++
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return inner, err
		}
		if p.tok.kind != tokRParen {
			return zero, p.unexpected()
		}
		p.depth--
		p.advance()
		return inner, nil
	}
	return zero, p.unexpected()
}

// call parses an argument list; the current token is the opening paren.
func (p *parser[N]) call(name string) (N, error) {
	var zero N
	p.depth++
	p.advance()

	var args []N
	if p.tok.kind != tokRParen {
		for {
			arg, err := p.expression()
			if err != nil {
				return arg, err
			}
			args = append(args, arg)
			if p.tok.kind != tokComma {
				break
			}
			p.advance()
		}
	}
	if p.tok.kind != tokRParen {
		return zero, p.unexpected()
	}
	p.depth--
	p.advance()
	return p.b.Call(name, args), nil
}
