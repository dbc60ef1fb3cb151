package grammar

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIllegal
	tokNewline
	tokSemicolon
	tokLParen
	tokRParen
	tokComma
	tokAssign
	tokPlus
	tokMinus
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokIdent
)

var tokenNames = map[tokenKind]string{
	tokEOF:       "end of input",
	tokIllegal:   "illegal token",
	tokNewline:   "newline",
	tokSemicolon: "';'",
	tokLParen:    "'('",
	tokRParen:    "')'",
	tokComma:     "','",
	tokAssign:    "'='",
	tokPlus:      "'+'",
	tokMinus:     "'-'",
	tokNumber:    "number",
	tokString:    "string",
	tokTrue:      "true",
	tokFalse:     "false",
	tokIdent:     "identifier",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind   tokenKind
	text   string // raw lexeme
	number int64
	line   int
	err    string // set for tokIllegal
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokNumber, tokString:
		return fmt.Sprintf("%s %s", t.kind, t.text)
	}
	return t.kind.String()
}

// lexer turns script text into tokens on demand.
type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) next() token {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return l.scan()
		}
	}
	return token{kind: tokEOF, line: l.line}
}

func (l *lexer) scan() token {
	start := l.pos
	line := l.line
	c := l.src[l.pos]
	l.pos++

	single := func(k tokenKind) token {
		return token{kind: k, text: l.src[start:l.pos], line: line}
	}

	switch {
	case c == '\n':
		l.line++
		return single(tokNewline)
	case c == ';':
		return single(tokSemicolon)
	case c == '(':
		return single(tokLParen)
	case c == ')':
		return single(tokRParen)
	case c == ',':
		return single(tokComma)
	case c == '=':
		return single(tokAssign)
	case c == '+':
		return single(tokPlus)
	case c == '-':
		return single(tokMinus)
	case c == '"':
		for l.pos < len(l.src) && l.src[l.pos] != '"' {
			if l.src[l.pos] == '\n' {
				return token{kind: tokIllegal, line: line, err: "unterminated string"}
			}
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{kind: tokIllegal, line: line, err: "unterminated string"}
		}
		l.pos++
		return single(tokString)
	case isDigit(c):
		for l.pos < len(l.src) && isAlnum(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return token{kind: tokIllegal, text: text, line: line, err: fmt.Sprintf("invalid number %q", text)}
		}
		return token{kind: tokNumber, text: text, number: v, line: line}
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		switch text {
		case "true":
			return single(tokTrue)
		case "false":
			return single(tokFalse)
		}
		return single(tokIdent)
	}

	return token{kind: tokIllegal, text: string(c), line: line, err: fmt.Sprintf("unexpected character %q", c)}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c|0x20) >= 'a' && (c|0x20) <= 'z'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c|0x20) >= 'a' && (c|0x20) <= 'z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
