package host

import (
	"fmt"
	"strings"

	"spark/internal/diag"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer literal"
	case tokFloat:
		return "floating literal"
	case tokPunct:
		return "punctuator"
	default:
		return fmt.Sprintf("tokenKind(%d)", k)
	}
}

type token struct {
	kind tokenKind
	text string
	pos  diag.Pos
}

// punctuators sorted longest first so the scanner takes the maximal munch.
var punctuators = []string{
	"<<=", ">>=",
	"++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "~", "&", "|", "^",
	"(", ")", "[", "]", "{", "}", ",", ";", ".", "?", ":",
}

type lexer struct {
	src  string
	file string
	off  int
	line int
	col  int
	r    diag.Reporter
}

func newLexer(file, src string, r diag.Reporter) *lexer {
	return &lexer{src: src, file: file, line: 1, col: 1, r: r}
}

// tokenize returns every token of src followed by a single EOF token.
func tokenize(file, src string, r diag.Reporter) []token {
	lx := newLexer(file, src, r)
	var out []token
	for {
		tok := lx.next()
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out
		}
	}
}

func (lx *lexer) pos() diag.Pos {
	return diag.Pos{File: lx.file, Line: lx.line, Col: lx.col}
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.off < len(lx.src); i++ {
		if lx.src[lx.off] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.off++
	}
}

func (lx *lexer) peek(k int) byte {
	if lx.off+k < len(lx.src) {
		return lx.src[lx.off+k]
	}
	return 0
}

func (lx *lexer) skipTrivia() {
	for lx.off < len(lx.src) {
		ch := lx.peek(0)
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v':
			lx.advance(1)
		case ch == '/' && lx.peek(1) == '/':
			for lx.off < len(lx.src) && lx.peek(0) != '\n' {
				lx.advance(1)
			}
		case ch == '/' && lx.peek(1) == '*':
			start := lx.pos()
			end := strings.Index(lx.src[lx.off+2:], "*/")
			if end < 0 {
				diag.Errorf(lx.r, diag.LexUnterminatedBlockComment, start, "unterminated /* comment")
				lx.advance(len(lx.src) - lx.off)
				return
			}
			lx.advance(end + 4)
		default:
			return
		}
	}
}

func (lx *lexer) next() token {
	for {
		lx.skipTrivia()
		start := lx.pos()
		if lx.off >= len(lx.src) {
			return token{kind: tokEOF, pos: start}
		}
		ch := lx.peek(0)
		switch {
		case isIdentStart(ch):
			return lx.scanIdent(start)
		case isDigit(ch), ch == '.' && isDigit(lx.peek(1)):
			return lx.scanNumber(start)
		}
		for _, p := range punctuators {
			if strings.HasPrefix(lx.src[lx.off:], p) {
				lx.advance(len(p))
				return token{kind: tokPunct, text: p, pos: start}
			}
		}
		diag.Errorf(lx.r, diag.LexUnknownChar, start, fmt.Sprintf("unexpected character %q", ch))
		lx.advance(1)
	}
}

func (lx *lexer) scanIdent(start diag.Pos) token {
	begin := lx.off
	for lx.off < len(lx.src) && isIdentContinue(lx.peek(0)) {
		lx.advance(1)
	}
	return token{kind: tokIdent, text: lx.src[begin:lx.off], pos: start}
}

// scanNumber accepts decimal and hex integers with u/l suffixes and decimal
// floats with an optional exponent and f suffix.
func (lx *lexer) scanNumber(start diag.Pos) token {
	begin := lx.off
	kind := tokInt
	if lx.peek(0) == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X') {
		lx.advance(2)
		for isHex(lx.peek(0)) {
			lx.advance(1)
		}
	} else {
		for isDigit(lx.peek(0)) {
			lx.advance(1)
		}
		if lx.peek(0) == '.' {
			kind = tokFloat
			lx.advance(1)
			for isDigit(lx.peek(0)) {
				lx.advance(1)
			}
		}
		if ch := lx.peek(0); ch == 'e' || ch == 'E' {
			kind = tokFloat
			lx.advance(1)
			if ch := lx.peek(0); ch == '+' || ch == '-' {
				lx.advance(1)
			}
			if !isDigit(lx.peek(0)) {
				diag.Errorf(lx.r, diag.LexBadNumber, start, "exponent has no digits")
			}
			for isDigit(lx.peek(0)) {
				lx.advance(1)
			}
		}
	}
	for {
		ch := lx.peek(0)
		if kind == tokFloat && (ch == 'f' || ch == 'F') {
			lx.advance(1)
			break
		}
		if kind == tokInt && (ch == 'u' || ch == 'U' || ch == 'l' || ch == 'L') {
			lx.advance(1)
			continue
		}
		break
	}
	if isIdentContinue(lx.peek(0)) {
		diag.Errorf(lx.r, diag.LexBadNumber, start, fmt.Sprintf("invalid suffix on numeric literal %q", lx.src[begin:lx.off+1]))
		for isIdentContinue(lx.peek(0)) {
			lx.advance(1)
		}
	}
	return token{kind: kind, text: lx.src[begin:lx.off], pos: start}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHex(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}
