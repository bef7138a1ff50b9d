package host

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"spark/internal/diag"
	"spark/internal/types"
)

// bailout unwinds the parser after the first syntax error; the checker is
// not run on a partial tree.
type bailout struct{}

type parser struct {
	toks []token
	i    int
	r    diag.Reporter
}

func parse(file, src string, r diag.Reporter) (prog *program, ok bool) {
	bag := diag.NewBag(0)
	toks := tokenize(file, src, diag.BagReporter{Bag: bag})
	for _, d := range bag.Items() {
		r.Report(d)
	}
	if bag.HasErrors() {
		return nil, false
	}
	p := &parser{toks: toks, r: r}
	defer func() {
		if rec := recover(); rec != nil {
			if _, isBail := rec.(bailout); !isBail {
				panic(rec)
			}
			prog, ok = nil, false
		}
	}()
	prog = &program{byName: make(map[string]*funcDecl)}
	for p.peek().kind != tokEOF {
		prog.funcs = append(prog.funcs, p.funcDecl())
	}
	return prog, true
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(k int) token {
	if p.i+k < len(p.toks) {
		return p.toks[p.i+k]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) is(text string) bool {
	tok := p.peek()
	return (tok.kind == tokPunct || tok.kind == tokIdent) && tok.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.i++
		return true
	}
	return false
}

func (p *parser) fail(code diag.Code, pos diag.Pos, format string, args ...any) {
	diag.Errorf(p.r, code, pos, fmt.Sprintf(format, args...))
	panic(bailout{})
}

func (p *parser) expect(text string) token {
	tok := p.peek()
	if !p.is(text) {
		code := diag.SynUnexpectedToken
		switch text {
		case ";":
			code = diag.SynExpectSemicolon
		case ")":
			code = diag.SynUnclosedParen
		case "}":
			code = diag.SynUnclosedBrace
		}
		p.fail(code, tok.pos, "expected '%s', found %s", text, describe(tok))
	}
	return p.next()
}

func (p *parser) ident() token {
	tok := p.peek()
	if tok.kind != tokIdent || isKeyword(tok.text) {
		p.fail(diag.SynExpectIdent, tok.pos, "expected identifier, found %s", describe(tok))
	}
	return p.next()
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return "end of input"
	}
	return "'" + tok.text + "'"
}

var keywords = map[string]struct{}{
	"if": {}, "else": {}, "while": {}, "for": {}, "do": {}, "break": {}, "continue": {},
	"return": {}, "__kernel": {}, "kernel": {}, "__global": {}, "global": {}, "const": {},
	"__private": {}, "private": {}, "__local": {}, "local": {}, "__constant": {}, "constant": {},
}

func isKeyword(s string) bool {
	if _, ok := keywords[s]; ok {
		return true
	}
	_, ok := parseTypeName(s)
	return ok
}

var baseTypes = map[string]types.Primitive{
	"void": types.Void, "char": types.Char, "uchar": types.UChar, "short": types.Short,
	"ushort": types.UShort, "int": types.Int, "uint": types.UInt, "long": types.Long,
	"ulong": types.ULong, "float": types.Float, "double": types.Double,
	"size_t": types.ULong,
}

// parseTypeName decodes a type keyword such as int, float4 or uchar16.
func parseTypeName(s string) (types.Datatype, bool) {
	if p, ok := baseTypes[s]; ok {
		if p == types.Void {
			return types.VoidType, true
		}
		return types.Scalar(p), true
	}
	base := strings.TrimRight(s, "0123456789")
	digits := s[len(base):]
	if digits == "" {
		return types.Datatype{}, false
	}
	prim, ok := baseTypes[base]
	if !ok || prim == types.Void || base == "size_t" {
		return types.Datatype{}, false
	}
	lanes, err := strconv.Atoi(digits)
	if err != nil {
		return types.Datatype{}, false
	}
	comps, ok := types.ComponentsFor(lanes)
	if !ok || lanes == 1 {
		return types.Datatype{}, false
	}
	return types.Vector(prim, comps), true
}

func isQualifier(s string) bool {
	switch s {
	case "__global", "global", "const", "__private", "private", "__constant", "constant", "__local", "local":
		return true
	}
	return false
}

// startsType reports whether the tokens at k begin a (qualified) type.
func (p *parser) startsType(k int) bool {
	tok := p.peekAt(k)
	if tok.kind != tokIdent {
		return false
	}
	if isQualifier(tok.text) {
		return true
	}
	_, ok := parseTypeName(tok.text)
	return ok
}

func (p *parser) typeSpec() types.Datatype {
	for isQualifier(p.peek().text) && p.peek().kind == tokIdent {
		tok := p.next()
		if tok.text == "__local" || tok.text == "local" {
			p.fail(diag.SemaUnsupported, tok.pos, "local memory is not supported")
		}
	}
	tok := p.peek()
	dt, ok := parseTypeName(tok.text)
	if tok.kind != tokIdent || !ok {
		p.fail(diag.SynExpectType, tok.pos, "expected a type, found %s", describe(tok))
	}
	p.next()
	for isQualifier(p.peek().text) && p.peek().kind == tokIdent {
		p.next()
	}
	if p.accept("*") {
		if dt.IsVoid() {
			p.fail(diag.SemaUnsupported, tok.pos, "void pointers are not supported")
		}
		dt = types.PointerTo(dt)
		if p.is("*") {
			p.fail(diag.SemaUnsupported, p.peek().pos, "pointers to pointers are not supported")
		}
	}
	return dt
}

func (p *parser) funcDecl() *funcDecl {
	fn := &funcDecl{pos: p.peek().pos}
	if p.accept("__kernel") || p.accept("kernel") {
		fn.kernel = true
	}
	fn.ret = p.typeSpec()
	name := p.ident()
	fn.name, fn.pos = name.text, name.pos
	p.expect("(")
	if p.is("void") && p.peekAt(1).text == ")" {
		p.next()
	}
	for !p.is(")") {
		if len(fn.params) > 0 {
			p.expect(",")
		}
		dt := p.typeSpec()
		id := p.ident()
		fn.params = append(fn.params, &varDecl{name: id.text, pos: id.pos, typ: dt})
	}
	p.expect(")")
	fn.body = p.block()
	return fn
}

func (p *parser) block() *blockStmt {
	open := p.expect("{")
	b := &blockStmt{pos: open.pos}
	for !p.is("}") {
		if p.peek().kind == tokEOF {
			p.fail(diag.SynUnclosedBrace, open.pos, "expected '}' to match this '{'")
		}
		if s := p.stmt(); s != nil {
			b.stmts = append(b.stmts, s)
		}
	}
	p.next()
	return b
}

// body parses the statement after if, else or while as a block.
func (p *parser) body() *blockStmt {
	if p.is("{") {
		return p.block()
	}
	pos := p.peek().pos
	b := &blockStmt{pos: pos}
	if s := p.stmt(); s != nil {
		b.stmts = append(b.stmts, s)
	}
	return b
}

func (p *parser) stmt() stmt {
	tok := p.peek()
	switch {
	case p.is("{"):
		return p.block()
	case p.is(";"):
		p.next()
		return nil
	case p.is("if"):
		return p.ifStmt()
	case p.is("while"):
		p.next()
		p.expect("(")
		cond := p.expr()
		p.expect(")")
		return &whileStmt{pos: tok.pos, cond: cond, body: p.body()}
	case p.is("for"), p.is("do"):
		p.fail(diag.SemaUnsupported, tok.pos, "'%s' loops are not supported; use while", tok.text)
	case p.is("break"):
		p.next()
		p.expect(";")
		return &breakStmt{pos: tok.pos}
	case p.is("continue"):
		p.next()
		p.expect(";")
		return &continueStmt{pos: tok.pos}
	case p.is("return"):
		p.next()
		ret := &returnStmt{pos: tok.pos}
		if !p.is(";") {
			ret.x = p.expr()
		}
		p.expect(";")
		return ret
	case p.startsType(0):
		return p.declStmt()
	}
	x := p.expr()
	p.expect(";")
	return &exprStmt{x: x}
}

func (p *parser) ifStmt() stmt {
	tok := p.expect("if")
	p.expect("(")
	cond := p.expr()
	p.expect(")")
	s := &ifStmt{pos: tok.pos, cond: cond, then: p.body()}
	if p.accept("else") {
		if p.is("if") {
			s.els = p.ifStmt()
		} else {
			s.els = p.body()
		}
	}
	return s
}

func (p *parser) declStmt() stmt {
	dt := p.typeSpec()
	id := p.ident()
	d := &declStmt{decl: &varDecl{name: id.text, pos: id.pos, typ: dt}}
	if p.accept("=") {
		d.init = p.assign()
	}
	p.expect(";")
	return d
}

func (p *parser) expr() expr {
	return p.assign()
}

var assignOps = map[string]string{
	"=": "", "+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
	"&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>",
}

func (p *parser) assign() expr {
	lhs := p.conditional()
	tok := p.peek()
	if tok.kind != tokPunct {
		return lhs
	}
	op, ok := assignOps[tok.text]
	if !ok {
		return lhs
	}
	p.next()
	rhs := p.assign()
	return &assignExpr{exprBase: exprBase{pos: tok.pos}, op: op, dst: lhs, src: rhs}
}

func (p *parser) conditional() expr {
	cond := p.binary(1)
	tok := p.peek()
	if !p.accept("?") {
		return cond
	}
	x := p.expr()
	p.expect(":")
	y := p.conditional()
	return &condExpr{exprBase: exprBase{pos: tok.pos}, cond: cond, x: x, y: y}
}

var binaryPrec = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// binary is a precedence climber over left-associative operators.
func (p *parser) binary(min int) expr {
	x := p.unary()
	for {
		tok := p.peek()
		prec, ok := binaryPrec[tok.text]
		if tok.kind != tokPunct || !ok || prec < min {
			return x
		}
		p.next()
		y := p.binary(prec + 1)
		x = &binaryExpr{exprBase: exprBase{pos: tok.pos}, op: tok.text, x: x, y: y}
	}
}

func (p *parser) unary() expr {
	tok := p.peek()
	if tok.kind == tokPunct {
		switch tok.text {
		case "-", "+", "!", "~", "++", "--", "*", "&":
			p.next()
			return &unaryExpr{exprBase: exprBase{pos: tok.pos}, op: tok.text, x: p.unary()}
		case "(":
			if p.startsType(1) {
				return p.castOrVector()
			}
		}
	}
	return p.postfix(p.primary())
}

// castOrVector parses (T)x and the vector literal (T)(a, b, ...).
func (p *parser) castOrVector() expr {
	open := p.expect("(")
	dt := p.typeSpec()
	p.expect(")")
	if dt.IsVector() && p.is("(") {
		p.next()
		v := &vectorExpr{exprBase: exprBase{pos: open.pos, typ: dt}}
		for !p.is(")") {
			if len(v.args) > 0 {
				p.expect(",")
			}
			v.args = append(v.args, p.assign())
		}
		p.expect(")")
		return p.postfix(v)
	}
	return &castExpr{exprBase: exprBase{pos: open.pos, typ: dt}, x: p.unary()}
}

func (p *parser) primary() expr {
	tok := p.peek()
	switch tok.kind {
	case tokIdent:
		if isKeyword(tok.text) {
			p.fail(diag.SynUnexpectedToken, tok.pos, "unexpected %s in expression", describe(tok))
		}
		p.next()
		if p.is("(") {
			p.next()
			call := &callExpr{exprBase: exprBase{pos: tok.pos}, name: tok.text}
			for !p.is(")") {
				if len(call.args) > 0 {
					p.expect(",")
				}
				call.args = append(call.args, p.assign())
			}
			p.expect(")")
			return call
		}
		return &identExpr{exprBase: exprBase{pos: tok.pos}, name: tok.text, slot: -1}
	case tokInt:
		p.next()
		return p.intLiteral(tok)
	case tokFloat:
		p.next()
		return p.floatLiteral(tok)
	case tokPunct:
		if tok.text == "(" {
			p.next()
			x := p.expr()
			p.expect(")")
			return x
		}
	}
	p.fail(diag.SynUnexpectedToken, tok.pos, "expected expression, found %s", describe(tok))
	return nil
}

func (p *parser) postfix(x expr) expr {
	for {
		tok := p.peek()
		switch {
		case p.is("["):
			p.next()
			idx := p.expr()
			p.expect("]")
			x = &indexExpr{exprBase: exprBase{pos: tok.pos}, x: x, index: idx}
		case p.is("."):
			p.next()
			sel := p.ident()
			x = &memberExpr{exprBase: exprBase{pos: sel.pos}, x: x, sel: sel.text}
		case p.is("++"), p.is("--"):
			p.next()
			x = &unaryExpr{exprBase: exprBase{pos: tok.pos}, op: tok.text, x: x, postfix: true}
		default:
			return x
		}
	}
}

// intLiteral types a literal the way C does: int, then long, then ulong for
// plain literals; uint then ulong with a u suffix.
func (p *parser) intLiteral(tok token) expr {
	text := strings.TrimRight(tok.text, "uUlL")
	suffix := strings.ToLower(tok.text[len(text):])
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		p.fail(diag.LexBadNumber, tok.pos, "integer literal %s is too large", tok.text)
	}
	unsigned := strings.Contains(suffix, "u")
	long := strings.Contains(suffix, "l")
	var prim types.Primitive
	switch {
	case unsigned && !long && v <= math.MaxUint32:
		prim = types.UInt
	case unsigned:
		prim = types.ULong
	case !long && v <= math.MaxInt32:
		prim = types.Int
	case v <= math.MaxInt64:
		prim = types.Long
	default:
		prim = types.ULong
	}
	return &intLit{exprBase: exprBase{pos: tok.pos, typ: types.Scalar(prim)}, bits: v}
}

func (p *parser) floatLiteral(tok token) expr {
	text := strings.TrimRight(tok.text, "fF")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		p.fail(diag.LexBadNumber, tok.pos, "malformed floating literal %s", tok.text)
	}
	dt := types.Scalar(types.Double)
	if len(text) != len(tok.text) {
		dt = types.Scalar(types.Float)
		v = float64(float32(v))
	}
	return &floatLit{exprBase: exprBase{pos: tok.pos, typ: dt}, val: v}
}
