package host

import (
	"fmt"

	"spark/internal/diag"
	"spark/internal/types"
)

// invalidType marks an expression that already produced a diagnostic so
// the error does not cascade. The parser never yields void*, which keeps the
// marker distinct from any real type.
var invalidType = types.PointerTo(types.VoidType)

var (
	intType   = types.Scalar(types.Int)
	uintType  = types.Scalar(types.UInt)
	ulongType = types.Scalar(types.ULong)
	floatType = types.Scalar(types.Float)
)

type checker struct {
	r      diag.Reporter
	prog   *program
	fn     *funcDecl
	scopes []map[string]*varDecl
	loops  int
}

// check resolves names and types in place. It reports every problem it
// finds and returns false if any was an error.
func check(prog *program, r diag.Reporter) bool {
	bag := diag.NewBag(0)
	c := &checker{r: diag.NewDedupReporter(diag.BagReporter{Bag: bag}), prog: prog}
	kernels := 0
	for _, fn := range prog.funcs {
		if prev, dup := prog.byName[fn.name]; dup {
			c.errorf(diag.SemaRedeclared, fn.pos, "redefinition of '%s' (previous definition at %d:%d)", fn.name, prev.pos.Line, prev.pos.Col)
		} else if _, builtin := builtins[fn.name]; builtin {
			c.errorf(diag.SemaRedeclared, fn.pos, "'%s' redefines a builtin function", fn.name)
		}
		if fn.kernel {
			kernels++
			if !fn.ret.IsVoid() {
				c.errorf(diag.SemaTypeMismatch, fn.pos, "kernel function '%s' must return void", fn.name)
			}
		}
		c.function(fn)
		// register after the body so a function cannot call itself or a later one
		if _, dup := prog.byName[fn.name]; !dup {
			prog.byName[fn.name] = fn
		}
	}
	if kernels == 0 {
		c.errorf(diag.SemaNoKernel, diag.Pos{}, "program contains no __kernel function")
	}
	for _, d := range bag.Items() {
		r.Report(d)
	}
	return !bag.HasErrors()
}

func (c *checker) errorf(code diag.Code, pos diag.Pos, format string, args ...any) {
	diag.Errorf(c.r, code, pos, fmt.Sprintf(format, args...))
}

func (c *checker) push() { c.scopes = append(c.scopes, map[string]*varDecl{}) }

func (c *checker) pop() { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *checker) declare(v *varDecl) {
	top := c.scopes[len(c.scopes)-1]
	if prev, dup := top[v.name]; dup {
		c.errorf(diag.SemaRedeclared, v.pos, "redefinition of '%s' (previous definition at %d:%d)", v.name, prev.pos.Line, prev.pos.Col)
	}
	if v.typ.IsVoid() {
		c.errorf(diag.SemaTypeMismatch, v.pos, "variable '%s' has type void", v.name)
	}
	v.slot = c.fn.slots
	c.fn.slots++
	top[v.name] = v
}

func (c *checker) lookup(name string) *varDecl {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func (c *checker) function(fn *funcDecl) {
	c.fn = fn
	c.scopes = nil
	c.push()
	for _, p := range fn.params {
		c.declare(p)
	}
	// the body shares the parameter scope, as in C
	for _, s := range fn.body.stmts {
		c.stmt(s)
	}
	c.pop()
	c.fn = nil
}

func (c *checker) stmt(s stmt) {
	switch s := s.(type) {
	case *blockStmt:
		c.push()
		for _, inner := range s.stmts {
			c.stmt(inner)
		}
		c.pop()
	case *declStmt:
		if s.init != nil {
			src := c.expr(s.init)
			c.convertible(s.decl.typ, src, s.init.position(), "initializing")
		}
		c.declare(s.decl)
	case *exprStmt:
		c.expr(s.x)
	case *ifStmt:
		c.condition(s.cond)
		c.stmt(s.then)
		if s.els != nil {
			c.stmt(s.els)
		}
	case *whileStmt:
		c.condition(s.cond)
		c.loops++
		c.stmt(s.body)
		c.loops--
	case *breakStmt:
		if c.loops == 0 {
			c.errorf(diag.SemaBreakOutsideLoop, s.pos, "'break' statement not in loop statement")
		}
	case *continueStmt:
		if c.loops == 0 {
			c.errorf(diag.SemaBreakOutsideLoop, s.pos, "'continue' statement not in loop statement")
		}
	case *returnStmt:
		switch {
		case s.x == nil && !c.fn.ret.IsVoid():
			c.errorf(diag.SemaMissingReturn, s.pos, "non-void function '%s' should return a value", c.fn.name)
		case s.x != nil && c.fn.ret.IsVoid():
			c.expr(s.x)
			c.errorf(diag.SemaTypeMismatch, s.pos, "void function '%s' should not return a value", c.fn.name)
		case s.x != nil:
			c.convertible(c.fn.ret, c.expr(s.x), s.x.position(), "returning")
		}
	default:
		panic(fmt.Sprintf("check: unknown statement %T", s))
	}
}

func (c *checker) condition(x expr) {
	dt := c.expr(x)
	if dt != invalidType && !dt.IsScalar() && !dt.Pointer {
		c.errorf(diag.SemaTypeMismatch, x.position(), "statement requires expression of scalar type ('%s' invalid)", dt)
	}
}

// convertible reports an error unless a value of type src may be stored
// into dst implicitly.
func (c *checker) convertible(dst, src types.Datatype, pos diag.Pos, what string) bool {
	if src == invalidType || dst == invalidType {
		return false
	}
	ok := false
	switch {
	case dst == src:
		ok = true
	case dst.Pointer || src.Pointer, dst.IsVoid() || src.IsVoid():
	case dst.IsScalar() && src.IsScalar():
		ok = true
	case dst.IsVector() && src.IsScalar():
		ok = true
	}
	if !ok {
		c.errorf(diag.SemaTypeMismatch, pos, "%s '%s' with an expression of incompatible type '%s'", what, dst, src)
	}
	return ok
}

func isLValue(x expr) bool {
	switch x := x.(type) {
	case *identExpr:
		return !x.special
	case *indexExpr:
		return true
	case *unaryExpr:
		return x.op == "*" && !x.postfix
	case *memberExpr:
		return isLValue(x.x)
	default:
		return false
	}
}

func (c *checker) expr(x expr) types.Datatype {
	dt := c.exprType(x)
	switch x := x.(type) {
	case *identExpr:
		x.typ = dt
	case *intLit, *floatLit, *castExpr, *vectorExpr:
		// self-typed by the parser
	case *unaryExpr:
		x.typ = dt
	case *binaryExpr:
		x.typ = dt
	case *assignExpr:
		x.typ = dt
	case *indexExpr:
		x.typ = dt
	case *callExpr:
		x.typ = dt
	case *memberExpr:
		x.typ = dt
	case *condExpr:
		x.typ = dt
	}
	return dt
}

func (c *checker) exprType(x expr) types.Datatype {
	switch x := x.(type) {
	case *identExpr:
		if v := c.lookup(x.name); v != nil {
			x.slot = v.slot
			return v.typ
		}
		switch x.name {
		case "NAN", "INFINITY", "MAXFLOAT":
			x.special = true
			return floatType
		}
		c.errorf(diag.SemaUndeclared, x.pos, "use of undeclared identifier '%s'", x.name)
		return invalidType
	case *intLit:
		return x.typ
	case *floatLit:
		return x.typ
	case *unaryExpr:
		return c.unary(x)
	case *binaryExpr:
		return c.binary(x)
	case *assignExpr:
		return c.assign(x)
	case *indexExpr:
		base, idx := c.expr(x.x), c.expr(x.index)
		if base == invalidType || idx == invalidType {
			return invalidType
		}
		if !base.Pointer {
			c.errorf(diag.SemaNotIndexable, x.pos, "subscripted value of type '%s' is not a pointer", base)
			return invalidType
		}
		if !idx.IsScalar() || !idx.Primitive.IsInteger() {
			c.errorf(diag.SemaTypeMismatch, x.index.position(), "array subscript of type '%s' is not an integer", idx)
			return invalidType
		}
		return base.Elem()
	case *callExpr:
		return c.call(x)
	case *memberExpr:
		base := c.expr(x.x)
		if base == invalidType {
			return invalidType
		}
		if base.Pointer {
			c.errorf(diag.SemaBadSwizzle, x.pos, "member reference base type '%s' is not a vector", base)
			return invalidType
		}
		prop, err := types.ParseProperty(x.sel)
		if err != nil {
			c.errorf(diag.SemaBadSwizzle, x.pos, "illegal vector component name '%s'", x.sel)
			return invalidType
		}
		comps, err := prop.Access(base.Components)
		if err != nil {
			c.errorf(diag.SemaBadSwizzle, x.pos, "vector component access exceeds type '%s': %v", base, err)
			return invalidType
		}
		x.lanes = prop.Lanes(base.Lanes())
		return types.Vector(base.Primitive, comps)
	case *castExpr:
		src := c.expr(x.x)
		if src == invalidType {
			return invalidType
		}
		ok := false
		switch {
		case x.typ.IsVoid() || src.IsVoid():
		case x.typ.Pointer && src.Pointer:
			ok = true
		case x.typ.Pointer || src.Pointer:
		case src.IsScalar() || src == x.typ:
			ok = true
		}
		if !ok {
			c.errorf(diag.SemaTypeMismatch, x.pos, "invalid conversion from '%s' to '%s'", src, x.typ)
			return invalidType
		}
		return x.typ
	case *vectorExpr:
		lanes := 0
		for _, a := range x.args {
			dt := c.expr(a)
			if dt == invalidType {
				return invalidType
			}
			if dt.Pointer || dt.IsVoid() {
				c.errorf(diag.SemaTypeMismatch, a.position(), "vector literal element of type '%s'", dt)
				return invalidType
			}
			lanes += dt.Lanes()
		}
		if lanes != x.typ.Lanes() && !(len(x.args) == 1 && lanes == 1) {
			c.errorf(diag.SemaTypeMismatch, x.pos, "'%s' literal has %d elements, want %d", x.typ, lanes, x.typ.Lanes())
			return invalidType
		}
		return x.typ
	case *condExpr:
		c.condition(x.cond)
		a, b := c.expr(x.x), c.expr(x.y)
		if a == invalidType || b == invalidType {
			return invalidType
		}
		if a == b {
			return a
		}
		if a.IsScalar() && b.IsScalar() {
			return types.Scalar(types.CommonScalar(a.Primitive, b.Primitive))
		}
		c.errorf(diag.SemaTypeMismatch, x.pos, "incompatible operand types ('%s' and '%s')", a, b)
		return invalidType
	default:
		panic(fmt.Sprintf("check: unknown expression %T", x))
	}
}

func (c *checker) unary(x *unaryExpr) types.Datatype {
	dt := c.expr(x.x)
	if dt == invalidType {
		return invalidType
	}
	bad := func() types.Datatype {
		c.errorf(diag.SemaTypeMismatch, x.pos, "invalid argument type '%s' to unary '%s'", dt, x.op)
		return invalidType
	}
	switch x.op {
	case "-", "+":
		if dt.Pointer || dt.IsVoid() {
			return bad()
		}
		x.operand = dt
		if dt.IsScalar() {
			x.operand = types.Scalar(types.Promote(dt.Primitive))
		}
		return x.operand
	case "~":
		if dt.Pointer || !dt.Primitive.IsInteger() {
			return bad()
		}
		x.operand = dt
		if dt.IsScalar() {
			x.operand = types.Scalar(types.Promote(dt.Primitive))
		}
		return x.operand
	case "!":
		if !dt.IsScalar() && !dt.Pointer {
			return bad()
		}
		x.operand = dt
		return intType
	case "++", "--":
		if !isLValue(x.x) {
			c.errorf(diag.SemaNotAssignable, x.pos, "expression is not assignable")
			return invalidType
		}
		if !dt.IsScalar() && !dt.Pointer {
			return bad()
		}
		x.operand = dt
		return dt
	case "*":
		if !dt.Pointer {
			c.errorf(diag.SemaTypeMismatch, x.pos, "indirection requires pointer operand ('%s' invalid)", dt)
			return invalidType
		}
		return dt.Elem()
	case "&":
		if !isLValue(x.x) {
			c.errorf(diag.SemaNotAssignable, x.pos, "cannot take the address of an rvalue of type '%s'", dt)
			return invalidType
		}
		if dt.Pointer {
			c.errorf(diag.SemaUnsupported, x.pos, "pointers to pointers are not supported")
			return invalidType
		}
		if _, lane := x.x.(*memberExpr); lane {
			c.errorf(diag.SemaUnsupported, x.pos, "address of vector element requested")
			return invalidType
		}
		return types.PointerTo(dt)
	default:
		panic("check: unknown unary operator " + x.op)
	}
}

// binaryType mirrors the operator typing the builder applies, reporting
// mismatches as diagnostics.
func (c *checker) binaryType(op string, pos diag.Pos, l, r types.Datatype) (result, operand types.Datatype) {
	if l == invalidType || r == invalidType {
		return invalidType, invalidType
	}
	bad := func() (types.Datatype, types.Datatype) {
		c.errorf(diag.SemaTypeMismatch, pos, "invalid operands to binary expression ('%s' and '%s')", l, r)
		return invalidType, invalidType
	}
	if l.IsVoid() || r.IsVoid() {
		return bad()
	}
	if l.Pointer || r.Pointer {
		switch {
		case op == "+" && l.Pointer && r.IsScalar() && r.Primitive.IsInteger():
			return l, l
		case op == "+" && r.Pointer && l.IsScalar() && l.Primitive.IsInteger():
			return r, r
		case op == "-" && l.Pointer && r.IsScalar() && r.Primitive.IsInteger():
			return l, l
		case (op == "==" || op == "!=") && l == r:
			return intType, l
		case (op == "&&" || op == "||") && (l.IsScalar() || l.Pointer) && (r.IsScalar() || r.Pointer):
			return intType, invalidType
		}
		return bad()
	}
	switch op {
	case "&&", "||":
		if !l.IsScalar() || !r.IsScalar() {
			return bad()
		}
		return intType, invalidType
	case "%", "&", "|", "^", "<<", ">>":
		if !l.Primitive.IsInteger() || !r.Primitive.IsInteger() {
			return bad()
		}
	}
	shift := op == "<<" || op == ">>"
	switch {
	case l.IsVector() && r.IsVector():
		if l != r {
			return bad()
		}
		operand = l
	case l.IsVector():
		operand = l
	case r.IsVector():
		if shift {
			return bad()
		}
		operand = r
	case shift:
		operand = types.Scalar(types.Promote(l.Primitive))
	default:
		operand = types.Scalar(types.CommonScalar(l.Primitive, r.Primitive))
	}
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return types.ComparisonResult(operand), operand
	}
	return operand, operand
}

func (c *checker) binary(x *binaryExpr) types.Datatype {
	l, r := c.expr(x.x), c.expr(x.y)
	result, operand := c.binaryType(x.op, x.pos, l, r)
	x.operand = operand
	return result
}

func (c *checker) assign(x *assignExpr) types.Datatype {
	dst, src := c.expr(x.dst), c.expr(x.src)
	if dst == invalidType || src == invalidType {
		return invalidType
	}
	if !isLValue(x.dst) {
		c.errorf(diag.SemaNotAssignable, x.pos, "expression is not assignable")
		return invalidType
	}
	if m, ok := x.dst.(*memberExpr); ok && hasDuplicateLane(m.lanes) {
		c.errorf(diag.SemaBadSwizzle, x.pos, "vector is not assignable (contains duplicate components)")
		return invalidType
	}
	if x.op == "" {
		if !c.convertible(dst, src, x.src.position(), "assigning to") {
			return invalidType
		}
		return dst
	}
	result, operand := c.binaryType(x.op, x.pos, dst, src)
	if result == invalidType {
		return invalidType
	}
	x.operand = operand
	if !c.convertible(dst, result, x.pos, "assigning to") {
		return invalidType
	}
	return dst
}

func hasDuplicateLane(lanes []int) bool {
	seen := map[int]bool{}
	for _, l := range lanes {
		if seen[l] {
			return true
		}
		seen[l] = true
	}
	return false
}

func (c *checker) call(x *callExpr) types.Datatype {
	args := make([]types.Datatype, len(x.args))
	for i, a := range x.args {
		args[i] = c.expr(a)
		if args[i] == invalidType {
			return invalidType
		}
	}
	if b, ok := builtins[x.name]; ok {
		if len(args) != b.arity {
			c.argCount(x, b.arity)
			return invalidType
		}
		result, conv, err := b.typing(args)
		if err != nil {
			c.errorf(diag.SemaTypeMismatch, x.pos, "no matching function for call to '%s': %v", x.name, err)
			return invalidType
		}
		x.argTypes = conv
		x.builtin = &b
		return result
	}
	fn, ok := c.prog.byName[x.name]
	if !ok {
		if c.fn != nil && c.fn.name == x.name {
			c.errorf(diag.SemaUnsupported, x.pos, "recursive call to '%s' is not supported", x.name)
		} else {
			c.errorf(diag.SemaUnknownFunction, x.pos, "implicit declaration of function '%s' is invalid in OpenCL", x.name)
		}
		return invalidType
	}
	if fn.kernel {
		c.errorf(diag.SemaUnsupported, x.pos, "calling kernel function '%s' from device code is not supported", x.name)
		return invalidType
	}
	if len(args) != len(fn.params) {
		c.argCount(x, len(fn.params))
		return invalidType
	}
	x.callee = fn
	x.argTypes = make([]types.Datatype, len(args))
	for i, p := range fn.params {
		x.argTypes[i] = p.typ
		if !c.convertible(p.typ, args[i], x.args[i].position(), "passing to parameter of type") {
			return invalidType
		}
	}
	return fn.ret
}

func (c *checker) argCount(x *callExpr, want int) {
	which := "few"
	if len(x.args) > want {
		which = "many"
	}
	c.errorf(diag.SemaArgCount, x.pos, "too %s arguments to function call, expected %d, have %d", which, want, len(x.args))
}
