package builder

import (
	"spark/internal/ast"
	"spark/internal/fault"
	"spark/internal/types"
)

// Value is a handle on an expression node. Using a value as an operand
// attaches its node to the new parent; a value that is already attached
// somewhere is deep-copied first, so handles can be reused freely.
//
// scope is the innermost block declaring a variable the expression reads.
// Once that block closes the value can no longer be used.
type Value struct {
	s     *Session
	gen   uint32
	node  ast.NodeID
	typ   types.Datatype
	scope ast.NodeID
}

func (v Value) Node() ast.NodeID     { return v.node }
func (v Value) Type() types.Datatype { return v.typ }
func (v Value) IsValid() bool        { return v.s != nil && v.node.IsValid() }
func (v Value) Session() *Session    { return v.s }
func (v Value) operands() []Value    { return []Value{v} }

func (s *Session) wrap(n ast.NodeID) Value {
	return Value{s: s, gen: s.gen, node: n, typ: s.tree.TypeOf(n)}
}

// wrapIn is wrap for a node that reads variables of scope.
func (s *Session) wrapIn(n, scope ast.NodeID) Value {
	v := s.wrap(n)
	v.scope = scope
	return v
}

// scopeDepth is the stack index of id, or -1 when id is not open.
func (s *Session) scopeDepth(id ast.NodeID) int {
	if !id.IsValid() {
		return -1
	}
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i] == id {
			return i
		}
	}
	return -1
}

// innermost picks the deepest open scope among the operands' scopes.
func (s *Session) innermost(vals ...Value) ast.NodeID {
	scope, depth := ast.NoNodeID, -1
	for _, v := range vals {
		if d := s.scopeDepth(v.scope); d > depth {
			scope, depth = v.scope, d
		}
	}
	return scope
}

// operand returns a node for v that may be attached under a new parent.
func (s *Session) operand(op string, v Value) ast.NodeID {
	fault.Assert(v.IsValid(), op, "invalid value handle")
	fault.Assert(v.s == s, op, "value belongs to another session")
	fault.Assert(v.gen == s.gen && s.open, op, "value handle outlived its program")
	fault.Assert(!v.scope.IsValid() || s.scopeDepth(v.scope) >= 0,
		op, "value refers to a variable whose block has closed")
	n := s.tree.MustGet(v.node)
	if n.Attached {
		return s.tree.Clone(v.node)
	}
	return v.node
}

func (v Value) session(op string) *Session {
	fault.Assert(v.IsValid(), op, "invalid value handle")
	return v.s
}

// isLValue reports whether node names a storage location.
func (s *Session) isLValue(node ast.NodeID) bool {
	switch s.tree.Kind(node) {
	case ast.NodeSymbol:
		return true
	case ast.NodeOperator:
		data, _ := s.tree.Operator(node)
		switch data.Op {
		case ast.OpIndex, ast.OpDereference:
			return true
		case ast.OpProperty:
			return s.isLValue(s.tree.Children(node)[0])
		default:
			return false
		}
	case ast.NodeControl, ast.NodeFunction, ast.NodeConstant, ast.NodeProperty,
		ast.NodeVector, ast.NodeComment, ast.NodeBuiltin:
		return false
	default:
		return false
	}
}

func (s *Session) newOperator(op ast.Op, dt types.Datatype, operands ...Value) Value {
	node := s.tree.CreateOperator(op, dt)
	for _, o := range operands {
		s.tree.AddChild(node, s.operand(op.String(), o))
	}
	return s.wrapIn(node, s.innermost(operands...))
}

func (v Value) binary(op ast.Op, r Value) Value {
	s := v.session(op.String())
	dt, err := binaryResult(op, v.typ, r.typ)
	if err != nil {
		panic(fault.Misusef(op.String(), "%v", err))
	}
	return s.newOperator(op, dt, v, r)
}

func (v Value) Add(r Value) Value    { return v.binary(ast.OpAdd, r) }
func (v Value) Sub(r Value) Value    { return v.binary(ast.OpSubtract, r) }
func (v Value) Mul(r Value) Value    { return v.binary(ast.OpMultiply, r) }
func (v Value) Div(r Value) Value    { return v.binary(ast.OpDivide, r) }
func (v Value) Mod(r Value) Value    { return v.binary(ast.OpModulo, r) }
func (v Value) Gt(r Value) Value     { return v.binary(ast.OpGreaterThan, r) }
func (v Value) Lt(r Value) Value     { return v.binary(ast.OpLessThan, r) }
func (v Value) Ge(r Value) Value     { return v.binary(ast.OpGreaterEqual, r) }
func (v Value) Le(r Value) Value     { return v.binary(ast.OpLessEqual, r) }
func (v Value) Ne(r Value) Value     { return v.binary(ast.OpNotEqual, r) }
func (v Value) Eq(r Value) Value     { return v.binary(ast.OpEqual, r) }
func (v Value) And(r Value) Value    { return v.binary(ast.OpLogicalAnd, r) }
func (v Value) Or(r Value) Value     { return v.binary(ast.OpLogicalOr, r) }
func (v Value) BitAnd(r Value) Value { return v.binary(ast.OpBitwiseAnd, r) }
func (v Value) BitOr(r Value) Value  { return v.binary(ast.OpBitwiseOr, r) }
func (v Value) BitXor(r Value) Value { return v.binary(ast.OpBitwiseXor, r) }
func (v Value) Shr(r Value) Value    { return v.binary(ast.OpRightShift, r) }
func (v Value) Shl(r Value) Value    { return v.binary(ast.OpLeftShift, r) }

func (v Value) Neg() Value {
	s := v.session("negate")
	fault.Assert(!v.typ.Pointer && !v.typ.IsVoid(), "negate", "cannot negate %s", v.typ)
	return s.newOperator(ast.OpNegate, v.typ, v)
}

func (v Value) Not() Value {
	s := v.session("logical not")
	fault.Assert(v.typ.IsScalar() || v.typ.Pointer, "logical not", "needs a scalar, have %s", v.typ)
	return s.newOperator(ast.OpLogicalNot, types.Scalar(types.Int), v)
}

func (v Value) BitNot() Value {
	s := v.session("bitwise not")
	fault.Assert(!v.typ.Pointer && v.typ.Primitive.IsInteger(), "bitwise not", "needs an integer, have %s", v.typ)
	return s.newOperator(ast.OpBitwiseNot, v.typ, v)
}

// Addr takes the address of a storage location.
func (v Value) Addr() Value {
	s := v.session("address of")
	fault.Assert(s.isLValue(v.node), "address of", "operand is not a storage location")
	fault.Assert(!v.typ.Pointer, "address of", "pointers to pointers are not supported")
	return s.newOperator(ast.OpAddressOf, types.PointerTo(v.typ), v)
}

func (v Value) Deref() Value {
	s := v.session("dereference")
	fault.Assert(v.typ.Pointer, "dereference", "operand %s is not a pointer", v.typ)
	return s.newOperator(ast.OpDereference, v.typ.Elem(), v)
}

// Index subscripts a pointer: v[i].
func (v Value) Index(i Value) Value {
	s := v.session("index")
	fault.Assert(v.typ.Pointer, "index", "base %s is not a pointer", v.typ)
	fault.Assert(i.typ.IsScalar() && i.typ.Primitive.IsInteger(), "index", "index %s is not an integer scalar", i.typ)
	return s.newOperator(ast.OpIndex, v.typ.Elem(), v, i)
}

func (v Value) step(op ast.Op) Value {
	s := v.session(op.String())
	fault.Assert(s.isLValue(v.node), op.String(), "operand is not a storage location")
	fault.Assert(v.typ.IsScalar() || v.typ.Pointer, op.String(), "needs a scalar or pointer, have %s", v.typ)
	return s.newOperator(op, v.typ, v)
}

// PreInc and friends build the expression only; use Session.Emit, Inc or Dec
// to place the side effect in the program.
func (v Value) PreInc() Value  { return v.step(ast.OpPrefixIncrement) }
func (v Value) PreDec() Value  { return v.step(ast.OpPrefixDecrement) }
func (v Value) PostInc() Value { return v.step(ast.OpPostfixIncrement) }
func (v Value) PostDec() Value { return v.step(ast.OpPostfixDecrement) }

// Prop selects lanes of a vector.
func (v Value) Prop(p types.Property) Value {
	s := v.session("property")
	fault.Assert(!v.typ.Pointer, "property", "cannot select lanes of pointer %s", v.typ)
	comps, err := p.Access(v.typ.Components)
	if err != nil {
		panic(fault.Misusef("property", "%v", err))
	}
	node := s.tree.CreateOperator(ast.OpProperty, types.Vector(v.typ.Primitive, comps))
	s.tree.AddChild(node, s.operand("property", v))
	s.tree.AddChild(node, s.tree.CreateProperty(p))
	return s.wrapIn(node, v.scope)
}

// Swizzle is Prop by name: "x", "zyx", "lo", "odd".
func (v Value) Swizzle(name string) Value {
	p, err := types.ParseProperty(name)
	if err != nil {
		panic(fault.Misusef("property", "%v", err))
	}
	return v.Prop(p)
}

func (v Value) Cast(dt types.Datatype) Value {
	s := v.session("cast")
	fault.Assert(castable(dt, v.typ), "cast", "cannot cast %s to %s", v.typ, dt)
	return s.newOperator(ast.OpCast, dt, v)
}

func (s *Session) constant(dt types.Datatype, bits uint64) Value {
	s.mustBeOpen("constant")
	return s.wrap(s.tree.CreateConstant(dt, bits))
}

// Constant builds an integer-valued literal of primitive p.
func (s *Session) Constant(p types.Primitive, v int64) Value {
	return s.constant(types.Scalar(p), ast.EncodeInt(p, v))
}

// ConstantFloat builds a literal of primitive p from a float.
func (s *Session) ConstantFloat(p types.Primitive, f float64) Value {
	return s.constant(types.Scalar(p), ast.EncodeFloat(p, f))
}

func (s *Session) Int(v int32) Value    { return s.Constant(types.Int, int64(v)) }
func (s *Session) UInt(v uint32) Value  { return s.Constant(types.UInt, int64(v)) }
func (s *Session) Long(v int64) Value   { return s.Constant(types.Long, v) }
func (s *Session) ULong(v uint64) Value { return s.constant(types.Scalar(types.ULong), v) }

func (s *Session) Float(v float32) Value {
	return s.ConstantFloat(types.Float, float64(v))
}

func (s *Session) Double(v float64) Value {
	return s.ConstantFloat(types.Double, v)
}

// Zero is the zero value of dt; vectors become a literal of zero lanes.
func (s *Session) Zero(dt types.Datatype) Value {
	fault.Assert(!dt.Pointer && !dt.IsVoid(), "zero", "no zero literal for %s", dt)
	if dt.IsScalar() {
		return s.Constant(dt.Primitive, 0)
	}
	lanes := make([]Value, dt.Lanes())
	for i := range lanes {
		lanes[i] = s.Constant(dt.Primitive, 0)
	}
	return s.Vector(dt.Primitive, lanes...)
}

// Vector builds a vector literal of primitive p from scalars and smaller
// vectors of the same primitive. The lane total must be 2, 4, 8 or 16.
func (s *Session) Vector(p types.Primitive, parts ...Value) Value {
	s.mustBeOpen("vector")
	lanes := 0
	for _, part := range parts {
		fault.Assert(!part.typ.Pointer && !part.typ.IsVoid(), "vector", "lane value %s is not numeric", part.typ)
		fault.Assert(part.typ.IsScalar() || part.typ.Primitive == p,
			"vector", "vector part %s does not match primitive %s", part.typ, p)
		lanes += part.typ.Lanes()
	}
	comps, ok := types.ComponentsFor(lanes)
	fault.Assert(ok && lanes > 1, "vector", "%d lanes do not form a vector", lanes)
	node := s.tree.CreateVector(types.Vector(p, comps))
	for _, part := range parts {
		s.tree.AddChild(node, s.operand("vector", part))
	}
	return s.wrapIn(node, s.innermost(parts...))
}
