package builder

import (
	"fortio.org/safecast"

	"spark/internal/ast"
	"spark/internal/fault"
	"spark/internal/types"
)

func (s *Session) builtin(b ast.Builtin, dt types.Datatype, args ...Value) Value {
	name := b.String()
	s.mustBeOpen(name)
	fault.Assert(len(args) == b.Info().Arity, name, "takes %d arguments, got %d", b.Info().Arity, len(args))
	node := s.tree.CreateBuiltin(b, dt)
	for _, a := range args {
		s.tree.AddChild(node, s.operand(name, a))
	}
	return s.wrapIn(node, s.innermost(args...))
}

func (s *Session) workItem(b ast.Builtin, dim int) Value {
	fault.Assert(dim >= 0 && dim < 3, b.String(), "dimension %d out of range 0..2", dim)
	d, err := safecast.Conv[uint32](dim)
	if err != nil {
		panic(fault.Misusef(b.String(), "dimension %d: %v", dim, err))
	}
	raw := s.builtin(b, types.Scalar(types.ULong), s.UInt(d))
	return raw.Cast(types.Scalar(types.Int))
}

// GlobalID is the work-item id along dim, as an int.
func (s *Session) GlobalID(dim int) Value { return s.workItem(ast.BuiltinGlobalID, dim) }

// GlobalSize is the number of work-items along dim, as an int.
func (s *Session) GlobalSize(dim int) Value { return s.workItem(ast.BuiltinGlobalSize, dim) }

// Index is the int2 of the first two global ids.
func (s *Session) Index() Value {
	return s.Vector(types.Int, s.GlobalID(0), s.GlobalID(1))
}

// NormalizedIndex maps the first two global ids into [0, 1) as a float2.
func (s *Session) NormalizedIndex() Value {
	f := types.Scalar(types.Float)
	x := s.GlobalID(0).Cast(f).Div(s.GlobalSize(0).Cast(f))
	y := s.GlobalID(1).Cast(f).Div(s.GlobalSize(1).Cast(f))
	return s.Vector(types.Float, x, y)
}

func requireFloat(name string, vs ...Value) {
	for _, v := range vs {
		fault.Assert(!v.typ.Pointer && v.typ.Primitive.IsFloat(), name, "needs a float or double operand, have %s", v.typ)
	}
}

// sameOrScalar checks that every operand either matches want or is a scalar
// of the same primitive, which the device broadcasts.
func sameOrScalar(name string, want types.Datatype, vs ...Value) {
	for _, v := range vs {
		ok := v.typ == want || (v.typ.IsScalar() && v.typ.Primitive == want.Primitive)
		fault.Assert(ok, name, "operand %s does not match %s", v.typ, want)
	}
}

func (s *Session) unaryFloat(b ast.Builtin, x Value) Value {
	requireFloat(b.String(), x)
	return s.builtin(b, x.typ, x)
}

func (s *Session) binaryFloat(b ast.Builtin, x, y Value) Value {
	requireFloat(b.String(), x, y)
	fault.Assert(x.typ == y.typ, b.String(), "operand types differ: %s and %s", x.typ, y.typ)
	return s.builtin(b, x.typ, x, y)
}

func (s *Session) Sqrt(x Value) Value  { return s.unaryFloat(ast.BuiltinSqrt, x) }
func (s *Session) Rsqrt(x Value) Value { return s.unaryFloat(ast.BuiltinRsqrt, x) }
func (s *Session) Sin(x Value) Value   { return s.unaryFloat(ast.BuiltinSin, x) }
func (s *Session) Cos(x Value) Value   { return s.unaryFloat(ast.BuiltinCos, x) }
func (s *Session) Tan(x Value) Value   { return s.unaryFloat(ast.BuiltinTan, x) }
func (s *Session) Exp(x Value) Value   { return s.unaryFloat(ast.BuiltinExp, x) }
func (s *Session) Log(x Value) Value   { return s.unaryFloat(ast.BuiltinLog, x) }
func (s *Session) Fabs(x Value) Value  { return s.unaryFloat(ast.BuiltinFabs, x) }
func (s *Session) Floor(x Value) Value { return s.unaryFloat(ast.BuiltinFloor, x) }
func (s *Session) Ceil(x Value) Value  { return s.unaryFloat(ast.BuiltinCeil, x) }

func (s *Session) Atan2(y, x Value) Value { return s.binaryFloat(ast.BuiltinAtan2, y, x) }
func (s *Session) Pow(x, y Value) Value   { return s.binaryFloat(ast.BuiltinPow, x, y) }
func (s *Session) Hypot(x, y Value) Value { return s.binaryFloat(ast.BuiltinHypot, x, y) }

func (s *Session) Fmin(x, y Value) Value {
	requireFloat("fmin", x, y)
	sameOrScalar("fmin", x.typ, y)
	return s.builtin(ast.BuiltinFmin, x.typ, x, y)
}

func (s *Session) Fmax(x, y Value) Value {
	requireFloat("fmax", x, y)
	sameOrScalar("fmax", x.typ, y)
	return s.builtin(ast.BuiltinFmax, x.typ, x, y)
}

// Mad is a*b + c with whatever precision the device finds fastest.
func (s *Session) Mad(a, b, c Value) Value {
	requireFloat("mad", a, b, c)
	fault.Assert(a.typ == b.typ && b.typ == c.typ, "mad", "operand types differ")
	return s.builtin(ast.BuiltinMad, a.typ, a, b, c)
}

// Mix interpolates linearly: a + (b - a) * t.
func (s *Session) Mix(a, b, t Value) Value {
	requireFloat("mix", a, b, t)
	fault.Assert(a.typ == b.typ, "mix", "operand types differ: %s and %s", a.typ, b.typ)
	sameOrScalar("mix", a.typ, t)
	return s.builtin(ast.BuiltinMix, a.typ, a, b, t)
}

func (s *Session) Clamp(x, lo, hi Value) Value {
	fault.Assert(!x.typ.Pointer && !x.typ.IsVoid(), "clamp", "cannot clamp %s", x.typ)
	sameOrScalar("clamp", x.typ, lo, hi)
	return s.builtin(ast.BuiltinClamp, x.typ, x, lo, hi)
}

// Dot is the scalar product of two float vectors.
func (s *Session) Dot(a, b Value) Value {
	requireFloat("dot", a, b)
	fault.Assert(a.typ == b.typ, "dot", "operand types differ: %s and %s", a.typ, b.typ)
	fault.Assert(a.typ.Lanes() <= 4, "dot", "dot is defined up to 4 lanes, have %s", a.typ)
	return s.builtin(ast.BuiltinDot, types.Scalar(a.typ.Primitive), a, b)
}

func (s *Session) Length(v Value) Value {
	requireFloat("length", v)
	fault.Assert(v.typ.Lanes() <= 4, "length", "length is defined up to 4 lanes, have %s", v.typ)
	return s.builtin(ast.BuiltinLength, types.Scalar(v.typ.Primitive), v)
}

// Abs of an integer yields the unsigned type of the same width.
func (s *Session) Abs(x Value) Value {
	fault.Assert(!x.typ.Pointer && x.typ.Primitive.IsInteger(), "abs", "needs an integer operand, have %s (use Fabs for floats)", x.typ)
	return s.builtin(ast.BuiltinAbs, types.Vector(x.typ.Primitive.Unsigned(), x.typ.Components), x)
}

func (s *Session) Min(x, y Value) Value {
	fault.Assert(!x.typ.Pointer && !x.typ.IsVoid(), "min", "cannot take min of %s", x.typ)
	sameOrScalar("min", x.typ, y)
	return s.builtin(ast.BuiltinMin, x.typ, x, y)
}

func (s *Session) Max(x, y Value) Value {
	fault.Assert(!x.typ.Pointer && !x.typ.IsVoid(), "max", "cannot take max of %s", x.typ)
	sameOrScalar("max", x.typ, y)
	return s.builtin(ast.BuiltinMax, x.typ, x, y)
}
