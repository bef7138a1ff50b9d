package builder

import (
	"fmt"

	"spark/internal/ast"
	"spark/internal/fault"
	"spark/internal/types"
)

type ParamKind uint8

const (
	ParamScalar ParamKind = iota
	ParamBuffer1D
	ParamBuffer2D
)

func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "scalar"
	case ParamBuffer1D:
		return "buffer1d"
	case ParamBuffer2D:
		return "buffer2d"
	default:
		return fmt.Sprintf("ParamKind(%d)", k)
	}
}

// Param declares one logical parameter. Buffers expand into a pointer plus
// their extents; the runtime binds host arguments in exactly the same order.
type Param struct {
	Kind ParamKind
	// Type is the value type of a scalar parameter or the element type of a buffer.
	Type types.Datatype
}

// ExtentType is the type of the element count, width and height that travel
// next to a buffer pointer.
var ExtentType = types.Scalar(types.Int)

func ScalarParam(dt types.Datatype) Param {
	return Param{Kind: ParamScalar, Type: dt}
}

func Buffer1DParam(elem types.Primitive) Param {
	return Param{Kind: ParamBuffer1D, Type: types.Scalar(elem)}
}

func Buffer2DParam(elem types.Primitive) Param {
	return Param{Kind: ParamBuffer2D, Type: types.Scalar(elem)}
}

// Native lists the kernel-level parameters p expands to: one for a scalar,
// (pointer, count) for a 1D buffer and (pointer, width, height) for a 2D buffer.
func (p Param) Native() []types.Datatype {
	switch p.Kind {
	case ParamScalar:
		return []types.Datatype{p.Type}
	case ParamBuffer1D:
		return []types.Datatype{types.PointerTo(p.Type), ExtentType}
	case ParamBuffer2D:
		return []types.Datatype{types.PointerTo(p.Type), ExtentType, ExtentType}
	default:
		panic(fault.Misusef("param", "unknown parameter kind %d", p.Kind))
	}
}

func (p Param) String() string {
	if p.Kind == ParamScalar {
		return p.Type.String()
	}
	return fmt.Sprintf("%s<%s>", p.Kind, p.Type)
}

// Expand flattens a parameter list into native parameter types.
func Expand(params []Param) []types.Datatype {
	var out []types.Datatype
	for _, p := range params {
		out = append(out, p.Native()...)
	}
	return out
}

// Argument is anything that can be passed to a function call: a Value or a
// buffer parameter received by the caller.
type Argument interface {
	operands() []Value
}

// Buffer1D is a one-dimensional buffer parameter inside a function body.
type Buffer1D struct {
	Data  Value
	Count Value
}

func (b Buffer1D) operands() []Value { return []Value{b.Data, b.Count} }

// At addresses element i.
func (b Buffer1D) At(i Value) Value { return b.Data.Index(i) }

// Buffer2D is a row-major two-dimensional buffer parameter.
type Buffer2D struct {
	Data   Value
	Width  Value
	Height Value
}

func (b Buffer2D) operands() []Value { return []Value{b.Data, b.Width, b.Height} }

// At addresses element (x, y) as data[y*width + x].
func (b Buffer2D) At(x, y Value) Value {
	return b.Data.Index(y.Mul(b.Width).Add(x))
}

// Args gives a function body access to its parameters.
type Args struct {
	params []Param
	values [][]Value
}

func (a Args) Len() int { return len(a.params) }

func (a Args) Param(i int) Param { return a.params[i] }

func (a Args) get(i int, kind ParamKind) []Value {
	fault.Assert(i >= 0 && i < len(a.params), "args", "parameter %d out of range (have %d)", i, len(a.params))
	fault.Assert(a.params[i].Kind == kind, "args", "parameter %d is a %s, not a %s", i, a.params[i].Kind, kind)
	return a.values[i]
}

func (a Args) Scalar(i int) Value {
	return a.get(i, ParamScalar)[0]
}

func (a Args) Buffer1D(i int) Buffer1D {
	v := a.get(i, ParamBuffer1D)
	return Buffer1D{Data: v[0], Count: v[1]}
}

func (a Args) Buffer2D(i int) Buffer2D {
	v := a.get(i, ParamBuffer2D)
	return Buffer2D{Data: v[0], Width: v[1], Height: v[2]}
}

// Function is a finished function definition.
type Function struct {
	s      *Session
	node   ast.NodeID
	id     ast.SymbolID
	ret    types.Datatype
	params []Param
	entry  bool
}

func (f *Function) ID() ast.SymbolID           { return f.id }
func (f *Function) Node() ast.NodeID           { return f.node }
func (f *Function) ReturnType() types.Datatype { return f.ret }
func (f *Function) Params() []Param            { return f.params }
func (f *Function) IsEntryPoint() bool         { return f.entry }

// Function defines a function at program level. The parameter list is built
// first, then body runs with the function's block as the current scope, and
// the finished function is appended to the program root.
func (s *Session) Function(ret types.Datatype, params []Param, body func(Args)) *Function {
	s.mustBeOpen("function")
	fault.Assert(s.Peek() == s.root, "function", "functions must be defined at program level")
	fault.Assert(ret.Validate() == nil, "function", "invalid return type %v", ret)
	for i, p := range params {
		fault.Assert(p.Type.Validate() == nil && !p.Type.IsVoid() && !p.Type.Pointer,
			"function", "parameter %d has invalid type %s", i, p.Type)
	}

	fn := &Function{s: s, id: s.NextSymbol(), ret: ret, params: append([]Param(nil), params...)}
	fn.node = s.tree.CreateFunction(fn.id, ret)
	args := Args{params: fn.params}

	s.within(fn.node, func() {
		plist := s.tree.CreateControl(ast.ControlParameterList)
		s.tree.AddChild(fn.node, plist)
		// Parameters are visible in the body block only.
		blk := s.tree.CreateControl(ast.ControlScopeBlock)
		s.within(plist, func() {
			for _, p := range fn.params {
				vals := make([]Value, 0, 3)
				for _, dt := range p.Native() {
					sym := s.tree.CreateSymbol(s.NextSymbol(), dt)
					s.attach(sym)
					vals = append(vals, s.wrapIn(sym, blk))
				}
				args.values = append(args.values, vals)
			}
		})

		s.tree.AddChild(fn.node, blk)
		s.fn = fn
		defer func() { s.fn = nil }()
		s.within(blk, func() {
			if body != nil {
				body(args)
			}
		})
	})

	s.tree.AddChild(s.root, fn.node)
	s.functions = append(s.functions, fn)
	return fn
}

// SetEntryPoint marks f as the kernel the runtime dispatches.
func (f *Function) SetEntryPoint() {
	fault.Assert(f.ret.IsVoid(), "entry point", "kernel entry must return void, have %s", f.ret)
	for _, p := range f.params {
		fault.Assert(p.Type.IsScalar() || p.Kind == ParamScalar,
			"entry point", "buffer parameter %s must have scalar elements", p)
	}
	f.s.tree.MarkEntry(f.node)
	f.entry = true
}

// Kernel defines a void function and marks it as the entry point.
func (s *Session) Kernel(params []Param, body func(Args)) *Function {
	fn := s.Function(types.VoidType, params, body)
	fn.SetEntryPoint()
	return fn
}

// Call invokes f from another function body. Buffer arguments expand into
// their pointer and extents, matching the callee's parameter list.
func (f *Function) Call(args ...Argument) Value {
	s := f.s
	s.inBody("call")
	fault.Assert(s.fn != f, "call", "function %d cannot call itself", f.id)
	var ops []Value
	for _, a := range args {
		ops = append(ops, a.operands()...)
	}
	native := Expand(f.params)
	fault.Assert(len(ops) == len(native), "call", "function %d takes %d native arguments, got %d", f.id, len(native), len(ops))
	for i := range ops {
		fault.Assert(assignable(native[i], ops[i].typ), "call", "argument %d: cannot pass %s as %s", i, ops[i].typ, native[i])
	}
	node := s.tree.CreateOperator(ast.OpCall, f.ret)
	s.tree.AddChild(node, s.tree.CreateFunction(f.id, f.ret))
	for _, o := range ops {
		s.tree.AddChild(node, s.operand("call", o))
	}
	return s.wrapIn(node, s.innermost(ops...))
}
