package host

import (
	"context"
	"fmt"
	"math"

	"spark/internal/device"
	"spark/internal/types"
)

// maxCallDepth bounds helper nesting inside one work item.
const maxCallDepth = 256

// trap aborts a work item. It travels as a panic inside the interpreter and
// becomes a device error at the launch boundary.
type trap struct {
	code int32
	msg  string
}

func trapf(code int32, format string, args ...any) {
	panic(trap{code: code, msg: fmt.Sprintf(format, args...)})
}

type flow uint8

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
)

type frame struct {
	slots []value
	ret   value
}

// item is the state of one work item.
type item struct {
	ctx   context.Context
	dims  int
	gid   [3]uint64
	gsize [3]uint64
	depth int
	steps uint64
}

func (it *item) globalID(dim value) value {
	d := dim.lane[0]
	if d < uint64(it.dims) {
		return scalarValue(types.ULong, it.gid[d])
	}
	return scalarValue(types.ULong, 0)
}

func (it *item) globalSize(dim value) value {
	d := dim.lane[0]
	if d < uint64(it.dims) {
		return scalarValue(types.ULong, it.gsize[d])
	}
	return scalarValue(types.ULong, 1)
}

// run executes fn for this work item and converts a trap into an error.
func (it *item) run(fn *funcDecl, args []value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(trap)
			if !ok {
				panic(r)
			}
			e := device.Fail("enqueue kernel", t.code)
			e.Msg = fmt.Sprintf("work item (%d,%d,%d): %s", it.gid[0], it.gid[1], it.gid[2], t.msg)
			err = e
		}
	}()
	it.call(fn, args)
	return nil
}

func (it *item) call(fn *funcDecl, args []value) value {
	if it.depth >= maxCallDepth {
		trapf(device.OutOfResources, "call depth exceeds %d", maxCallDepth)
	}
	it.depth++
	defer func() { it.depth-- }()
	fr := &frame{slots: make([]value, fn.slots)}
	for i, p := range fn.params {
		fr.slots[p.slot] = convert(args[i], p.typ)
	}
	it.stmts(fr, fn.body.stmts)
	return fr.ret
}

func (it *item) stmts(fr *frame, list []stmt) flow {
	for _, s := range list {
		if f := it.exec(fr, s); f != flowNext {
			return f
		}
	}
	return flowNext
}

func (it *item) exec(fr *frame, s stmt) flow {
	switch s := s.(type) {
	case *blockStmt:
		return it.stmts(fr, s.stmts)
	case *declStmt:
		v := value{typ: s.decl.typ}
		if s.init != nil {
			v = convert(it.eval(fr, s.init), s.decl.typ)
		}
		fr.slots[s.decl.slot] = v
	case *exprStmt:
		it.eval(fr, s.x)
	case *ifStmt:
		if truth(it.eval(fr, s.cond)) {
			return it.exec(fr, s.then)
		}
		if s.els != nil {
			return it.exec(fr, s.els)
		}
	case *whileStmt:
		for truth(it.eval(fr, s.cond)) {
			it.tick()
			switch it.exec(fr, s.body) {
			case flowBreak:
				return flowNext
			case flowReturn:
				return flowReturn
			}
		}
	case *breakStmt:
		return flowBreak
	case *continueStmt:
		return flowContinue
	case *returnStmt:
		if s.x != nil {
			fr.ret = it.eval(fr, s.x)
		}
		return flowReturn
	default:
		panic(fmt.Sprintf("exec: unknown statement %T", s))
	}
	return flowNext
}

// tick counts loop iterations and polls for cancellation now and then so a
// runaway loop can be interrupted.
func (it *item) tick() {
	it.steps++
	if it.steps&0xffff == 0 && it.ctx.Err() != nil {
		trapf(device.InvalidOperation, "launch cancelled: %v", it.ctx.Err())
	}
}

func (it *item) eval(fr *frame, x expr) value {
	switch x := x.(type) {
	case *identExpr:
		if x.special {
			switch x.name {
			case "NAN":
				return scalarValue(types.Float, canonFloat(types.Float, math.NaN()))
			case "INFINITY":
				return scalarValue(types.Float, canonFloat(types.Float, math.Inf(1)))
			default:
				return scalarValue(types.Float, canonFloat(types.Float, math.MaxFloat32))
			}
		}
		return fr.slots[x.slot]
	case *intLit:
		return scalarValue(x.typ.Primitive, canonInt(x.typ.Primitive, x.bits))
	case *floatLit:
		return scalarValue(x.typ.Primitive, canonFloat(x.typ.Primitive, x.val))
	case *unaryExpr:
		return it.unary(fr, x)
	case *binaryExpr:
		return it.binary(fr, x)
	case *assignExpr:
		r := it.ref(fr, x.dst)
		v := it.eval(fr, x.src)
		if x.op != "" {
			cur := r.load()
			if x.operand.Pointer {
				v = offsetPointer(cur, x.op, v)
			} else {
				v = arith(x.op, convert(cur, x.operand), convert(v, x.operand), x.operand)
			}
		}
		v = convert(v, x.typ)
		r.store(v)
		return v
	case *indexExpr:
		p := it.eval(fr, x.x)
		return deref(p, it.eval(fr, x.index).index()).load()
	case *callExpr:
		args := make([]value, len(x.args))
		for i, a := range x.args {
			args[i] = convert(it.eval(fr, a), x.argTypes[i])
		}
		if x.builtin != nil {
			return x.builtin.eval(it, args, x.typ)
		}
		return it.call(x.callee, args)
	case *memberExpr:
		base := it.eval(fr, x.x)
		out := value{typ: x.typ}
		for i, l := range x.lanes {
			out.lane[i] = base.lane[l]
		}
		return out
	case *castExpr:
		return convert(it.eval(fr, x.x), x.typ)
	case *vectorExpr:
		out := value{typ: x.typ}
		p := x.typ.Primitive
		if len(x.args) == 1 && x.args[0].resolved().Lanes() == 1 {
			return convert(it.eval(fr, x.args[0]), x.typ)
		}
		n := 0
		for _, a := range x.args {
			v := it.eval(fr, a)
			for i := range v.typ.Lanes() {
				out.lane[n] = convertLane(v.typ.Primitive, p, v.lane[i])
				n++
			}
		}
		return out
	case *condExpr:
		if truth(it.eval(fr, x.cond)) {
			return convert(it.eval(fr, x.x), x.typ)
		}
		return convert(it.eval(fr, x.y), x.typ)
	default:
		panic(fmt.Sprintf("eval: unknown expression %T", x))
	}
}

func (it *item) unary(fr *frame, x *unaryExpr) value {
	switch x.op {
	case "+":
		return convert(it.eval(fr, x.x), x.operand)
	case "-":
		v := convert(it.eval(fr, x.x), x.operand)
		p := v.typ.Primitive
		for i := range v.typ.Lanes() {
			if p.IsFloat() {
				v.lane[i] = canonFloat(p, -math.Float64frombits(v.lane[i]))
			} else {
				v.lane[i] = canonInt(p, -v.lane[i])
			}
		}
		return v
	case "~":
		v := convert(it.eval(fr, x.x), x.operand)
		for i := range v.typ.Lanes() {
			v.lane[i] = canonInt(v.typ.Primitive, ^v.lane[i])
		}
		return v
	case "!":
		if truth(it.eval(fr, x.x)) {
			return intValue(0)
		}
		return intValue(1)
	case "++", "--":
		r := it.ref(fr, x.x)
		old := r.load()
		var next value
		if old.typ.Pointer {
			next = offsetPointer(old, x.op[:1], intValue(1))
		} else {
			one := convert(intValue(1), old.typ)
			next = arith(x.op[:1], old, one, old.typ)
		}
		r.store(next)
		if x.postfix {
			return old
		}
		return next
	case "*":
		return deref(it.eval(fr, x.x), 0).load()
	case "&":
		return it.ref(fr, x.x).pointer()
	default:
		panic("eval: unknown unary operator " + x.op)
	}
}

func (it *item) binary(fr *frame, x *binaryExpr) value {
	switch x.op {
	case "&&":
		if !truth(it.eval(fr, x.x)) {
			return intValue(0)
		}
		if truth(it.eval(fr, x.y)) {
			return intValue(1)
		}
		return intValue(0)
	case "||":
		if truth(it.eval(fr, x.x)) {
			return intValue(1)
		}
		if truth(it.eval(fr, x.y)) {
			return intValue(1)
		}
		return intValue(0)
	}
	a, b := it.eval(fr, x.x), it.eval(fr, x.y)
	if x.operand.Pointer {
		switch x.op {
		case "==", "!=":
			same := a.mem == b.mem && a.cell == b.cell && a.lane[0] == b.lane[0]
			if same == (x.op == "==") {
				return intValue(1)
			}
			return intValue(0)
		}
		if b.typ.Pointer {
			a, b = b, a
		}
		return offsetPointer(a, x.op, b)
	}
	return arith(x.op, convert(a, x.operand), convert(b, x.operand), x.typ)
}

// offsetPointer moves p by n elements in direction op ("+" or "-").
func offsetPointer(p value, op string, n value) value {
	delta := n.index() * int64(p.typ.Elem().Size())
	if op == "-" {
		delta = -delta
	}
	p.lane[0] = uint64(int64(p.lane[0]) + delta)
	return p
}

// ref is an assignable location: a frame slot or private variable, a range
// of device memory, or selected lanes of another location.
type ref struct {
	typ   types.Datatype
	cell  *value
	mem   *hostMem
	off   int64
	base  *ref
	lanes []int
}

func (it *item) ref(fr *frame, x expr) ref {
	switch x := x.(type) {
	case *identExpr:
		return ref{typ: x.typ, cell: &fr.slots[x.slot]}
	case *indexExpr:
		p := it.eval(fr, x.x)
		return deref(p, it.eval(fr, x.index).index())
	case *unaryExpr:
		return deref(it.eval(fr, x.x), 0)
	case *memberExpr:
		base := it.ref(fr, x.x)
		return ref{typ: x.typ, base: &base, lanes: x.lanes}
	default:
		panic(fmt.Sprintf("ref: %T is not assignable", x))
	}
}

// deref locates element i of the pointer p.
func deref(p value, i int64) ref {
	elem := p.typ.Elem()
	off := int64(p.lane[0]) + i*int64(elem.Size())
	switch {
	case p.cell != nil:
		if off != 0 {
			trapf(device.OutOfResources, "private pointer accessed at byte offset %d", off)
		}
		return ref{typ: elem, cell: p.cell}
	case p.mem != nil:
		if off < 0 || off+int64(elem.Size()) > int64(len(p.mem.data)) {
			trapf(device.OutOfResources, "out-of-bounds access: %d bytes at offset %d of a %d-byte buffer", elem.Size(), off, len(p.mem.data))
		}
		return ref{typ: elem, mem: p.mem, off: off}
	default:
		trapf(device.InvalidMemObject, "null pointer dereference")
		return ref{}
	}
}

func (r ref) load() value {
	switch {
	case r.cell != nil:
		return *r.cell
	case r.mem != nil:
		return decode(r.typ, r.mem.data[r.off:r.off+int64(r.typ.Size())])
	default:
		base := r.base.load()
		out := value{typ: r.typ}
		for i, l := range r.lanes {
			out.lane[i] = base.lane[l]
		}
		return out
	}
}

func (r ref) store(v value) {
	switch {
	case r.cell != nil:
		*r.cell = v
	case r.mem != nil:
		encode(v, r.mem.data[r.off:r.off+int64(r.typ.Size())])
	default:
		base := r.base.load()
		for i, l := range r.lanes {
			base.lane[l] = v.lane[i]
		}
		r.base.store(base)
	}
}

func (r ref) pointer() value {
	v := value{typ: types.PointerTo(r.typ), mem: r.mem, cell: r.cell}
	v.lane[0] = uint64(r.off)
	return v
}
