package ast

import (
	"strings"
	"testing"

	"spark/internal/fault"
	"spark/internal/types"
)

func TestArenaHandlesAreOneBased(t *testing.T) {
	a := NewArena[int](0)
	if a.Get(0) != nil {
		t.Fatalf("handle 0 must be empty")
	}
	h := a.Allocate(42)
	if h != 1 || *a.Get(h) != 42 {
		t.Fatalf("Allocate = %d, value %v", h, a.Get(h))
	}
	a.Reset()
	if a.Len() != 0 || a.Get(h) != nil {
		t.Fatalf("Reset left %d values", a.Len())
	}
}

func TestAddChildMarksAttached(t *testing.T) {
	tr := NewTree(Hints{})
	root := tr.CreateControl(ControlRoot)
	sym := tr.CreateSymbol(1, types.Scalar(types.Int))
	if tr.Get(sym).Attached {
		t.Fatalf("fresh node must be unattached")
	}
	tr.AddChild(root, sym)
	if !tr.Get(sym).Attached {
		t.Fatalf("AddChild did not mark the child attached")
	}
	if got := tr.Children(root); len(got) != 1 || got[0] != sym {
		t.Fatalf("children = %v", got)
	}
}

func TestAddChildRejectsSelfAndReparent(t *testing.T) {
	tr := NewTree(Hints{})
	a := tr.CreateControl(ControlScopeBlock)
	b := tr.CreateControl(ControlScopeBlock)
	c := tr.CreateComment("x")

	err := fault.Recover(func() { tr.AddChild(a, a) })
	if fault.KindOf(err) != fault.KindMisuse {
		t.Fatalf("self parent: %v", err)
	}
	tr.AddChild(a, c)
	err = fault.Recover(func() { tr.AddChild(b, c) })
	if fault.KindOf(err) != fault.KindMisuse {
		t.Fatalf("reparent: %v", err)
	}
}

func TestResetFreesAttachedAndDetachedNodes(t *testing.T) {
	tr := NewTree(Hints{})
	root := tr.CreateControl(ControlRoot)
	tr.AddChild(root, tr.CreateComment("kept"))
	tr.CreateOperator(OpAdd, types.Scalar(types.Float)) // never attached
	if tr.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tr.Len())
	}
	tr.Reset()
	if tr.Len() != 0 || tr.Get(root) != nil {
		t.Fatalf("Reset kept nodes")
	}
	if tr.Comments.Len() != 0 || tr.Operators.Len() != 0 {
		t.Fatalf("Reset kept payloads")
	}
}

func TestKindAccessorsAreExclusive(t *testing.T) {
	tr := NewTree(Hints{})
	op := tr.CreateOperator(OpMultiply, types.Scalar(types.Int))
	if _, ok := tr.Symbol(op); ok {
		t.Fatalf("operator node answered as symbol")
	}
	data, ok := tr.Operator(op)
	if !ok || data.Op != OpMultiply {
		t.Fatalf("Operator() = %+v, %v", data, ok)
	}
	if tr.TypeOf(op) != types.Scalar(types.Int) {
		t.Fatalf("TypeOf = %v", tr.TypeOf(op))
	}
}

func TestOperatorRanges(t *testing.T) {
	prefix, postfix, binary := 0, 0, 0
	for o := Op(0); o < opCount; o++ {
		if o.String() == "" {
			t.Errorf("operator %d has no name", o)
		}
		if o.IsPrefix() {
			prefix++
		}
		if o.IsPostfix() {
			postfix++
		}
		if o.IsBinary() {
			binary++
		}
	}
	if prefix != 7 || postfix != 2 || binary != 18 {
		t.Fatalf("ranges: prefix=%d postfix=%d binary=%d", prefix, postfix, binary)
	}
}

func TestBuiltinTableComplete(t *testing.T) {
	for b := Builtin(0); b < builtinCount; b++ {
		info := b.Info()
		if info.Name == "" || info.Arity < 1 {
			t.Errorf("builtin %d: %+v", b, info)
		}
	}
}

func TestConstantEncoding(t *testing.T) {
	c := ConstantData{Type: types.Scalar(types.Char), Bits: EncodeInt(types.Char, -3)}
	if c.Int() != -3 {
		t.Fatalf("char -3 decoded as %d", c.Int())
	}
	c = ConstantData{Type: types.Scalar(types.UInt), Bits: EncodeInt(types.UInt, -1)}
	if c.Uint() != 0xffffffff {
		t.Fatalf("uint wrap = %d", c.Uint())
	}
	c = ConstantData{Type: types.Scalar(types.Float), Bits: EncodeFloat(types.Float, 0.5)}
	if c.Float() != 0.5 {
		t.Fatalf("float 0.5 decoded as %v", c.Float())
	}
}

func TestDumpOutline(t *testing.T) {
	tr := NewTree(Hints{})
	root := tr.CreateControl(ControlRoot)
	fn := tr.CreateFunction(2, types.VoidType)
	tr.MarkEntry(fn)
	tr.AddChild(root, fn)
	params := tr.CreateControl(ControlParameterList)
	tr.AddChild(fn, params)
	tr.AddChild(params, tr.CreateSymbol(3, types.PointerTo(types.Scalar(types.Float))))
	body := tr.CreateControl(ControlScopeBlock)
	tr.AddChild(fn, body)
	tr.AddChild(body, tr.CreateComment("hi"))
	tr.CreateSymbol(4, types.Scalar(types.Int)) // detached, must not show

	got := tr.DumpString(root)
	want := strings.Join([]string{
		"root",
		"  0x2 : function -> void (entrypoint)",
		"    parameter_list",
		"      0x3 : float*",
		"    scope_block",
		`      comment : "hi"`,
		"",
	}, "\n")
	if got != want {
		t.Fatalf("dump mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestCloneCopiesSubtree(t *testing.T) {
	tr := NewTree(Hints{})
	root := tr.CreateControl(ControlRoot)
	add := tr.CreateOperator(OpAdd, types.Scalar(types.Int))
	tr.AddChild(add, tr.CreateSymbol(1, types.Scalar(types.Int)))
	tr.AddChild(add, tr.CreateConstant(types.Scalar(types.Int), EncodeInt(types.Int, 2)))
	tr.AddChild(root, add)

	cp := tr.Clone(add)
	if cp == add || tr.Get(cp).Attached {
		t.Fatalf("clone must be a fresh unattached node")
	}
	orig, copied := tr.Children(add), tr.Children(cp)
	if len(copied) != 2 || copied[0] == orig[0] || copied[1] == orig[1] {
		t.Fatalf("children not copied: %v vs %v", copied, orig)
	}
	if sym, ok := tr.Symbol(copied[0]); !ok || sym.ID != 1 {
		t.Fatalf("cloned symbol = %+v", sym)
	}
}
