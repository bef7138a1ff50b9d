package codegen

import (
	"math"
	"strings"
	"testing"

	"spark/internal/ast"
	"spark/internal/fault"
	"spark/internal/types"
)

var (
	intT   = types.Scalar(types.Int)
	floatT = types.Scalar(types.Float)
)

// kernelTree builds root -> function(entry) -> (params, block) and returns the
// tree, root, parameter list and body block.
func kernelTree(params ...types.Datatype) (*ast.Tree, ast.NodeID, []ast.NodeID, ast.NodeID) {
	t := ast.NewTree(ast.Hints{})
	root := t.CreateControl(ast.ControlRoot)
	fn := t.CreateFunction(1, types.VoidType)
	t.MarkEntry(fn)
	list := t.CreateControl(ast.ControlParameterList)
	body := t.CreateControl(ast.ControlScopeBlock)
	var syms []ast.NodeID
	for i, dt := range params {
		id := ast.SymbolID(i + 2)
		sym := t.CreateSymbol(id, dt)
		t.AddChild(list, sym)
		syms = append(syms, sym)
	}
	t.AddChild(fn, list)
	t.AddChild(fn, body)
	t.AddChild(root, fn)
	return t, root, syms, body
}

func emit(t *testing.T, tree *ast.Tree, root ast.NodeID) string {
	t.Helper()
	out, err := EmitProgram(tree, root, Options{})
	if err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	return out.Source
}

func TestSymbolNames(t *testing.T) {
	cases := []struct {
		dt   types.Datatype
		want string
	}{
		{types.Scalar(types.Char), "s8_7"},
		{types.Scalar(types.UChar), "u8_7"},
		{types.Scalar(types.Short), "s16_7"},
		{types.Scalar(types.UShort), "u16_7"},
		{intT, "s32_7"},
		{types.Scalar(types.UInt), "u32_7"},
		{types.Scalar(types.Long), "s64_7"},
		{types.Scalar(types.ULong), "u64_7"},
		{floatT, "flt_7"},
		{types.Scalar(types.Double), "dbl_7"},
		{types.PointerTo(floatT), "p_flt_7"},
		{types.Vector(types.Float, types.CompVec4), "vec4_flt_7"},
		{types.PointerTo(types.Vector(types.UChar, types.CompVec16)), "p_vec16_u8_7"},
	}
	for _, c := range cases {
		if got := SymbolName(7, c.dt); got != c.want {
			t.Errorf("SymbolName(7, %s) = %q, want %q", c.dt, got, c.want)
		}
	}
}

func TestSymbolNamesUnique(t *testing.T) {
	seen := map[string]ast.SymbolID{}
	for id := ast.SymbolID(1); id < 300; id++ {
		for _, p := range types.Primitives() {
			if p == types.Void {
				continue
			}
			for _, dt := range []types.Datatype{types.Scalar(p), types.PointerTo(types.Scalar(p)), types.Vector(p, types.CompVec2)} {
				name := SymbolName(id, dt)
				if prev, ok := seen[name]; ok && prev != id {
					t.Fatalf("%s generated for ids %d and %d", name, prev, id)
				}
				seen[name] = id
			}
		}
	}
}

func TestConstantText(t *testing.T) {
	cases := []struct {
		c    ast.ConstantData
		want string
	}{
		{ast.ConstantData{Type: intT, Bits: ast.EncodeInt(types.Int, -12)}, "-12"},
		{ast.ConstantData{Type: types.Scalar(types.UInt), Bits: ast.EncodeInt(types.UInt, 12)}, "12u"},
		{ast.ConstantData{Type: types.Scalar(types.Char), Bits: ast.EncodeInt(types.Char, -1)}, "-1"},
		{ast.ConstantData{Type: types.Scalar(types.ULong), Bits: math.MaxUint64}, "18446744073709551615UL"},
		{ast.ConstantData{Type: types.Scalar(types.ULong), Bits: 4}, "4UL"},
		{ast.ConstantData{Type: types.Scalar(types.Long), Bits: ast.EncodeInt(types.Long, 1)}, "1L"},
		{ast.ConstantData{Type: types.Scalar(types.Long), Bits: ast.EncodeInt(types.Long, -40)}, "-40L"},
		{ast.ConstantData{Type: types.Scalar(types.Long), Bits: ast.EncodeInt(types.Long, math.MinInt64)}, "(-9223372036854775807L - 1L)"},
		{ast.ConstantData{Type: intT, Bits: ast.EncodeInt(types.Int, math.MinInt32)}, "(-2147483647 - 1)"},
		{ast.ConstantData{Type: floatT, Bits: ast.EncodeFloat(types.Float, 0.5)}, "5.000000000e-01f"},
		{ast.ConstantData{Type: types.Scalar(types.Double), Bits: ast.EncodeFloat(types.Double, 0.1)}, "1.00000000000000006e-01"},
		{ast.ConstantData{Type: floatT, Bits: ast.EncodeFloat(types.Float, math.Inf(-1))}, "(-INFINITY)"},
		{ast.ConstantData{Type: types.Scalar(types.Double), Bits: ast.EncodeFloat(types.Double, math.NaN())}, "NAN"},
	}
	for _, c := range cases {
		if got := ConstantText(c.c); got != c.want {
			t.Errorf("ConstantText(%s) = %q, want %q", c.c.Type, got, c.want)
		}
	}
}

func TestCommentFolding(t *testing.T) {
	cases := map[string]string{
		"Init":              "Init",
		"naïve café":        "naive cafe",
		"end */ early":      "end * / early",
		"two\nlines":        "two lines",
		"nested /* start":   "nested / * start",
		"emoji 🚀 dropped": "emoji  dropped",
	}
	for in, want := range cases {
		if got := commentText(in); got != want {
			t.Errorf("commentText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOperatorTemplates(t *testing.T) {
	tree, root, params, body := kernelTree(types.PointerTo(floatT), intT)
	ptr, n := params[0], params[1]

	sym := func(src ast.NodeID) ast.NodeID { return tree.Clone(src) }
	op := func(o ast.Op, dt types.Datatype, kids ...ast.NodeID) ast.NodeID {
		id := tree.CreateOperator(o, dt)
		for _, k := range kids {
			tree.AddChild(id, k)
		}
		return id
	}
	c := func(v int64) ast.NodeID { return tree.CreateConstant(intT, ast.EncodeInt(types.Int, v)) }

	// float flt_5 = (float)(-s32_3);
	local := tree.CreateSymbol(5, floatT)
	tree.AddChild(body, op(ast.OpAssignment, floatT, local, op(ast.OpCast, floatT, op(ast.OpNegate, intT, sym(n)))))
	// p_flt_2[(s32_3 % 2)] = flt_5;
	tree.AddChild(body, op(ast.OpAssignment, floatT,
		op(ast.OpIndex, floatT, sym(ptr), op(ast.OpModulo, intT, sym(n), c(2))),
		tree.Clone(local)))
	// (s32_3++);
	tree.AddChild(body, op(ast.OpPostfixIncrement, intT, sym(n)))
	// (--s32_3);
	tree.AddChild(body, op(ast.OpPrefixDecrement, intT, sym(n)))
	// /* note */
	tree.AddChild(body, tree.CreateComment("note"))
	// return;
	tree.AddChild(body, op(ast.OpReturn, types.VoidType))

	want := `
__kernel void spark_main(__global float* p_flt_2, int s32_3)
{
    float flt_5 = (float)(-s32_3);
    p_flt_2[(s32_3 % 2)] = flt_5;
    (s32_3++);
    (--s32_3);
    /* note */
    return;
}
`
	if got := emit(t, tree, root); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	tree, root, params, body := kernelTree(types.PointerTo(types.Vector(types.Float, types.CompVec4)))
	loop := tree.CreateControl(ast.ControlWhile)
	tree.AddChild(loop, tree.CreateConstant(intT, 1))
	blk := tree.CreateControl(ast.ControlScopeBlock)
	tree.AddChild(blk, tree.CreateOperator(ast.OpBreak, types.VoidType))
	tree.AddChild(loop, blk)
	tree.AddChild(body, loop)
	prop := tree.CreateOperator(ast.OpProperty, types.Vector(types.Float, types.CompVec2))
	idx := tree.CreateOperator(ast.OpIndex, types.Vector(types.Float, types.CompVec4))
	tree.AddChild(idx, tree.Clone(params[0]))
	tree.AddChild(idx, tree.CreateConstant(intT, 0))
	tree.AddChild(prop, idx)
	tree.AddChild(prop, tree.CreateProperty(types.Lo))
	tree.AddChild(body, prop)

	first := emit(t, tree, root)
	second := emit(t, tree, root)
	if first != second {
		t.Fatalf("emission differs between runs:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "    while (1)\n    {\n        break;\n    }\n") {
		t.Errorf("while block wrong:\n%s", first)
	}
	if !strings.Contains(first, "    p_vec4_flt_2[0].lo;\n") {
		t.Errorf("property access wrong:\n%s", first)
	}
}

func TestDeclaredSetResetsPerFunction(t *testing.T) {
	tree := ast.NewTree(ast.Hints{})
	root := tree.CreateControl(ast.ControlRoot)
	for i, entry := range []bool{false, true} {
		fn := tree.CreateFunction(ast.SymbolID(10*i+1), types.VoidType)
		if entry {
			tree.MarkEntry(fn)
		}
		tree.AddChild(fn, tree.CreateControl(ast.ControlParameterList))
		body := tree.CreateControl(ast.ControlScopeBlock)
		for range 2 {
			assign := tree.CreateOperator(ast.OpAssignment, intT)
			tree.AddChild(assign, tree.CreateSymbol(99, intT))
			tree.AddChild(assign, tree.CreateConstant(intT, 0))
			tree.AddChild(body, assign)
		}
		tree.AddChild(fn, body)
		tree.AddChild(root, fn)
	}
	src := emit(t, tree, root)
	if n := strings.Count(src, "int s32_99 = 0;"); n != 2 {
		t.Fatalf("declaration count = %d, want one per function:\n%s", n, src)
	}
	if !strings.HasPrefix(src, "\nvoid func_1()\n{\n") {
		t.Fatalf("helper not first:\n%s", src)
	}
}

func TestMalformedTreesPanic(t *testing.T) {
	cases := map[string]func(tree *ast.Tree, body ast.NodeID){
		"binary with one operand": func(tree *ast.Tree, body ast.NodeID) {
			add := tree.CreateOperator(ast.OpAdd, intT)
			tree.AddChild(add, tree.CreateConstant(intT, 1))
			tree.AddChild(body, add)
		},
		"property as statement": func(tree *ast.Tree, body ast.NodeID) {
			tree.AddChild(body, tree.CreateProperty(types.Hi))
		},
		"root inside body": func(tree *ast.Tree, body ast.NodeID) {
			tree.AddChild(body, tree.CreateControl(ast.ControlRoot))
		},
		"if without block": func(tree *ast.Tree, body ast.NodeID) {
			ifNode := tree.CreateControl(ast.ControlIf)
			tree.AddChild(ifNode, tree.CreateConstant(intT, 1))
			tree.AddChild(body, ifNode)
		},
		"call to unknown function": func(tree *ast.Tree, body ast.NodeID) {
			call := tree.CreateOperator(ast.OpCall, intT)
			tree.AddChild(call, tree.CreateFunction(42, intT))
			tree.AddChild(body, call)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tree, root, _, body := kernelTree()
			mutate(tree, body)
			err := fault.Recover(func() { _, _ = EmitProgram(tree, root, Options{}) })
			if fault.KindOf(err) != fault.KindMisuse {
				t.Fatalf("err = %v, want misuse panic", err)
			}
		})
	}
}

func TestEntryNameOverride(t *testing.T) {
	tree, root, _, _ := kernelTree()
	out, err := EmitProgram(tree, root, Options{EntryName: "blur"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Entry != "blur" || !strings.Contains(out.Source, "__kernel void blur()") {
		t.Fatalf("entry override ignored: %+v", out)
	}
}
