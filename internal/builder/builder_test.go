package builder

import (
	"context"
	"strings"
	"testing"

	"spark/internal/ast"
	"spark/internal/codegen"
	"spark/internal/fault"
	"spark/internal/testkit"
	"spark/internal/types"
)

var (
	intT   = types.Scalar(types.Int)
	floatT = types.Scalar(types.Float)
)

func build(t *testing.T, fn func(*Session)) *Program {
	t.Helper()
	prog, err := Build(context.Background(), Options{DumpTree: true}, fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := testkit.CheckSourceInvariants(prog.Source); err != nil {
		t.Fatalf("source invariants: %v\n%s", err, prog.Source)
	}
	return prog
}

// expectMisuse runs fn and requires a misuse panic whose message mentions want.
func expectMisuse(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected misuse panic mentioning %q", want)
		}
		fe, ok := r.(*fault.Error)
		if !ok || fe.Kind != fault.KindMisuse {
			t.Fatalf("panic %v is not a misuse error", r)
		}
		if !strings.Contains(fe.Error(), want) {
			t.Fatalf("misuse %q does not mention %q", fe.Error(), want)
		}
	}()
	fn()
}

func TestIfElseScenario(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{ScalarParam(intT), Buffer1DParam(types.Int)}, func(a Args) {
			x := a.Scalar(0)
			out := a.Buffer1D(1)
			y := s.Var(s.Int(0))
			s.If(x.Gt(s.Int(0)), func() {
				s.Assign(y, s.Int(1))
			}).Else(func() {
				s.Assign(y, s.Int(-1))
			})
			s.Assign(out.At(s.Int(0)), y)
		})
	})

	want := `
__kernel void spark_main(int s32_2, __global int* p_s32_3, int s32_4)
{
    int s32_5 = 0;
    if ((s32_2 > 0))
    {
        s32_5 = 1;
    }
    else
    {
        s32_5 = -1;
    }
    p_s32_3[0] = s32_5;
}
`
	if prog.Source != want {
		t.Fatalf("source mismatch\n got:\n%s\nwant:\n%s", prog.Source, want)
	}
	if !strings.Contains(prog.Tree, "\n      if\n") || !strings.Contains(prog.Tree, "\n      else\n") {
		t.Fatalf("tree lacks sibling if/else nodes:\n%s", prog.Tree)
	}
}

func TestIfElseTreeShape(t *testing.T) {
	s := NewSession(ast.Hints{})
	s.Begin()
	var body ast.NodeID
	s.Kernel([]Param{ScalarParam(intT)}, func(a Args) {
		body = s.Peek()
		y := s.Var(s.Int(0))
		s.If(a.Scalar(0).Gt(s.Int(0)), func() { s.Assign(y, s.Int(1)) }).
			Else(func() { s.Assign(y, s.Int(-1)) })
	})
	tree := s.Tree()
	if err := testkit.CheckTreeInvariants(tree, s.Root()); err != nil {
		t.Fatal(err)
	}
	stmts := tree.Children(body)
	if len(stmts) != 3 {
		t.Fatalf("body has %d statements, want 3", len(stmts))
	}
	ifNode, elseNode := stmts[1], stmts[2]
	if !tree.IsControl(ifNode, ast.ControlIf) || len(tree.Children(ifNode)) != 2 {
		t.Fatalf("if node malformed: %s", tree.DumpString(ifNode))
	}
	if !tree.IsControl(elseNode, ast.ControlElse) || len(tree.Children(elseNode)) != 1 {
		t.Fatalf("else node malformed: %s", tree.DumpString(elseNode))
	}
	if !tree.IsControl(tree.Children(elseNode)[0], ast.ControlScopeBlock) {
		t.Fatal("else child is not a block")
	}
	s.End()
}

func TestRangeLowering(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Int)}, func(a Args) {
			out := a.Buffer1D(0)
			sum := s.Var(s.Int(0))
			s.For(s.Int(0), s.Int(5), func(i Value) {
				s.Assign(sum, sum.Add(i))
			})
			s.Assign(out.At(s.Int(0)), sum)
		})
	})
	want := `
__kernel void spark_main(__global int* p_s32_2, int s32_3)
{
    int s32_4 = 0;
    /* Init */
    int s32_5 = 0;
    while (1)
    {
        if ((s32_5 >= 5))
        {
            break;
        }
        s32_4 = (s32_4 + s32_5);
        s32_5 = (s32_5 + 1);
    }
    p_s32_2[0] = s32_4;
}
`
	if prog.Source != want {
		t.Fatalf("source mismatch\n got:\n%s\nwant:\n%s", prog.Source, want)
	}
}

func TestBuffer2DIndexing(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{Buffer2DParam(types.Float)}, func(a Args) {
			img := a.Buffer2D(0)
			s.Assign(img.At(s.GlobalID(0), s.GlobalID(1)), s.Float(1))
		})
	})
	wantSig := "__kernel void spark_main(__global float* p_flt_2, int s32_3, int s32_4)"
	wantStmt := "p_flt_2[(((int)get_global_id(1u) * s32_3) + (int)get_global_id(0u))] = 1.000000000e+00f;"
	if !strings.Contains(prog.Source, wantSig) {
		t.Errorf("missing signature %q in\n%s", wantSig, prog.Source)
	}
	if !strings.Contains(prog.Source, wantStmt) {
		t.Errorf("missing statement %q in\n%s", wantStmt, prog.Source)
	}
}

func TestUnemittedExpressionsAreDropped(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{ScalarParam(intT)}, func(a Args) {
			x := s.Var(a.Scalar(0))
			_ = x.Add(s.Int(41))
			_ = x.PostInc()
			s.Dec(x)
		})
	})
	if strings.Contains(prog.Source, "41") {
		t.Errorf("pure expression that was never emitted reached the source:\n%s", prog.Source)
	}
	if strings.Contains(prog.Source, "++") {
		t.Errorf("increment that was never emitted reached the source:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "    (s32_3--);\n") {
		t.Errorf("explicit Dec missing:\n%s", prog.Source)
	}
}

func TestFirstAssignmentDeclares(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Function(floatT, []Param{ScalarParam(floatT)}, func(a Args) {
			v := s.Var(a.Scalar(0))
			s.Assign(v, v.Mul(s.Float(2)))
			s.Assign(v, v.Add(s.Float(1)))
			s.Return(v)
		})
		s.Kernel(nil, func(Args) {
			w := s.Var(s.Float(0))
			s.Assign(w, s.Float(3))
		})
	})
	if n := strings.Count(prog.Source, "float flt_3 ="); n != 1 {
		t.Errorf("flt_3 declared %d times, want 1:\n%s", n, prog.Source)
	}
	if n := strings.Count(prog.Source, "flt_3 = "); n != 3 {
		t.Errorf("flt_3 assigned %d times, want 3", n)
	}
	if !strings.Contains(prog.Source, "float func_1(float flt_2)\n{\n") {
		t.Errorf("helper signature missing:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "    float flt_5 = 0.000000000e+00f;\n    flt_5 = 3.000000000e+00f;\n") {
		t.Errorf("kernel declarations wrong:\n%s", prog.Source)
	}
}

func TestHelperCallExpandsBuffers(t *testing.T) {
	prog := build(t, func(s *Session) {
		sum := s.Function(intT, []Param{Buffer1DParam(types.Int)}, func(a Args) {
			buf := a.Buffer1D(0)
			total := s.Var(s.Int(0))
			s.For(s.Int(0), buf.Count, func(i Value) {
				s.Assign(total, total.Add(buf.At(i)))
			})
			s.Return(total)
		})
		s.Kernel([]Param{Buffer1DParam(types.Int)}, func(a Args) {
			buf := a.Buffer1D(0)
			s.Assign(buf.At(s.Int(0)), sum.Call(buf))
		})
	})
	if !strings.Contains(prog.Source, "p_s32_7[0] = func_1(p_s32_7, s32_8);") {
		t.Errorf("call does not pass pointer and count:\n%s", prog.Source)
	}
	if strings.Index(prog.Source, "int func_1(") > strings.Index(prog.Source, "spark_main(") {
		t.Error("helper must be emitted before the kernel that calls it")
	}
}

func TestParamExpansionMatchesSignature(t *testing.T) {
	params := []Param{
		ScalarParam(floatT),
		Buffer1DParam(types.Float),
		Buffer2DParam(types.UChar),
		ScalarParam(intT),
	}
	native := Expand(params)
	if len(native) != 1+2+3+1 {
		t.Fatalf("expanded to %d native params", len(native))
	}
	prog := build(t, func(s *Session) { s.Kernel(params, nil) })
	sig := prog.Source[strings.Index(prog.Source, "(")+1 : strings.Index(prog.Source, ")")]
	decls := strings.Split(sig, ", ")
	if len(decls) != len(native) {
		t.Fatalf("signature has %d params, want %d: %s", len(decls), len(native), sig)
	}
	for i, dt := range native {
		if !strings.Contains(decls[i], codegen.TypeName(dt)+" ") {
			t.Errorf("param %d = %q, want type %s", i, decls[i], dt)
		}
	}
	if len(prog.Params) != len(params) {
		t.Fatalf("program records %d params", len(prog.Params))
	}
}

func TestValueReuseClones(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Float)}, func(a Args) {
			out := a.Buffer1D(0)
			i := s.GlobalID(0)
			x := out.At(i)
			s.Assign(x, x.Mul(x))
		})
	})
	want := "p_flt_2[(int)get_global_id(0u)] = (p_flt_2[(int)get_global_id(0u)] * p_flt_2[(int)get_global_id(0u)]);"
	if !strings.Contains(prog.Source, want) {
		t.Errorf("reused handle not cloned:\n%s", prog.Source)
	}
}

func TestElseIfChain(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{ScalarParam(intT)}, func(a Args) {
			x := a.Scalar(0)
			y := s.Var(s.Int(0))
			s.If(x.Lt(s.Int(0)), func() { s.Assign(y, s.Int(-1)) }).
				ElseIf(x.Eq(s.Int(0)), func() { s.Assign(y, s.Int(0)) }).
				Else(func() { s.Assign(y, s.Int(1)) })
		})
	})
	if !strings.Contains(prog.Source, "    }\n    else if ((s32_2 == 0))\n    {\n") {
		t.Errorf("else-if not emitted after if block:\n%s", prog.Source)
	}
}

func TestVectorsAndSwizzles(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Float)}, func(a Args) {
			v := s.Var(s.Vector(types.Float, s.Float(1), s.Float(2), s.Float(3), s.Float(4)))
			s.Assign(a.Buffer1D(0).At(s.Int(0)), s.Dot(v.Swizzle("xy"), v.Swizzle("hi")))
		})
	})
	if !strings.Contains(prog.Source, "float4 vec4_flt_4 = (float4)(1.000000000e+00f, 2.000000000e+00f, 3.000000000e+00f, 4.000000000e+00f);") {
		t.Errorf("vector literal wrong:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "dot(vec4_flt_4.xy, vec4_flt_4.hi)") {
		t.Errorf("swizzles wrong:\n%s", prog.Source)
	}
}

func TestBuildRequiresOneEntryPoint(t *testing.T) {
	_, err := Build(context.Background(), Options{}, func(s *Session) {
		s.Function(intT, nil, func(Args) { s.Return(s.Int(0)) })
	})
	if fault.KindOf(err) != fault.KindMisuse {
		t.Fatalf("err = %v, want misuse", err)
	}
	_, err = Build(context.Background(), Options{}, func(s *Session) {
		s.Kernel(nil, nil)
		s.Kernel(nil, nil)
	})
	if err == nil || !strings.Contains(err.Error(), "2 entry points") {
		t.Fatalf("err = %v, want two entry points", err)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	body := func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Double), ScalarParam(types.Scalar(types.Double))}, func(a Args) {
			out := a.Buffer1D(0)
			i := s.Var(s.GlobalID(0))
			s.If(i.Lt(out.Count), func() {
				s.Assign(out.At(i), s.Sqrt(a.Scalar(1)).Mul(s.Double(0.5)))
			})
		})
	}
	first := build(t, body)
	second := build(t, body)
	if first.Source != second.Source {
		t.Fatalf("sources differ:\n%s\n---\n%s", first.Source, second.Source)
	}
}

func TestSessionReuseAfterBuild(t *testing.T) {
	s := NewSession(ast.Hints{Nodes: 16})
	for range 2 {
		prog, err := s.Build(context.Background(), Options{}, func(s *Session) { s.Kernel(nil, nil) })
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(prog.Source, "__kernel void spark_main()") {
			t.Fatalf("unexpected source %q", prog.Source)
		}
	}
	if s.Open() {
		t.Fatal("session left open")
	}
}

func TestMisuse(t *testing.T) {
	ctx := context.Background()
	run := func(fn func(s *Session)) func() {
		return func() { _, _ = Build(ctx, Options{}, fn) }
	}

	expectMisuse(t, "inside a function body", run(func(s *Session) {
		s.Var(s.Int(1))
	}))
	expectMisuse(t, "break outside of a loop", run(func(s *Session) {
		s.Kernel(nil, func(Args) { s.Break() })
	}))
	expectMisuse(t, "not a storage location", run(func(s *Session) {
		s.Kernel(nil, func(Args) { s.Assign(s.Int(1), s.Int(2)) })
	}))
	expectMisuse(t, "program level", run(func(s *Session) {
		s.Kernel(nil, func(Args) { s.Kernel(nil, nil) })
	}))
	expectMisuse(t, "mismatched vectors", run(func(s *Session) {
		s.Kernel(nil, func(Args) {
			a := s.Vector(types.Float, s.Float(1), s.Float(2))
			b := s.Vector(types.Float, s.Float(1), s.Float(2), s.Float(3), s.Float(4))
			s.Emit(a.Add(b))
		})
	}))
	expectMisuse(t, "selects lane", run(func(s *Session) {
		s.Kernel(nil, func(Args) {
			s.Emit(s.Vector(types.Float, s.Float(1), s.Float(2)).Swizzle("z"))
		})
	}))
	expectMisuse(t, "needs a value", run(func(s *Session) {
		s.Function(intT, nil, func(Args) { s.Return() })
	}))
	expectMisuse(t, "directly follow", run(func(s *Session) {
		s.Kernel(nil, func(Args) {
			chain := s.If(s.Int(1), nil)
			s.Comment("between")
			chain.Else(nil)
		})
	}))
	expectMisuse(t, "block has closed", run(func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Int)}, func(a Args) {
			var inner Value
			s.If(s.Int(1), func() { inner = s.Var(s.Int(3)) })
			s.Assign(inner, s.Int(4))
		})
	}))
	expectMisuse(t, "block has closed", run(func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Int)}, func(a Args) {
			var sum Value
			s.While(s.Int(1), func() {
				x := s.Var(s.Int(3))
				sum = x.Add(s.Int(1))
				s.Break()
			})
			s.Assign(a.Buffer1D(0).At(s.Int(0)), sum)
		})
	}))
	expectMisuse(t, "block has closed", run(func(s *Session) {
		var leaked Value
		s.Function(intT, []Param{ScalarParam(intT)}, func(a Args) {
			leaked = a.Scalar(0)
			s.Return(leaked)
		})
		s.Kernel(nil, func(Args) { s.Var(leaked) })
	}))
	expectMisuse(t, "outlived its program", func() {
		var stale Value
		sess := NewSession(ast.Hints{})
		_, _ = sess.Build(ctx, Options{}, func(s *Session) {
			s.Kernel(nil, func(Args) { stale = s.Var(s.Int(1)) })
		})
		_, _ = sess.Build(ctx, Options{}, func(s *Session) {
			s.Kernel(nil, func(Args) { s.Emit(stale) })
		})
	})
	expectMisuse(t, "already being built", func() {
		s := NewSession(ast.Hints{})
		s.Begin()
		s.Begin()
	})
}

func TestOuterVariablesReachNestedBlocks(t *testing.T) {
	prog, err := Build(context.Background(), Options{}, func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Int)}, func(a Args) {
			out := a.Buffer1D(0)
			x := s.Var(s.Int(0))
			s.If(out.Count.Gt(s.Int(0)), func() {
				s.While(x.Lt(s.Int(3)), func() { s.Inc(x) })
				s.Assign(out.At(s.Int(0)), x)
			})
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prog.Source, "s32_4++") {
		t.Errorf("source:\n%s", prog.Source)
	}
}

func TestScopeExitChecksTop(t *testing.T) {
	s := NewSession(ast.Hints{})
	s.Begin()
	a := s.Tree().CreateControl(ast.ControlScopeBlock)
	b := s.Tree().CreateControl(ast.ControlScopeBlock)
	exitA := s.Enter(a)
	s.Push(b)
	expectMisuse(t, "not on top", exitA)
	s.Pop()
	exitA()
	if s.Depth() != 1 {
		t.Fatalf("depth = %d after balanced exits", s.Depth())
	}
	s.End()
}

func TestBuiltinTyping(t *testing.T) {
	prog := build(t, func(s *Session) {
		s.Kernel([]Param{Buffer1DParam(types.Float), Buffer1DParam(types.UInt)}, func(a Args) {
			f := a.Buffer1D(0)
			u := a.Buffer1D(1)
			i := s.Var(s.GlobalID(0))
			s.Assign(f.At(i), s.Clamp(s.Sqrt(f.At(i)), s.Float(0), s.Float(1)))
			s.Assign(u.At(i), s.Abs(i.Sub(s.Int(4))))
			s.Var(s.NormalizedIndex())
		})
	})
	if !strings.Contains(prog.Source, "clamp(sqrt(p_flt_2[s32_6]), 0.000000000e+00f, 1.000000000e+00f)") {
		t.Errorf("clamp/sqrt wrong:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "p_u32_4[s32_6] = abs((s32_6 - 4));") {
		t.Errorf("abs wrong:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "float2 vec2_flt_7 = (float2)(((float)(int)get_global_id(0u) / (float)(int)get_global_size(0u))") {
		t.Errorf("normalized index wrong:\n%s", prog.Source)
	}
	expectMisuse(t, "float or double", func() {
		_, _ = Build(context.Background(), Options{}, func(s *Session) {
			s.Kernel(nil, func(Args) { s.Emit(s.Sqrt(s.Int(4))) })
		})
	})
}
