package host

import (
	"testing"

	"spark/internal/diag"
	"spark/internal/types"
)

func parseExpr(t *testing.T, src string) expr {
	t.Helper()
	bag := diag.NewBag(0)
	prog, ok := parse("t", "void f()\n{\n    "+src+";\n}\n", diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("parse %q:\n%s", src, diag.FormatLog(bag.Items()))
	}
	return prog.funcs[0].body.stmts[0].(*exprStmt).x
}

func TestLiteralTypes(t *testing.T) {
	cases := map[string]types.Primitive{
		"7":                       types.Int,
		"7u":                      types.UInt,
		"2147483648":              types.Long,
		"4294967296u":             types.ULong,
		"18446744073709551615u":   types.ULong,
		"0x10":                    types.Int,
		"5l":                      types.Long,
		"1L":                      types.Long,
		"4UL":                     types.ULong,
		"1.5f":                    types.Float,
		"1.00000000000000006e-01": types.Double,
		"5.000000000e-01f":        types.Float,
	}
	for src, want := range cases {
		if got := parseExpr(t, src).resolved().Primitive; got != want {
			t.Errorf("%s: type %s, want %s", src, got, want)
		}
	}
}

func TestPrecedence(t *testing.T) {
	x := parseExpr(t, "a = b + c * d << 1 < e && f || g")
	assign, ok := x.(*assignExpr)
	if !ok {
		t.Fatalf("top is %T", x)
	}
	or, ok := assign.src.(*binaryExpr)
	if !ok || or.op != "||" {
		t.Fatalf("rhs top = %#v", assign.src)
	}
	and := or.x.(*binaryExpr)
	if and.op != "&&" {
		t.Fatalf("want &&, got %s", and.op)
	}
	lt := and.x.(*binaryExpr)
	if lt.op != "<" {
		t.Fatalf("want <, got %s", lt.op)
	}
	shl := lt.x.(*binaryExpr)
	if shl.op != "<<" || shl.x.(*binaryExpr).op != "+" {
		t.Fatalf("shift operand wrong")
	}
}

func TestCastAndVectorLiteral(t *testing.T) {
	if c, ok := parseExpr(t, "(float)(int)x").(*castExpr); !ok || c.typ != floatType {
		t.Fatalf("cast chain not parsed")
	}
	v, ok := parseExpr(t, "(int4)(1, 2, (int2)(3, 4))").(*vectorExpr)
	if !ok || len(v.args) != 3 || v.typ != types.Vector(types.Int, types.CompVec4) {
		t.Fatalf("vector literal = %#v", v)
	}
	if _, ok := parseExpr(t, "(a)").(*identExpr); !ok {
		t.Fatal("parenthesised identifier is not a cast")
	}
}

func TestLexerRejectsGarbage(t *testing.T) {
	bag := diag.NewBag(0)
	_, ok := parse("t", "void f()\n{\n    int x = 1 @ 2;\n}\n", diag.BagReporter{Bag: bag})
	if ok || bag.Items()[0].Code != diag.LexUnknownChar {
		t.Fatalf("ok=%v diags=%v", ok, bag.Items())
	}
	if got := bag.Items()[0].Pos; got.Line != 3 || got.Col != 15 {
		t.Fatalf("position = %v", got)
	}
}

func TestTypeNames(t *testing.T) {
	cases := map[string]types.Datatype{
		"int":     types.Scalar(types.Int),
		"uchar16": types.Vector(types.UChar, types.CompVec16),
		"double2": types.Vector(types.Double, types.CompVec2),
		"size_t":  types.Scalar(types.ULong),
		"void":    types.VoidType,
	}
	for name, want := range cases {
		got, ok := parseTypeName(name)
		if !ok || got != want {
			t.Errorf("parseTypeName(%q) = %s, %v", name, got, ok)
		}
	}
	for _, name := range []string{"float3", "int1", "void4", "size_t2", "integer"} {
		if _, ok := parseTypeName(name); ok {
			t.Errorf("parseTypeName(%q) accepted", name)
		}
	}
}
