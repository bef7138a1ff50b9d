package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"spark/internal/ast"
	"spark/internal/types"
)

var primitiveTags = [...]string{
	types.Void:   "void",
	types.Char:   "s8",
	types.UChar:  "u8",
	types.Short:  "s16",
	types.UShort: "u16",
	types.Int:    "s32",
	types.UInt:   "u32",
	types.Long:   "s64",
	types.ULong:  "u64",
	types.Float:  "flt",
	types.Double: "dbl",
}

// PrimitiveTag is the short name used inside generated identifiers.
func PrimitiveTag(p types.Primitive) string {
	if int(p) < len(primitiveTags) {
		return primitiveTags[p]
	}
	return fmt.Sprintf("prim%d", p)
}

// TypeName renders dt as an OpenCL type: keyword, lane count, then '*'.
func TypeName(dt types.Datatype) string {
	return dt.String()
}

// SymbolName builds [p_][vecN_]<tag>_<id>. The prefix encodes the type so a
// reader of the generated source can tell a pointer from a value at a glance.
func SymbolName(id ast.SymbolID, dt types.Datatype) string {
	var sb strings.Builder
	if dt.Pointer {
		sb.WriteString("p_")
	}
	if lanes := dt.Lanes(); lanes > 1 {
		sb.WriteString("vec")
		sb.WriteString(strconv.Itoa(lanes))
		sb.WriteByte('_')
	}
	sb.WriteString(PrimitiveTag(dt.Primitive))
	sb.WriteByte('_')
	sb.WriteString(strconv.FormatUint(uint64(id), 10))
	return sb.String()
}

func FunctionName(id ast.SymbolID) string {
	return "func_" + strconv.FormatUint(uint64(id), 10)
}

// ConstantText renders a literal so the device types it as the tree does:
// int plain, uint with u, long with L, ulong with UL. The minimum int and
// long are written as a subtraction since their magnitude does not fit the
// type. Floats get nine significant decimals and an f suffix, doubles
// seventeen.
func ConstantText(c ast.ConstantData) string {
	switch p := c.Type.Primitive; {
	case p == types.Float:
		f := c.Float()
		if s, ok := specialFloat(f); ok {
			return s
		}
		return fmt.Sprintf("%.9ef", f)
	case p == types.Double:
		f := c.Float()
		if s, ok := specialFloat(f); ok {
			return s
		}
		return fmt.Sprintf("%.17e", f)
	case p == types.Long:
		v := c.Int()
		if v == math.MinInt64 {
			return "(-9223372036854775807L - 1L)"
		}
		return strconv.FormatInt(v, 10) + "L"
	case p == types.ULong:
		return strconv.FormatUint(c.Uint(), 10) + "UL"
	case p.IsSigned():
		v := c.Int()
		if p == types.Int && v == math.MinInt32 {
			return "(-2147483647 - 1)"
		}
		return strconv.FormatInt(v, 10)
	default:
		return strconv.FormatUint(c.Uint(), 10) + "u"
	}
}

func specialFloat(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NAN", true
	case math.IsInf(f, 1):
		return "INFINITY", true
	case math.IsInf(f, -1):
		return "(-INFINITY)", true
	default:
		return "", false
	}
}

// commentText folds text to printable ASCII so it survives any device
// compiler, and breaks up sequences that would end the comment early.
func commentText(text string) string {
	var sb strings.Builder
	for _, r := range norm.NFKD.String(text) {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			sb.WriteByte(' ')
		case r < 0x20 || r > 0x7e:
			// combining marks left by NFKD and anything without an ASCII form
		default:
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	for strings.Contains(out, "*/") || strings.Contains(out, "/*") {
		out = strings.ReplaceAll(out, "*/", "* /")
		out = strings.ReplaceAll(out, "/*", "/ *")
	}
	return out
}
