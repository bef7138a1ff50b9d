package builder

import (
	"fmt"

	"spark/internal/ast"
	"spark/internal/types"
)

// binaryResult computes the result type of a binary operator or an error
// describing why the operand types do not combine.
func binaryResult(op ast.Op, l, r types.Datatype) (types.Datatype, error) {
	if l.IsVoid() || r.IsVoid() {
		return types.VoidType, fmt.Errorf("%s on void operand", op)
	}
	if l.Pointer || r.Pointer {
		return pointerArithmetic(op, l, r)
	}
	switch op {
	case ast.OpLogicalAnd, ast.OpLogicalOr:
		if !l.IsScalar() || !r.IsScalar() {
			return types.VoidType, fmt.Errorf("%s needs scalar operands, have %s and %s", op, l, r)
		}
		return types.Scalar(types.Int), nil
	case ast.OpModulo, ast.OpBitwiseAnd, ast.OpBitwiseOr, ast.OpBitwiseXor, ast.OpLeftShift, ast.OpRightShift:
		if !l.Primitive.IsInteger() || !r.Primitive.IsInteger() {
			return types.VoidType, fmt.Errorf("%s needs integer operands, have %s and %s", op, l, r)
		}
	}
	var result types.Datatype
	switch {
	case l.IsVector() && r.IsVector():
		if l != r {
			return types.VoidType, fmt.Errorf("%s on mismatched vectors %s and %s", op, l, r)
		}
		result = l
	case l.IsVector():
		result = l
	case r.IsVector():
		if op == ast.OpLeftShift || op == ast.OpRightShift {
			return types.VoidType, fmt.Errorf("cannot shift scalar %s by vector %s", l, r)
		}
		result = r
	case op == ast.OpLeftShift || op == ast.OpRightShift:
		result = types.Scalar(types.Promote(l.Primitive))
	default:
		result = types.Scalar(types.CommonScalar(l.Primitive, r.Primitive))
	}
	if op.IsComparison() {
		return types.ComparisonResult(result), nil
	}
	return result, nil
}

func pointerArithmetic(op ast.Op, l, r types.Datatype) (types.Datatype, error) {
	switch {
	case op == ast.OpAdd && l.Pointer && r.IsScalar() && r.Primitive.IsInteger():
		return l, nil
	case op == ast.OpAdd && r.Pointer && l.IsScalar() && l.Primitive.IsInteger():
		return r, nil
	case op == ast.OpSubtract && l.Pointer && r.IsScalar() && r.Primitive.IsInteger():
		return l, nil
	case (op == ast.OpEqual || op == ast.OpNotEqual) && l == r:
		return types.Scalar(types.Int), nil
	default:
		return types.VoidType, fmt.Errorf("%s is not defined for %s and %s", op, l, r)
	}
}

// assignable reports whether a value of type src may be stored into dst.
func assignable(dst, src types.Datatype) bool {
	switch {
	case dst == src:
		return true
	case dst.Pointer || src.Pointer:
		return false
	case dst.IsScalar() && src.IsScalar():
		return true
	case dst.IsVector() && src.IsScalar():
		return true
	default:
		return false
	}
}

// castable reports whether an explicit cast from src to dst exists.
func castable(dst, src types.Datatype) bool {
	switch {
	case dst.IsVoid() || src.IsVoid():
		return false
	case dst.Pointer && src.Pointer:
		return true
	case dst.Pointer || src.Pointer:
		return false
	case src.IsScalar():
		return true
	default:
		// vector conversions need convert_<type>n, which the builder does not model
		return dst == src
	}
}
