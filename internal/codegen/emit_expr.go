package codegen

import (
	"strings"

	"spark/internal/ast"
	"spark/internal/fault"
)

var opText = [...]string{
	ast.OpNegate:           "-",
	ast.OpAddressOf:        "&",
	ast.OpPrefixIncrement:  "++",
	ast.OpPrefixDecrement:  "--",
	ast.OpLogicalNot:       "!",
	ast.OpBitwiseNot:       "~",
	ast.OpDereference:      "*",
	ast.OpPostfixIncrement: "++",
	ast.OpPostfixDecrement: "--",
	ast.OpAdd:              "+",
	ast.OpSubtract:         "-",
	ast.OpMultiply:         "*",
	ast.OpDivide:           "/",
	ast.OpModulo:           "%",
	ast.OpGreaterThan:      ">",
	ast.OpLessThan:         "<",
	ast.OpGreaterEqual:     ">=",
	ast.OpLessEqual:        "<=",
	ast.OpNotEqual:         "!=",
	ast.OpEqual:            "==",
	ast.OpLogicalAnd:       "&&",
	ast.OpLogicalOr:        "||",
	ast.OpBitwiseAnd:       "&",
	ast.OpBitwiseOr:        "|",
	ast.OpBitwiseXor:       "^",
	ast.OpRightShift:       ">>",
	ast.OpLeftShift:        "<<",
}

// expr renders a value node.
func (fe *funcEmitter) expr(id ast.NodeID) string {
	t := fe.emitter.tree
	switch t.Kind(id) {
	case ast.NodeSymbol:
		data, _ := t.Symbol(id)
		return SymbolName(data.ID, data.Type)
	case ast.NodeConstant:
		data, _ := t.Constant(id)
		return ConstantText(*data)
	case ast.NodeOperator:
		return fe.operator(id)
	case ast.NodeVector:
		data, _ := t.Vector(id)
		return "(" + TypeName(data.Type) + ")(" + fe.args(t.Children(id)) + ")"
	case ast.NodeBuiltin:
		data, _ := t.Builtin(id)
		fault.Assert(len(t.Children(id)) == data.Builtin.Info().Arity,
			"emit builtin", "%s takes %d arguments, node has %d", data.Builtin, data.Builtin.Info().Arity, len(t.Children(id)))
		return data.Builtin.String() + "(" + fe.args(t.Children(id)) + ")"
	case ast.NodeControl, ast.NodeFunction, ast.NodeProperty, ast.NodeComment:
		panic(fault.Misusef("emit expression", "%s node %d is not a value", t.Kind(id), id))
	default:
		panic(fault.Misusef("emit expression", "unknown node kind %s", t.Kind(id)))
	}
}

func (fe *funcEmitter) args(ids []ast.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fe.expr(id)
	}
	return strings.Join(parts, ", ")
}

func (fe *funcEmitter) arity(id ast.NodeID, op ast.Op, want int) []ast.NodeID {
	children := fe.emitter.tree.Children(id)
	fault.Assert(len(children) == want, "emit "+op.String(), "want %d operands, have %d", want, len(children))
	return children
}

func (fe *funcEmitter) operator(id ast.NodeID) string {
	t := fe.emitter.tree
	data, _ := t.Operator(id)
	op := data.Op
	switch {
	case op == ast.OpBreak:
		fe.arity(id, op, 0)
		return "break"
	case op.IsPrefix():
		c := fe.arity(id, op, 1)
		return "(" + opText[op] + fe.expr(c[0]) + ")"
	case op.IsPostfix():
		c := fe.arity(id, op, 1)
		return "(" + fe.expr(c[0]) + opText[op] + ")"
	case op.IsBinary():
		c := fe.arity(id, op, 2)
		return "(" + fe.expr(c[0]) + " " + opText[op] + " " + fe.expr(c[1]) + ")"
	}
	switch op {
	case ast.OpIndex:
		c := fe.arity(id, op, 2)
		return fe.expr(c[0]) + "[" + fe.expr(c[1]) + "]"
	case ast.OpAssignment:
		c := fe.arity(id, op, 2)
		return fe.assignTarget(c[0]) + " = " + fe.expr(c[1])
	case ast.OpCall:
		children := t.Children(id)
		fault.Assert(len(children) >= 1, "emit call", "call without a callee")
		callee, ok := t.Function(children[0])
		fault.Assert(ok, "emit call", "callee is a %s node, want function", t.Kind(children[0]))
		name, ok := fe.emitter.funcNames[callee.ID]
		fault.Assert(ok, "emit call", "function %d is not part of this program", callee.ID)
		return name + "(" + fe.args(children[1:]) + ")"
	case ast.OpProperty:
		c := fe.arity(id, op, 2)
		prop, ok := t.Property(c[1])
		fault.Assert(ok, "emit property", "selector is a %s node, want property", t.Kind(c[1]))
		return fe.expr(c[0]) + "." + prop.Property.String()
	case ast.OpReturn:
		children := t.Children(id)
		switch len(children) {
		case 0:
			return "return"
		case 1:
			return "return " + fe.expr(children[0])
		default:
			panic(fault.Misusef("emit return", "return takes at most one operand, have %d", len(children)))
		}
	case ast.OpCast:
		c := fe.arity(id, op, 1)
		return "(" + TypeName(data.Type) + ")" + fe.expr(c[0])
	default:
		panic(fault.Misusef("emit operator", "unknown operator %s", op))
	}
}

// assignTarget renders the left side of an assignment. A symbol assigned for
// the first time in the current function gets its type as a prefix, which
// turns the statement into a declaration.
func (fe *funcEmitter) assignTarget(id ast.NodeID) string {
	t := fe.emitter.tree
	sym, ok := t.Symbol(id)
	if !ok {
		return fe.expr(id)
	}
	name := SymbolName(sym.ID, sym.Type)
	if _, seen := fe.declared[sym.ID]; seen {
		return name
	}
	fe.declared[sym.ID] = struct{}{}
	decl := TypeName(sym.Type) + " " + name
	if sym.Type.Pointer {
		decl = "__global " + decl
	}
	return decl
}
