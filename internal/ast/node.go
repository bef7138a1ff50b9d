package ast

import (
	"fmt"

	"spark/internal/types"
)

type NodeKind uint8

const (
	NodeControl NodeKind = iota
	NodeOperator
	NodeFunction
	NodeSymbol
	NodeConstant
	NodeProperty
	NodeVector
	NodeComment
	NodeBuiltin
)

func (k NodeKind) String() string {
	switch k {
	case NodeControl:
		return "control"
	case NodeOperator:
		return "operator"
	case NodeFunction:
		return "function"
	case NodeSymbol:
		return "symbol"
	case NodeConstant:
		return "constant"
	case NodeProperty:
		return "property"
	case NodeVector:
		return "vector"
	case NodeComment:
		return "comment"
	case NodeBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("NodeKind(%d)", k)
	}
}

// IsValue reports whether nodes of this kind can appear where an expression is expected.
func (k NodeKind) IsValue() bool {
	switch k {
	case NodeOperator, NodeSymbol, NodeConstant, NodeVector, NodeBuiltin:
		return true
	case NodeControl, NodeFunction, NodeProperty, NodeComment:
		return false
	default:
		return false
	}
}

// Node is one tree element. Kind selects which payload arena Payload points into.
type Node struct {
	Kind     NodeKind
	Attached bool
	Payload  PayloadID
	Children []NodeID
}

type Control uint8

const (
	ControlRoot Control = iota
	ControlParameterList
	ControlScopeBlock
	ControlIf
	ControlElseIf
	ControlElse
	ControlWhile
)

func (c Control) String() string {
	switch c {
	case ControlRoot:
		return "root"
	case ControlParameterList:
		return "parameter_list"
	case ControlScopeBlock:
		return "scope_block"
	case ControlIf:
		return "if"
	case ControlElseIf:
		return "else_if"
	case ControlElse:
		return "else"
	case ControlWhile:
		return "while"
	default:
		return fmt.Sprintf("Control(%d)", c)
	}
}

// Op is an operator id. The declaration order is load-bearing: the code
// generator classifies operators by range.
type Op uint8

const (
	OpBreak Op = iota

	OpNegate
	OpAddressOf
	OpPrefixIncrement
	OpPrefixDecrement
	OpLogicalNot
	OpBitwiseNot
	OpDereference

	OpPostfixIncrement
	OpPostfixDecrement

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpGreaterThan
	OpLessThan
	OpGreaterEqual
	OpLessEqual
	OpNotEqual
	OpEqual
	OpLogicalAnd
	OpLogicalOr
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpRightShift
	OpLeftShift

	OpAssignment
	OpCall
	OpProperty
	OpReturn
	OpCast
	OpIndex

	opCount
)

var opNames = [...]string{
	OpBreak:            "break",
	OpNegate:           "negate",
	OpAddressOf:        "address_of",
	OpPrefixIncrement:  "prefix_increment",
	OpPrefixDecrement:  "prefix_decrement",
	OpLogicalNot:       "logical_not",
	OpBitwiseNot:       "bitwise_not",
	OpDereference:      "dereference",
	OpPostfixIncrement: "postfix_increment",
	OpPostfixDecrement: "postfix_decrement",
	OpAdd:              "add",
	OpSubtract:         "subtract",
	OpMultiply:         "multiply",
	OpDivide:           "divide",
	OpModulo:           "modulo",
	OpGreaterThan:      "greater_than",
	OpLessThan:         "less_than",
	OpGreaterEqual:     "greater_equal",
	OpLessEqual:        "less_equal",
	OpNotEqual:         "not_equal",
	OpEqual:            "equal",
	OpLogicalAnd:       "logical_and",
	OpLogicalOr:        "logical_or",
	OpBitwiseAnd:       "bitwise_and",
	OpBitwiseOr:        "bitwise_or",
	OpBitwiseXor:       "bitwise_xor",
	OpRightShift:       "right_shift",
	OpLeftShift:        "left_shift",
	OpAssignment:       "assignment",
	OpCall:             "call",
	OpProperty:         "property",
	OpReturn:           "return",
	OpCast:             "cast",
	OpIndex:            "index",
}

func (o Op) String() string {
	if o < opCount {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

func (o Op) Valid() bool { return o < opCount }

func (o Op) IsPrefix() bool { return o >= OpNegate && o <= OpDereference }

func (o Op) IsPostfix() bool { return o >= OpPostfixIncrement && o <= OpPostfixDecrement }

func (o Op) IsBinary() bool { return o >= OpAdd && o <= OpLeftShift }

// IsComparison covers the relational and equality operators.
func (o Op) IsComparison() bool { return o >= OpGreaterThan && o <= OpEqual }

// HasSideEffect marks operators whose evaluation writes state.
func (o Op) HasSideEffect() bool {
	switch o {
	case OpPrefixIncrement, OpPrefixDecrement, OpPostfixIncrement, OpPostfixDecrement,
		OpAssignment, OpCall, OpReturn, OpBreak:
		return true
	default:
		return false
	}
}

// Builtin names a function provided by the device language.
type Builtin uint8

const (
	BuiltinGlobalID Builtin = iota
	BuiltinGlobalSize
	BuiltinSqrt
	BuiltinRsqrt
	BuiltinSin
	BuiltinCos
	BuiltinTan
	BuiltinAtan2
	BuiltinExp
	BuiltinLog
	BuiltinPow
	BuiltinFabs
	BuiltinFloor
	BuiltinCeil
	BuiltinFmin
	BuiltinFmax
	BuiltinHypot
	BuiltinMad
	BuiltinClamp
	BuiltinMix
	BuiltinDot
	BuiltinLength
	BuiltinAbs
	BuiltinMin
	BuiltinMax

	builtinCount
)

// BuiltinInfo describes the spelling and arity of a builtin.
type BuiltinInfo struct {
	Name  string
	Arity int
}

var builtinTable = [...]BuiltinInfo{
	BuiltinGlobalID:   {"get_global_id", 1},
	BuiltinGlobalSize: {"get_global_size", 1},
	BuiltinSqrt:       {"sqrt", 1},
	BuiltinRsqrt:      {"rsqrt", 1},
	BuiltinSin:        {"sin", 1},
	BuiltinCos:        {"cos", 1},
	BuiltinTan:        {"tan", 1},
	BuiltinAtan2:      {"atan2", 2},
	BuiltinExp:        {"exp", 1},
	BuiltinLog:        {"log", 1},
	BuiltinPow:        {"pow", 2},
	BuiltinFabs:       {"fabs", 1},
	BuiltinFloor:      {"floor", 1},
	BuiltinCeil:       {"ceil", 1},
	BuiltinFmin:       {"fmin", 2},
	BuiltinFmax:       {"fmax", 2},
	BuiltinHypot:      {"hypot", 2},
	BuiltinMad:        {"mad", 3},
	BuiltinClamp:      {"clamp", 3},
	BuiltinMix:        {"mix", 3},
	BuiltinDot:        {"dot", 2},
	BuiltinLength:     {"length", 1},
	BuiltinAbs:        {"abs", 1},
	BuiltinMin:        {"min", 2},
	BuiltinMax:        {"max", 2},
}

func (b Builtin) Valid() bool { return b < builtinCount }

func (b Builtin) Info() BuiltinInfo {
	if b < builtinCount {
		return builtinTable[b]
	}
	return BuiltinInfo{Name: fmt.Sprintf("Builtin(%d)", b)}
}

func (b Builtin) String() string { return b.Info().Name }

// Payloads, one arena each.

type ControlData struct {
	Control Control
}

type OperatorData struct {
	Op   Op
	Type types.Datatype
}

type FunctionData struct {
	ID         SymbolID
	ReturnType types.Datatype
	Entry      bool
}

type SymbolData struct {
	ID   SymbolID
	Type types.Datatype
}

// ConstantData holds a scalar literal as little-endian raw bits of Type.Primitive.
type ConstantData struct {
	Type types.Datatype
	Bits uint64
}

type PropertyData struct {
	Property types.Property
}

type VectorData struct {
	Type types.Datatype
}

type CommentData struct {
	Text string
}

type BuiltinData struct {
	Builtin Builtin
	Type    types.Datatype
}
