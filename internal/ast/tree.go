package ast

import (
	"spark/internal/fault"
	"spark/internal/types"
)

type Hints struct{ Nodes, Payloads uint }

// Tree owns every node allocated during one build session. Nodes are reached
// only through their NodeID; Reset frees all of them at once whether or not
// they were ever attached.
type Tree struct {
	Nodes      *Arena[Node]
	Controls   *Arena[ControlData]
	Operators  *Arena[OperatorData]
	Functions  *Arena[FunctionData]
	Symbols    *Arena[SymbolData]
	Constants  *Arena[ConstantData]
	Properties *Arena[PropertyData]
	Vectors    *Arena[VectorData]
	Comments   *Arena[CommentData]
	Builtins   *Arena[BuiltinData]
}

func NewTree(hints Hints) *Tree {
	if hints.Nodes == 0 {
		hints.Nodes = 1 << 8
	}
	if hints.Payloads == 0 {
		hints.Payloads = 1 << 6
	}
	return &Tree{
		Nodes:      NewArena[Node](hints.Nodes),
		Controls:   NewArena[ControlData](hints.Payloads),
		Operators:  NewArena[OperatorData](hints.Payloads),
		Functions:  NewArena[FunctionData](hints.Payloads),
		Symbols:    NewArena[SymbolData](hints.Payloads),
		Constants:  NewArena[ConstantData](hints.Payloads),
		Properties: NewArena[PropertyData](hints.Payloads),
		Vectors:    NewArena[VectorData](hints.Payloads),
		Comments:   NewArena[CommentData](hints.Payloads),
		Builtins:   NewArena[BuiltinData](hints.Payloads),
	}
}

// Reset releases every node and payload.
func (t *Tree) Reset() {
	t.Nodes.Reset()
	t.Controls.Reset()
	t.Operators.Reset()
	t.Functions.Reset()
	t.Symbols.Reset()
	t.Constants.Reset()
	t.Properties.Reset()
	t.Vectors.Reset()
	t.Comments.Reset()
	t.Builtins.Reset()
}

// Len is the number of live nodes, attached or not.
func (t *Tree) Len() int { return int(t.Nodes.Len()) }

func (t *Tree) new(kind NodeKind, payload uint32) NodeID {
	return NodeID(t.Nodes.Allocate(Node{Kind: kind, Payload: PayloadID(payload)}))
}

func (t *Tree) Get(id NodeID) *Node {
	return t.Nodes.Get(uint32(id))
}

// MustGet is Get that treats a dangling handle as builder misuse.
func (t *Tree) MustGet(id NodeID) *Node {
	n := t.Get(id)
	fault.Assert(n != nil, "ast", "unknown node %d", id)
	return n
}

func (t *Tree) Kind(id NodeID) NodeKind { return t.MustGet(id).Kind }

func (t *Tree) Children(id NodeID) []NodeID { return t.MustGet(id).Children }

// AddChild appends child to parent and marks it attached. A node may have one
// parent; self-parenting and re-parenting are misuse.
func (t *Tree) AddChild(parent, child NodeID) {
	fault.Assert(parent != child, "add child", "node %d cannot be its own child", parent)
	p := t.MustGet(parent)
	c := t.MustGet(child)
	fault.Assert(!c.Attached, "add child", "node %d (%s) already has a parent", child, c.Kind)
	c.Attached = true
	p.Children = append(p.Children, child)
}

func (t *Tree) CreateControl(c Control) NodeID {
	return t.new(NodeControl, t.Controls.Allocate(ControlData{Control: c}))
}

func (t *Tree) CreateOperator(op Op, dt types.Datatype) NodeID {
	fault.Assert(op.Valid(), "create operator", "invalid operator %d", op)
	return t.new(NodeOperator, t.Operators.Allocate(OperatorData{Op: op, Type: dt}))
}

func (t *Tree) CreateFunction(id SymbolID, ret types.Datatype) NodeID {
	return t.new(NodeFunction, t.Functions.Allocate(FunctionData{ID: id, ReturnType: ret}))
}

func (t *Tree) CreateSymbol(id SymbolID, dt types.Datatype) NodeID {
	fault.Assert(dt.Validate() == nil && !dt.IsVoid(), "create symbol", "symbol %d has invalid type %v", id, dt)
	return t.new(NodeSymbol, t.Symbols.Allocate(SymbolData{ID: id, Type: dt}))
}

func (t *Tree) CreateConstant(dt types.Datatype, bits uint64) NodeID {
	fault.Assert(dt.IsScalar() && dt.Primitive != types.Void, "create constant", "constants must be scalar, have %v", dt)
	return t.new(NodeConstant, t.Constants.Allocate(ConstantData{Type: dt, Bits: bits}))
}

func (t *Tree) CreateProperty(p types.Property) NodeID {
	fault.Assert(p.Valid(), "create property", "invalid property %d", p)
	return t.new(NodeProperty, t.Properties.Allocate(PropertyData{Property: p}))
}

func (t *Tree) CreateVector(dt types.Datatype) NodeID {
	fault.Assert(dt.IsVector(), "create vector", "vector node needs a vector type, have %v", dt)
	return t.new(NodeVector, t.Vectors.Allocate(VectorData{Type: dt}))
}

func (t *Tree) CreateComment(text string) NodeID {
	return t.new(NodeComment, t.Comments.Allocate(CommentData{Text: text}))
}

func (t *Tree) CreateBuiltin(b Builtin, dt types.Datatype) NodeID {
	fault.Assert(b.Valid(), "create builtin", "invalid builtin %d", b)
	return t.new(NodeBuiltin, t.Builtins.Allocate(BuiltinData{Builtin: b, Type: dt}))
}

// MarkEntry flags a function node as the dispatchable entry point.
func (t *Tree) MarkEntry(fn NodeID) {
	data, ok := t.Function(fn)
	fault.Assert(ok, "mark entry", "node %d is not a function", fn)
	data.Entry = true
}

func (t *Tree) Control(id NodeID) (*ControlData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeControl {
		return nil, false
	}
	return t.Controls.Get(uint32(n.Payload)), true
}

// IsControl reports whether id is a control node of kind c.
func (t *Tree) IsControl(id NodeID, c Control) bool {
	data, ok := t.Control(id)
	return ok && data.Control == c
}

func (t *Tree) Operator(id NodeID) (*OperatorData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeOperator {
		return nil, false
	}
	return t.Operators.Get(uint32(n.Payload)), true
}

func (t *Tree) Function(id NodeID) (*FunctionData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeFunction {
		return nil, false
	}
	return t.Functions.Get(uint32(n.Payload)), true
}

func (t *Tree) Symbol(id NodeID) (*SymbolData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeSymbol {
		return nil, false
	}
	return t.Symbols.Get(uint32(n.Payload)), true
}

func (t *Tree) Constant(id NodeID) (*ConstantData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeConstant {
		return nil, false
	}
	return t.Constants.Get(uint32(n.Payload)), true
}

func (t *Tree) Property(id NodeID) (*PropertyData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeProperty {
		return nil, false
	}
	return t.Properties.Get(uint32(n.Payload)), true
}

func (t *Tree) Vector(id NodeID) (*VectorData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeVector {
		return nil, false
	}
	return t.Vectors.Get(uint32(n.Payload)), true
}

func (t *Tree) Comment(id NodeID) (*CommentData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeComment {
		return nil, false
	}
	return t.Comments.Get(uint32(n.Payload)), true
}

func (t *Tree) Builtin(id NodeID) (*BuiltinData, bool) {
	n := t.Get(id)
	if n == nil || n.Kind != NodeBuiltin {
		return nil, false
	}
	return t.Builtins.Get(uint32(n.Payload)), true
}

// TypeOf returns the static type a value node produces.
func (t *Tree) TypeOf(id NodeID) types.Datatype {
	n := t.MustGet(id)
	switch n.Kind {
	case NodeOperator:
		return t.Operators.Get(uint32(n.Payload)).Type
	case NodeSymbol:
		return t.Symbols.Get(uint32(n.Payload)).Type
	case NodeConstant:
		return t.Constants.Get(uint32(n.Payload)).Type
	case NodeVector:
		return t.Vectors.Get(uint32(n.Payload)).Type
	case NodeBuiltin:
		return t.Builtins.Get(uint32(n.Payload)).Type
	case NodeFunction:
		return t.Functions.Get(uint32(n.Payload)).ReturnType
	case NodeControl, NodeProperty, NodeComment:
		return types.VoidType
	default:
		return types.VoidType
	}
}

// Clone deep-copies the subtree at id. The copy is unattached and shares no
// nodes with the original.
func (t *Tree) Clone(id NodeID) NodeID {
	n := *t.MustGet(id)
	var payload uint32
	switch n.Kind {
	case NodeControl:
		payload = t.Controls.Allocate(*t.Controls.Get(uint32(n.Payload)))
	case NodeOperator:
		payload = t.Operators.Allocate(*t.Operators.Get(uint32(n.Payload)))
	case NodeFunction:
		payload = t.Functions.Allocate(*t.Functions.Get(uint32(n.Payload)))
	case NodeSymbol:
		payload = t.Symbols.Allocate(*t.Symbols.Get(uint32(n.Payload)))
	case NodeConstant:
		payload = t.Constants.Allocate(*t.Constants.Get(uint32(n.Payload)))
	case NodeProperty:
		payload = t.Properties.Allocate(*t.Properties.Get(uint32(n.Payload)))
	case NodeVector:
		payload = t.Vectors.Allocate(*t.Vectors.Get(uint32(n.Payload)))
	case NodeComment:
		payload = t.Comments.Allocate(*t.Comments.Get(uint32(n.Payload)))
	case NodeBuiltin:
		payload = t.Builtins.Allocate(*t.Builtins.Get(uint32(n.Payload)))
	default:
		fault.Assert(false, "clone", "unknown node kind %s", n.Kind)
	}
	out := t.new(n.Kind, payload)
	for _, child := range n.Children {
		t.AddChild(out, t.Clone(child))
	}
	return out
}
