package builder

import (
	"spark/internal/ast"
	"spark/internal/fault"
	"spark/internal/types"
)

// inBody asserts that statements can be placed: a function body is being
// built and the top of the stack is a block.
func (s *Session) inBody(op string) {
	s.mustBeOpen(op)
	fault.Assert(s.fn != nil, op, "statements must be built inside a function body")
	fault.Assert(s.tree.IsControl(s.Peek(), ast.ControlScopeBlock), op, "current scope is not a block")
}

// Var declares a new variable initialized with init and returns it.
func (s *Session) Var(init Value) Value {
	return s.Declare(init.typ, init)
}

// Declare is Var with an explicit variable type; init must be assignable to dt.
func (s *Session) Declare(dt types.Datatype, init Value) Value {
	s.inBody("declare")
	fault.Assert(dt.Validate() == nil && !dt.IsVoid(), "declare", "cannot declare a variable of type %s", dt)
	fault.Assert(assignable(dt, init.typ), "declare", "cannot initialize %s from %s", dt, init.typ)
	sym := s.tree.CreateSymbol(s.NextSymbol(), dt)
	assign := s.tree.CreateOperator(ast.OpAssignment, dt)
	s.tree.AddChild(assign, sym)
	s.tree.AddChild(assign, s.operand("declare", init))
	s.attach(assign)
	return s.wrapIn(sym, s.Peek())
}

// Assign stores src into dst as a statement.
func (s *Session) Assign(dst, src Value) {
	s.inBody("assign")
	fault.Assert(dst.IsValid() && s.isLValue(dst.node), "assign", "destination is not a storage location")
	fault.Assert(assignable(dst.typ, src.typ), "assign", "cannot assign %s to %s", src.typ, dst.typ)
	assign := s.tree.CreateOperator(ast.OpAssignment, dst.typ)
	s.tree.AddChild(assign, s.operand("assign", dst))
	s.tree.AddChild(assign, s.operand("assign", src))
	s.attach(assign)
}

// Emit places v in the current block as an expression statement. It is the
// only way an expression that was not consumed by another node reaches the
// program.
func (s *Session) Emit(v Value) {
	s.inBody("emit")
	s.attach(s.operand("emit", v))
}

// Inc emits v++.
func (s *Session) Inc(v Value) { s.Emit(v.PostInc()) }

// Dec emits v--.
func (s *Session) Dec(v Value) { s.Emit(v.PostDec()) }

// Return ends the current function, with a value unless it returns void.
func (s *Session) Return(v ...Value) {
	s.inBody("return")
	fault.Assert(len(v) <= 1, "return", "return takes at most one value")
	ret := s.fn.ret
	if len(v) == 0 {
		fault.Assert(ret.IsVoid(), "return", "function returning %s needs a value", ret)
		s.attach(s.tree.CreateOperator(ast.OpReturn, types.VoidType))
		return
	}
	fault.Assert(!ret.IsVoid(), "return", "void function cannot return a value")
	fault.Assert(assignable(ret, v[0].typ), "return", "cannot return %s from a function returning %s", v[0].typ, ret)
	node := s.tree.CreateOperator(ast.OpReturn, ret)
	s.tree.AddChild(node, s.operand("return", v[0]))
	s.attach(node)
}

// Break leaves the innermost loop.
func (s *Session) Break() {
	s.inBody("break")
	fault.Assert(s.inLoop(), "break", "break outside of a loop")
	s.attach(s.tree.CreateOperator(ast.OpBreak, types.VoidType))
}

func (s *Session) Comment(text string) {
	s.inBody("comment")
	s.attach(s.tree.CreateComment(text))
}

func (s *Session) inLoop() bool {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		id := s.scopes[i]
		if s.tree.IsControl(id, ast.ControlWhile) {
			return true
		}
		if s.tree.Kind(id) == ast.NodeFunction {
			return false
		}
	}
	return false
}

func (s *Session) condition(op string, cond Value) ast.NodeID {
	fault.Assert(cond.IsValid(), op, "missing condition")
	fault.Assert(cond.typ.IsScalar() || cond.typ.Pointer, op, "condition must be a scalar, have %s", cond.typ)
	return s.operand(op, cond)
}

// block creates a control node in the current scope with an optional
// condition and a body block, and builds the body inside it.
func (s *Session) block(ctrl ast.Control, cond *Value, body func()) ast.NodeID {
	op := ctrl.String()
	s.inBody(op)
	node := s.tree.CreateControl(ctrl)
	s.attach(node)
	s.within(node, func() {
		if cond != nil {
			s.tree.AddChild(node, s.condition(op, *cond))
		}
		blk := s.tree.CreateControl(ast.ControlScopeBlock)
		s.tree.AddChild(node, blk)
		s.within(blk, body)
	})
	return node
}

// IfChain continues an if statement with else-if and else branches.
type IfChain struct {
	s      *Session
	scope  ast.NodeID
	last   ast.NodeID
	closed bool
}

func (s *Session) If(cond Value, body func()) *IfChain {
	node := s.block(ast.ControlIf, &cond, body)
	return &IfChain{s: s, scope: s.Peek(), last: node}
}

func (c *IfChain) follow(op string) {
	s := c.s
	fault.Assert(!c.closed, op, "if statement already has an else branch")
	fault.Assert(s.Peek() == c.scope, op, "branch must be built in the scope of its if")
	children := s.tree.Children(c.scope)
	fault.Assert(len(children) > 0 && children[len(children)-1] == c.last,
		op, "branch must directly follow its if statement")
}

func (c *IfChain) ElseIf(cond Value, body func()) *IfChain {
	c.follow("else if")
	c.last = c.s.block(ast.ControlElseIf, &cond, body)
	return c
}

func (c *IfChain) Else(body func()) {
	c.follow("else")
	c.last = c.s.block(ast.ControlElse, nil, body)
	c.closed = true
}

func (s *Session) While(cond Value, body func()) {
	s.block(ast.ControlWhile, &cond, body)
}

// Range loops an induction variable from start while it is below stop,
// advancing by step. It lowers to
//
//	i = start;
//	while (1) { if (i >= stop) { break; } body; i = i + step; }
func (s *Session) Range(start, stop, step Value, body func(i Value)) {
	s.inBody("range")
	fault.Assert(start.typ.IsScalar(), "range", "range bounds must be scalars, have %s", start.typ)
	s.Comment("Init")
	i := s.Var(start)
	s.While(s.Int(1), func() {
		s.If(i.Ge(stop), func() { s.Break() })
		if body != nil {
			body(i)
		}
		s.Assign(i, i.Add(step))
	})
}

// For is Range with a step of one.
func (s *Session) For(start, stop Value, body func(i Value)) {
	s.Range(start, stop, s.Constant(start.typ.Primitive, 1), body)
}
