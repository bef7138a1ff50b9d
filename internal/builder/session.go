// Package builder turns host-side calls into a kernel AST.
//
// A Session owns the node arena, the scope stack and the symbol counter for
// one program. Statements attach to whatever node is on top of the stack;
// expressions return unattached Value handles that only reach the program
// when they are consumed by another node or emitted as a statement.
//
// A Session is confined to one goroutine.
package builder

import (
	"spark/internal/ast"
	"spark/internal/fault"
)

type Session struct {
	tree   *ast.Tree
	scopes []ast.NodeID
	root   ast.NodeID
	next   ast.SymbolID
	open   bool
	// gen changes on every Begin so stale handles are detected.
	gen uint32

	// fn is the function whose body is being built, nil at program level.
	fn        *Function
	functions []*Function
}

func NewSession(hints ast.Hints) *Session {
	return &Session{tree: ast.NewTree(hints)}
}

// Tree exposes the arena for code generation and inspection.
func (s *Session) Tree() *ast.Tree { return s.tree }

// Open reports whether the session is between Begin and End.
func (s *Session) Open() bool { return s.open }

// Begin starts a program: the arena and symbol counter are reset, a root
// node is created and becomes the only scope.
func (s *Session) Begin() {
	fault.Assert(!s.open, "begin program", "a program is already being built in this session")
	s.tree.Reset()
	s.scopes = s.scopes[:0]
	s.functions = nil
	s.fn = nil
	s.next = ast.NoSymbolID
	s.gen++
	s.root = s.tree.CreateControl(ast.ControlRoot)
	s.scopes = append(s.scopes, s.root)
	s.open = true
}

// End closes the program and frees every node. Generated text must have been
// produced before this point.
func (s *Session) End() {
	fault.Assert(s.open, "end program", "no program is open")
	fault.Assert(len(s.scopes) == 1 && s.scopes[0] == s.root,
		"end program", "scope stack unbalanced: %d open scopes", len(s.scopes))
	s.scopes = s.scopes[:0]
	s.tree.Reset()
	s.root = ast.NoNodeID
	s.fn = nil
	s.functions = nil
	s.open = false
}

// abort drops the program state after a panic inside Build.
func (s *Session) abort() {
	s.scopes = s.scopes[:0]
	s.tree.Reset()
	s.root = ast.NoNodeID
	s.fn = nil
	s.functions = nil
	s.open = false
}

func (s *Session) Root() ast.NodeID {
	s.mustBeOpen("root")
	return s.root
}

// NextSymbol issues a fresh id; ids are never reused within a program.
func (s *Session) NextSymbol() ast.SymbolID {
	s.mustBeOpen("next symbol")
	s.next++
	return s.next
}

func (s *Session) Push(id ast.NodeID) {
	s.mustBeOpen("push scope")
	s.tree.MustGet(id)
	s.scopes = append(s.scopes, id)
}

func (s *Session) Pop() ast.NodeID {
	s.mustBeOpen("pop scope")
	fault.Assert(len(s.scopes) > 1, "pop scope", "cannot pop the program root")
	top := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	return top
}

func (s *Session) Peek() ast.NodeID {
	s.mustBeOpen("peek scope")
	return s.scopes[len(s.scopes)-1]
}

// Depth is the number of open scopes including the root.
func (s *Session) Depth() int { return len(s.scopes) }

// Enter pushes id and returns the matching exit. Exit checks that id is
// still on top, so mismatched pairs are caught where they happen.
func (s *Session) Enter(id ast.NodeID) (exit func()) {
	s.Push(id)
	depth := len(s.scopes)
	return func() {
		fault.Assert(len(s.scopes) == depth && s.scopes[depth-1] == id,
			"exit scope", "scope %d is not on top of the stack", id)
		s.Pop()
	}
}

// within runs body with id pushed; the pop happens on every exit path.
func (s *Session) within(id ast.NodeID, body func()) {
	exit := s.Enter(id)
	defer exit()
	if body != nil {
		body()
	}
}

// attach adds node as the next statement of the current scope.
func (s *Session) attach(node ast.NodeID) {
	s.tree.AddChild(s.Peek(), node)
}

func (s *Session) mustBeOpen(op string) {
	fault.Assert(s.open, op, "no program is open; call Begin first")
}
