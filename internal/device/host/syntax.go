package host

import (
	"spark/internal/diag"
	"spark/internal/types"
)

// The syntax tree of a parsed program. The checker fills the resolved fields
// (typ, slot, callee and the conversion targets) in place; the interpreter
// only reads them.

type program struct {
	funcs  []*funcDecl
	byName map[string]*funcDecl
}

type funcDecl struct {
	name   string
	pos    diag.Pos
	kernel bool
	ret    types.Datatype
	params []*varDecl
	body   *blockStmt
	// slots is the frame size: parameters first, then locals.
	slots int
}

type varDecl struct {
	name string
	pos  diag.Pos
	typ  types.Datatype
	slot int
}

type stmt interface {
	stmtNode()
	position() diag.Pos
}

type (
	blockStmt struct {
		pos   diag.Pos
		stmts []stmt
	}
	declStmt struct {
		decl *varDecl
		init expr // may be nil
	}
	exprStmt struct {
		x expr
	}
	ifStmt struct {
		pos  diag.Pos
		cond expr
		then *blockStmt
		els  stmt // nil, *blockStmt or *ifStmt
	}
	whileStmt struct {
		pos  diag.Pos
		cond expr
		body *blockStmt
	}
	breakStmt struct {
		pos diag.Pos
	}
	continueStmt struct {
		pos diag.Pos
	}
	returnStmt struct {
		pos diag.Pos
		x   expr // may be nil
	}
)

func (*blockStmt) stmtNode()    {}
func (*declStmt) stmtNode()     {}
func (*exprStmt) stmtNode()     {}
func (*ifStmt) stmtNode()       {}
func (*whileStmt) stmtNode()    {}
func (*breakStmt) stmtNode()    {}
func (*continueStmt) stmtNode() {}
func (*returnStmt) stmtNode()   {}

func (s *blockStmt) position() diag.Pos    { return s.pos }
func (s *declStmt) position() diag.Pos     { return s.decl.pos }
func (s *exprStmt) position() diag.Pos     { return s.x.position() }
func (s *ifStmt) position() diag.Pos       { return s.pos }
func (s *whileStmt) position() diag.Pos    { return s.pos }
func (s *breakStmt) position() diag.Pos    { return s.pos }
func (s *continueStmt) position() diag.Pos { return s.pos }
func (s *returnStmt) position() diag.Pos   { return s.pos }

type expr interface {
	exprNode()
	position() diag.Pos
	// resolved returns the type the checker assigned.
	resolved() types.Datatype
}

// exprBase carries what every expression shares.
type exprBase struct {
	pos diag.Pos
	typ types.Datatype
}

func (e *exprBase) position() diag.Pos       { return e.pos }
func (e *exprBase) resolved() types.Datatype { return e.typ }

type (
	identExpr struct {
		exprBase
		name string
		slot int
		// special is set for the NAN and INFINITY macros.
		special bool
	}
	intLit struct {
		exprBase
		bits uint64
	}
	floatLit struct {
		exprBase
		val float64
	}
	unaryExpr struct {
		exprBase
		op      string
		x       expr
		postfix bool
		// operand is the promoted type the operation computes in.
		operand types.Datatype
	}
	binaryExpr struct {
		exprBase
		op   string
		x, y expr
		// operand is the common type both sides convert to before the op.
		operand types.Datatype
	}
	assignExpr struct {
		exprBase
		op       string // "=" or a compound operator such as "+="
		dst, src expr
		operand  types.Datatype
	}
	indexExpr struct {
		exprBase
		x, index expr
	}
	callExpr struct {
		exprBase
		name   string
		args   []expr
		callee  *funcDecl    // nil for builtins
		builtin *builtinSpec // nil for user functions
		// argTypes are the conversion targets for each argument.
		argTypes []types.Datatype
	}
	memberExpr struct {
		exprBase
		x     expr
		sel   string
		lanes []int
	}
	castExpr struct {
		exprBase
		x expr
	}
	vectorExpr struct {
		exprBase
		args []expr
	}
	condExpr struct {
		exprBase
		cond, x, y expr
	}
)

func (*identExpr) exprNode()  {}
func (*intLit) exprNode()     {}
func (*floatLit) exprNode()   {}
func (*unaryExpr) exprNode()  {}
func (*binaryExpr) exprNode() {}
func (*assignExpr) exprNode() {}
func (*indexExpr) exprNode()  {}
func (*callExpr) exprNode()   {}
func (*memberExpr) exprNode() {}
func (*castExpr) exprNode()   {}
func (*vectorExpr) exprNode() {}
func (*condExpr) exprNode()   {}
