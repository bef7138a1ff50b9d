// Package codegen renders a kernel AST as OpenCL C source text.
//
// The output is deterministic: the same tree always produces the same text.
// Every binary expression is fully parenthesized, so operator precedence is
// never relied on.
package codegen

import (
	"fmt"
	"strings"

	"spark/internal/ast"
	"spark/internal/fault"
)

// DefaultEntryName is the kernel name given to the entry-point function.
const DefaultEntryName = "spark_main"

const indentUnit = "    "

type Options struct {
	// EntryName overrides DefaultEntryName.
	EntryName string
}

// Output is a generated program.
type Output struct {
	Source string
	// Entry is the kernel name to look up after the device compiles Source.
	Entry     string
	EntryNode ast.NodeID
	Functions int
}

type Emitter struct {
	tree      *ast.Tree
	opts      Options
	buf       strings.Builder
	funcNames map[ast.SymbolID]string
	entry     ast.NodeID
}

type funcEmitter struct {
	emitter *Emitter
	fn      ast.NodeID
	// declared holds symbols that already received their type prefix in
	// this function.
	declared map[ast.SymbolID]struct{}
}

// EmitProgram walks the children of root in order and renders every function.
// Malformed tree shapes panic with a misuse error; a program without exactly
// one entry point is reported as an error.
func EmitProgram(t *ast.Tree, root ast.NodeID, opts Options) (*Output, error) {
	if opts.EntryName == "" {
		opts.EntryName = DefaultEntryName
	}
	fault.Assert(t.IsControl(root, ast.ControlRoot), "emit program", "node %d is not a program root", root)
	e := &Emitter{
		tree:      t,
		opts:      opts,
		funcNames: make(map[ast.SymbolID]string),
	}
	if err := e.prepareFunctions(root); err != nil {
		return nil, err
	}
	fns := t.Children(root)
	for _, fn := range fns {
		e.emitFunction(fn)
	}
	return &Output{
		Source:    e.buf.String(),
		Entry:     opts.EntryName,
		EntryNode: e.entry,
		Functions: len(fns),
	}, nil
}

func (e *Emitter) prepareFunctions(root ast.NodeID) error {
	entries := 0
	for _, id := range e.tree.Children(root) {
		data, ok := e.tree.Function(id)
		fault.Assert(ok, "emit program", "program root holds a %s node, want function", e.tree.Kind(id))
		name := FunctionName(data.ID)
		if data.Entry {
			entries++
			e.entry = id
			name = e.opts.EntryName
		}
		e.funcNames[data.ID] = name
	}
	if entries != 1 {
		return fault.Misusef("emit program", "program has %d entry points, want exactly one", entries)
	}
	return nil
}

// emitFunction writes a blank line, the signature and the body block.
func (e *Emitter) emitFunction(id ast.NodeID) {
	data, _ := e.tree.Function(id)
	children := e.tree.Children(id)
	fault.Assert(len(children) == 2 &&
		e.tree.IsControl(children[0], ast.ControlParameterList) &&
		e.tree.IsControl(children[1], ast.ControlScopeBlock),
		"emit function", "function %d must hold a parameter list and a body block", data.ID)

	fe := &funcEmitter{
		emitter:  e,
		fn:       id,
		declared: make(map[ast.SymbolID]struct{}),
	}
	params := fe.paramList(children[0])

	e.buf.WriteByte('\n')
	if data.Entry {
		e.buf.WriteString("__kernel ")
	}
	fmt.Fprintf(&e.buf, "%s %s(%s)\n", TypeName(data.ReturnType), e.funcNames[data.ID], strings.Join(params, ", "))
	fe.emitBlock(children[1], 0)
}

func (fe *funcEmitter) paramList(list ast.NodeID) []string {
	t := fe.emitter.tree
	params := make([]string, 0, len(t.Children(list)))
	for _, p := range t.Children(list) {
		sym, ok := t.Symbol(p)
		fault.Assert(ok, "emit function", "parameter list holds a %s node, want symbol", t.Kind(p))
		decl := TypeName(sym.Type) + " " + SymbolName(sym.ID, sym.Type)
		if sym.Type.Pointer {
			decl = "__global " + decl
		}
		params = append(params, decl)
		fe.declared[sym.ID] = struct{}{}
	}
	return params
}

func (fe *funcEmitter) write(s string) { fe.emitter.buf.WriteString(s) }

func indent(depth int) string { return strings.Repeat(indentUnit, depth) }

func (fe *funcEmitter) emitBlock(id ast.NodeID, depth int) {
	t := fe.emitter.tree
	fault.Assert(t.IsControl(id, ast.ControlScopeBlock), "emit block", "node %d is not a block", id)
	fe.write(indent(depth) + "{\n")
	for _, stmt := range t.Children(id) {
		fe.emitStatement(stmt, depth+1)
	}
	fe.write(indent(depth) + "}\n")
}

func (fe *funcEmitter) emitStatement(id ast.NodeID, depth int) {
	t := fe.emitter.tree
	switch t.Kind(id) {
	case ast.NodeControl:
		fe.emitControl(id, depth)
	case ast.NodeComment:
		data, _ := t.Comment(id)
		fe.write(indent(depth) + "/* " + commentText(data.Text) + " */\n")
	case ast.NodeOperator, ast.NodeSymbol, ast.NodeConstant, ast.NodeVector, ast.NodeBuiltin:
		fe.write(indent(depth) + fe.expr(id) + ";\n")
	case ast.NodeFunction, ast.NodeProperty:
		panic(fault.Misusef("emit statement", "%s node %d cannot stand as a statement", t.Kind(id), id))
	default:
		panic(fault.Misusef("emit statement", "unknown node kind %s", t.Kind(id)))
	}
}

// emitControl renders if/else-if/else/while headers followed by their block,
// and nested blocks.
func (fe *funcEmitter) emitControl(id ast.NodeID, depth int) {
	t := fe.emitter.tree
	data, _ := t.Control(id)
	children := t.Children(id)
	switch data.Control {
	case ast.ControlScopeBlock:
		fe.emitBlock(id, depth)
	case ast.ControlIf, ast.ControlElseIf, ast.ControlWhile:
		fault.Assert(len(children) == 2, "emit "+data.Control.String(), "want condition and block, have %d children", len(children))
		var keyword string
		switch data.Control {
		case ast.ControlIf:
			keyword = "if"
		case ast.ControlElseIf:
			keyword = "else if"
		default:
			keyword = "while"
		}
		fe.write(indent(depth) + keyword + " (" + fe.expr(children[0]) + ")\n")
		fe.emitBlock(children[1], depth)
	case ast.ControlElse:
		fault.Assert(len(children) == 1, "emit else", "want a single block, have %d children", len(children))
		fe.write(indent(depth) + "else\n")
		fe.emitBlock(children[0], depth)
	case ast.ControlRoot, ast.ControlParameterList:
		panic(fault.Misusef("emit statement", "%s cannot appear inside a function body", data.Control))
	default:
		panic(fault.Misusef("emit statement", "unknown control %s", data.Control))
	}
}
