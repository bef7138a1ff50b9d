package builder

import (
	"context"
	"strconv"

	"spark/internal/ast"
	"spark/internal/codegen"
	"spark/internal/fault"
	"spark/internal/trace"
)

type Options struct {
	Hints ast.Hints
	// EntryName is the kernel name of the entry point; empty means
	// codegen.DefaultEntryName.
	EntryName string
	// DumpTree keeps an outline of the finished tree in Program.Tree.
	DumpTree bool
}

type Stats struct {
	Nodes     int
	Functions int
	Symbols   int
}

// Program is generated source plus what the runtime needs to bind arguments.
type Program struct {
	Source string
	Entry  string
	// Params is the logical parameter list of the entry point.
	Params []Param
	Tree   string
	Stats  Stats
}

// Build runs fn inside a fresh program and generates its source.
func Build(ctx context.Context, opts Options, fn func(*Session)) (*Program, error) {
	return NewSession(opts.Hints).Build(ctx, opts, fn)
}

// Build brackets fn with Begin and End on s. Builder misuse inside fn panics
// and is not recovered here; the session is reset so it can be reused.
func (s *Session) Build(ctx context.Context, opts Options, fn func(*Session)) (*Program, error) {
	fault.Assert(fn != nil, "build", "nil program body")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span, _ := trace.Start(ctx, trace.ScopeStage, "build")
	detail := "panic"
	defer func() { span.End(detail) }()

	s.Begin()
	defer func() {
		if s.open {
			s.abort()
		}
	}()
	fn(s)
	fault.Assert(s.Depth() == 1, "build", "scope stack unbalanced: %d open scopes", s.Depth())

	out, err := codegen.EmitProgram(s.tree, s.root, codegen.Options{EntryName: opts.EntryName})
	if err != nil {
		detail = "error"
		return nil, err
	}
	prog := &Program{
		Source: out.Source,
		Entry:  out.Entry,
		Stats: Stats{
			Nodes:     s.tree.Len(),
			Functions: out.Functions,
			Symbols:   int(s.next),
		},
	}
	for _, f := range s.functions {
		if f.entry {
			prog.Params = append([]Param(nil), f.params...)
		}
	}
	if opts.DumpTree {
		prog.Tree = s.tree.DumpString(s.root)
	}
	s.End()

	span.WithExtra("nodes", strconv.Itoa(prog.Stats.Nodes)).
		WithExtra("bytes", strconv.Itoa(len(prog.Source)))
	detail = "ok"
	return prog, nil
}
