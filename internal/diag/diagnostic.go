package diag

import "fmt"

// Pos is a 1-based source position. Line 0 means the position is unknown.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Before orders positions by file, line and column.
func (p Pos) Before(q Pos) bool {
	if p.File != q.File {
		return p.File < q.File
	}
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      Pos
	// Detail holds extra lines a compiler printed under the message.
	Detail []string
}

func New(sev Severity, code Code, pos Pos, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Pos: pos, Message: msg}
}

func NewError(code Code, pos Pos, msg string) Diagnostic {
	return New(SevError, code, pos, msg)
}
