package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Lexical
	LexUnknownChar              Code = 1001
	LexUnterminatedBlockComment Code = 1002
	LexBadNumber                Code = 1003

	// Syntax
	SynUnexpectedToken Code = 2001
	SynExpectSemicolon Code = 2002
	SynUnclosedParen   Code = 2003
	SynUnclosedBrace   Code = 2004
	SynExpectType      Code = 2005
	SynExpectIdent     Code = 2006

	// Semantic
	SemaUndeclared       Code = 3001
	SemaUnknownFunction  Code = 3002
	SemaRedeclared       Code = 3003
	SemaArgCount         Code = 3004
	SemaTypeMismatch     Code = 3005
	SemaNotAssignable    Code = 3006
	SemaBadSwizzle       Code = 3007
	SemaNotIndexable     Code = 3008
	SemaBreakOutsideLoop Code = 3009
	SemaMissingReturn    Code = 3010
	SemaUnsupported      Code = 3011
	SemaNoKernel         Code = 3012

	// Reported by a native compiler; the code is not known.
	NativeDiagnostic Code = 9000
)

var codeDescription = map[Code]string{
	UnknownCode:                 "Unknown error",
	LexUnknownChar:              "Unknown character",
	LexUnterminatedBlockComment: "Unterminated block comment",
	LexBadNumber:                "Malformed numeric literal",
	SynUnexpectedToken:          "Unexpected token",
	SynExpectSemicolon:          "Expected ';'",
	SynUnclosedParen:            "Unclosed parenthesis",
	SynUnclosedBrace:            "Unclosed brace",
	SynExpectType:               "Expected a type",
	SynExpectIdent:              "Expected an identifier",
	SemaUndeclared:              "Undeclared identifier",
	SemaUnknownFunction:         "Call to unknown function",
	SemaRedeclared:              "Redeclaration",
	SemaArgCount:                "Wrong number of arguments",
	SemaTypeMismatch:            "Type mismatch",
	SemaNotAssignable:           "Expression is not assignable",
	SemaBadSwizzle:              "Invalid vector component access",
	SemaNotIndexable:            "Subscripted value is not a pointer",
	SemaBreakOutsideLoop:        "'break' outside of a loop",
	SemaMissingReturn:           "Missing return value",
	SemaUnsupported:             "Construct not supported by this device",
	SemaNoKernel:                "No kernel function",
	NativeDiagnostic:            "Native compiler diagnostic",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("CL%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
