package diag

import (
	"regexp"
	"strconv"
	"strings"
)

var logLine = regexp.MustCompile(`^(.*?):(\d+):(\d+): (fatal error|error|warning|note|remark): (.*)$`)

// ParseLog reads a build log in clang layout. Text before the first
// recognised line becomes a single note without position so nothing the
// compiler said is lost.
func ParseLog(log string) []Diagnostic {
	var out []Diagnostic
	var preamble []string
	for _, raw := range strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(raw, " \t")
		if m := logLine.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			out = append(out, Diagnostic{
				Severity: ParseSeverity(m[4]),
				Code:     NativeDiagnostic,
				Message:  m[5],
				Pos:      Pos{File: m[1], Line: lineNo, Col: col},
			})
			continue
		}
		if line == "" {
			continue
		}
		if len(out) == 0 {
			preamble = append(preamble, line)
			continue
		}
		last := &out[len(out)-1]
		last.Detail = append(last.Detail, line)
	}
	if len(preamble) > 0 {
		note := Diagnostic{Severity: SevNote, Code: NativeDiagnostic, Message: preamble[0], Detail: preamble[1:]}
		out = append([]Diagnostic{note}, out...)
	}
	return out
}
