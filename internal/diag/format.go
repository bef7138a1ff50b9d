package diag

import (
	"fmt"
	"strings"
)

// FormatLog renders diagnostics as a compiler build log, one line per entry
// followed by any detail lines.
func FormatLog(items []Diagnostic) string {
	var b strings.Builder
	for _, d := range items {
		writeLine(&b, d)
		for _, line := range d.Detail {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// FormatShort renders one line per diagnostic including its stable code,
// dropping detail lines.
func FormatShort(items []Diagnostic) string {
	var b strings.Builder
	for _, d := range items {
		fmt.Fprintf(&b, "%s %s %s %s\n", d.Severity, d.Code.ID(), d.Pos, sanitizeMessage(d.Message))
	}
	return b.String()
}

func writeLine(b *strings.Builder, d Diagnostic) {
	if d.Pos.File != "" || d.Pos.IsValid() {
		b.WriteString(d.Pos.String())
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	b.WriteString(": ")
	b.WriteString(sanitizeMessage(d.Message))
	b.WriteByte('\n')
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
