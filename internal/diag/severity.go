package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	SevNote Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity maps the labels compilers print. Unknown labels are notes.
func ParseSeverity(label string) Severity {
	switch label {
	case "error", "fatal error":
		return SevError
	case "warning":
		return SevWarning
	default:
		return SevNote
	}
}
