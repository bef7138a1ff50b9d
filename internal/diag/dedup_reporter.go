package diag

// DedupReporter forwards each distinct diagnostic once. Two diagnostics are
// the same when code, severity, position and message all match; notes and
// detail lines do not count.
type DedupReporter struct {
	next       Reporter
	seen       map[identity]bool
	suppressed int
}

type identity struct {
	code Code
	sev  Severity
	pos  Pos
	msg  string
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: map[identity]bool{}}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil || r.next == nil {
		return
	}
	key := identity{d.Code, d.Severity, d.Pos, d.Message}
	if r.seen[key] {
		r.suppressed++
		return
	}
	r.seen[key] = true
	r.next.Report(d)
}

// Suppressed counts the repeats that were dropped.
func (r *DedupReporter) Suppressed() int {
	if r == nil {
		return 0
	}
	return r.suppressed
}
