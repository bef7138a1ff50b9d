package trace

import "time"

// Kind is what happened: a span opened or closed, an instant, or a beat.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

// kindMarks prefix text lines.
var kindMarks = [...]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
	KindHeartbeat: "♡ ",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeCommand Scope = iota + 1 // CLI command or top-level API call
	ScopeStage                    // build, codegen, device compile, dispatch
	ScopeKernel                   // per-argument and per-buffer work
	ScopeNode                     // tree level
)

var scopeNames = [...]string{
	ScopeCommand: "command",
	ScopeStage:   "stage",
	ScopeKernel:  "kernel",
	ScopeNode:    "node",
}

func (s Scope) String() string {
	if s > 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is one trace record. Dur is set on span ends only.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans
	GID      uint64
	Name     string
	Detail   string
	Dur      time.Duration
	Extra    map[string]string
}
