package trace

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
	// openSpans counts spans begun and not yet ended; heartbeats report it.
	openSpans atomic.Int64
)

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

func nextSpanID() uint64 { return spanCounter.Add(1) }

// OpenSpans is the number of spans currently in flight.
func OpenSpans() int64 { return openSpans.Load() }

// goroutineID parses the id out of the "goroutine N [...]" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	header := string(buf[:runtime.Stack(buf[:], false)])
	rest, ok := strings.CutPrefix(header, "goroutine ")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, " ")
	id, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Span is one traced operation. A span that was filtered out is inert: all
// its methods are no-ops.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	gid     uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
	ended   bool
}

var inert = &Span{}

func (s *Span) live() bool { return s != nil && s.tracer != nil && !s.ended }

// Begin starts a span under parent (0 for a root span) when t records scope.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().records(scope) {
		return inert
	}
	s := &Span{
		tracer:  t,
		id:      nextSpanID(),
		parent:  parent,
		gid:     goroutineID(),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	openSpans.Add(1)
	s.emit(KindSpanBegin, s.started, "", 0)
	return s
}

func (s *Span) emit(kind Kind, at time.Time, detail string, dur time.Duration) {
	ev := &Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Dur:      dur,
	}
	if kind == KindSpanEnd {
		ev.Extra = s.extra
	}
	s.tracer.Emit(ev)
}

// End closes the span with detail and returns its duration. Only the first
// call emits.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	s.ended = true
	openSpans.Add(-1)
	now := time.Now()
	dur := now.Sub(s.started)
	s.emit(KindSpanEnd, now, detail, dur)
	return dur
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Start begins a span under the span carried by ctx. The returned context
// carries the new span so nested work links to it.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	l := linkOf(ctx)
	span := Begin(l.tracer, scope, name, l.span)
	if span.id == 0 {
		return span, ctx
	}
	return span, withSpan(ctx, l.tracer, span.id)
}

// Point emits an instant event under the span carried by ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	l := linkOf(ctx)
	if !l.tracer.Enabled() || !l.tracer.Level().records(scope) {
		return
	}
	l.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: l.span,
		GID:      goroutineID(),
		Name:     name,
		Detail:   detail,
	})
}
