package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"off", "error", "stage", "kernel", "debug"} {
		l, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
		if l.String() != name {
			t.Errorf("round trip %q -> %q", name, l.String())
		}
	}
	if _, err := ParseLevel("phase"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeCommand, false},
		{LevelError, ScopeCommand, false},
		{LevelStage, ScopeStage, true},
		{LevelStage, ScopeKernel, false},
		{LevelKernel, ScopeKernel, true},
		{LevelKernel, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, c := range cases {
		if got := c.level.ShouldEmit(c.scope); got != c.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", c.level, c.scope, got, c.want)
		}
	}
}

func TestStartNestsSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	outer, ctx := Start(ctx, ScopeCommand, "run")
	inner, _ := Start(ctx, ScopeStage, "compile")
	inner.WithExtra("bytes", "42").End("ok")
	outer.End("")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].ParentID != outer.ID() {
		t.Errorf("inner parent = %d, want %d", events[1].ParentID, outer.ID())
	}
	if events[2].Kind != KindSpanEnd || events[2].Extra["bytes"] != "42" {
		t.Errorf("unexpected end event %+v", events[2])
	}
}

func TestStartWithoutTracerIsNop(t *testing.T) {
	span, ctx := Start(context.Background(), ScopeStage, "build")
	if span.ID() != 0 {
		t.Errorf("nop span has id %d", span.ID())
	}
	if SpanID(ctx) != 0 {
		t.Error("nop span leaked into context")
	}
	if d := span.End("x"); d != 0 {
		t.Errorf("nop span duration %v", d)
	}
}

func TestRingWraps(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeStage, Name: name})
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ","); got != "c,d,e" {
		t.Errorf("snapshot = %s, want c,d,e", got)
	}
}

func TestStreamTextFormat(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelStage, FormatText)
	st.Emit(&Event{Kind: KindSpanEnd, Scope: ScopeStage, Name: "compile", Detail: "ok",
		Extra: map[string]string{"z": "1", "a": "2"}})
	st.Emit(&Event{Kind: KindPoint, Scope: ScopeNode, Name: "hidden"})

	out := buf.String()
	if !strings.Contains(out, "[stage] ← compile (ok) {a=2, z=1}") {
		t.Errorf("unexpected text output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("node-scope event should be filtered at stage level")
	}
}

func TestNDJSONFormat(t *testing.T) {
	data := FormatEvent(&Event{Kind: KindPoint, Scope: ScopeKernel, Name: "bind"}, FormatNDJSON)
	s := string(data)
	if !strings.HasSuffix(s, "\n") || !strings.Contains(s, `"scope":"kernel"`) || !strings.Contains(s, `"name":"bind"`) {
		t.Errorf("unexpected ndjson %q", s)
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Enabled() {
		t.Error("off tracer reports enabled")
	}
}

func TestErrorLevelKeepsStagesInRing(t *testing.T) {
	tr, err := New(Config{Level: LevelError, Mode: ModeBoth, RingSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	ring, ok := tr.(*RingTracer)
	if !ok {
		t.Fatalf("error level built %T, want *RingTracer", tr)
	}
	ctx := WithTracer(context.Background(), tr)
	span, ctx := Start(ctx, ScopeStage, "compile")
	Point(ctx, ScopeKernel, "bind", "")
	span.End("compile error")
	if n := len(ring.Snapshot()); n != 2 {
		t.Errorf("ring kept %d events, want 2", n)
	}
}

func TestBothModeFansOut(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelStage, Mode: ModeBoth, Output: &buf, Format: FormatNDJSON})
	if err != nil {
		t.Fatal(err)
	}
	multi, ok := tr.(*MultiTracer)
	if !ok || multi.Ring() == nil {
		t.Fatalf("both mode built %T without a ring", tr)
	}
	Point(WithTracer(context.Background(), tr), ScopeStage, "mark", "x")
	if !strings.Contains(buf.String(), `"name":"mark"`) || len(multi.Ring().Snapshot()) != 1 {
		t.Errorf("event did not reach both sinks: %q", buf.String())
	}
}

func TestEndReportsDuration(t *testing.T) {
	ev := &Event{Kind: KindSpanEnd, Scope: ScopeStage, Name: "dispatch", Dur: 1500 * time.Microsecond}
	if got := string(FormatEvent(ev, FormatText)); !strings.HasSuffix(got, "dispatch 1.5ms\n") {
		t.Errorf("text = %q", got)
	}
	if got := string(FormatEvent(ev, FormatNDJSON)); !strings.Contains(got, `"dur_us":1500`) {
		t.Errorf("ndjson = %q", got)
	}
}

func TestHeartbeatCountsOpenSpans(t *testing.T) {
	ring := NewRingTracer(64, LevelStage)
	span := Begin(ring, ScopeStage, "compile", 0)
	hb := StartHeartbeat(ring, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	var beat *Event
	for beat == nil && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
		for _, ev := range ring.Snapshot() {
			if ev.Kind == KindHeartbeat {
				beat = &ev
				break
			}
		}
	}
	hb.Stop()
	hb.Stop()
	span.End("")
	if beat == nil {
		t.Fatal("no heartbeat recorded")
	}
	if !strings.HasPrefix(beat.Detail, "#1 open=") || strings.HasSuffix(beat.Detail, "open=0") {
		t.Errorf("heartbeat detail %q", beat.Detail)
	}
}

func TestStartHeartbeatDisabled(t *testing.T) {
	if hb := StartHeartbeat(Nop, time.Millisecond); hb != nil {
		t.Error("heartbeat started on a disabled tracer")
	}
	var hb *Heartbeat
	hb.Stop()
}
