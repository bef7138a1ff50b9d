package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"spark/internal/device/host"
	"spark/internal/diag"
	"spark/internal/runtime"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) last(unit string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Event
	for _, ev := range s.events {
		if ev.Unit == unit {
			out = ev
		}
	}
	return out
}

func sourceUnit(name, src string) Unit {
	return Unit{Name: name, Load: func(context.Context) (string, error) { return src, nil }}
}

func TestCheckOnHostDevice(t *testing.T) {
	c, err := runtime.Open(context.Background(), runtime.Options{Driver: host.DriverName})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.cl")
	if err := os.WriteFile(good, []byte("__kernel void k(__global int* p) { p[0] = 1; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	req := &Request{
		Units: []Unit{
			FileUnit(good),
			sourceUnit("bad", "__kernel void k(__global int* p)\n{\n    p[0] = nope;\n}\n"),
			FileUnit(filepath.Join(dir, "missing.cl")),
		},
		Compiler: c,
		Jobs:     2,
		Progress: sink,
	}
	sum, err := Check(context.Background(), req)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := sum.Failed(); got != 2 {
		t.Fatalf("failed units = %d, want 2", got)
	}

	ok := sum.Results[0]
	if ok.Failed() || ok.Unit != good {
		t.Fatalf("good unit: %+v", ok)
	}
	bad := sum.Results[1]
	if !bad.Failed() || bad.Bag.Len() != 1 {
		t.Fatalf("bad unit: err=%v diagnostics=%d", bad.Err, bad.Bag.Len())
	}
	d := bad.Bag.Items()[0]
	if d.Pos.File != "bad" || d.Pos.Line != 3 || !strings.Contains(d.Message, "undeclared identifier 'nope'") {
		t.Fatalf("diagnostic = %+v", d)
	}
	if missing := sum.Results[2]; !errors.Is(missing.Err, os.ErrNotExist) {
		t.Fatalf("missing file err = %v", missing.Err)
	}

	if ev := sink.last(good); ev.Status != StatusDone {
		t.Errorf("good unit ended with %+v", ev)
	}
	if ev := sink.last("bad"); ev.Status != StatusError || ev.Stage != StageCompile {
		t.Errorf("bad unit ended with %+v", ev)
	}
	if !sum.Timings.Has(StageCompile) || !sum.Timings.Has(StageLoad) {
		t.Errorf("timings missing stages")
	}
}

type logCompiler struct{ log string }

func (c logCompiler) CompileSource(context.Context, string, string) (string, error) {
	return c.log, nil
}

func TestWarningsDoNotFail(t *testing.T) {
	var last Event
	req := &Request{
		Units:    []Unit{sourceUnit("w", "x")},
		Compiler: logCompiler{log: "<source>:1:2: warning: unused variable 'a'\n"},
		Jobs:     1,
		Progress: SinkFunc(func(ev Event) { last = ev }),
	}
	sum, err := Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if last.Unit != "" || last.Status != StatusDone {
		t.Errorf("batch ended with %+v", last)
	}
	r := sum.Results[0]
	if r.Failed() || r.Bag.Count(diag.SevWarning) != 1 {
		t.Fatalf("result = %+v", r)
	}
}

func TestCancelledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Check(ctx, &Request{Units: []Unit{sourceUnit("a", "x")}, Compiler: logCompiler{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, err := Check(context.Background(), &Request{}); err == nil {
		t.Fatal("request without compiler accepted")
	}
}
