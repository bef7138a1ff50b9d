package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spark/internal/diag"
	"spark/internal/fault"
)

// Unit is one source to check.
type Unit struct {
	Name string
	// Entry, when set, must name a kernel of the built program.
	Entry string
	Load  func(ctx context.Context) (string, error)
}

// FileUnit reads path at load time.
func FileUnit(path string) Unit {
	return Unit{
		Name: path,
		Load: func(context.Context) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// Compiler builds OpenCL C text; runtime.Context implements it.
type Compiler interface {
	CompileSource(ctx context.Context, source, entry string) (string, error)
}

type Request struct {
	Units    []Unit
	Compiler Compiler
	// Jobs bounds concurrent units; 0 means one per unit.
	Jobs int
	// MaxDiagnostics caps the diagnostics kept per unit; 0 is unlimited.
	MaxDiagnostics int
	Progress       ProgressSink
}

// Result is the outcome of one unit.
type Result struct {
	Unit   string
	Source string
	Log    string
	Bag    *diag.Bag
	// Err is the unit's failure: unreadable input, a rejected build or a
	// device error.
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the unit did not build cleanly.
func (r Result) Failed() bool { return r.Err != nil || (r.Bag != nil && r.Bag.HasErrors()) }

type Summary struct {
	Results []Result
	Timings Timings
}

// Failed counts the units that did not build cleanly.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Check compiles every unit. Unit failures land in their Result; the
// returned error is only set when the batch itself could not run.
func Check(ctx context.Context, req *Request) (Summary, error) {
	sum := Summary{Timings: Timings{}}
	if req == nil || req.Compiler == nil {
		return sum, errors.New("pipeline: missing compiler")
	}
	emitQueued(req.Progress, req.Units)
	emit(req.Progress, Event{Stage: StageCompile, Status: StatusWorking})

	sum.Results = make([]Result, len(req.Units))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if req.Jobs > 0 {
		g.SetLimit(req.Jobs)
	}
	for i, u := range req.Units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, timings := checkUnit(gctx, req, u)
			mu.Lock()
			sum.Results[i] = res
			for stage, d := range timings {
				sum.Timings[stage] += d
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		emit(req.Progress, Event{Stage: StageCompile, Status: StatusError, Err: err})
		return sum, err
	}
	status := StatusDone
	if sum.Failed() > 0 {
		status = StatusError
	}
	emit(req.Progress, Event{Stage: StageCompile, Status: status})
	return sum, nil
}

func checkUnit(ctx context.Context, req *Request, u Unit) (Result, map[Stage]time.Duration) {
	res := Result{Unit: u.Name, Bag: diag.NewBag(req.MaxDiagnostics)}
	timings := make(map[Stage]time.Duration, 3)
	start := time.Now()

	step := func(stage Stage, fn func() error) error {
		emit(req.Progress, Event{Unit: u.Name, Stage: stage, Status: StatusWorking})
		t0 := time.Now()
		err := fn()
		timings[stage] = time.Since(t0)
		return err
	}
	fail := func(stage Stage, err error) (Result, map[Stage]time.Duration) {
		res.Err = err
		res.Elapsed = time.Since(start)
		emit(req.Progress, Event{Unit: u.Name, Stage: stage, Status: StatusError, Err: err, Elapsed: res.Elapsed})
		return res, timings
	}

	if u.Load == nil {
		return fail(StageLoad, fmt.Errorf("%s: nothing to load", u.Name))
	}
	if err := step(StageLoad, func() (err error) {
		res.Source, err = u.Load(ctx)
		return err
	}); err != nil {
		return fail(StageLoad, err)
	}
	compileErr := step(StageCompile, func() (err error) {
		res.Log, err = req.Compiler.CompileSource(ctx, res.Source, u.Entry)
		return err
	})
	_ = step(StageReport, func() error {
		for _, d := range diag.ParseLog(res.Log) {
			d.Pos.File = displayName(u.Name, d.Pos.File)
			res.Bag.Add(d)
		}
		res.Bag.Sort()
		return nil
	})
	if compileErr != nil {
		if fault.KindOf(compileErr) == fault.KindCompile && !res.Bag.HasErrors() {
			// A rejected build whose log had no recognizable error line.
			res.Bag.Add(diag.NewError(diag.NativeDiagnostic, diag.Pos{}, "program build failed"))
		}
		return fail(StageCompile, compileErr)
	}
	res.Elapsed = time.Since(start)
	emit(req.Progress, Event{Unit: u.Name, Stage: StageReport, Status: StatusDone, Elapsed: res.Elapsed})
	return res, timings
}

// displayName replaces the compiler's placeholder file name with the unit.
func displayName(unit, file string) string {
	if file == "" || strings.HasPrefix(file, "<") {
		return unit
	}
	return file
}

func emitQueued(sink ProgressSink, units []Unit) {
	if sink == nil {
		return
	}
	for _, u := range units {
		sink.OnEvent(Event{Unit: u.Name, Stage: StageLoad, Status: StatusQueued})
	}
}

func emit(sink ProgressSink, ev Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(ev)
}
