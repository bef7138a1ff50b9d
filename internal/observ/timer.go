// Package observ measures the phases of one CLI command (config, device
// open, build, compile, dispatch) for the --timings report.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one measured step. Dur stays zero until the phase stops.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects phases in the order they start. A nil *Timer records
// nothing, so callers never check whether --timings is on.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

func NewTimer() *Timer { return &Timer{} }

// Start opens a phase; calling the returned stop closes it with note.
// Extra stop calls are ignored.
func (t *Timer) Start(name string) (stop func(note string)) {
	if t == nil {
		return func(string) {}
	}
	t.mu.Lock()
	idx := len(t.phases)
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	t.mu.Unlock()

	var once sync.Once
	return func(note string) {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			p := &t.phases[idx]
			p.Dur = time.Since(p.Start)
			p.Note = note
		})
	}
}

// Measure runs fn as a phase noted "failed" when fn errs.
func (t *Timer) Measure(name string, fn func() error) error {
	stop := t.Start(name)
	err := fn()
	if err != nil {
		stop("failed")
	} else {
		stop("")
	}
	return err
}

func (t *Timer) Phases() []Phase {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return nil
	}
	return append([]Phase(nil), t.phases...)
}

// Total sums the phase durations. Nested phases are counted twice.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, p := range t.Phases() {
		total += p.Dur
	}
	return total
}

// Summary renders the phases as an aligned table in milliseconds.
func (t *Timer) Summary() string {
	phases := t.Phases()
	width := len("total")
	for _, p := range phases {
		width = max(width, len(p.Name))
	}
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range phases {
		fmt.Fprintf(&sb, "  %-*s %8.2f ms", width, p.Name, millis(p.Dur))
		if p.Note != "" {
			fmt.Fprintf(&sb, "  // %s", p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-*s %8.2f ms\n", width, "total", millis(t.Total()))
	return sb.String()
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
