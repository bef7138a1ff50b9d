// Package pipeline checks a batch of kernel sources against a device
// compiler, in parallel, reporting progress per unit.
package pipeline

import "time"

// Stage is one step of checking a unit.
type Stage string

const (
	StageLoad    Stage = "load"    // read the file or generate the sample source
	StageCompile Stage = "compile" // build on the device
	StageReport  Stage = "report"  // parse the build log
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageCompile, StageReport}

type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event is a progress report for Unit, or for the whole batch when Unit is
// empty.
type Event struct {
	Unit    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink receives events from several goroutines at once.
type ProgressSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }

// ChannelSink sends each event on Ch. A nil Ch drops events.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch != nil {
		s.Ch <- evt
	}
}

// Timings is the time each stage took, summed over all units. A stage no
// unit reached is absent.
type Timings map[Stage]time.Duration

func (t Timings) Has(stage Stage) bool {
	_, ok := t[stage]
	return ok
}

func (t Timings) Duration(stage Stage) time.Duration { return t[stage] }

// Total sums every recorded stage.
func (t Timings) Total() time.Duration {
	var total time.Duration
	for _, d := range t {
		total += d
	}
	return total
}
