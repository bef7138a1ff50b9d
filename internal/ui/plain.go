package ui

import (
	"fmt"
	"io"
	"sync"

	"spark/internal/pipeline"
)

// PlainSink prints one line per finished unit. It is the progress output
// when stdout is not a terminal.
type PlainSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPlainSink(w io.Writer) *PlainSink { return &PlainSink{w: w} }

func (s *PlainSink) OnEvent(ev pipeline.Event) {
	if ev.Unit == "" {
		return
	}
	if ev.Status != pipeline.StatusDone && ev.Status != pipeline.StatusError {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%-6s %s (%s)\n", ev.Status, ev.Unit, ev.Elapsed.Round(1000))
}
