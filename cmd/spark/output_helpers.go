package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"spark/internal/diag"
	"spark/internal/pipeline"
)

func displayWidth(s string) int { return runewidth.StringWidth(s) }

var severityColors = map[diag.Severity]*color.Color{
	diag.SevError:   color.New(color.FgRed, color.Bold),
	diag.SevWarning: color.New(color.FgYellow, color.Bold),
	diag.SevNote:    color.New(color.FgCyan),
}

// printDiagnostics writes items in compiler log form with a coloured
// severity.
func printDiagnostics(out io.Writer, items []diag.Diagnostic) {
	for _, d := range items {
		if d.Pos.File != "" || d.Pos.IsValid() {
			fmt.Fprintf(out, "%s: ", color.New(color.Bold).Sprint(d.Pos))
		}
		sev := d.Severity.String()
		if c, ok := severityColors[d.Severity]; ok {
			sev = c.Sprint(sev)
		}
		fmt.Fprintf(out, "%s: %s\n", sev, d.Message)
		for _, line := range d.Detail {
			fmt.Fprintln(out, line)
		}
	}
}

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	for _, stage := range pipeline.Stages {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%-8s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	fmt.Fprintf(out, "%-8s %.1f ms\n", "total", toMillis(timings.Total()))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
