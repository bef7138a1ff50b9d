package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"spark/internal/trace"
)

var activeTracer trace.Tracer = trace.Nop

// setupTracing merges the trace flags over the [trace] table and attaches
// the tracer to the command context. It returns a cleanup function.
func setupTracing(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()
	pf := root.PersistentFlags()

	tc := appConfig.Trace
	for flag, dst := range map[string]*string{
		"trace":        &tc.Output,
		"trace-level":  &tc.Level,
		"trace-mode":   &tc.Mode,
		"trace-format": &tc.Format,
	} {
		if !pf.Changed(flag) {
			continue
		}
		v, err := pf.GetString(flag)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		*dst = v
	}
	// An output file without a level means the caller wants stage events.
	if tc.Output != "" && tc.Level == "off" && !pf.Changed("trace-level") {
		tc.Level = "stage"
		if !pf.Changed("trace-mode") {
			tc.Mode = "stream"
		}
	}

	cfgCopy := appConfig
	cfgCopy.Trace = tc
	cfg, err := cfgCopy.TraceConfig()
	if err != nil {
		return nil, err
	}
	if cfg.RingSize, err = pf.GetInt("trace-ring-size"); err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if cfg.Heartbeat, err = pf.GetDuration("trace-heartbeat"); err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	if cfg.Level == trace.LevelOff {
		ctx := trace.WithTracer(cmd.Context(), trace.Nop)
		cmd.SetContext(ctx)
		return func() {}, nil
	}

	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	root.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if cfg.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, cfg.Heartbeat)
	}
	return func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
		activeTracer = trace.Nop
	}, nil
}

// dumpTraceRing writes the events kept in memory after a failed command.
func dumpTraceRing(w io.Writer) {
	var ring *trace.RingTracer
	switch t := activeTracer.(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil {
		return
	}
	fmt.Fprintln(w, "trace: last events before the failure")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
