package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"spark/internal/pipeline"
	"spark/internal/ui"
)

type checkOutcome struct {
	summary pipeline.Summary
	err     error
}

func runCheckWithUI(ctx context.Context, title string, req pipeline.Request) (pipeline.Summary, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)
	names := make([]string, len(req.Units))
	for i, u := range req.Units {
		names[i] = u.Name
	}

	go func() {
		req.Progress = pipeline.ChannelSink{Ch: events}
		sum, err := pipeline.Check(ctx, &req)
		outcomeCh <- checkOutcome{summary: sum, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// An interrupted UI stops reading; keep the checker from blocking.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.summary, uiErr
	}
	return outcome.summary, outcome.err
}
