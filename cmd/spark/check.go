package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spark/internal/builder"
	"spark/internal/codegen"
	"spark/internal/diag"
	"spark/internal/pipeline"
	"spark/internal/samples"
	"spark/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [file.cl...]",
	Short: "Compile OpenCL C sources on the device and report diagnostics",
	Long: `Compile each file on the selected device and print the compiler's
diagnostics. Without files, the generated source of every sample is checked.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|short|json)")
	checkCmd.Flags().String("entry", "", "kernel every file must define")
	checkCmd.Flags().Int("jobs", 0, "max parallel compiles (0=one per file)")
	checkCmd.Flags().Int("max-diagnostics", 100, "maximum diagnostics kept per file (0=unlimited)")
}

type checkJSON struct {
	Unit        string           `json:"unit"`
	OK          bool             `json:"ok"`
	ElapsedMS   float64          `json:"elapsed_ms"`
	Error       string           `json:"error,omitempty"`
	Diagnostics []diagnosticJSON `json:"diagnostics"`
}

type diagnosticJSON struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
	Message  string `json:"message"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, short or json)", format)
	}
	entry, err := cmd.Flags().GetString("entry")
	if err != nil {
		return fmt.Errorf("failed to get entry flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	mode, err := uiModeFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := openContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	req := pipeline.Request{
		Units:          checkUnits(args, entry),
		Compiler:       c,
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
	}
	title := fmt.Sprintf("checking %d sources on %s", len(req.Units), c.Device().Name)

	var sum pipeline.Summary
	err = timer.Measure("check", func() (err error) {
		if format == "pretty" && mode.useTUI() {
			sum, err = runCheckWithUI(ctx, title, req)
			return err
		}
		if format == "pretty" {
			req.Progress = ui.NewPlainSink(cmd.ErrOrStderr())
		}
		sum, err = pipeline.Check(ctx, &req)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		if err := writeCheckJSON(out, sum); err != nil {
			return err
		}
	case "short":
		for _, r := range sum.Results {
			fmt.Fprint(out, diag.FormatShort(r.Bag.Items()))
		}
	default:
		printCheckPretty(out, sum)
	}
	if timer != nil {
		printStageTimings(cmd.ErrOrStderr(), sum.Timings)
	}
	if sum.Failed() > 0 {
		return errReported
	}
	return nil
}

func checkUnits(files []string, entry string) []pipeline.Unit {
	if len(files) > 0 {
		units := make([]pipeline.Unit, len(files))
		for i, f := range files {
			units[i] = pipeline.FileUnit(f)
			units[i].Entry = entry
		}
		return units
	}
	var units []pipeline.Unit
	for _, s := range samples.All() {
		units = append(units, pipeline.Unit{
			Name:  "sample:" + s.Name,
			Entry: codegen.DefaultEntryName,
			Load: func(ctx context.Context) (string, error) {
				prog, err := s.Program(ctx, builder.Options{})
				if err != nil {
					return "", err
				}
				return prog.Source, nil
			},
		})
	}
	return units
}

func printCheckPretty(out io.Writer, sum pipeline.Summary) {
	for _, r := range sum.Results {
		printDiagnostics(out, r.Bag.Items())
		if r.Err != nil && (r.Bag == nil || r.Bag.Len() == 0) {
			fmt.Fprintf(out, "%s: %s %v\n", r.Unit, color.New(color.FgRed, color.Bold).Sprint("error:"), r.Err)
		}
		if r.Bag != nil && r.Bag.Dropped() > 0 {
			fmt.Fprintf(out, "%s: %d more diagnostics not shown\n", r.Unit, r.Bag.Dropped())
		}
	}
	failed := sum.Failed()
	line := fmt.Sprintf("checked %d sources, %d failed", len(sum.Results), failed)
	if failed > 0 {
		fmt.Fprintln(out, color.RedString(line))
		return
	}
	fmt.Fprintln(out, color.GreenString(line))
}

func writeCheckJSON(out io.Writer, sum pipeline.Summary) error {
	payload := make([]checkJSON, 0, len(sum.Results))
	for _, r := range sum.Results {
		item := checkJSON{
			Unit:        r.Unit,
			OK:          !r.Failed(),
			ElapsedMS:   toMillis(r.Elapsed),
			Diagnostics: []diagnosticJSON{},
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		for _, d := range r.Bag.Items() {
			item.Diagnostics = append(item.Diagnostics, diagnosticJSON{
				Severity: d.Severity.String(),
				Code:     d.Code.ID(),
				File:     d.Pos.File,
				Line:     d.Pos.Line,
				Col:      d.Pos.Col,
				Message:  d.Message,
			})
		}
		payload = append(payload, item)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode results: %v\n", err)
		return err
	}
	return nil
}
