package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/runtime"
	"spark/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices every driver can open",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().String("format", "table", "output format (table|json)")
}

type deviceRow struct {
	device.Info
	Selected bool   `json:"selected"`
	KindName string `json:"kind"`
}

func runDevices(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be table or json)", format)
	}
	ctx := cmd.Context()
	reg := runtime.DefaultRegistry(0)

	var selected device.Info
	opts, err := runtimeOptions()
	if err != nil {
		return err
	}
	sel := device.Selector{Driver: opts.Driver, Kind: opts.Kind, Platform: opts.Platform, Index: opts.Index}
	_, selected, selErr := reg.Select(ctx, sel, runtime.Preference)

	var rows []deviceRow
	var missing []string
	for _, name := range reg.Names() {
		drv, _ := reg.Lookup(name)
		infos, err := drv.Devices(ctx)
		if errors.Is(err, fault.ErrNoPlatform) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, info := range infos {
			rows = append(rows, deviceRow{
				Info:     info,
				KindName: info.Kind.String(),
				Selected: selErr == nil && info.Driver == selected.Driver && info.Index == selected.Index && info.Platform == selected.Platform,
			})
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printDeviceTable(out, rows)
	for _, name := range missing {
		fmt.Fprintf(out, "%s\n", color.New(color.Faint).Sprintf("%s: no platform available", name))
	}
	if selErr != nil {
		fmt.Fprintf(out, "%s %v\n", color.YellowString("no device matches the configuration:"), selErr)
	}
	return nil
}

func printDeviceTable(out io.Writer, rows []deviceRow) {
	header := []string{"", "DRIVER", "#", "TYPE", "NAME", "VENDOR", "UNITS", "MEMORY"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		mark := ""
		if r.Selected {
			mark = "*"
		}
		cells = append(cells, []string{
			mark, r.Driver, strconv.Itoa(r.Index), r.KindName,
			ui.Truncate(r.Name, 40), ui.Truncate(r.Vendor, 24),
			strconv.Itoa(r.ComputeUnits), formatBytes(r.GlobalMem),
		})
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], displayWidth(c))
		}
	}
	bold := color.New(color.Bold)
	for i, h := range header {
		fmt.Fprint(out, bold.Sprint(ui.Pad(h, widths[i])), " ")
	}
	fmt.Fprintln(out)
	green := color.New(color.FgGreen)
	for _, row := range cells {
		for i, c := range row {
			cell := ui.Pad(c, widths[i])
			if row[0] == "*" {
				cell = green.Sprint(cell)
			}
			fmt.Fprint(out, cell, " ")
		}
		fmt.Fprintln(out)
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
