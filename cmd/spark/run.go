package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spark/internal/samples"
)

var runCmd = &cobra.Command{
	Use:   "run [sample...]",
	Short: "Run samples on the device and compare them with host results",
	Long: `Compile and dispatch each sample on the selected device, read the
output back and compare it with a host computation. Without arguments every
sample runs.`,
	RunE: runSamples,
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return samples.Names(), cobra.ShellCompDirectiveNoFileComp
	},
}

func init() {
	runCmd.Flags().Bool("preview", false, "print a preview of each output")
}

func runSamples(cmd *cobra.Command, args []string) error {
	preview, err := cmd.Flags().GetBool("preview")
	if err != nil {
		return fmt.Errorf("failed to get preview flag: %w", err)
	}
	list := samples.All()
	if len(args) > 0 {
		list = list[:0]
		for _, name := range args {
			s, ok := samples.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown sample %q (available: %s)", name, strings.Join(samples.Names(), ", "))
			}
			list = append(list, s)
		}
	}

	ctx := cmd.Context()
	c, err := openContext(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "device: %s\n", c.Device())
	failed := 0
	for _, s := range list {
		var res samples.Result
		err := timer.Measure(s.Name, func() (err error) {
			res, err = s.Run(ctx, c)
			return err
		})
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%-12s %s %v\n", s.Name, color.RedString("error"), err)
		case !res.OK():
			failed++
			fmt.Fprintf(out, "%-12s %s %d of %d elements differ\n", s.Name, color.RedString("FAIL "), res.Mismatches, res.Elements)
		default:
			fmt.Fprintf(out, "%-12s %s %d elements\n", s.Name, color.GreenString("ok   "), res.Elements)
		}
		if preview && err == nil {
			fmt.Fprintf(out, "  %s\n", res.Preview)
		}
	}
	if failed > 0 {
		return errReported
	}
	return nil
}
