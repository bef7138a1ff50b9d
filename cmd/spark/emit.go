package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spark/internal/builder"
	"spark/internal/samples"
)

var emitCmd = &cobra.Command{
	Use:   "emit <sample>",
	Short: "Print the OpenCL C generated for a sample",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmit,
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return samples.Names(), cobra.ShellCompDirectiveNoFileComp
	},
}

func init() {
	emitCmd.Flags().Bool("tree", false, "print the expression tree instead of the source")
	emitCmd.Flags().String("entry", "", "kernel name for the entry point")
	emitCmd.Flags().Bool("stats", false, "print tree statistics to stderr")
}

func runEmit(cmd *cobra.Command, args []string) error {
	s, ok := samples.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown sample %q (available: %s)", args[0], strings.Join(samples.Names(), ", "))
	}
	tree, err := cmd.Flags().GetBool("tree")
	if err != nil {
		return fmt.Errorf("failed to get tree flag: %w", err)
	}
	entry, err := cmd.Flags().GetString("entry")
	if err != nil {
		return fmt.Errorf("failed to get entry flag: %w", err)
	}
	stats, err := cmd.Flags().GetBool("stats")
	if err != nil {
		return fmt.Errorf("failed to get stats flag: %w", err)
	}

	var prog *builder.Program
	err = timer.Measure("build", func() (err error) {
		prog, err = s.Program(cmd.Context(), builder.Options{EntryName: entry, DumpTree: tree})
		return err
	})
	if err != nil {
		return err
	}
	if tree {
		fmt.Fprint(cmd.OutOrStdout(), prog.Tree)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), prog.Source)
	}
	if stats {
		fmt.Fprintf(cmd.ErrOrStderr(), "entry %s: %d nodes, %d functions, %d symbols\n",
			prog.Entry, prog.Stats.Nodes, prog.Stats.Functions, prog.Stats.Symbols)
	}
	return nil
}
