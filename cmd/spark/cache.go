package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spark/internal/kcache"
	"spark/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the build cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded builds, newest first",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every recorded build",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheListCmd.Flags().Bool("log", false, "print the build log of failed builds")
}

func openBuildCache() (*kcache.Cache, error) {
	cache, err := appConfig.OpenCache()
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, fmt.Errorf("build cache is disabled ([build].cache = false)")
	}
	return cache, nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	showLog, err := cmd.Flags().GetBool("log")
	if err != nil {
		return fmt.Errorf("failed to get log flag: %w", err)
	}
	cache, err := openBuildCache()
	if err != nil {
		return err
	}
	recs, errs := cache.List()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", color.New(color.Faint).Sprint(cache.Dir()))
	if len(recs) == 0 {
		fmt.Fprintln(out, "no recorded builds")
	}
	for _, r := range recs {
		status := color.GreenString("ok    ")
		if !r.OK {
			status = color.RedString("failed")
		}
		fmt.Fprintf(out, "%s %s %s %s %8s %s\n",
			r.Key.Short(), status,
			ui.Pad(r.Driver, 6), ui.Pad(ui.Truncate(r.Device, 32), 32),
			strconv.Itoa(r.SourceBytes)+"B",
			r.Created.Local().Format(time.DateTime),
		)
		if showLog && !r.OK && r.Log != "" {
			fmt.Fprint(out, r.Log)
		}
	}
	for _, err := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.YellowString("skipped:"), err)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cache, err := openBuildCache()
	if err != nil {
		return err
	}
	n, err := cache.DropAll()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d records from %s\n", n, cache.Dir())
	return nil
}
