package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"spark/internal/config"
	"spark/internal/observ"
	"spark/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "spark",
	Short:         "Build, check and run OpenCL kernels",
	Long:          `spark generates OpenCL C kernels from Go, compiles them on a device and checks kernel sources.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
}

// errReported marks a failure whose details were already printed.
var errReported = errors.New("failed")

var (
	appConfig config.Config
	timer     *observ.Timer
	cleanups  []func()
)

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to spark.toml (default: search upwards from the working directory)")
	pf.String("driver", "", "device driver (host|opencl); overrides the config file")
	pf.String("device-type", "", "device type (default|cpu|gpu|accelerator)")
	pf.Int("device", -1, "device index within the selected type")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show timing information")
	pf.String("ui", "auto", "progress UI (auto|on|off)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "", "trace level (off|error|stage|kernel|debug)")
	pf.String("trace-mode", "", "trace storage (stream|ring|both)")
	pf.String("trace-format", "", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a Go CPU profile")
	pf.String("mem-profile", "", "write a Go heap profile")
	pf.String("runtime-trace", "", "write a Go execution trace")

	err := rootCmd.Execute()
	if err != nil {
		dumpTraceRing(os.Stderr)
	}
	runCleanups()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}

// setup loads configuration and starts tracing and profiling for the
// command about to run.
func setup(cmd *cobra.Command) error {
	root := cmd.Root()
	if err := setupColor(root); err != nil {
		return err
	}
	timings, err := root.PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		timer = observ.NewTimer()
	}
	if err := timer.Measure("config", func() error { return loadConfig(root) }); err != nil {
		return err
	}
	stopProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, stopProf)
	stopTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, stopTrace)
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
	if timer != nil {
		fmt.Fprint(os.Stderr, timer.Summary())
	}
}

func loadConfig(root *cobra.Command) error {
	pf := root.PersistentFlags()
	path, err := pf.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(path, wd)
	if err != nil {
		return err
	}
	if pf.Changed("driver") {
		cfg.Device.Driver, _ = pf.GetString("driver")
	}
	if pf.Changed("device-type") {
		cfg.Device.Type, _ = pf.GetString("device-type")
	}
	if pf.Changed("device") {
		cfg.Device.Index, _ = pf.GetInt("device")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

func setupColor(root *cobra.Command) error {
	mode, err := root.PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
