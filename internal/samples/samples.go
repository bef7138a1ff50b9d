// Package samples holds small complete kernels with host reference results.
// The CLI runs them to smoke-test a device; tests run them on the host driver.
package samples

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"spark/internal/builder"
	"spark/internal/runtime"
	"spark/internal/trace"
)

// Sample is a kernel plus the host code that drives and checks it.
type Sample struct {
	Name    string
	Summary string
	Build   func(*builder.Session)
	// run allocates buffers, dispatches k and compares the output with a
	// host computation.
	run func(ctx context.Context, c *runtime.Context, k *runtime.Kernel) (Result, error)
}

// Result describes one checked run.
type Result struct {
	Sample     string
	Elements   int
	Mismatches int
	// Allowed is the mismatch budget; only float-heavy samples have one.
	Allowed    int
	Preview    string
}

func (r Result) OK() bool { return r.Mismatches <= r.Allowed }

var registry = []Sample{saxpy, rangeSum, fill2D, mandelbrot}

// All lists the samples in a stable order.
func All() []Sample { return slices.Clone(registry) }

func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.Name
	}
	return out
}

func Lookup(name string) (Sample, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

// Program generates the sample's source without a device.
func (s Sample) Program(ctx context.Context, opts builder.Options) (*builder.Program, error) {
	return builder.Build(ctx, opts, s.Build)
}

// Run compiles the sample on c, dispatches it and checks the output.
func (s Sample) Run(ctx context.Context, c *runtime.Context) (Result, error) {
	span, ctx := trace.Start(ctx, trace.ScopeStage, "sample")
	span.WithExtra("name", s.Name)
	detail := "error"
	defer func() { span.End(detail) }()

	k, err := runtime.NewKernelOptions(ctx, c, builder.Options{}, s.Build)
	if err != nil {
		return Result{}, err
	}
	defer k.Release()
	res, err := s.run(ctx, c, k)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	res.Sample = s.Name
	detail = fmt.Sprintf("%d/%d mismatches", res.Mismatches, res.Elements)
	return res, nil
}

func compare[T comparable](got, want []T) int {
	n := 0
	for i := range got {
		if got[i] != want[i] {
			n++
		}
	}
	return n
}

func preview[T any](xs []T, n int) string {
	parts := make([]string, 0, n+1)
	for i, x := range xs {
		if i == n {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
