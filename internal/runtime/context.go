// Package runtime owns devices, compiled programs, buffers and kernel
// dispatch. A Context is an explicit handle: every kernel and buffer is
// created against one and may only be used with it.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"spark/internal/device"
	"spark/internal/device/host"
	"spark/internal/device/opencl"
	"spark/internal/fault"
	"spark/internal/kcache"
	"spark/internal/trace"
)

// Preference is the driver order tried when Options.Driver is empty.
var Preference = []string{opencl.DriverName, host.DriverName}

// DefaultRegistry holds the native OpenCL driver and the host interpreter.
func DefaultRegistry(workers int) *device.Registry {
	h := host.New()
	h.Workers = workers
	return device.NewRegistry(opencl.New(), h)
}

type Options struct {
	// Driver forces a driver by name; empty walks Preference.
	Driver   string
	Kind     device.Kind
	Platform string
	Index    int
	// BuildOptions is passed to every program build.
	BuildOptions string
	// Cache records build outcomes on disk; nil disables it.
	Cache *kcache.Cache
	// Workers bounds host driver parallelism; 0 uses GOMAXPROCS.
	Workers  int
	Registry *device.Registry
}

type Context struct {
	dev    device.Device
	info   device.Info
	opts   Options
	tracer trace.Tracer

	mu       sync.Mutex
	programs map[kcache.Digest]*programEntry
	builds   singleflight.Group
	closed   atomic.Bool
}

// Open selects a device and creates its context and in-order queue.
func Open(ctx context.Context, opts Options) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry(opts.Workers)
	}
	span, ctx := trace.Start(ctx, trace.ScopeStage, "open context")
	detail := "error"
	defer func() { span.End(detail) }()

	sel := device.Selector{Driver: opts.Driver, Kind: opts.Kind, Platform: opts.Platform, Index: opts.Index}
	drv, info, err := reg.Select(ctx, sel, Preference)
	if err != nil {
		return nil, err
	}
	dev, err := drv.Open(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info, err)
	}
	span.WithExtra("device", info.Name).WithExtra("vendor", info.Vendor)
	detail = info.Driver
	return &Context{
		dev:      dev,
		info:     info,
		opts:     opts,
		tracer:   trace.FromContext(ctx),
		programs: make(map[kcache.Digest]*programEntry),
	}, nil
}

// Device describes the selected device.
func (c *Context) Device() device.Info { return c.info }

func (c *Context) Options() Options { return c.opts }

// background is the context used by calls that take none; it keeps the
// tracer the context was opened with.
func (c *Context) background() context.Context {
	return trace.WithTracer(context.Background(), c.tracer)
}

func (c *Context) check(op string) error {
	if c == nil {
		return fault.Misusef(op, "nil context")
	}
	if c.closed.Load() {
		return fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}
	return nil
}

// Close releases cached programs, the queue and the device context. Kernels
// and buffers still held fail on use; releasing them stays safe.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	var firstErr error
	for key, e := range c.programs {
		e.dropped = true
		if err := e.prog.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.programs, key)
	}
	c.mu.Unlock()
	if err := c.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if cur := current.Load(); cur == c {
		current.CompareAndSwap(c, nil)
	}
	return firstErr
}

var current atomic.Pointer[Context]

// SetCurrent stores c as the process-wide convenience context.
func SetCurrent(c *Context) { current.Store(c) }

// Current returns the context set by SetCurrent, or nil.
func Current() *Context { return current.Load() }
