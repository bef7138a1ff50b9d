package runtime

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"spark/internal/builder"
	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/trace"
)

// Kernel is a compiled entry point bound to a context.
type Kernel struct {
	c     *Context
	prog  *builder.Program
	entry *programEntry

	// mu serializes argument binding and launch on the native kernel.
	mu     sync.Mutex
	native device.Kernel
	global []int
	refs   atomic.Int32
}

// NewKernel builds a program with build, compiles it through the context's
// program cache and extracts the entry kernel.
func NewKernel(c *Context, build func(*builder.Session)) (*Kernel, error) {
	return NewKernelOptions(c.background(), c, builder.Options{}, build)
}

func NewKernelOptions(ctx context.Context, c *Context, opts builder.Options, build func(*builder.Session)) (*Kernel, error) {
	if err := c.check("kernel"); err != nil {
		return nil, err
	}
	span, ctx := trace.Start(ctx, trace.ScopeStage, "kernel")
	detail := "error"
	defer func() { span.End(detail) }()

	prog, err := builder.Build(ctx, opts, build)
	if err != nil {
		return nil, err
	}
	k, err := kernelFor(ctx, c, prog)
	if err != nil {
		return nil, err
	}
	span.WithExtra("entry", prog.Entry)
	detail = "ok"
	return k, nil
}

// KernelFromProgram compiles an already generated program.
func KernelFromProgram(ctx context.Context, c *Context, prog *builder.Program) (*Kernel, error) {
	if err := c.check("kernel"); err != nil {
		return nil, err
	}
	return kernelFor(ctx, c, prog)
}

func kernelFor(ctx context.Context, c *Context, prog *builder.Program) (*Kernel, error) {
	entry, err := c.acquire(ctx, prog.Source)
	if err != nil {
		return nil, err
	}
	native, err := entry.prog.Kernel(prog.Entry)
	if err != nil {
		_ = c.release(entry)
		return nil, err
	}
	k := &Kernel{c: c, prog: prog, entry: entry, native: native}
	k.refs.Store(1)
	return k, nil
}

func (k *Kernel) Source() string { return k.prog.Source }

func (k *Kernel) Entry() string { return k.prog.Entry }

func (k *Kernel) Params() []builder.Param { return k.prog.Params }

func (k *Kernel) Program() *builder.Program { return k.prog }

func (k *Kernel) Context() *Context { return k.c }

// SetWorkDimensions sets the global work size: one to three positive sizes.
func (k *Kernel) SetWorkDimensions(sizes ...int) error {
	const op = "kernel.dimensions"
	if len(sizes) < 1 || len(sizes) > 3 {
		return fault.Misusef(op, "%d work dimensions, want 1 to 3", len(sizes))
	}
	for i, s := range sizes {
		if s <= 0 {
			return fault.Misusef(op, "dimension %d has size %d", i, s)
		}
	}
	k.mu.Lock()
	k.global = append(k.global[:0], sizes...)
	k.mu.Unlock()
	return nil
}

func (k *Kernel) WorkDimensions() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]int(nil), k.global...)
}

// Call binds args to the entry parameters and runs the kernel to completion.
func (k *Kernel) Call(args ...any) error {
	return k.CallContext(k.c.background(), args...)
}

func (k *Kernel) CallContext(ctx context.Context, args ...any) error {
	const op = "kernel.call"
	if k.refs.Load() <= 0 {
		return fault.Wrap(fault.KindMisuse, op, fault.ErrReleased)
	}
	if err := k.c.check(op); err != nil {
		return err
	}
	native, err := k.marshal(args)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.global) == 0 {
		return fault.Misusef(op, "work dimensions not set")
	}
	span, ctx := trace.Start(ctx, trace.ScopeStage, "dispatch")
	span.WithExtra("entry", k.prog.Entry).WithExtra("args", strconv.Itoa(len(native)))
	detail := "error"
	defer func() { span.End(detail) }()

	for i, a := range native {
		if err := k.native.SetArg(i, a); err != nil {
			return fmt.Errorf("argument %d (%s): %w", i, a, err)
		}
	}
	if err := k.native.Launch(ctx, k.global); err != nil {
		return err
	}
	detail = "ok"
	return nil
}

// marshal expands host arguments term for term the way parameters expand:
// a scalar to one value, a 1D buffer to (mem, count), a 2D buffer to
// (mem, width, height).
func (k *Kernel) marshal(args []any) ([]device.Arg, error) {
	const op = "kernel.call"
	params := k.prog.Params
	if len(args) != len(params) {
		return nil, fault.Misusef(op, "%d arguments for %d parameters", len(args), len(params))
	}
	var out []device.Arg
	for i, p := range params {
		switch p.Kind {
		case builder.ParamScalar:
			b, err := encodeScalar(p.Type, args[i])
			if err != nil {
				return nil, fault.Misusef(op, "argument %d: %v", i, err)
			}
			out = append(out, device.ValueArg(b))
		case builder.ParamBuffer1D, builder.ParamBuffer2D:
			m, ok := args[i].(memArg)
			if !ok {
				return nil, fault.Misusef(op, "argument %d: %T is not a buffer for %s", i, args[i], p)
			}
			if m.owner() != k.c {
				return nil, fault.Misusef(op, "argument %d: buffer belongs to another context", i)
			}
			if m.kind() != p.Kind || m.elem() != p.Type.Primitive {
				return nil, fault.Misusef(op, "argument %d: %s<%s> passed for %s", i, m.kind(), m.elem(), p)
			}
			native, err := m.native()
			if err != nil {
				return nil, err
			}
			out = append(out, native...)
		default:
			return nil, fault.Misusef(op, "parameter %d has unknown kind %s", i, p.Kind)
		}
	}
	return out, nil
}

func (k *Kernel) Retain() { k.refs.Add(1) }

// Release drops one reference. The last one releases the native kernel and
// the program cache entry.
func (k *Kernel) Release() error {
	switch n := k.refs.Add(-1); {
	case n < 0:
		k.refs.Store(0)
		return fault.Wrap(fault.KindMisuse, "kernel.release", fault.ErrReleased)
	case n > 0:
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	err := k.native.Release()
	if relErr := k.c.release(k.entry); err == nil {
		err = relErr
	}
	return err
}
