package host

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"spark/internal/device"
	"spark/internal/trace"
)

type hostProgram struct {
	dev      *Device
	prog     *program
	log      string
	released atomic.Bool
}

func (p *hostProgram) BuildLog() string { return p.log }

func (p *hostProgram) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return device.Fail("release program", device.InvalidProgram)
	}
	return nil
}

func (p *hostProgram) Kernel(name string) (device.Kernel, error) {
	const op = "create kernel"
	if p.released.Load() {
		return nil, device.Fail(op, device.InvalidProgram)
	}
	fn, ok := p.prog.byName[name]
	if !ok || !fn.kernel {
		e := device.Fail(op, device.InvalidKernelName)
		e.Msg = fmt.Sprintf("no __kernel function named %q", name)
		return nil, e
	}
	return &hostKernel{
		prog: p,
		fn:   fn,
		args: make([]value, len(fn.params)),
		set:  make([]bool, len(fn.params)),
	}, nil
}

// hostKernel holds bound arguments already decoded into interpreter values.
type hostKernel struct {
	prog     *hostProgram
	fn       *funcDecl
	args     []value
	set      []bool
	released bool
}

func (k *hostKernel) SetArg(index int, arg device.Arg) error {
	const op = "set kernel arg"
	if k.released {
		return device.Fail(op, device.InvalidKernel)
	}
	if index < 0 || index >= len(k.fn.params) {
		return device.Fail(op, device.InvalidArgIndex)
	}
	dt := k.fn.params[index].typ
	switch {
	case dt.Pointer:
		if !arg.IsMem() {
			return device.Fail(op, device.InvalidArgValue)
		}
		hm, err := k.prog.dev.mem(op, arg.Mem)
		if err != nil {
			return err
		}
		k.args[index] = value{typ: dt, mem: hm}
	default:
		if arg.IsMem() {
			return device.Fail(op, device.InvalidArgValue)
		}
		if len(arg.Value) != dt.Size() {
			return device.Fail(op, device.InvalidArgSize)
		}
		k.args[index] = decode(dt, arg.Value)
	}
	k.set[index] = true
	return nil
}

func (k *hostKernel) Release() error {
	if k.released {
		return device.Fail("release kernel", device.InvalidKernel)
	}
	k.released = true
	return nil
}

// Launch runs one work item per point of global. Items are split into
// chunks that run concurrently; the first failing item cancels the rest.
func (k *hostKernel) Launch(ctx context.Context, global []int) error {
	const op = "enqueue kernel"
	if k.released {
		return device.Fail(op, device.InvalidKernel)
	}
	if len(global) < 1 || len(global) > 3 {
		return device.Fail(op, device.InvalidWorkDimension)
	}
	total := 1
	for _, g := range global {
		if g <= 0 {
			return device.Fail(op, device.InvalidGlobalWorkSize)
		}
		total *= g
	}
	for i, ok := range k.set {
		if !ok {
			e := device.Fail(op, device.InvalidKernelArgs)
			e.Msg = fmt.Sprintf("argument %d of %s is not set", i, k.fn.name)
			return e
		}
	}

	dev := k.prog.dev
	dev.queue.Lock()
	defer dev.queue.Unlock()
	if dev.closed {
		return device.Fail(op, device.InvalidCommandQueue)
	}
	for _, a := range k.args {
		if a.mem != nil && a.mem.released.Load() {
			return device.Fail(op, device.InvalidMemObject)
		}
	}

	span, ctx := trace.Start(ctx, trace.ScopeKernel, "launch "+k.fn.name)
	span.WithExtra("items", strconv.Itoa(total))
	detail := "ok"
	defer func() { span.End(detail) }()

	var size [3]uint64
	for i := range size {
		size[i] = 1
		if i < len(global) {
			size[i] = uint64(global[i])
		}
	}
	chunk := max(1, total/(dev.workers*4))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dev.workers)
	for start := 0; start < total; start += chunk {
		end := min(total, start+chunk)
		g.Go(func() error {
			it := &item{ctx: gctx, dims: len(global), gsize: size}
			for linear := start; linear < end; linear++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				n := uint64(linear)
				it.gid = [3]uint64{n % size[0], n / size[0] % size[1], n / (size[0] * size[1])}
				it.steps = 0
				if err := it.run(k.fn, k.args); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		detail = "failed"
		return err
	}
	return nil
}
