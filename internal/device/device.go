// Package device defines the boundary between the runtime and a compute
// device. A Driver enumerates devices of one backend; a Device owns memory,
// compiles programs and launches kernels on a single in-order queue.
//
// Implementations live in subpackages: host interprets the generated source
// on the CPU, opencl binds a native OpenCL platform.
package device

import (
	"context"
	"fmt"
)

type Kind uint8

const (
	KindDefault Kind = iota
	KindCPU
	KindGPU
	KindAccelerator
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindCPU:
		return "cpu"
	case KindGPU:
		return "gpu"
	case KindAccelerator:
		return "accelerator"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind accepts the names printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "default", "any":
		return KindDefault, nil
	case "cpu":
		return KindCPU, nil
	case "gpu":
		return KindGPU, nil
	case "accelerator":
		return KindAccelerator, nil
	default:
		return KindDefault, fmt.Errorf("unknown device type %q (expected: default|cpu|gpu|accelerator)", s)
	}
}

// Info describes one device as reported by its driver.
type Info struct {
	Driver       string
	Platform     string
	Name         string
	Vendor       string
	Version      string
	Kind         Kind
	ComputeUnits int
	GlobalMem    uint64
	// Index is the position in the driver's device list.
	Index int
}

func (i Info) String() string {
	return fmt.Sprintf("%s/%d %s (%s, %s)", i.Driver, i.Index, i.Name, i.Vendor, i.Kind)
}

type Driver interface {
	Name() string
	// Devices lists what the driver can open. A driver without any usable
	// platform returns fault.ErrNoPlatform.
	Devices(ctx context.Context) ([]Info, error)
	Open(ctx context.Context, info Info) (Device, error)
}

// Device is an opened device with its context and command queue. All
// methods are safe for concurrent use; commands execute in submission order.
type Device interface {
	Info() Info
	// CreateBuffer allocates size bytes, copying init when it is non-nil.
	CreateBuffer(size int, init []byte) (Mem, error)
	Read(m Mem, offset int, dst []byte) error
	Write(m Mem, offset int, src []byte) error
	// Fill zeroes size bytes starting at offset.
	Fill(m Mem, offset, size int) error
	// BuildProgram compiles source. A rejected program yields a compile
	// error that carries the full build log.
	BuildProgram(ctx context.Context, source, options string) (Program, error)
	Close() error
}

type Mem interface {
	Size() int
	Release() error
}

type Program interface {
	Kernel(name string) (Kernel, error)
	BuildLog() string
	Release() error
}

// Kernel is one entry point of a built program with its bound arguments.
type Kernel interface {
	SetArg(index int, arg Arg) error
	// Launch enqueues the kernel over the global work size and blocks until
	// it completes.
	Launch(ctx context.Context, global []int) error
	Release() error
}

// Arg is a kernel argument: a memory object or the little-endian bytes of
// a by-value parameter, exactly as clSetKernelArg receives them.
type Arg struct {
	Mem   Mem
	Value []byte
}

func MemArg(m Mem) Arg { return Arg{Mem: m} }

func ValueArg(b []byte) Arg { return Arg{Value: b} }

func (a Arg) IsMem() bool { return a.Mem != nil }

func (a Arg) String() string {
	if a.Mem != nil {
		return fmt.Sprintf("mem[%d]", a.Mem.Size())
	}
	return fmt.Sprintf("value[% x]", a.Value)
}
