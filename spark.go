// Package spark describes OpenCL compute kernels with ordinary Go calls,
// generates OpenCL C from them and runs the result on a device.
//
// A kernel is built inside a Session:
//
//	k, err := spark.NewKernel(c, func(s *spark.Session) {
//		s.Kernel([]spark.Param{spark.Buffer1DParam(spark.Float)}, func(a spark.Args) {
//			out := a.Buffer1D(0)
//			i := s.Var(s.GlobalID(0))
//			s.If(i.Lt(out.Count), func() {
//				s.Assign(out.At(i), i.Cast(spark.Scalar(spark.Float)))
//			})
//		})
//	})
//
// The functions in this package are the error boundary: failures come back
// as *Error, and a panic that is not builder misuse becomes an internal
// error. Builder misuse, such as using a value from a closed scope, panics.
package spark

import (
	"context"
	"os"

	"spark/internal/builder"
	"spark/internal/config"
	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/runtime"
	"spark/internal/types"
)

type (
	Session      = builder.Session
	Value        = builder.Value
	Args         = builder.Args
	Param        = builder.Param
	Function     = builder.Function
	Program      = builder.Program
	BuildOptions = builder.Options

	Datatype  = types.Datatype
	Primitive = types.Primitive

	Context    = runtime.Context
	Kernel     = runtime.Kernel
	Options    = runtime.Options
	DeviceInfo = device.Info
	DeviceKind = device.Kind

	Error     = fault.Error
	ErrorKind = fault.Kind
)

// Element is a host type a buffer can hold.
type Element = runtime.Element

type (
	Buffer1D[T Element] = runtime.Buffer1D[T]
	Buffer2D[T Element] = runtime.Buffer2D[T]
)

const (
	Char   = types.Char
	UChar  = types.UChar
	Short  = types.Short
	UShort = types.UShort
	Int    = types.Int
	UInt   = types.UInt
	Long   = types.Long
	ULong  = types.ULong
	Float  = types.Float
	Double = types.Double
)

const (
	KindDefault     = device.KindDefault
	KindCPU         = device.KindCPU
	KindGPU         = device.KindGPU
	KindAccelerator = device.KindAccelerator
)

const (
	KindInternal = fault.KindInternal
	KindMisuse   = fault.KindMisuse
	KindDevice   = fault.KindDevice
	KindCompile  = fault.KindCompile
)

var (
	ErrNoPlatform = fault.ErrNoPlatform
	ErrClosed     = fault.ErrClosed
	ErrReleased   = fault.ErrReleased
)

var (
	Scalar        = types.Scalar
	Vector        = types.Vector
	ScalarParam   = builder.ScalarParam
	Buffer1DParam = builder.Buffer1DParam
	Buffer2DParam = builder.Buffer2DParam
)

// KindOf classifies err; errors from outside this package are internal.
func KindOf(err error) ErrorKind { return fault.KindOf(err) }

// Open selects a device and creates a context on it.
func Open(ctx context.Context, opts Options) (*Context, error) {
	var c *Context
	err := fault.Guard(func() (err error) {
		c, err = runtime.Open(ctx, opts)
		return err
	})
	return c, err
}

// OpenConfig opens a context from spark.toml. An empty path searches upwards
// from the working directory; without a file the defaults apply.
func OpenConfig(ctx context.Context, path string) (*Context, error) {
	var c *Context
	err := fault.Guard(func() error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err := config.Resolve(path, wd)
		if err != nil {
			return fault.Wrap(fault.KindMisuse, "load config", err)
		}
		kind, err := cfg.Kind()
		if err != nil {
			return fault.Wrap(fault.KindMisuse, "load config", err)
		}
		cache, err := cfg.OpenCache()
		if err != nil {
			return err
		}
		c, err = runtime.Open(ctx, Options{
			Driver:       cfg.Device.Driver,
			Kind:         kind,
			Platform:     cfg.Device.Platform,
			Index:        cfg.Device.Index,
			BuildOptions: cfg.Build.Options,
			Cache:        cache,
		})
		return err
	})
	return c, err
}

// SetCurrent makes c the context returned by Current.
func SetCurrent(c *Context) { runtime.SetCurrent(c) }

func Current() *Context { return runtime.Current() }

// Build generates a program without a device.
func Build(ctx context.Context, opts BuildOptions, fn func(*Session)) (*Program, error) {
	var prog *Program
	err := fault.Guard(func() (err error) {
		prog, err = builder.Build(ctx, opts, fn)
		return err
	})
	return prog, err
}

// NewKernel builds fn and compiles it on c.
func NewKernel(c *Context, fn func(*Session)) (*Kernel, error) {
	var k *Kernel
	err := fault.Guard(func() (err error) {
		k, err = runtime.NewKernel(c, fn)
		return err
	})
	return k, err
}

// NewKernelOptions is NewKernel with a caller context and build options.
func NewKernelOptions(ctx context.Context, c *Context, opts BuildOptions, fn func(*Session)) (*Kernel, error) {
	var k *Kernel
	err := fault.Guard(func() (err error) {
		k, err = runtime.NewKernelOptions(ctx, c, opts, fn)
		return err
	})
	return k, err
}

func NewBuffer1D[T Element](c *Context, count int, data []T) (*Buffer1D[T], error) {
	var b *Buffer1D[T]
	err := fault.Guard(func() (err error) {
		b, err = runtime.NewBuffer1D(c, count, data)
		return err
	})
	return b, err
}

func NewBuffer2D[T Element](c *Context, width, height int, data []T) (*Buffer2D[T], error) {
	var b *Buffer2D[T]
	err := fault.Guard(func() (err error) {
		b, err = runtime.NewBuffer2D(c, width, height, data)
		return err
	})
	return b, err
}

// Call sets the work size of k and runs it with args to completion.
func Call(ctx context.Context, k *Kernel, global []int, args ...any) error {
	return fault.Guard(func() error {
		if err := k.SetWorkDimensions(global...); err != nil {
			return err
		}
		return k.CallContext(ctx, args...)
	})
}
