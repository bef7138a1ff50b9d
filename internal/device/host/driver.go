// Package host is a device driver that runs generated kernels on the CPU.
// It compiles the OpenCL C subset the code generator emits into a checked
// syntax tree and interprets it, spreading work items across goroutines.
//
// The driver always reports exactly one device, so a runtime can fall back to
// it on machines without an OpenCL platform.
package host

import (
	"context"
	"fmt"
	"runtime"

	"spark/internal/device"
)

const (
	DriverName   = "host"
	PlatformName = "Spark Host"
	// DefaultGlobalMem is the allocation budget of the host device.
	DefaultGlobalMem = 1 << 32
)

type Driver struct {
	// Workers caps concurrent work item goroutines; 0 uses GOMAXPROCS.
	Workers int
	// GlobalMem overrides DefaultGlobalMem when positive.
	GlobalMem uint64
}

func New() *Driver { return &Driver{} }

func (*Driver) Name() string { return DriverName }

func (d *Driver) info() device.Info {
	mem := d.GlobalMem
	if mem == 0 {
		mem = DefaultGlobalMem
	}
	return device.Info{
		Driver:       DriverName,
		Platform:     PlatformName,
		Name:         fmt.Sprintf("host interpreter (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Vendor:       "spark",
		Version:      "OpenCL C 1.2 subset",
		Kind:         device.KindCPU,
		ComputeUnits: d.workers(),
		GlobalMem:    mem,
	}
}

func (d *Driver) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (d *Driver) Devices(ctx context.Context) ([]device.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []device.Info{d.info()}, nil
}

func (d *Driver) Open(ctx context.Context, info device.Info) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info.Driver != DriverName || info.Index != 0 {
		return nil, device.Fail("open device", device.InvalidDevice)
	}
	return newDevice(d.info(), d.workers()), nil
}
