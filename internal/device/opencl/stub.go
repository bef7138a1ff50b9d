//go:build !opencl

package opencl

import (
	"context"

	"spark/internal/device"
	"spark/internal/fault"
)

type Driver struct{}

func New() *Driver { return &Driver{} }

func (*Driver) Name() string { return DriverName }

func (*Driver) Devices(context.Context) ([]device.Info, error) {
	return nil, fault.ErrNoPlatform
}

func (*Driver) Open(context.Context, device.Info) (device.Device, error) {
	return nil, fault.Wrap(fault.KindDevice, "open device", fault.ErrNoPlatform)
}
