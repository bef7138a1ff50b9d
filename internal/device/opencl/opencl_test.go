//go:build opencl

package opencl

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"spark/internal/device"
	"spark/internal/fault"
)

func openFirst(t *testing.T) device.Device {
	t.Helper()
	ctx := context.Background()
	d := New()
	infos, err := d.Devices(ctx)
	if errors.Is(err, fault.ErrNoPlatform) {
		t.Skip("no OpenCL platform")
	}
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	dev, err := d.Open(ctx, infos[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func TestNativeSquare(t *testing.T) {
	dev := openFirst(t)
	ctx := context.Background()
	prog, err := dev.BuildProgram(ctx, `
__kernel void square(__global int* p, int n)
{
    int i = (int)get_global_id(0u);
    if ((i < n))
    {
        p[i] = (p[i] * p[i]);
    }
}
`, "")
	if err != nil {
		t.Fatalf("BuildProgram: %v", err)
	}
	defer prog.Release()
	k, err := prog.Kernel("square")
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	defer k.Release()

	init := make([]byte, 4*8)
	for i := range 8 {
		binary.LittleEndian.PutUint32(init[4*i:], uint32(i))
	}
	mem, err := dev.CreateBuffer(len(init), init)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer mem.Release()
	n := binary.LittleEndian.AppendUint32(nil, 8)
	if err := k.SetArg(0, device.MemArg(mem)); err != nil {
		t.Fatal(err)
	}
	if err := k.SetArg(1, device.ValueArg(n)); err != nil {
		t.Fatal(err)
	}
	if err := k.Launch(ctx, []int{8}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	out := make([]byte, len(init))
	if err := dev.Read(mem, 0, out); err != nil {
		t.Fatal(err)
	}
	for i := range 8 {
		if got := binary.LittleEndian.Uint32(out[4*i:]); got != uint32(i*i) {
			t.Errorf("p[%d] = %d, want %d", i, got, i*i)
		}
	}
}

func TestNativeBuildFailureCarriesLog(t *testing.T) {
	dev := openFirst(t)
	_, err := dev.BuildProgram(context.Background(), "__kernel void broken() { undeclared_thing = 1; }\n", "")
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.KindCompile {
		t.Fatalf("err = %v, want compile error", err)
	}
	if fe.Log == "" {
		t.Fatalf("compile error without build log")
	}
}
