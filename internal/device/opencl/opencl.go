//go:build opencl

package opencl

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>

static cl_context spark_create_context(cl_device_id dev, cl_int* status) {
	return clCreateContext(NULL, 1, &dev, NULL, NULL, status);
}

static cl_program spark_create_program(cl_context ctx, const char* src, size_t len, cl_int* status) {
	return clCreateProgramWithSource(ctx, 1, &src, &len, status);
}

static cl_int spark_build_program(cl_program prog, cl_device_id dev, const char* options) {
	return clBuildProgram(prog, 1, &dev, options, NULL, NULL);
}

static cl_int spark_fill_zero(cl_command_queue q, cl_mem mem, size_t offset, size_t size) {
	cl_uchar zero = 0;
	return clEnqueueFillBuffer(q, mem, &zero, 1, offset, size, 0, NULL, NULL);
}
*/
import "C"

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"fortio.org/safecast"

	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/trace"
)

func fail(op string, status C.cl_int) error {
	return device.Fail(op, int32(status))
}

type Driver struct {
	mu      sync.Mutex
	devices []C.cl_device_id
}

func New() *Driver { return &Driver{} }

func (*Driver) Name() string { return DriverName }

func (d *Driver) Devices(ctx context.Context) ([]device.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var n C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &n)
	if status == C.CL_PLATFORM_NOT_FOUND_KHR || (status == C.CL_SUCCESS && n == 0) {
		return nil, fault.ErrNoPlatform
	}
	if status != C.CL_SUCCESS {
		return nil, fail("clGetPlatformIDs", status)
	}
	platforms := make([]C.cl_platform_id, n)
	if status := C.clGetPlatformIDs(n, &platforms[0], nil); status != C.CL_SUCCESS {
		return nil, fail("clGetPlatformIDs", status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices = d.devices[:0]
	var infos []device.Info
	for _, p := range platforms {
		platform := platformString(p, C.CL_PLATFORM_NAME)
		var count C.cl_uint
		status := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
		if status == C.CL_DEVICE_NOT_FOUND || count == 0 {
			continue
		}
		if status != C.CL_SUCCESS {
			return nil, fail("clGetDeviceIDs", status)
		}
		ids := make([]C.cl_device_id, count)
		if status := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_ALL, count, &ids[0], nil); status != C.CL_SUCCESS {
			return nil, fail("clGetDeviceIDs", status)
		}
		for _, id := range ids {
			infos = append(infos, describe(id, platform, len(d.devices)))
			d.devices = append(d.devices, id)
		}
	}
	if len(infos) == 0 {
		return nil, fault.ErrNoPlatform
	}
	return infos, nil
}

func platformString(p C.cl_platform_id, param C.cl_platform_info) string {
	var size C.size_t
	if C.clGetPlatformInfo(p, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if C.clGetPlatformInfo(p, param, size, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

func describe(id C.cl_device_id, platform string, index int) device.Info {
	var typ C.cl_device_type
	C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(typ)), unsafe.Pointer(&typ), nil)
	var units C.cl_uint
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(units)), unsafe.Pointer(&units), nil)
	var mem C.cl_ulong
	C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem), nil)

	kind := device.KindDefault
	switch {
	case typ&C.CL_DEVICE_TYPE_GPU != 0:
		kind = device.KindGPU
	case typ&C.CL_DEVICE_TYPE_CPU != 0:
		kind = device.KindCPU
	case typ&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		kind = device.KindAccelerator
	}
	return device.Info{
		Driver:       DriverName,
		Platform:     platform,
		Name:         deviceString(id, C.CL_DEVICE_NAME),
		Vendor:       deviceString(id, C.CL_DEVICE_VENDOR),
		Version:      deviceString(id, C.CL_DEVICE_VERSION),
		Kind:         kind,
		ComputeUnits: int(units),
		GlobalMem:    uint64(mem),
		Index:        index,
	}
}

func (d *Driver) Open(ctx context.Context, info device.Info) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if info.Driver != DriverName || info.Index < 0 || info.Index >= len(d.devices) {
		d.mu.Unlock()
		return nil, device.Fail("open device", device.InvalidDevice)
	}
	id := d.devices[info.Index]
	d.mu.Unlock()

	var status C.cl_int
	clctx := C.spark_create_context(id, &status)
	if status != C.CL_SUCCESS {
		return nil, fail("clCreateContext", status)
	}
	queue := C.clCreateCommandQueue(clctx, id, 0, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(clctx)
		return nil, fail("clCreateCommandQueue", status)
	}
	return &Device{info: info, id: id, ctx: clctx, queue: queue}, nil
}

// Device owns one native context and its in-order command queue. The mutex
// keeps the release of the queue from racing with enqueued commands.
type Device struct {
	info  device.Info
	id    C.cl_device_id
	ctx   C.cl_context
	queue C.cl_command_queue

	mu     sync.Mutex
	closed bool
}

func (d *Device) Info() device.Info { return d.info }

type clMem struct {
	dev      *Device
	mem      C.cl_mem
	size     int
	released atomic.Bool
}

func (m *clMem) Size() int { return m.size }

func (m *clMem) Release() error {
	if !m.released.CompareAndSwap(false, true) {
		return device.Fail("clReleaseMemObject", device.InvalidMemObject)
	}
	if status := C.clReleaseMemObject(m.mem); status != C.CL_SUCCESS {
		return fail("clReleaseMemObject", status)
	}
	return nil
}

func (d *Device) CreateBuffer(size int, init []byte) (device.Mem, error) {
	const op = "clCreateBuffer"
	if size <= 0 || (init != nil && len(init) != size) {
		return nil, device.Fail(op, device.InvalidBufferSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}
	flags := C.cl_mem_flags(C.CL_MEM_READ_WRITE)
	var host unsafe.Pointer
	if init != nil {
		flags |= C.CL_MEM_COPY_HOST_PTR
		host = unsafe.Pointer(&init[0])
	}
	var status C.cl_int
	mem := C.clCreateBuffer(d.ctx, flags, C.size_t(size), host, &status)
	if status != C.CL_SUCCESS {
		return nil, fail(op, status)
	}
	return &clMem{dev: d, mem: mem, size: size}, nil
}

func (d *Device) mem(op string, m device.Mem, offset, size int) (*clMem, error) {
	cm, ok := m.(*clMem)
	if !ok || cm.dev != d || cm.released.Load() {
		return nil, device.Fail(op, device.InvalidMemObject)
	}
	if offset < 0 || size < 0 || offset+size > cm.size {
		return nil, device.Fail(op, device.InvalidValue)
	}
	if d.closed {
		return nil, fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}
	return cm, nil
}

func (d *Device) Read(m device.Mem, offset int, dst []byte) error {
	const op = "clEnqueueReadBuffer"
	d.mu.Lock()
	defer d.mu.Unlock()
	cm, err := d.mem(op, m, offset, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}
	status := C.clEnqueueReadBuffer(d.queue, cm.mem, C.CL_TRUE, C.size_t(offset), C.size_t(len(dst)),
		unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return fail(op, status)
	}
	return nil
}

func (d *Device) Write(m device.Mem, offset int, src []byte) error {
	const op = "clEnqueueWriteBuffer"
	d.mu.Lock()
	defer d.mu.Unlock()
	cm, err := d.mem(op, m, offset, len(src))
	if err != nil || len(src) == 0 {
		return err
	}
	status := C.clEnqueueWriteBuffer(d.queue, cm.mem, C.CL_TRUE, C.size_t(offset), C.size_t(len(src)),
		unsafe.Pointer(&src[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return fail(op, status)
	}
	return nil
}

func (d *Device) Fill(m device.Mem, offset, size int) error {
	const op = "clEnqueueFillBuffer"
	d.mu.Lock()
	defer d.mu.Unlock()
	cm, err := d.mem(op, m, offset, size)
	if err != nil || size == 0 {
		return err
	}
	if status := C.spark_fill_zero(d.queue, cm.mem, C.size_t(offset), C.size_t(size)); status != C.CL_SUCCESS {
		return fail(op, status)
	}
	if status := C.clFinish(d.queue); status != C.CL_SUCCESS {
		return fail("clFinish", status)
	}
	return nil
}

func (d *Device) BuildProgram(ctx context.Context, source, options string) (device.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span, _ := trace.Start(ctx, trace.ScopeKernel, "opencl build")
	defer span.End("")

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, fault.Wrap(fault.KindDevice, "clCreateProgramWithSource", fault.ErrClosed)
	}

	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	var status C.cl_int
	prog := C.spark_create_program(d.ctx, csrc, C.size_t(len(source)), &status)
	if status != C.CL_SUCCESS {
		return nil, fail("clCreateProgramWithSource", status)
	}
	copts := C.CString(options)
	defer C.free(unsafe.Pointer(copts))
	status = C.spark_build_program(prog, d.id, copts)
	log := d.buildLog(prog)
	span.WithExtra("log_bytes", strconv.Itoa(len(log)))
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(prog)
		if status == C.CL_BUILD_PROGRAM_FAILURE {
			return nil, fault.Compile("clBuildProgram", log, int32(status), device.CodeName(int32(status)))
		}
		return nil, fail("clBuildProgram", status)
	}
	return &clProgram{dev: d, prog: prog, log: log}, nil
}

func (d *Device) buildLog(prog C.cl_program) string {
	var size C.size_t
	if C.clGetProgramBuildInfo(prog, d.id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if C.clGetProgramBuildInfo(prog, d.id, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	C.clFinish(d.queue)
	if status := C.clReleaseCommandQueue(d.queue); status != C.CL_SUCCESS {
		C.clReleaseContext(d.ctx)
		return fail("clReleaseCommandQueue", status)
	}
	if status := C.clReleaseContext(d.ctx); status != C.CL_SUCCESS {
		return fail("clReleaseContext", status)
	}
	return nil
}

type clProgram struct {
	dev      *Device
	prog     C.cl_program
	log      string
	released atomic.Bool
}

func (p *clProgram) BuildLog() string { return p.log }

func (p *clProgram) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return device.Fail("clReleaseProgram", device.InvalidProgram)
	}
	if status := C.clReleaseProgram(p.prog); status != C.CL_SUCCESS {
		return fail("clReleaseProgram", status)
	}
	return nil
}

func (p *clProgram) Kernel(name string) (device.Kernel, error) {
	if p.released.Load() {
		return nil, device.Fail("clCreateKernel", device.InvalidProgram)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var status C.cl_int
	k := C.clCreateKernel(p.prog, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, fail("clCreateKernel", status)
	}
	return &clKernel{dev: p.dev, kernel: k, name: name}, nil
}

type clKernel struct {
	dev      *Device
	kernel   C.cl_kernel
	name     string
	released atomic.Bool
}

func (k *clKernel) SetArg(index int, arg device.Arg) error {
	const op = "clSetKernelArg"
	idx, err := safecast.Conv[C.cl_uint](index)
	if err != nil {
		return device.Fail(op, device.InvalidArgIndex)
	}
	var status C.cl_int
	if arg.IsMem() {
		cm, ok := arg.Mem.(*clMem)
		if !ok || cm.dev != k.dev || cm.released.Load() {
			return device.Fail(op, device.InvalidMemObject)
		}
		mem := cm.mem
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	} else {
		if len(arg.Value) == 0 {
			return device.Fail(op, device.InvalidArgSize)
		}
		status = C.clSetKernelArg(k.kernel, idx, C.size_t(len(arg.Value)), unsafe.Pointer(&arg.Value[0]))
	}
	if status != C.CL_SUCCESS {
		return fail(op, status)
	}
	return nil
}

func (k *clKernel) Launch(ctx context.Context, global []int) error {
	const op = "clEnqueueNDRangeKernel"
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(global) == 0 || len(global) > 3 {
		return device.Fail(op, device.InvalidWorkDimension)
	}
	sizes := make([]C.size_t, len(global))
	total := 1
	for i, g := range global {
		if g <= 0 {
			return device.Fail(op, device.InvalidGlobalWorkSize)
		}
		sizes[i] = C.size_t(g)
		total *= g
	}
	span, _ := trace.Start(ctx, trace.ScopeKernel, fmt.Sprintf("launch %s", k.name))
	span.WithExtra("items", strconv.Itoa(total))
	defer span.End("")

	k.dev.mu.Lock()
	defer k.dev.mu.Unlock()
	if k.dev.closed {
		return device.Fail(op, device.InvalidCommandQueue)
	}
	status := C.clEnqueueNDRangeKernel(k.dev.queue, k.kernel, C.cl_uint(len(global)), nil, &sizes[0], nil, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return fail(op, status)
	}
	if status := C.clFinish(k.dev.queue); status != C.CL_SUCCESS {
		return fail("clFinish", status)
	}
	return nil
}

func (k *clKernel) Release() error {
	if !k.released.CompareAndSwap(false, true) {
		return device.Fail("clReleaseKernel", device.InvalidKernel)
	}
	if status := C.clReleaseKernel(k.kernel); status != C.CL_SUCCESS {
		return fail("clReleaseKernel", status)
	}
	return nil
}
