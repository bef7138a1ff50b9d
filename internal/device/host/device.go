package host

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"spark/internal/device"
	"spark/internal/diag"
	"spark/internal/fault"
	"spark/internal/trace"
)

// SourceName is the file name build log entries refer to.
const SourceName = "<source>"

// Device is an opened host device. The queue mutex serializes every command
// so memory operations and launches complete in submission order.
type Device struct {
	info    device.Info
	workers int

	queue     sync.Mutex
	closed    bool
	allocated uint64
}

func newDevice(info device.Info, workers int) *Device {
	return &Device{info: info, workers: workers}
}

func (d *Device) Info() device.Info { return d.info }

type hostMem struct {
	dev      *Device
	data     []byte
	released atomic.Bool
}

func (m *hostMem) Size() int { return len(m.data) }

func (m *hostMem) Release() error {
	if !m.released.CompareAndSwap(false, true) {
		return device.Fail("release mem object", device.InvalidMemObject)
	}
	m.dev.queue.Lock()
	m.dev.allocated -= uint64(len(m.data))
	m.dev.queue.Unlock()
	return nil
}

func (d *Device) CreateBuffer(size int, init []byte) (device.Mem, error) {
	const op = "create buffer"
	if size <= 0 || (init != nil && len(init) != size) {
		return nil, device.Fail(op, device.InvalidBufferSize)
	}
	d.queue.Lock()
	defer d.queue.Unlock()
	if d.closed {
		return nil, fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}
	if d.allocated+uint64(size) > d.info.GlobalMem {
		return nil, device.Fail(op, device.MemObjectAllocationFailure)
	}
	m := &hostMem{dev: d, data: make([]byte, size)}
	copy(m.data, init)
	d.allocated += uint64(size)
	return m, nil
}

// mem validates that m is a live buffer of this device.
func (d *Device) mem(op string, m device.Mem) (*hostMem, error) {
	hm, ok := m.(*hostMem)
	if !ok || hm.dev != d || hm.released.Load() {
		return nil, device.Fail(op, device.InvalidMemObject)
	}
	return hm, nil
}

func (d *Device) span(op string, m device.Mem, offset, size int) (*hostMem, error) {
	hm, err := d.mem(op, m)
	if err != nil {
		return nil, err
	}
	if offset < 0 || size < 0 || offset+size > len(hm.data) {
		return nil, device.Fail(op, device.InvalidValue)
	}
	if d.closed {
		return nil, fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}
	return hm, nil
}

func (d *Device) Read(m device.Mem, offset int, dst []byte) error {
	d.queue.Lock()
	defer d.queue.Unlock()
	hm, err := d.span("read buffer", m, offset, len(dst))
	if err != nil {
		return err
	}
	copy(dst, hm.data[offset:])
	return nil
}

func (d *Device) Write(m device.Mem, offset int, src []byte) error {
	d.queue.Lock()
	defer d.queue.Unlock()
	hm, err := d.span("write buffer", m, offset, len(src))
	if err != nil {
		return err
	}
	copy(hm.data[offset:], src)
	return nil
}

func (d *Device) Fill(m device.Mem, offset, size int) error {
	d.queue.Lock()
	defer d.queue.Unlock()
	hm, err := d.span("fill buffer", m, offset, size)
	if err != nil {
		return err
	}
	clear(hm.data[offset : offset+size])
	return nil
}

// BuildProgram parses and checks source. Options are accepted for parity
// with native drivers; every option must be a flag.
func (d *Device) BuildProgram(ctx context.Context, source, options string) (device.Program, error) {
	const op = "build program"
	span, _ := trace.Start(ctx, trace.ScopeKernel, "host build")
	detail := "ok"
	defer func() { span.End(detail) }()

	for _, opt := range strings.Fields(options) {
		if !strings.HasPrefix(opt, "-") {
			detail = "bad options"
			return nil, device.Fail(op, device.InvalidBuildOptions)
		}
	}
	d.queue.Lock()
	closed := d.closed
	d.queue.Unlock()
	if closed {
		detail = "closed"
		return nil, fault.Wrap(fault.KindDevice, op, fault.ErrClosed)
	}

	bag := diag.NewBag(0)
	r := diag.BagReporter{Bag: bag}
	prog, ok := parse(SourceName, source, r)
	if ok {
		ok = check(prog, r)
	}
	bag.Sort()
	log := diag.FormatLog(bag.Items())
	if !ok {
		detail = "rejected"
		span.WithExtra("errors", strconv.Itoa(bag.Count(diag.SevError)))
		return nil, fault.Compile(op, log, device.BuildProgramFailure, device.CodeName(device.BuildProgramFailure))
	}
	span.WithExtra("functions", strconv.Itoa(len(prog.funcs)))
	return &hostProgram{dev: d, prog: prog, log: log}, nil
}

func (d *Device) Close() error {
	d.queue.Lock()
	defer d.queue.Unlock()
	if d.closed {
		return fault.Wrap(fault.KindDevice, "close device", fault.ErrClosed)
	}
	d.closed = true
	return nil
}
