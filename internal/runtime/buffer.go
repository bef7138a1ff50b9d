package runtime

import (
	"encoding/binary"
	"strconv"
	"sync/atomic"

	"fortio.org/safecast"

	"spark/internal/builder"
	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/trace"
	"spark/internal/types"
)

// Element is a host type a buffer can hold.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// PrimitiveOf maps a host element type to its device primitive.
func PrimitiveOf[T Element]() types.Primitive {
	var zero T
	switch any(zero).(type) {
	case int8:
		return types.Char
	case uint8:
		return types.UChar
	case int16:
		return types.Short
	case uint16:
		return types.UShort
	case int32:
		return types.Int
	case uint32:
		return types.UInt
	case int64:
		return types.Long
	case uint64:
		return types.ULong
	case float32:
		return types.Float
	default:
		return types.Double
	}
}

// memArg is what kernel dispatch needs from any buffer.
type memArg interface {
	owner() *Context
	kind() builder.ParamKind
	elem() types.Primitive
	native() ([]device.Arg, error)
}

type buffer[T Element] struct {
	c    *Context
	mem  device.Mem
	dims []int
	refs atomic.Int32
}

func newBuffer[T Element](c *Context, op string, dims []int, data []T) (*buffer[T], error) {
	if err := c.check(op); err != nil {
		return nil, err
	}
	count := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fault.Misusef(op, "extent %d must be positive", d)
		}
		if _, err := safecast.Conv[int32](d); err != nil {
			return nil, fault.Misusef(op, "extent %d does not fit a kernel int", d)
		}
		count *= d
		// Kernels index 2D buffers as y*width + x in int arithmetic.
		if _, err := safecast.Conv[int32](count); err != nil {
			return nil, fault.Misusef(op, "%v elements do not fit a kernel int", dims)
		}
	}
	if data != nil && len(data) != count {
		return nil, fault.Misusef(op, "initial data has %d elements, buffer holds %d", len(data), count)
	}
	var init []byte
	if data != nil {
		var err error
		if init, err = binary.Append(nil, binary.LittleEndian, data); err != nil {
			return nil, fault.Wrap(fault.KindInternal, op, err)
		}
	}
	mem, err := c.dev.CreateBuffer(count*PrimitiveOf[T]().Size(), init)
	if err != nil {
		return nil, err
	}
	b := &buffer[T]{c: c, mem: mem, dims: dims}
	b.refs.Store(1)
	return b, nil
}

func (b *buffer[T]) owner() *Context       { return b.c }
func (b *buffer[T]) elem() types.Primitive { return PrimitiveOf[T]() }

// Len is the element count.
func (b *buffer[T]) Len() int {
	n := 1
	for _, d := range b.dims {
		n *= d
	}
	return n
}

func (b *buffer[T]) live(op string) error {
	if b.refs.Load() <= 0 {
		return fault.Wrap(fault.KindMisuse, op, fault.ErrReleased)
	}
	return b.c.check(op)
}

func (b *buffer[T]) native() ([]device.Arg, error) {
	if err := b.live("bind buffer"); err != nil {
		return nil, err
	}
	args := []device.Arg{device.MemArg(b.mem)}
	for _, d := range b.dims {
		args = append(args, device.ValueArg(binary.LittleEndian.AppendUint32(nil, uint32(d))))
	}
	return args, nil
}

func (b *buffer[T]) span(op string, offset, count int) (int, error) {
	if err := b.live(op); err != nil {
		return 0, err
	}
	if offset < 0 || count < 0 || offset+count > b.Len() {
		return 0, fault.Misusef(op, "range [%d,%d) outside %d elements", offset, offset+count, b.Len())
	}
	return PrimitiveOf[T]().Size(), nil
}

// ReadAt copies len(dst) elements starting at element offset into dst.
func (b *buffer[T]) ReadAt(dst []T, offset int) error {
	const op = "buffer.read"
	size, err := b.span(op, offset, len(dst))
	if err != nil {
		return err
	}
	span := trace.Begin(b.c.tracer, trace.ScopeKernel, op, 0)
	span.WithExtra("bytes", strconv.Itoa(size*len(dst)))
	defer span.End("")
	raw := make([]byte, size*len(dst))
	if err := b.c.dev.Read(b.mem, offset*size, raw); err != nil {
		return err
	}
	if _, err := binary.Decode(raw, binary.LittleEndian, dst); err != nil {
		return fault.Wrap(fault.KindInternal, op, err)
	}
	return nil
}

// Read returns the whole buffer.
func (b *buffer[T]) Read() ([]T, error) {
	out := make([]T, b.Len())
	if err := b.ReadAt(out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteAt copies src into the buffer starting at element offset. A nil src
// zeroes the rest of the buffer from offset.
func (b *buffer[T]) WriteAt(src []T, offset int) error {
	const op = "buffer.write"
	if src == nil {
		return b.zero(op, offset, b.Len()-offset)
	}
	size, err := b.span(op, offset, len(src))
	if err != nil {
		return err
	}
	span := trace.Begin(b.c.tracer, trace.ScopeKernel, op, 0)
	span.WithExtra("bytes", strconv.Itoa(size*len(src)))
	defer span.End("")
	raw, err := binary.Append(nil, binary.LittleEndian, src)
	if err != nil {
		return fault.Wrap(fault.KindInternal, op, err)
	}
	return b.c.dev.Write(b.mem, offset*size, raw)
}

// Write replaces the whole buffer; src must hold Len elements or be nil.
func (b *buffer[T]) Write(src []T) error {
	if src != nil && len(src) != b.Len() {
		return fault.Misusef("buffer.write", "got %d elements, buffer holds %d", len(src), b.Len())
	}
	return b.WriteAt(src, 0)
}

// Zero clears every element.
func (b *buffer[T]) Zero() error { return b.WriteAt(nil, 0) }

func (b *buffer[T]) zero(op string, offset, count int) error {
	size, err := b.span(op, offset, count)
	if err != nil || count == 0 {
		return err
	}
	return b.c.dev.Fill(b.mem, offset*size, count*size)
}

func (b *buffer[T]) Retain() { b.refs.Add(1) }

// Release drops one reference; the device memory goes with the last one.
func (b *buffer[T]) Release() error {
	switch n := b.refs.Add(-1); {
	case n == 0:
		return b.mem.Release()
	case n < 0:
		b.refs.Store(0)
		return fault.Wrap(fault.KindMisuse, "buffer.release", fault.ErrReleased)
	}
	return nil
}

// Buffer1D is a device array of count elements. As a kernel argument it
// binds as (pointer, count).
type Buffer1D[T Element] struct{ *buffer[T] }

func NewBuffer1D[T Element](c *Context, count int, data []T) (*Buffer1D[T], error) {
	b, err := newBuffer(c, "buffer1d", []int{count}, data)
	if err != nil {
		return nil, err
	}
	return &Buffer1D[T]{b}, nil
}

func (*Buffer1D[T]) kind() builder.ParamKind { return builder.ParamBuffer1D }

// Buffer2D is a row-major width x height grid. As a kernel argument it binds
// as (pointer, width, height).
type Buffer2D[T Element] struct{ *buffer[T] }

func NewBuffer2D[T Element](c *Context, width, height int, data []T) (*Buffer2D[T], error) {
	b, err := newBuffer(c, "buffer2d", []int{width, height}, data)
	if err != nil {
		return nil, err
	}
	return &Buffer2D[T]{b}, nil
}

func (*Buffer2D[T]) kind() builder.ParamKind { return builder.ParamBuffer2D }

func (b *Buffer2D[T]) Width() int  { return b.dims[0] }
func (b *Buffer2D[T]) Height() int { return b.dims[1] }
