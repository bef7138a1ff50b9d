package runtime

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"

	"spark/internal/types"
)

// encodeScalar turns a host value into the by-value bytes of a parameter of
// type dt. Typed values must match the primitive exactly; an untyped int is
// accepted for integer parameters when it fits. Vector parameters take a
// slice of the element type with one entry per lane.
func encodeScalar(dt types.Datatype, v any) ([]byte, error) {
	if dt.Pointer || !dt.Primitive.Valid() || dt.Primitive == types.Void {
		return nil, fmt.Errorf("cannot pass a value for %s", dt)
	}
	if dt.IsVector() {
		return encodeVector(dt, v)
	}
	p := dt.Primitive
	switch x := v.(type) {
	case int:
		return encodeInt(p, x)
	case int8:
		if p == types.Char {
			return []byte{byte(x)}, nil
		}
	case uint8:
		if p == types.UChar {
			return []byte{x}, nil
		}
	case int16:
		if p == types.Short {
			return binary.LittleEndian.AppendUint16(nil, uint16(x)), nil
		}
	case uint16:
		if p == types.UShort {
			return binary.LittleEndian.AppendUint16(nil, x), nil
		}
	case int32:
		if p == types.Int {
			return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
		}
	case uint32:
		if p == types.UInt {
			return binary.LittleEndian.AppendUint32(nil, x), nil
		}
	case int64:
		if p == types.Long {
			return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
		}
	case uint64:
		if p == types.ULong {
			return binary.LittleEndian.AppendUint64(nil, x), nil
		}
	case float32:
		if p == types.Float {
			return binary.LittleEndian.AppendUint32(nil, math.Float32bits(x)), nil
		}
	case float64:
		if p == types.Double {
			return binary.LittleEndian.AppendUint64(nil, math.Float64bits(x)), nil
		}
	}
	return nil, fmt.Errorf("%T passed for %s", v, dt)
}

func encodeInt(p types.Primitive, x int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch p {
	case types.Char:
		var v int8
		v, err = safecast.Conv[int8](x)
		out = []byte{byte(v)}
	case types.UChar:
		var v uint8
		v, err = safecast.Conv[uint8](x)
		out = []byte{v}
	case types.Short:
		var v int16
		v, err = safecast.Conv[int16](x)
		out = binary.LittleEndian.AppendUint16(nil, uint16(v))
	case types.UShort:
		var v uint16
		v, err = safecast.Conv[uint16](x)
		out = binary.LittleEndian.AppendUint16(nil, v)
	case types.Int:
		var v int32
		v, err = safecast.Conv[int32](x)
		out = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case types.UInt:
		var v uint32
		v, err = safecast.Conv[uint32](x)
		out = binary.LittleEndian.AppendUint32(nil, v)
	case types.Long:
		out = binary.LittleEndian.AppendUint64(nil, uint64(int64(x)))
	case types.ULong:
		var v uint64
		v, err = safecast.Conv[uint64](x)
		out = binary.LittleEndian.AppendUint64(nil, v)
	default:
		return nil, fmt.Errorf("int passed for %s", p)
	}
	if err != nil {
		return nil, fmt.Errorf("%d does not fit %s: %w", x, p, err)
	}
	return out, nil
}

func encodeVector(dt types.Datatype, v any) ([]byte, error) {
	elem := types.Scalar(dt.Primitive)
	var lanes []any
	switch x := v.(type) {
	case []int8:
		lanes = anySlice(x)
	case []uint8:
		lanes = anySlice(x)
	case []int16:
		lanes = anySlice(x)
	case []uint16:
		lanes = anySlice(x)
	case []int32:
		lanes = anySlice(x)
	case []uint32:
		lanes = anySlice(x)
	case []int64:
		lanes = anySlice(x)
	case []uint64:
		lanes = anySlice(x)
	case []float32:
		lanes = anySlice(x)
	case []float64:
		lanes = anySlice(x)
	default:
		return nil, fmt.Errorf("%T passed for %s", v, dt)
	}
	if len(lanes) != dt.Lanes() {
		return nil, fmt.Errorf("%d lanes passed for %s", len(lanes), dt)
	}
	out := make([]byte, 0, dt.Size())
	for _, l := range lanes {
		b, err := encodeScalar(elem, l)
		if err != nil {
			return nil, fmt.Errorf("%T passed for %s", v, dt)
		}
		out = append(out, b...)
	}
	return out, nil
}

func anySlice[T Element](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
