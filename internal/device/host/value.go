package host

import (
	"encoding/binary"
	"math"

	"spark/internal/types"
)

// value is one interpreter value. Lanes hold integers sign- or zero-extended
// to 64 bits according to the primitive, and floats as float64 bits already
// rounded to the precision of the primitive. A pointer keeps its target in
// mem (device memory) or cell (a private variable) and the byte offset in
// lane 0.
type value struct {
	typ  types.Datatype
	lane [16]uint64
	mem  *hostMem
	cell *value
}

func scalarValue(p types.Primitive, bits uint64) value {
	v := value{typ: types.Scalar(p)}
	v.lane[0] = bits
	return v
}

func intValue(v int64) value { return scalarValue(types.Int, uint64(v)) }

// canonInt truncates raw to the width of p and re-extends it.
func canonInt(p types.Primitive, raw uint64) uint64 {
	switch p {
	case types.Char:
		return uint64(int64(int8(raw)))
	case types.UChar:
		return uint64(uint8(raw))
	case types.Short:
		return uint64(int64(int16(raw)))
	case types.UShort:
		return uint64(uint16(raw))
	case types.Int:
		return uint64(int64(int32(raw)))
	case types.UInt:
		return uint64(uint32(raw))
	default:
		return raw
	}
}

func canonFloat(p types.Primitive, f float64) uint64 {
	if p == types.Float {
		return math.Float64bits(float64(float32(f)))
	}
	return math.Float64bits(f)
}

func laneFloat(p types.Primitive, bits uint64) float64 {
	switch {
	case p.IsFloat():
		return math.Float64frombits(bits)
	case p.IsSigned():
		return float64(int64(bits))
	default:
		return float64(bits)
	}
}

// floatToInt follows the saturating conversion most devices implement; NaN
// becomes zero.
func floatToInt(p types.Primitive, f float64) uint64 {
	switch {
	case math.IsNaN(f):
		return 0
	case p.IsSigned():
		switch {
		case f <= math.MinInt64:
			return canonInt(p, 1<<63)
		case f >= math.MaxInt64:
			return canonInt(p, math.MaxInt64)
		}
		return canonInt(p, uint64(int64(f)))
	default:
		switch {
		case f <= -1:
			return canonInt(p, uint64(int64(f)))
		case f >= math.MaxUint64:
			return canonInt(p, math.MaxUint64)
		case f < 0:
			return 0
		}
		return canonInt(p, uint64(f))
	}
}

func convertLane(from, to types.Primitive, bits uint64) uint64 {
	switch {
	case to.IsFloat():
		return canonFloat(to, laneFloat(from, bits))
	case from.IsFloat():
		return floatToInt(to, math.Float64frombits(bits))
	default:
		return canonInt(to, bits)
	}
}

// convert applies an implicit or explicit conversion. A scalar converted to
// a vector type is broadcast.
func convert(v value, to types.Datatype) value {
	if v.typ == to {
		return v
	}
	if to.Pointer || v.typ.Pointer {
		v.typ = to
		return v
	}
	out := value{typ: to}
	from := v.typ.Primitive
	if v.typ.Lanes() == 1 {
		c := convertLane(from, to.Primitive, v.lane[0])
		for i := range to.Lanes() {
			out.lane[i] = c
		}
		return out
	}
	for i := range to.Lanes() {
		out.lane[i] = convertLane(from, to.Primitive, v.lane[i])
	}
	return out
}

func truth(v value) bool {
	if v.typ.Pointer {
		return v.mem != nil || v.cell != nil
	}
	if v.typ.Primitive.IsFloat() {
		return math.Float64frombits(v.lane[0]) != 0
	}
	return v.lane[0] != 0
}

// index reads an integer scalar as a signed element offset.
func (v value) index() int64 {
	return int64(v.lane[0])
}

// decode reads one value of type dt from little-endian storage.
func decode(dt types.Datatype, b []byte) value {
	v := value{typ: dt}
	p := dt.Primitive
	size := p.Size()
	for i := range dt.Lanes() {
		chunk := b[i*size : (i+1)*size]
		switch p {
		case types.Char, types.UChar:
			v.lane[i] = canonInt(p, uint64(chunk[0]))
		case types.Short, types.UShort:
			v.lane[i] = canonInt(p, uint64(binary.LittleEndian.Uint16(chunk)))
		case types.Int, types.UInt:
			v.lane[i] = canonInt(p, uint64(binary.LittleEndian.Uint32(chunk)))
		case types.Long, types.ULong:
			v.lane[i] = binary.LittleEndian.Uint64(chunk)
		case types.Float:
			v.lane[i] = math.Float64bits(float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk))))
		case types.Double:
			v.lane[i] = binary.LittleEndian.Uint64(chunk)
		}
	}
	return v
}

// encode writes v into little-endian storage; b must hold v.typ.Size() bytes.
func encode(v value, b []byte) {
	p := v.typ.Primitive
	size := p.Size()
	for i := range v.typ.Lanes() {
		chunk := b[i*size : (i+1)*size]
		switch p {
		case types.Char, types.UChar:
			chunk[0] = byte(v.lane[i])
		case types.Short, types.UShort:
			binary.LittleEndian.PutUint16(chunk, uint16(v.lane[i]))
		case types.Int, types.UInt:
			binary.LittleEndian.PutUint32(chunk, uint32(v.lane[i]))
		case types.Long, types.ULong, types.Double:
			binary.LittleEndian.PutUint64(chunk, v.lane[i])
		case types.Float:
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(float32(math.Float64frombits(v.lane[i]))))
		}
	}
}

// mask is the lane value a comparison yields: 1 for scalars, all bits set
// for vector lanes.
func mask(ok, vector bool) uint64 {
	switch {
	case !ok:
		return 0
	case vector:
		return math.MaxUint64
	default:
		return 1
	}
}

// arith applies a binary operator lane by lane. a and b already have the
// operand type; result is the type the checker assigned.
func arith(op string, a, b value, result types.Datatype) value {
	p := a.typ.Primitive
	out := value{typ: result}
	vector := result.IsVector()
	bits := uint64(p.Size() * 8)
	for i := range a.typ.Lanes() {
		x, y := a.lane[i], b.lane[i]
		var r uint64
		switch {
		case p.IsFloat():
			fx, fy := math.Float64frombits(x), math.Float64frombits(y)
			switch op {
			case "+":
				r = canonFloat(p, fx+fy)
			case "-":
				r = canonFloat(p, fx-fy)
			case "*":
				r = canonFloat(p, fx*fy)
			case "/":
				r = canonFloat(p, fx/fy)
			case "==":
				r = mask(fx == fy, vector)
			case "!=":
				r = mask(fx != fy, vector)
			case "<":
				r = mask(fx < fy, vector)
			case ">":
				r = mask(fx > fy, vector)
			case "<=":
				r = mask(fx <= fy, vector)
			case ">=":
				r = mask(fx >= fy, vector)
			}
		case p.IsSigned():
			sx, sy := int64(x), int64(y)
			switch op {
			case "/":
				if sy != 0 {
					r = canonInt(p, uint64(sx/sy))
				}
			case "%":
				if sy != 0 {
					r = canonInt(p, uint64(sx%sy))
				}
			case ">>":
				r = canonInt(p, uint64(sx>>(y&(bits-1))))
			case "<":
				r = mask(sx < sy, vector)
			case ">":
				r = mask(sx > sy, vector)
			case "<=":
				r = mask(sx <= sy, vector)
			case ">=":
				r = mask(sx >= sy, vector)
			default:
				r = intOp(op, p, x, y, bits, vector)
			}
		default:
			switch op {
			case "/":
				if y != 0 {
					r = x / y
				}
			case "%":
				if y != 0 {
					r = x % y
				}
			case ">>":
				r = x >> (y & (bits - 1))
			case "<":
				r = mask(x < y, vector)
			case ">":
				r = mask(x > y, vector)
			case "<=":
				r = mask(x <= y, vector)
			case ">=":
				r = mask(x >= y, vector)
			default:
				r = intOp(op, p, x, y, bits, vector)
			}
		}
		if result.Primitive != p {
			// comparisons produce a mask of the result primitive
			r = canonInt(result.Primitive, r)
		}
		out.lane[i] = r
	}
	return out
}

// intOp covers the operators whose result does not depend on signedness.
func intOp(op string, p types.Primitive, x, y, bits uint64, vector bool) uint64 {
	switch op {
	case "+":
		return canonInt(p, x+y)
	case "-":
		return canonInt(p, x-y)
	case "*":
		return canonInt(p, x*y)
	case "&":
		return x & y
	case "|":
		return x | y
	case "^":
		return canonInt(p, x^y)
	case "<<":
		return canonInt(p, x<<(y&(bits-1)))
	case "==":
		return mask(x == y, vector)
	case "!=":
		return mask(x != y, vector)
	}
	return 0
}
