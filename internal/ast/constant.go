package ast

import (
	"math"

	"spark/internal/types"
)

// EncodeInt stores v in the raw form of primitive p, truncating to its width.
func EncodeInt(p types.Primitive, v int64) uint64 {
	switch p {
	case types.Char:
		return uint64(uint8(int8(v)))
	case types.UChar:
		return uint64(uint8(v))
	case types.Short:
		return uint64(uint16(int16(v)))
	case types.UShort:
		return uint64(uint16(v))
	case types.Int:
		return uint64(uint32(int32(v)))
	case types.UInt:
		return uint64(uint32(v))
	case types.Float:
		return uint64(math.Float32bits(float32(v)))
	case types.Double:
		return math.Float64bits(float64(v))
	default:
		return uint64(v)
	}
}

// EncodeFloat stores f in the raw form of primitive p; integer primitives truncate toward zero.
func EncodeFloat(p types.Primitive, f float64) uint64 {
	switch p {
	case types.Float:
		return uint64(math.Float32bits(float32(f)))
	case types.Double:
		return math.Float64bits(f)
	case types.ULong:
		return uint64(f)
	default:
		return EncodeInt(p, int64(f))
	}
}

// Int decodes a signed integer constant with sign extension.
func (c ConstantData) Int() int64 {
	switch c.Type.Primitive {
	case types.Char:
		return int64(int8(c.Bits))
	case types.Short:
		return int64(int16(c.Bits))
	case types.Int:
		return int64(int32(c.Bits))
	case types.Float, types.Double:
		return int64(c.Float())
	default:
		return int64(c.Bits)
	}
}

// Uint decodes an unsigned integer constant.
func (c ConstantData) Uint() uint64 {
	switch c.Type.Primitive {
	case types.UChar:
		return uint64(uint8(c.Bits))
	case types.UShort:
		return uint64(uint16(c.Bits))
	case types.UInt:
		return uint64(uint32(c.Bits))
	default:
		return c.Bits
	}
}

func (c ConstantData) Float() float64 {
	switch c.Type.Primitive {
	case types.Float:
		return float64(math.Float32frombits(uint32(c.Bits)))
	case types.Double:
		return math.Float64frombits(c.Bits)
	case types.Char, types.Short, types.Int, types.Long:
		return float64(c.Int())
	default:
		return float64(c.Uint())
	}
}
