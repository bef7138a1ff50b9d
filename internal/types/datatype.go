package types

import (
	"fmt"
	"math/bits"
)

// Primitive is the element kind of a Datatype.
type Primitive uint8

const (
	Void Primitive = iota
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double

	primitiveCount
)

// Primitives lists every primitive in declaration order.
func Primitives() []Primitive {
	out := make([]Primitive, 0, int(primitiveCount))
	for p := Void; p < primitiveCount; p++ {
		out = append(out, p)
	}
	return out
}

// Keyword is the kernel-language spelling of the primitive.
func (p Primitive) Keyword() string {
	switch p {
	case Void:
		return "void"
	case Char:
		return "char"
	case UChar:
		return "uchar"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("Primitive(%d)", p)
	}
}

func (p Primitive) String() string { return p.Keyword() }

func (p Primitive) Valid() bool { return p < primitiveCount }

func (p Primitive) IsInteger() bool { return p >= Char && p <= ULong }

func (p Primitive) IsFloat() bool { return p == Float || p == Double }

// IsSigned reports whether values of p carry a sign; floats are signed.
func (p Primitive) IsSigned() bool {
	switch p {
	case Char, Short, Int, Long, Float, Double:
		return true
	default:
		return false
	}
}

// Size returns the width of one element in bytes.
func (p Primitive) Size() int {
	switch p {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Long, ULong, Double:
		return 8
	default:
		return 0
	}
}

// Unsigned maps a signed integer primitive to its unsigned twin.
func (p Primitive) Unsigned() Primitive {
	switch p {
	case Char:
		return UChar
	case Short:
		return UShort
	case Int:
		return UInt
	case Long:
		return ULong
	default:
		return p
	}
}

// Components is the lane count class of a Datatype.
type Components uint8

const (
	CompNone Components = iota
	CompScalar
	CompVec2
	CompVec4
	CompVec8
	CompVec16

	componentsCount
)

func (c Components) Valid() bool { return c < componentsCount }

// Lanes returns the number of scalar lanes; 0 for CompNone.
func (c Components) Lanes() int {
	switch c {
	case CompScalar:
		return 1
	case CompVec2:
		return 2
	case CompVec4:
		return 4
	case CompVec8:
		return 8
	case CompVec16:
		return 16
	default:
		return 0
	}
}

func (c Components) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompScalar:
		return "scalar"
	case CompVec2, CompVec4, CompVec8, CompVec16:
		return fmt.Sprintf("vec%d", c.Lanes())
	default:
		return fmt.Sprintf("Components(%d)", c)
	}
}

// ComponentsFor maps a lane count to its Components class.
func ComponentsFor(lanes int) (Components, bool) {
	switch lanes {
	case 1:
		return CompScalar, true
	case 2:
		return CompVec2, true
	case 4:
		return CompVec4, true
	case 8:
		return CompVec8, true
	case 16:
		return CompVec16, true
	default:
		return CompNone, false
	}
}

// Datatype describes the static type of every value the builder produces.
type Datatype struct {
	Primitive  Primitive
	Components Components
	Pointer    bool
}

// Bits is the packed form of a Datatype.
type Bits uint8

var (
	primitiveBits  = bits.Len(uint(primitiveCount - 1))
	componentsBits = bits.Len(uint(componentsCount - 1))

	componentsOffset = primitiveBits
	pointerOffset    = primitiveBits + componentsBits

	primitiveMask  = Bits(1<<primitiveBits - 1)
	componentsMask = Bits(1<<componentsBits - 1)
)

var VoidType = Datatype{}

func Scalar(p Primitive) Datatype {
	return Datatype{Primitive: p, Components: CompScalar}
}

func Vector(p Primitive, c Components) Datatype {
	return Datatype{Primitive: p, Components: c}
}

func PointerTo(dt Datatype) Datatype {
	dt.Pointer = true
	return dt
}

// Elem strips the pointer flag.
func (dt Datatype) Elem() Datatype {
	dt.Pointer = false
	return dt
}

// WithComponents keeps the primitive and pointer flag and swaps the lane class.
func (dt Datatype) WithComponents(c Components) Datatype {
	dt.Components = c
	return dt
}

func (dt Datatype) IsVoid() bool { return dt.Primitive == Void && !dt.Pointer }

func (dt Datatype) IsScalar() bool { return dt.Components == CompScalar && !dt.Pointer }

func (dt Datatype) IsVector() bool { return dt.Components.Lanes() > 1 && !dt.Pointer }

func (dt Datatype) Lanes() int { return dt.Components.Lanes() }

// Size is the storage size of one value in bytes. Pointers are 8 bytes wide.
func (dt Datatype) Size() int {
	if dt.Pointer {
		return 8
	}
	return dt.Primitive.Size() * dt.Lanes()
}

// Validate checks the field combination. Void only appears without lanes
// and without the pointer flag; every other primitive needs a lane class.
func (dt Datatype) Validate() error {
	if !dt.Primitive.Valid() {
		return fmt.Errorf("invalid primitive %d", dt.Primitive)
	}
	if !dt.Components.Valid() {
		return fmt.Errorf("invalid components %d", dt.Components)
	}
	if dt.Primitive == Void {
		if dt.Components != CompNone || dt.Pointer {
			return fmt.Errorf("void cannot carry %s components or pointer flag", dt.Components)
		}
		return nil
	}
	if dt.Components == CompNone {
		return fmt.Errorf("%s requires a component count", dt.Primitive)
	}
	return nil
}

// Pack encodes the Datatype into its minimal bit form.
func (dt Datatype) Pack() Bits {
	b := Bits(dt.Primitive) & primitiveMask
	b |= (Bits(dt.Components) & componentsMask) << componentsOffset
	if dt.Pointer {
		b |= 1 << pointerOffset
	}
	return b
}

// Unpack decodes packed bits without validating the fields.
func Unpack(b Bits) Datatype {
	return Datatype{
		Primitive:  Primitive(b & primitiveMask),
		Components: Components((b >> componentsOffset) & componentsMask),
		Pointer:    (b>>pointerOffset)&1 == 1,
	}
}

// FromBits decodes packed bits and rejects combinations Validate refuses.
func FromBits(b Bits) (Datatype, error) {
	dt := Unpack(b)
	if err := dt.Validate(); err != nil {
		return Datatype{}, fmt.Errorf("datatype bits %#02x: %w", uint8(b), err)
	}
	return dt, nil
}

func (dt Datatype) String() string {
	if dt.Primitive == Void && dt.Components == CompNone {
		if dt.Pointer {
			return "void*"
		}
		return "void"
	}
	s := dt.Primitive.Keyword()
	if lanes := dt.Components.Lanes(); lanes > 1 {
		s = fmt.Sprintf("%s%d", s, lanes)
	}
	if dt.Pointer {
		s += "*"
	}
	return s
}
