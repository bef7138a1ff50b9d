package types

// Promote applies integer promotion: anything narrower than int becomes int.
func Promote(p Primitive) Primitive {
	switch p {
	case Char, UChar, Short, UShort:
		return Int
	default:
		return p
	}
}

// CommonScalar is the usual arithmetic conversion. The primitive enum is
// ordered by conversion rank, so after promotion the larger one wins.
func CommonScalar(a, b Primitive) Primitive {
	a, b = Promote(a), Promote(b)
	if a > b {
		return a
	}
	return b
}

// SignedOfSize returns the signed integer primitive that is size bytes wide.
func SignedOfSize(size int) Primitive {
	switch size {
	case 1:
		return Char
	case 2:
		return Short
	case 8:
		return Long
	default:
		return Int
	}
}

// ComparisonResult is the type a relational operator yields for operand
// type dt: int for scalars, a same-width signed mask vector otherwise.
func ComparisonResult(dt Datatype) Datatype {
	if !dt.IsVector() {
		return Scalar(Int)
	}
	return Vector(SignedOfSize(dt.Primitive.Size()), dt.Components)
}
