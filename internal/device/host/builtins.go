package host

import (
	"fmt"
	"math"

	"spark/internal/types"
)

type builtinSpec struct {
	arity int
	// typing returns the result type and the type each argument converts to.
	typing func(args []types.Datatype) (types.Datatype, []types.Datatype, error)
	eval   func(it *item, args []value, result types.Datatype) value
}

var builtins = map[string]builtinSpec{
	"get_global_id":   {1, workItemTyping, func(it *item, a []value, _ types.Datatype) value { return it.globalID(a[0]) }},
	"get_global_size": {1, workItemTyping, func(it *item, a []value, _ types.Datatype) value { return it.globalSize(a[0]) }},

	"sqrt":  unaryFloat(math.Sqrt),
	"rsqrt": unaryFloat(func(x float64) float64 { return 1 / math.Sqrt(x) }),
	"sin":   unaryFloat(math.Sin),
	"cos":   unaryFloat(math.Cos),
	"tan":   unaryFloat(math.Tan),
	"exp":   unaryFloat(math.Exp),
	"log":   unaryFloat(math.Log),
	"fabs":  unaryFloat(math.Abs),
	"floor": unaryFloat(math.Floor),
	"ceil":  unaryFloat(math.Ceil),

	"atan2": binaryFloat(math.Atan2),
	"pow":   binaryFloat(math.Pow),
	"hypot": binaryFloat(math.Hypot),
	"fmin":  binaryFloat(fmin),
	"fmax":  binaryFloat(fmax),

	"mad": {3, floatFamily(3), func(_ *item, a []value, dt types.Datatype) value {
		return mapLanes(dt, func(i int) float64 { return lf(a[0], i)*lf(a[1], i) + lf(a[2], i) })
	}},
	"mix": {3, floatFamily(3), func(_ *item, a []value, dt types.Datatype) value {
		return mapLanes(dt, func(i int) float64 {
			x, y := lf(a[0], i), lf(a[1], i)
			return x + (y-x)*lf(a[2], i)
		})
	}},
	"dot":    {2, dotTyping(2), func(_ *item, a []value, dt types.Datatype) value { return scalarValue(dt.Primitive, canonFloat(dt.Primitive, dot(a[0], a[1]))) }},
	"length": {1, dotTyping(1), func(_ *item, a []value, dt types.Datatype) value { return scalarValue(dt.Primitive, canonFloat(dt.Primitive, math.Sqrt(dot(a[0], a[0])))) }},

	"clamp": {3, numericFamily(3), func(_ *item, a []value, dt types.Datatype) value {
		out := value{typ: dt}
		p := dt.Primitive
		for i := range dt.Lanes() {
			x := a[0].lane[i]
			if less(p, x, a[1].lane[i]) {
				x = a[1].lane[i]
			}
			if less(p, a[2].lane[i], x) {
				x = a[2].lane[i]
			}
			out.lane[i] = x
		}
		return out
	}},
	"min": {2, numericFamily(2), func(_ *item, a []value, dt types.Datatype) value {
		return pick(dt, a[0], a[1], func(p types.Primitive, x, y uint64) bool { return less(p, y, x) })
	}},
	"max": {2, numericFamily(2), func(_ *item, a []value, dt types.Datatype) value {
		return pick(dt, a[0], a[1], func(p types.Primitive, x, y uint64) bool { return less(p, x, y) })
	}},
	"abs": {1, absTyping, func(_ *item, a []value, dt types.Datatype) value {
		out := value{typ: dt}
		signed := a[0].typ.Primitive.IsSigned()
		for i := range dt.Lanes() {
			x := a[0].lane[i]
			if signed && int64(x) < 0 {
				x = uint64(-int64(x))
			}
			out.lane[i] = canonInt(dt.Primitive, x)
		}
		return out
	}},
}

func workItemTyping(args []types.Datatype) (types.Datatype, []types.Datatype, error) {
	if !args[0].IsScalar() || !args[0].Primitive.IsInteger() {
		return types.Datatype{}, nil, fmt.Errorf("dimension index of type '%s' is not an integer", args[0])
	}
	return ulongType, []types.Datatype{uintType}, nil
}

func requireFloat(dt types.Datatype) error {
	if dt.Pointer || !dt.Primitive.IsFloat() {
		return fmt.Errorf("argument of type '%s' is not a floating type", dt)
	}
	return nil
}

func requireNumeric(dt types.Datatype) error {
	if dt.Pointer || dt.IsVoid() {
		return fmt.Errorf("argument of type '%s' is not numeric", dt)
	}
	return nil
}

// family types a builtin whose arguments all take the type of the first;
// the others may also be scalars, which are broadcast.
func family(n int, first func(types.Datatype) error) func([]types.Datatype) (types.Datatype, []types.Datatype, error) {
	return func(args []types.Datatype) (types.Datatype, []types.Datatype, error) {
		want := args[0]
		if err := first(want); err != nil {
			return types.Datatype{}, nil, err
		}
		conv := make([]types.Datatype, n)
		for i, dt := range args {
			if err := requireNumeric(dt); err != nil {
				return types.Datatype{}, nil, err
			}
			if dt != want && !dt.IsScalar() {
				return types.Datatype{}, nil, fmt.Errorf("argument %d has type '%s', want '%s'", i+1, dt, want)
			}
			conv[i] = want
		}
		return want, conv, nil
	}
}

func floatFamily(n int) func([]types.Datatype) (types.Datatype, []types.Datatype, error) {
	return family(n, requireFloat)
}

func numericFamily(n int) func([]types.Datatype) (types.Datatype, []types.Datatype, error) {
	return family(n, requireNumeric)
}

func unaryFloat(fn func(float64) float64) builtinSpec {
	return builtinSpec{1, floatFamily(1), func(_ *item, a []value, dt types.Datatype) value {
		return mapLanes(dt, func(i int) float64 { return fn(lf(a[0], i)) })
	}}
}

func binaryFloat(fn func(x, y float64) float64) builtinSpec {
	return builtinSpec{2, floatFamily(2), func(_ *item, a []value, dt types.Datatype) value {
		return mapLanes(dt, func(i int) float64 { return fn(lf(a[0], i), lf(a[1], i)) })
	}}
}

func dotTyping(n int) func([]types.Datatype) (types.Datatype, []types.Datatype, error) {
	return func(args []types.Datatype) (types.Datatype, []types.Datatype, error) {
		want := args[0]
		if err := requireFloat(want); err != nil {
			return types.Datatype{}, nil, err
		}
		if want.Lanes() > 4 {
			return types.Datatype{}, nil, fmt.Errorf("'%s' has more than 4 components", want)
		}
		conv := make([]types.Datatype, n)
		for i, dt := range args {
			if dt != want {
				return types.Datatype{}, nil, fmt.Errorf("argument %d has type '%s', want '%s'", i+1, dt, want)
			}
			conv[i] = want
		}
		return types.Scalar(want.Primitive), conv, nil
	}
}

func absTyping(args []types.Datatype) (types.Datatype, []types.Datatype, error) {
	dt := args[0]
	if dt.Pointer || !dt.Primitive.IsInteger() {
		return types.Datatype{}, nil, fmt.Errorf("argument of type '%s' is not an integer type", dt)
	}
	return types.Vector(dt.Primitive.Unsigned(), dt.Components), []types.Datatype{dt}, nil
}

// lf reads lane i of a float value.
func lf(v value, i int) float64 { return math.Float64frombits(v.lane[i]) }

func mapLanes(dt types.Datatype, fn func(i int) float64) value {
	out := value{typ: dt}
	for i := range dt.Lanes() {
		out.lane[i] = canonFloat(dt.Primitive, fn(i))
	}
	return out
}

func dot(a, b value) float64 {
	sum := 0.0
	for i := range a.typ.Lanes() {
		sum += lf(a, i) * lf(b, i)
	}
	return sum
}

func less(p types.Primitive, x, y uint64) bool {
	switch {
	case p.IsFloat():
		return math.Float64frombits(x) < math.Float64frombits(y)
	case p.IsSigned():
		return int64(x) < int64(y)
	default:
		return x < y
	}
}

// pick chooses lane-wise between a and b; swap reports when b wins.
func pick(dt types.Datatype, a, b value, swap func(p types.Primitive, x, y uint64) bool) value {
	out := value{typ: dt}
	for i := range dt.Lanes() {
		out.lane[i] = a.lane[i]
		if swap(dt.Primitive, a.lane[i], b.lane[i]) {
			out.lane[i] = b.lane[i]
		}
	}
	return out
}

// fmin and fmax return the other operand when one is NaN.
func fmin(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	}
	return math.Min(x, y)
}

func fmax(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	}
	return math.Max(x, y)
}
