package samples

import (
	"context"
	"strings"

	"spark/internal/builder"
	"spark/internal/runtime"
	"spark/internal/types"
)

const (
	mandelW    = 48
	mandelH    = 24
	mandelIter = 64
)

// mandelbrot counts escape iterations over [-2, 1] x [-1, 1].
var mandelbrot = Sample{
	Name:    "mandelbrot",
	Summary: "escape counts on a 48x24 grid, 64 iterations",
	Build: func(s *builder.Session) {
		s.Kernel([]builder.Param{
			builder.Buffer2DParam(types.Int),
			builder.ScalarParam(types.Scalar(types.Int)),
		}, func(a builder.Args) {
			img, limit := a.Buffer2D(0), a.Scalar(1)
			x := s.Var(s.GlobalID(0))
			y := s.Var(s.GlobalID(1))
			s.If(x.Lt(img.Width).And(y.Lt(img.Height)), func() {
				cr := s.Var(x.Cast(floatT).Mul(s.Float(3)).Div(img.Width.Cast(floatT)).Sub(s.Float(2)))
				ci := s.Var(y.Cast(floatT).Mul(s.Float(2)).Div(img.Height.Cast(floatT)).Sub(s.Float(1)))
				zr := s.Var(s.Float(0))
				zi := s.Var(s.Float(0))
				n := s.Var(s.Int(0))
				s.While(n.Lt(limit), func() {
					s.If(zr.Mul(zr).Add(zi.Mul(zi)).Gt(s.Float(4)), func() {
						s.Break()
					})
					t := s.Var(zr.Mul(zr).Sub(zi.Mul(zi)).Add(cr))
					s.Assign(zi, s.Float(2).Mul(zr).Mul(zi).Add(ci))
					s.Assign(zr, t)
					s.Inc(n)
				})
				s.Assign(img.At(x, y), n)
			})
		})
	},
	run: func(ctx context.Context, c *runtime.Context, k *runtime.Kernel) (Result, error) {
		img, err := runtime.NewBuffer2D[int32](c, mandelW, mandelH, nil)
		if err != nil {
			return Result{}, err
		}
		defer img.Release()
		if err := k.SetWorkDimensions(mandelW, mandelH); err != nil {
			return Result{}, err
		}
		if err := k.CallContext(ctx, img, int32(mandelIter)); err != nil {
			return Result{}, err
		}
		got, err := img.Read()
		if err != nil {
			return Result{}, err
		}
		want := mandelbrotReference(mandelW, mandelH, mandelIter)
		// Devices may contract or reorder float math; points on the boundary
		// can then escape one step earlier or later.
		return Result{
			Elements:   len(got),
			Mismatches: compare(got, want),
			Allowed:    len(got) / 50,
			Preview:    "\n" + RenderEscape(got, mandelW, mandelIter),
		}, nil
	},
}

// mandelbrotReference rounds every step to float32 the way the kernel does.
func mandelbrotReference(w, h, limit int) []int32 {
	out := make([]int32, w*h)
	for y := range h {
		for x := range w {
			cr := float32(float32(float32(x)*3)/float32(w)) - 2
			ci := float32(float32(float32(y)*2)/float32(h)) - 1
			var zr, zi float32
			n := 0
			for n < limit {
				if float32(zr*zr)+float32(zi*zi) > 4 {
					break
				}
				t := float32(float32(zr*zr)-float32(zi*zi)) + cr
				zi = float32(float32(2*zr)*zi) + ci
				zr = t
				n++
			}
			out[y*w+x] = int32(n)
		}
	}
	return out
}

// RenderEscape draws escape counts as text, one row per line.
func RenderEscape(counts []int32, width, limit int) string {
	const ramp = " .:-=+*#%@"
	var b strings.Builder
	for i, n := range counts {
		idx := int(n) * (len(ramp) - 1) / limit
		b.WriteByte(ramp[idx])
		if (i+1)%width == 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
