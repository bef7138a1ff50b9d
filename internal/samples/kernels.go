package samples

import (
	"context"

	"spark/internal/builder"
	"spark/internal/runtime"
	"spark/internal/types"
)

var floatT = types.Scalar(types.Float)

// saxpy computes y = a*x + y.
var saxpy = Sample{
	Name:    "saxpy",
	Summary: "y = a*x + y over 1024 floats",
	Build: func(s *builder.Session) {
		s.Kernel([]builder.Param{
			builder.ScalarParam(floatT),
			builder.Buffer1DParam(types.Float),
			builder.Buffer1DParam(types.Float),
		}, func(a builder.Args) {
			x, y := a.Buffer1D(1), a.Buffer1D(2)
			i := s.Var(s.GlobalID(0))
			s.If(i.Lt(y.Count), func() {
				s.Assign(y.At(i), s.Mad(a.Scalar(0), x.At(i), y.At(i)))
			})
		})
	},
	run: func(ctx context.Context, c *runtime.Context, k *runtime.Kernel) (Result, error) {
		const n = 1024
		const alpha = float32(2)
		xs, ys, want := make([]float32, n), make([]float32, n), make([]float32, n)
		for i := range n {
			xs[i] = float32(i)
			ys[i] = float32(n - i)
			want[i] = alpha*xs[i] + ys[i]
		}
		x, err := runtime.NewBuffer1D(c, n, xs)
		if err != nil {
			return Result{}, err
		}
		defer x.Release()
		y, err := runtime.NewBuffer1D(c, n, ys)
		if err != nil {
			return Result{}, err
		}
		defer y.Release()
		if err := k.SetWorkDimensions(n); err != nil {
			return Result{}, err
		}
		if err := k.CallContext(ctx, alpha, x, y); err != nil {
			return Result{}, err
		}
		got, err := y.Read()
		if err != nil {
			return Result{}, err
		}
		return Result{Elements: n, Mismatches: compare(got, want), Preview: preview(got, 8)}, nil
	},
}

// rangeSum stores the sum of 0..i-1 at out[i] with a counted loop.
var rangeSum = Sample{
	Name:    "range-sum",
	Summary: "out[i] = 0 + 1 + ... + (i-1) with a for loop",
	Build: func(s *builder.Session) {
		s.Kernel([]builder.Param{builder.Buffer1DParam(types.Int)}, func(a builder.Args) {
			out := a.Buffer1D(0)
			i := s.Var(s.GlobalID(0))
			s.If(i.Lt(out.Count), func() {
				sum := s.Var(s.Int(0))
				s.For(s.Int(0), i, func(j builder.Value) {
					s.Assign(sum, sum.Add(j))
				})
				s.Assign(out.At(i), sum)
			})
		})
	},
	run: func(ctx context.Context, c *runtime.Context, k *runtime.Kernel) (Result, error) {
		const n = 64
		want := make([]int32, n)
		for i := range want {
			want[i] = int32(i * (i - 1) / 2)
		}
		out, err := runtime.NewBuffer1D[int32](c, n, nil)
		if err != nil {
			return Result{}, err
		}
		defer out.Release()
		if err := k.SetWorkDimensions(n); err != nil {
			return Result{}, err
		}
		if err := k.CallContext(ctx, out); err != nil {
			return Result{}, err
		}
		got, err := out.Read()
		if err != nil {
			return Result{}, err
		}
		return Result{Elements: n, Mismatches: compare(got, want), Preview: preview(got, 8)}, nil
	},
}

// fill2D writes y*100 + x into a row-major grid.
var fill2D = Sample{
	Name:    "fill-2d",
	Summary: "img(x, y) = y*100 + x on a 16x8 grid",
	Build: func(s *builder.Session) {
		s.Kernel([]builder.Param{builder.Buffer2DParam(types.Int)}, func(a builder.Args) {
			img := a.Buffer2D(0)
			x := s.Var(s.GlobalID(0))
			y := s.Var(s.GlobalID(1))
			s.If(x.Lt(img.Width).And(y.Lt(img.Height)), func() {
				s.Assign(img.At(x, y), y.Mul(s.Int(100)).Add(x))
			})
		})
	},
	run: func(ctx context.Context, c *runtime.Context, k *runtime.Kernel) (Result, error) {
		const w, h = 16, 8
		want := make([]int32, w*h)
		for y := range h {
			for x := range w {
				want[y*w+x] = int32(y*100 + x)
			}
		}
		img, err := runtime.NewBuffer2D[int32](c, w, h, nil)
		if err != nil {
			return Result{}, err
		}
		defer img.Release()
		if err := k.SetWorkDimensions(w, h); err != nil {
			return Result{}, err
		}
		if err := k.CallContext(ctx, img); err != nil {
			return Result{}, err
		}
		got, err := img.Read()
		if err != nil {
			return Result{}, err
		}
		return Result{Elements: w * h, Mismatches: compare(got, want), Preview: preview(got, 8)}, nil
	},
}
