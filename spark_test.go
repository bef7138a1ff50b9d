package spark_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spark"
)

func openHost(t *testing.T) *spark.Context {
	t.Helper()
	c, err := spark.Open(context.Background(), spark.Options{Driver: "host"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSquareOnHost(t *testing.T) {
	c := openHost(t)
	k, err := spark.NewKernel(c, func(s *spark.Session) {
		s.Kernel([]spark.Param{spark.Buffer1DParam(spark.Int)}, func(a spark.Args) {
			out := a.Buffer1D(0)
			i := s.Var(s.GlobalID(0))
			s.If(i.Lt(out.Count), func() {
				s.Assign(out.At(i), i.Mul(i))
			})
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	defer k.Release()
	out, err := spark.NewBuffer1D[int32](c, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()
	if err := spark.Call(context.Background(), k, []int{6}, out); err != nil {
		t.Fatal(err)
	}
	got, err := out.Read()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != int32(i*i) {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
}

func TestBoundaryErrors(t *testing.T) {
	c := openHost(t)
	if _, err := spark.NewBuffer2D[float32](c, -1, 2, nil); spark.KindOf(err) != spark.KindMisuse {
		t.Fatalf("negative width: %v", err)
	}
	var fe *spark.Error
	_, err := spark.Open(context.Background(), spark.Options{Driver: "nope"})
	if !errors.As(err, &fe) {
		t.Fatalf("unknown driver error %T is not *Error", err)
	}
	if err := spark.Call(context.Background(), nil, []int{1}); spark.KindOf(err) != spark.KindInternal {
		t.Fatalf("nil kernel: %v", err)
	}
}

func TestMisusePanics(t *testing.T) {
	defer func() {
		r := recover()
		fe, ok := r.(*spark.Error)
		if !ok || fe.Kind != spark.KindMisuse {
			t.Fatalf("recovered %v, want misuse", r)
		}
	}()
	_, _ = spark.Build(context.Background(), spark.BuildOptions{}, func(s *spark.Session) {
		s.Break()
	})
	t.Fatal("Build returned after misuse")
}

func TestOpenConfig(t *testing.T) {
	t.Setenv("SPARK_DRIVER", "host")
	dir := t.TempDir()
	path := filepath.Join(dir, "spark.toml")
	body := "[device]\ndriver = \"host\"\n\n[build]\ncache_dir = \"" + filepath.ToSlash(filepath.Join(dir, "cache")) + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := spark.OpenConfig(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Device().Driver != "host" || c.Options().Cache == nil {
		t.Fatalf("device %+v cache %v", c.Device(), c.Options().Cache)
	}
	spark.SetCurrent(c)
	if spark.Current() != c {
		t.Fatal("current context not set")
	}
}
