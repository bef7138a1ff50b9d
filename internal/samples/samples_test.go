package samples

import (
	"context"
	"strings"
	"testing"

	"spark/internal/builder"
	"spark/internal/device/host"
	"spark/internal/runtime"
)

func TestSamplesOnHost(t *testing.T) {
	c, err := runtime.Open(context.Background(), runtime.Options{Driver: host.DriverName, Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			res, err := s.Run(context.Background(), c)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Mismatches != 0 {
				t.Fatalf("%d of %d elements differ from the reference", res.Mismatches, res.Elements)
			}
			if res.Sample != s.Name || res.Elements == 0 || res.Preview == "" {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}

func TestProgramWithoutDevice(t *testing.T) {
	s, ok := Lookup("mandelbrot")
	if !ok {
		t.Fatal("mandelbrot not registered")
	}
	prog, err := s.Program(context.Background(), builder.Options{EntryName: "escape"})
	if err != nil {
		t.Fatal(err)
	}
	if prog.Entry != "escape" || !strings.Contains(prog.Source, "__kernel void escape(") {
		t.Fatalf("entry %q in:\n%s", prog.Entry, prog.Source)
	}
	if !strings.Contains(prog.Source, "break;") {
		t.Fatalf("loop exit missing:\n%s", prog.Source)
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatal("unknown sample found")
	}
	if got := strings.Join(Names(), ","); got != "saxpy,range-sum,fill-2d,mandelbrot" {
		t.Fatalf("Names = %s", got)
	}
}

func TestRenderEscape(t *testing.T) {
	got := RenderEscape([]int32{0, 64, 32, 8}, 2, 64)
	if got != " @\n=.\n" {
		t.Fatalf("RenderEscape = %q", got)
	}
}
