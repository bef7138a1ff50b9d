package host

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"spark/internal/builder"
	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/types"
)

func openDevice(t *testing.T) device.Device {
	t.Helper()
	drv := &Driver{Workers: 4}
	infos, err := drv.Devices(context.Background())
	if err != nil || len(infos) != 1 {
		t.Fatalf("Devices() = %v, %v", infos, err)
	}
	dev, err := drv.Open(context.Background(), infos[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func kernel(t *testing.T, dev device.Device, src string) device.Kernel {
	t.Helper()
	prog, err := dev.BuildProgram(context.Background(), src, "")
	if err != nil {
		t.Fatalf("BuildProgram: %v", err)
	}
	k, err := prog.Kernel("spark_main")
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	return k
}

func i32(v int32) []byte { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }

func f32s(vs ...float32) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func i32s(vs ...int32) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func readI32(t *testing.T, dev device.Device, m device.Mem) []int32 {
	t.Helper()
	buf := make([]byte, m.Size())
	if err := dev.Read(m, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}

func readF32(t *testing.T, dev device.Device, m device.Mem) []float32 {
	t.Helper()
	buf := make([]byte, m.Size())
	if err := dev.Read(m, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}

func buffer(t *testing.T, dev device.Device, init []byte) device.Mem {
	t.Helper()
	m, err := dev.CreateBuffer(len(init), init)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	return m
}

func bind(t *testing.T, k device.Kernel, args ...device.Arg) {
	t.Helper()
	for i, a := range args {
		if err := k.SetArg(i, a); err != nil {
			t.Fatalf("SetArg(%d, %s): %v", i, a, err)
		}
	}
}

func TestBuildLogReportsUndeclaredIdentifier(t *testing.T) {
	dev := openDevice(t)
	src := "\n__kernel void spark_main(__global int* p_s32_2, int s32_3)\n{\n    p_s32_2[0] = s32_9;\n}\n"
	_, err := dev.BuildProgram(context.Background(), src, "")
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.KindCompile {
		t.Fatalf("err = %v, want compile error", err)
	}
	if fe.Code != device.BuildProgramFailure || fe.Symbol != "CL_BUILD_PROGRAM_FAILURE" {
		t.Errorf("code = %d %s", fe.Code, fe.Symbol)
	}
	want := "<source>:4:18: error: use of undeclared identifier 's32_9'\n"
	if fe.Log != want {
		t.Fatalf("log = %q, want %q", fe.Log, want)
	}
	if !strings.Contains(err.Error(), "build log:") {
		t.Errorf("error text lacks the log: %v", err)
	}
}

func TestBuildLogCollectsSeveralErrors(t *testing.T) {
	dev := openDevice(t)
	src := `
int func_1(int a)
{
    return a;
}

__kernel void spark_main(__global int* p)
{
    int x = func_1(1, 2);
    int x = 3;
    p[0] = func_9(x);
    break;
}
`
	_, err := dev.BuildProgram(context.Background(), src, "")
	fe, _ := fault.As(err)
	if fe == nil || fe.Kind != fault.KindCompile {
		t.Fatalf("err = %v, want compile error", err)
	}
	for _, want := range []string{
		"9:13: error: too many arguments to function call, expected 1, have 2",
		"10:9: error: redefinition of 'x'",
		"11:12: error: implicit declaration of function 'func_9'",
		"12:5: error: 'break' statement not in loop statement",
	} {
		if !strings.Contains(fe.Log, want) {
			t.Errorf("log lacks %q:\n%s", want, fe.Log)
		}
	}
}

func TestSyntaxErrorStopsBuild(t *testing.T) {
	dev := openDevice(t)
	_, err := dev.BuildProgram(context.Background(), "__kernel void spark_main()\n{\n    int x = 1\n}\n", "")
	fe, _ := fault.As(err)
	if fe == nil || !strings.Contains(fe.Log, "<source>:4:1: error: expected ';', found '}'") {
		t.Fatalf("err = %v", err)
	}
}

func TestVectorAdd(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, `
__kernel void spark_main(__global float* p_flt_2, int s32_3, __global float* p_flt_4, int s32_5, __global float* p_flt_6, int s32_7)
{
    int s32_8 = (int)get_global_id(0u);
    if ((s32_8 < s32_3))
    {
        p_flt_6[s32_8] = (p_flt_2[s32_8] + p_flt_4[s32_8]);
    }
}
`)
	a := buffer(t, dev, f32s(1, 2, 3, 4, 5))
	b := buffer(t, dev, f32s(10, 20, 30, 40, 50))
	c := buffer(t, dev, make([]byte, 20))
	bind(t, k, device.MemArg(a), device.ValueArg(i32(5)), device.MemArg(b), device.ValueArg(i32(5)), device.MemArg(c), device.ValueArg(i32(5)))
	// more work items than elements; the guard must keep the extras out
	if err := k.Launch(context.Background(), []int{8}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	got := readF32(t, dev, c)
	want := []float32{11, 22, 33, 44, 55}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("c = %v, want %v", got, want)
		}
	}
}

func TestIntegerSemantics(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, `
__kernel void spark_main(__global int* out, int zero)
{
    int big = 2147483647;
    out[0] = (big + 1);
    out[1] = (7 / zero);
    out[2] = (-7 / 2);
    out[3] = (-7 % 3);
    out[4] = (1 << 33);
    out[5] = (-16 >> 2);
    uint u = 0u;
    out[6] = (int)(u - 1u);
    out[7] = ((u - 1u) > 0u);
    char c = (char)200;
    out[8] = c;
    uchar uc = (uchar)(-1);
    out[9] = uc;
    out[10] = (int)(-2.75f);
    out[11] = (int)NAN;
    out[12] = abs(-5);
    out[13] = min(3, -4);
    out[14] = clamp(42, 0, 10);
    int n = 5;
    out[15] = (n++);
    out[16] = (++n);
    out[17] = (n > 6 ? 100 : 200);
}
`)
	out := buffer(t, dev, make([]byte, 18*4))
	bind(t, k, device.MemArg(out), device.ValueArg(i32(0)))
	if err := k.Launch(context.Background(), []int{1}); err != nil {
		t.Fatal(err)
	}
	want := []int32{math.MinInt32, 0, -3, -1, 2, -4, -1, 1, -56, 255, -2, 0, 5, -4, 10, 5, 7, 100}
	got := readI32(t, dev, out)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestVectorsHelpersAndBuiltins(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, `
float func_1(float4 v)
{
    return dot(v, v);
}

__kernel void spark_main(__global float* out)
{
    float4 v = (float4)(1.000000000e+00f, 2.000000000e+00f, 3.000000000e+00f, 4.000000000e+00f);
    float2 w = v.zw;
    out[0] = w.x;
    out[1] = func_1(v);
    v.xy = (float2)(9.0f);
    out[2] = v.x + v.y;
    int4 m = (v > (float4)(3.5f));
    out[3] = (float)(m.x + m.y + m.z + m.w);
    out[4] = sqrt(16.0f);
    out[5] = fmax(NAN, 2.0f);
    out[6] = mix(0.0f, 10.0f, 0.25f);
    out[7] = length((float2)(3.0f, 4.0f));
    out[8] = v.hi.y;
    out[9] = (1.0f / 0.0f);
}
`)
	out := buffer(t, dev, make([]byte, 10*4))
	bind(t, k, device.MemArg(out))
	if err := k.Launch(context.Background(), []int{1}); err != nil {
		t.Fatal(err)
	}
	got := readF32(t, dev, out)
	want := []float32{3, 30, 18, -3, 4, 2, 2.5, 5, 4, float32(math.Inf(1))}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTwoDimensionalLaunch(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, `
__kernel void spark_main(__global int* p_s32_2, int s32_3, int s32_4)
{
    p_s32_2[(((int)get_global_id(1u) * s32_3) + (int)get_global_id(0u))] = (((int)get_global_id(1u) * 100) + (int)get_global_id(0u)) + (int)get_global_size(2u);
}
`)
	const w, h = 5, 3
	out := buffer(t, dev, make([]byte, w*h*4))
	bind(t, k, device.MemArg(out), device.ValueArg(i32(w)), device.ValueArg(i32(h)))
	if err := k.Launch(context.Background(), []int{w, h}); err != nil {
		t.Fatal(err)
	}
	got := readI32(t, dev, out)
	for y := range h {
		for x := range w {
			if want := int32(y*100 + x + 1); got[y*w+x] != want {
				t.Fatalf("(%d,%d) = %d, want %d", x, y, got[y*w+x], want)
			}
		}
	}
}

func TestOutOfBoundsAccessFailsLaunch(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, `
__kernel void spark_main(__global int* p)
{
    p[(int)get_global_id(0u)] = 1;
}
`)
	out := buffer(t, dev, make([]byte, 4*4))
	bind(t, k, device.MemArg(out))
	err := k.Launch(context.Background(), []int{5})
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.KindDevice || fe.Code != device.OutOfResources {
		t.Fatalf("err = %v, want CL_OUT_OF_RESOURCES", err)
	}
	if !strings.Contains(fe.Msg, "offset 16 of a 16-byte buffer") {
		t.Errorf("message = %q", fe.Msg)
	}
}

func TestKernelArgumentValidation(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, "__kernel void spark_main(__global int* p, int n)\n{\n}\n")
	m := buffer(t, dev, make([]byte, 8))
	cases := []struct {
		name  string
		index int
		arg   device.Arg
		code  int32
	}{
		{"index out of range", 2, device.ValueArg(i32(1)), device.InvalidArgIndex},
		{"scalar for pointer", 0, device.ValueArg(i32(1)), device.InvalidArgValue},
		{"buffer for scalar", 1, device.MemArg(m), device.InvalidArgValue},
		{"wrong size", 1, device.ValueArg([]byte{1, 2}), device.InvalidArgSize},
	}
	for _, c := range cases {
		err := k.SetArg(c.index, c.arg)
		if fe, ok := fault.As(err); !ok || fe.Code != c.code {
			t.Errorf("%s: err = %v, want %s", c.name, err, device.CodeName(c.code))
		}
	}
	if err := k.SetArg(0, device.MemArg(m)); err != nil {
		t.Fatal(err)
	}
	err := k.Launch(context.Background(), []int{1})
	if fe, ok := fault.As(err); !ok || fe.Code != device.InvalidKernelArgs {
		t.Fatalf("launch with unset arg: %v", err)
	}
	if err := k.SetArg(1, device.ValueArg(i32(2))); err != nil {
		t.Fatal(err)
	}
	if err := k.Launch(context.Background(), []int{0}); err == nil {
		t.Fatal("zero global size accepted")
	}
	if err := k.Launch(context.Background(), []int{1, 1, 1, 1}); err == nil {
		t.Fatal("four dimensions accepted")
	}
}

func TestMemoryOperations(t *testing.T) {
	dev := openDevice(t)
	m := buffer(t, dev, i32s(1, 2, 3, 4))
	if err := dev.Write(m, 4, i32s(20, 30)); err != nil {
		t.Fatal(err)
	}
	if err := dev.Fill(m, 12, 4); err != nil {
		t.Fatal(err)
	}
	got := readI32(t, dev, m)
	if got[0] != 1 || got[1] != 20 || got[2] != 30 || got[3] != 0 {
		t.Fatalf("buffer = %v", got)
	}
	if err := dev.Read(m, 12, make([]byte, 8)); err == nil {
		t.Fatal("read past the end accepted")
	}
	if _, err := dev.CreateBuffer(0, nil); err == nil {
		t.Fatal("zero-size buffer accepted")
	}
	if err := m.Release(); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(); err == nil {
		t.Fatal("double release accepted")
	}
	if err := dev.Write(m, 0, i32s(1)); err == nil {
		t.Fatal("write to released buffer accepted")
	}
}

func TestClosedDevice(t *testing.T) {
	dev := openDevice(t)
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := dev.CreateBuffer(4, nil)
	if !errors.Is(err, fault.ErrClosed) {
		t.Fatalf("CreateBuffer after close: %v", err)
	}
}

func TestUnknownKernelName(t *testing.T) {
	dev := openDevice(t)
	prog, err := dev.BuildProgram(context.Background(), "void helper()\n{\n}\n__kernel void main_k()\n{\n}\n", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"helper", "missing"} {
		_, err := prog.Kernel(name)
		if fe, ok := fault.As(err); !ok || fe.Code != device.InvalidKernelName {
			t.Errorf("Kernel(%q) = %v", name, err)
		}
	}
}

func TestCancelledLaunch(t *testing.T) {
	dev := openDevice(t)
	k := kernel(t, dev, "__kernel void spark_main(__global int* p)\n{\n    while (1)\n    {\n        p[0] = (p[0] + 1);\n    }\n}\n")
	bind(t, k, device.MemArg(buffer(t, dev, make([]byte, 4))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := k.Launch(ctx, []int{1}); err == nil {
		t.Fatal("cancelled launch returned nil")
	}
}

// TestGeneratedKernelRuns feeds builder output straight into the device.
func TestGeneratedKernelRuns(t *testing.T) {
	intT := types.Scalar(types.Int)
	prog, err := builder.Build(context.Background(), builder.Options{}, func(s *builder.Session) {
		s.Kernel([]builder.Param{builder.Buffer1DParam(types.Int), builder.ScalarParam(intT)}, func(a builder.Args) {
			buf := a.Buffer1D(0)
			i := s.Var(s.GlobalID(0))
			s.If(i.Lt(buf.Count), func() {
				acc := s.Var(s.Int(0))
				s.For(s.Int(0), i.Add(s.Int(1)), func(j builder.Value) {
					s.Assign(acc, acc.Add(j.Mul(a.Scalar(1))))
				})
				s.Assign(buf.At(i), acc)
			})
		})
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dev := openDevice(t)
	k := kernel(t, dev, prog.Source)
	out := buffer(t, dev, make([]byte, 6*4))
	bind(t, k, device.MemArg(out), device.ValueArg(i32(6)), device.ValueArg(i32(2)))
	if err := k.Launch(context.Background(), []int{6}); err != nil {
		t.Fatalf("Launch: %v\n%s", err, prog.Source)
	}
	got := readI32(t, dev, out)
	for i, v := range got {
		if want := int32(i * (i + 1)); v != want {
			t.Fatalf("out[%d] = %d, want %d\n%s", i, v, want, prog.Source)
		}
	}
}
