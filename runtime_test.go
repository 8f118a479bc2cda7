package vespadet

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/quantize"
)

var (
	testInput = TensorSpec{
		Name:  "images",
		Type:  TensorInt8,
		Fmt:   TensorNHWC,
		Shape: []int{1, 32, 32, 3},
		Quant: quantize.Params{Scale: 1.0 / 255, ZeroPoint: -128},
	}
	testOutput = TensorSpec{
		Name:  "output0",
		Type:  TensorInt8,
		Shape: []int{1, 16, 65},
		Quant: quantize.Params{Scale: 0.1, ZeroPoint: 0},
	}
)

func modelBlock(t *testing.T, alloc *memory.Allocator) *memory.Block {

	b, err := alloc.Alloc(memory.HighCapacity, 16, "model")
	require.NoError(t, err)
	copy(b.Bytes(), "replay model")

	return b
}

func newTestRuntime(t *testing.T, in, out TensorSpec, fn InvokeFunc) (*Runtime, *memory.Allocator) {

	alloc := memory.NewAllocator(4096, 1<<20)

	rt, err := NewRuntime(NewReplayBackend([]TensorSpec{in}, []TensorSpec{out}, fn),
		modelBlock(t, alloc), RuntimeConfig{Allocator: alloc, ArenaSize: 64 * 1024})
	require.NoError(t, err)

	t.Cleanup(func() { rt.Close() })

	return rt, alloc
}

func TestRuntimeAllocatesOnce(t *testing.T) {

	rt, alloc := newTestRuntime(t, testInput, testOutput, nil)

	in, err := rt.InputTensor(0)
	require.NoError(t, err)
	assert.Len(t, in.BufInt, 32*32*3)

	out, err := rt.OutputTensor(0)
	require.NoError(t, err)
	assert.Len(t, out.BufInt, 16*65)

	used := rt.Arena().Used()
	assert.GreaterOrEqual(t, used, 32*32*3+16*65)

	assert.ErrorIs(t, rt.AllocateTensors(), ErrAlreadyAllocated)
	assert.Equal(t, used, rt.Arena().Used())

	// model and arena are held in the high capacity domain
	u := alloc.Usage(memory.HighCapacity)
	assert.Equal(t, 16+64*1024, u.Used)

	_, err = rt.InputTensor(1)
	assert.Error(t, err)

	require.NoError(t, rt.Close())
	assert.Equal(t, 0, alloc.Usage(memory.HighCapacity).Used)
	assert.ErrorIs(t, rt.Invoke(), ErrClosed)
	assert.NoError(t, rt.Close())
}

func TestRuntimeInvokeFailure(t *testing.T) {

	boom := errors.New("npu timeout")

	rt, _ := newTestRuntime(t, testInput, testOutput, func(_, _ []*Tensor) error {
		return boom
	})

	err := rt.Invoke()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvokeFailure)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsFatal(err))

	b := rt.Backend().(*ReplayBackend)
	assert.Equal(t, 1, b.Invocations())
}

func TestNewRuntimeErrors(t *testing.T) {

	alloc := memory.NewAllocator(4096, 1<<20)
	backend := NewReplayBackend([]TensorSpec{testInput}, []TensorSpec{testOutput}, nil)

	m := modelBlock(t, alloc)
	_, err := NewRuntime(nil, m, RuntimeConfig{Allocator: alloc})
	assert.ErrorIs(t, err, ErrModelLoad)
	m.Release()

	_, err = NewRuntime(backend, nil, RuntimeConfig{Allocator: alloc})
	assert.ErrorIs(t, err, ErrModelLoad)

	// arena larger than the remaining budget
	_, err = NewRuntime(backend, modelBlock(t, alloc),
		RuntimeConfig{Allocator: alloc, ArenaSize: 2 << 20})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocationFailure)
	assert.True(t, IsFatal(err))

	// arena too small for the tensors
	backend = NewReplayBackend([]TensorSpec{testInput}, []TensorSpec{testOutput}, nil)
	_, err = NewRuntime(backend, modelBlock(t, alloc),
		RuntimeConfig{Allocator: alloc, ArenaSize: 1024})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocationFailure)

	assert.Equal(t, 0, alloc.Usage(memory.HighCapacity).Used)
}

func TestValidateInput(t *testing.T) {

	tests := []struct {
		name  string
		spec  func(s *TensorSpec)
		size  int
		valid bool
	}{
		{"any size", func(s *TensorSpec) {}, 0, true},
		{"expected size", func(s *TensorSpec) {}, 32, true},
		{"wrong size", func(s *TensorSpec) {}, 192, false},
		{"uint8", func(s *TensorSpec) { s.Type = TensorUint8 }, 0, true},
		{"float", func(s *TensorSpec) { s.Type = TensorFloat32 }, 0, false},
		{"not square", func(s *TensorSpec) { s.Shape = []int{1, 32, 16, 3} }, 0, false},
		{"single channel", func(s *TensorSpec) { s.Shape = []int{1, 32, 32, 1} }, 0, false},
		{"batch", func(s *TensorSpec) { s.Shape = []int{2, 32, 32, 3} }, 0, false},
		{"rank 3", func(s *TensorSpec) { s.Shape = []int{32, 32, 3} }, 0, false},
		{"nchw", func(s *TensorSpec) {
			s.Fmt = TensorNCHW
			s.Shape = []int{1, 3, 32, 32}
		}, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := testInput
			spec.Shape = append([]int(nil), testInput.Shape...)
			tc.spec(&spec)

			rt, _ := newTestRuntime(t, spec, testOutput, nil)

			in, size, err := rt.ValidateInput(tc.size)

			if !tc.valid {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrShapeMismatch)
				assert.Nil(t, in)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 32, size)
			assert.Equal(t, "images", in.Name)
		})
	}
}

func TestQuery(t *testing.T) {

	rt, _ := newTestRuntime(t, testInput, testOutput, nil)

	var buf bytes.Buffer
	require.NoError(t, rt.Query(&buf))

	out := buf.String()
	assert.Contains(t, out, "Engine Version: replay")
	assert.Contains(t, out, "Model Input Number: 1, Output Number: 1")
	assert.Contains(t, out, "name=images")
	assert.Contains(t, out, "dims=[1 16 65]")
	assert.Contains(t, out, "zp=-128")
	assert.Contains(t, out, "Memory high-capacity")
}

func TestLoadModel(t *testing.T) {

	dir := t.TempDir()
	alloc := memory.NewAllocator(1024, 1024)

	_, err := LoadModel(filepath.Join(dir, "missing.tflite"), alloc)
	assert.ErrorIs(t, err, ErrModelLoad)

	_, err = LoadModel(dir, alloc)
	assert.ErrorIs(t, err, ErrModelLoad)

	empty := filepath.Join(dir, "empty.tflite")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = LoadModel(empty, alloc)
	assert.ErrorIs(t, err, ErrModelLoad)

	big := filepath.Join(dir, "big.tflite")
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0644))
	_, err = LoadModel(big, alloc)
	assert.ErrorIs(t, err, ErrAllocationFailure)
	assert.True(t, IsFatal(err))

	ok := filepath.Join(dir, "model.tflite")
	require.NoError(t, os.WriteFile(ok, []byte("TFL3"), 0644))
	b, err := LoadModel(ok, alloc)
	require.NoError(t, err)
	assert.Equal(t, []byte("TFL3"), b.Bytes())
	assert.Equal(t, memory.HighCapacity, b.Domain())
	assert.Equal(t, 4, alloc.Usage(memory.HighCapacity).Used)

	b.Release()
	assert.Equal(t, 0, alloc.Usage(memory.HighCapacity).Used)
}

func TestTensorLoadDump(t *testing.T) {

	for _, typ := range []TensorType{TensorInt8, TensorUint8, TensorFloat16, TensorFloat32} {
		t.Run(typ.String(), func(t *testing.T) {
			spec := TensorSpec{Name: "out", Type: typ, Shape: []int{1, 2, 3}}

			alloc := memory.NewAllocator(0, 1<<16)
			arena, err := memory.NewArena(alloc, memory.HighCapacity, 1024)
			require.NoError(t, err)
			defer arena.Release()

			tensors, err := carveTensors(arena, []TensorSpec{spec})
			require.NoError(t, err)
			tn := tensors[0]

			for i := 0; i < 6; i++ {
				switch typ {
				case TensorInt8:
					tn.BufInt[i] = int8(i*20 - 50)
				case TensorUint8:
					tn.BufUint[i] = uint8(i * 40)
				default:
					tn.BufFloat[i] = float32(i)*0.25 - 0.5
				}
			}

			raw := tn.Dump()
			assert.Len(t, raw, 6*typ.Size())

			want := append([]int8(nil), tn.BufInt...)
			wantU := append([]uint8(nil), tn.BufUint...)
			wantF := append([]float32(nil), tn.BufFloat...)

			for i := range tn.BufInt {
				tn.BufInt[i] = 0
			}
			for i := range tn.BufUint {
				tn.BufUint[i] = 0
			}
			for i := range tn.BufFloat {
				tn.BufFloat[i] = 0
			}

			require.NoError(t, tn.Load(raw))
			assert.Equal(t, want, append([]int8(nil), tn.BufInt...))
			assert.Equal(t, wantU, append([]uint8(nil), tn.BufUint...))
			assert.Equal(t, wantF, append([]float32(nil), tn.BufFloat...))

			assert.Error(t, tn.Load(raw[1:]))
		})
	}
}

func TestReplayRecording(t *testing.T) {

	rec := make([]byte, 16*65)
	rec[5*65+64] = 50

	rt, _ := newTestRuntime(t, testInput, testOutput, Replay(rec))
	require.NoError(t, rt.Invoke())

	out, err := rt.OutputTensor(0)
	require.NoError(t, err)
	assert.Equal(t, int8(50), out.BufInt[5*65+64])
	assert.InDelta(t, 5.0, out.Value(5*65+64), 1e-6)

	rt2, _ := newTestRuntime(t, testInput, testOutput, Replay())
	assert.ErrorIs(t, rt2.Invoke(), ErrInvokeFailure)
}

func TestLabels(t *testing.T) {

	labels, err := ReadLabels(strings.NewReader("wasp\n\n  bee \nhornet\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"wasp", "bee", "hornet"}, labels)

	assert.Equal(t, "bee", Label(labels, 1))
	assert.Equal(t, "class7", Label(labels, 7))
	assert.Equal(t, "class-1", Label(labels, -1))

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {

	assert.Contains(t, Backends(), "replay")

	_, err := NewBackend("replay", BackendOptions{})
	assert.Error(t, err)

	b, err := NewBackend("replay", BackendOptions{
		Inputs:  []TensorSpec{testInput},
		Outputs: []TensorSpec{testOutput},
	})
	require.NoError(t, err)
	assert.IsType(t, &ReplayBackend{}, b)

	_, err = NewBackend("onnx", BackendOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiled in backends are")

	assert.Panics(t, func() {
		RegisterBackend("replay", nil)
	})
}

func TestParseTensorType(t *testing.T) {

	for _, s := range []string{"INT8", "int8", "Int8"} {
		typ, err := ParseTensorType(s)
		require.NoError(t, err)
		assert.Equal(t, TensorInt8, typ)
	}

	_, err := ParseTensorType("bfloat16")
	assert.Error(t, err)
}

func TestCPUCoreMask(t *testing.T) {
	assert.Equal(t, uintptr(0xf0), CPUCoreMask([]int{4, 5, 6, 7}))
	assert.Equal(t, uintptr(0x1), CPUCoreMask([]int{0, -1, 64}))
	assert.Equal(t, uintptr(0), CPUCoreMask(nil))
}
