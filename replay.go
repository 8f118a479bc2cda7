package vespadet

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/quantize"
)

// TensorSpec declares a tensor of the ReplayBackend
type TensorSpec struct {
	Name  string
	Type  TensorType
	Fmt   TensorFormat
	Shape []int
	Quant quantize.Params
}

// InvokeFunc computes the output tensors of the ReplayBackend from its input
// tensors
type InvokeFunc func(inputs, outputs []*Tensor) error

// ReplayBackend is a pure Go engine whose outputs are produced by an
// InvokeFunc, typically replaying output tensors recorded on a device.  It
// follows the same load, allocate, invoke contract as a hardware engine and
// carves every tensor buffer from the arena.
type ReplayBackend struct {
	inputSpecs  []TensorSpec
	outputSpecs []TensorSpec
	invoke      InvokeFunc
	inputs      []*Tensor
	outputs     []*Tensor
	loaded      bool
	allocated   bool
	invocations int
}

// NewReplayBackend returns a ReplayBackend with the declared tensors.  A nil
// InvokeFunc leaves the outputs untouched on every Invoke.
func NewReplayBackend(inputs, outputs []TensorSpec, fn InvokeFunc) *ReplayBackend {
	return &ReplayBackend{
		inputSpecs:  inputs,
		outputSpecs: outputs,
		invoke:      fn,
	}
}

// Load accepts any non empty model blob
func (b *ReplayBackend) Load(model []byte) error {

	if len(model) == 0 {
		return fmt.Errorf("model is empty")
	}

	if b.loaded {
		return fmt.Errorf("model already loaded")
	}

	b.loaded = true
	return nil
}

// AllocateTensors carves the declared tensors from the arena
func (b *ReplayBackend) AllocateTensors(arena *memory.Arena) error {

	if !b.loaded {
		return fmt.Errorf("allocate called before load")
	}

	if b.allocated {
		return ErrAlreadyAllocated
	}

	var err error

	b.inputs, err = carveTensors(arena, b.inputSpecs)

	if err != nil {
		return fmt.Errorf("error allocating input tensors: %w", err)
	}

	b.outputs, err = carveTensors(arena, b.outputSpecs)

	if err != nil {
		return fmt.Errorf("error allocating output tensors: %w", err)
	}

	b.allocated = true
	return nil
}

// carveTensors creates a Tensor for each spec backed by arena memory
func carveTensors(arena *memory.Arena, specs []TensorSpec) ([]*Tensor, error) {

	tensors := make([]*Tensor, len(specs))

	for i, s := range specs {

		t := &Tensor{
			Index: i,
			Name:  s.Name,
			Type:  s.Type,
			Fmt:   s.Fmt,
			Shape: append([]int(nil), s.Shape...),
			Quant: s.Quant,
		}

		if !t.Quant.Valid() {
			t.Quant = quantize.Identity()
		}

		n := t.NumElems()

		if n <= 0 {
			return nil, fmt.Errorf("tensor %s has invalid shape %v", s.Name, s.Shape)
		}

		switch s.Type {
		case TensorInt8:
			buf, err := arena.Carve(n, 1)
			if err != nil {
				return nil, err
			}
			t.BufInt = unsafe.Slice((*int8)(unsafe.Pointer(&buf[0])), n)

		case TensorUint8:
			buf, err := arena.Carve(n, 1)
			if err != nil {
				return nil, err
			}
			t.BufUint = buf

		case TensorFloat32, TensorFloat16:
			buf, err := arena.Carve(n*4, 4)
			if err != nil {
				return nil, err
			}
			t.BufFloat = unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), n)

		default:
			return nil, fmt.Errorf("tensor %s has unsupported type %s", s.Name, s.Type)
		}

		tensors[i] = t
	}

	return tensors, nil
}

// NumInputs returns the number of declared input tensors
func (b *ReplayBackend) NumInputs() int {
	return len(b.inputSpecs)
}

// NumOutputs returns the number of declared output tensors
func (b *ReplayBackend) NumOutputs() int {
	return len(b.outputSpecs)
}

// InputTensor returns input tensor i
func (b *ReplayBackend) InputTensor(i int) (*Tensor, error) {

	if !b.allocated {
		return nil, ErrNotAllocated
	}

	if i < 0 || i >= len(b.inputs) {
		return nil, fmt.Errorf("input tensor index %d out of range", i)
	}

	return b.inputs[i], nil
}

// OutputTensor returns output tensor i
func (b *ReplayBackend) OutputTensor(i int) (*Tensor, error) {

	if !b.allocated {
		return nil, ErrNotAllocated
	}

	if i < 0 || i >= len(b.outputs) {
		return nil, fmt.Errorf("output tensor index %d out of range", i)
	}

	return b.outputs[i], nil
}

// Invoke runs the InvokeFunc over the tensors
func (b *ReplayBackend) Invoke() error {

	if !b.allocated {
		return ErrNotAllocated
	}

	b.invocations++

	if b.invoke == nil {
		return nil
	}

	return b.invoke(b.inputs, b.outputs)
}

// Invocations returns the number of times Invoke has been called
func (b *ReplayBackend) Invocations() int {
	return b.invocations
}

// Version returns the engine description
func (b *ReplayBackend) Version() string {
	return "replay"
}

// Close releases the tensors
func (b *ReplayBackend) Close() error {
	b.inputs = nil
	b.outputs = nil
	b.allocated = false
	return nil
}

// Replay returns an InvokeFunc copying one recorded raw tensor dump into each
// output tensor in order.  Int8 and uint8 tensors take one byte per element,
// float16 tensors two little endian bytes and float32 tensors four.
func Replay(recordings ...[]byte) InvokeFunc {
	return func(_, outputs []*Tensor) error {

		if len(recordings) < len(outputs) {
			return fmt.Errorf("have %d recordings for %d output tensors",
				len(recordings), len(outputs))
		}

		for i, t := range outputs {
			if err := t.Load(recordings[i]); err != nil {
				return err
			}
		}

		return nil
	}
}

// Load copies a raw element dump into the tensor buffer
func (t *Tensor) Load(raw []byte) error {

	n := t.NumElems()

	if len(raw) != n*t.Type.Size() {
		return fmt.Errorf("tensor %s needs %d bytes of %s data, got %d",
			t.Name, n*t.Type.Size(), t.Type, len(raw))
	}

	switch t.Type {
	case TensorInt8:
		for i, v := range raw {
			t.BufInt[i] = int8(v)
		}

	case TensorUint8:
		copy(t.BufUint, raw)

	case TensorFloat16:
		decodeFloat16LE(raw, t.BufFloat)

	case TensorFloat32:
		for i := range t.BufFloat {
			t.BufFloat[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}

	default:
		return fmt.Errorf("tensor %s has unsupported type %s", t.Name, t.Type)
	}

	return nil
}

// Dump returns the tensor buffer in the raw format read by Load
func (t *Tensor) Dump() []byte {
	switch t.Type {
	case TensorInt8:
		buf := make([]byte, len(t.BufInt))
		for i, v := range t.BufInt {
			buf[i] = byte(v)
		}
		return buf

	case TensorUint8:
		return append([]byte(nil), t.BufUint...)

	case TensorFloat16:
		return encodeFloat16LE(t.BufFloat)

	case TensorFloat32:
		buf := make([]byte, len(t.BufFloat)*4)
		for i, v := range t.BufFloat {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return buf

	default:
		return nil
	}
}
