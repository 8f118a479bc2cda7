//go:build tflite

package vespadet

import (
	"fmt"

	tflite "github.com/mattn/go-tflite"
	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/quantize"
	"go.uber.org/zap"
)

// TFLiteBackend runs the model with the TensorFlow Lite interpreter
type TFLiteBackend struct {
	numThreads  int
	log         *zap.Logger
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputs      []*Tensor
	outputs     []*Tensor
}

// NewTFLiteBackend returns a backend running the interpreter with the given
// number of threads
func NewTFLiteBackend(numThreads int, log *zap.Logger) *TFLiteBackend {

	if log == nil {
		log = zap.NewNop()
	}

	if numThreads < 1 {
		numThreads = 1
	}

	return &TFLiteBackend{numThreads: numThreads, log: log}
}

// Load parses the flatbuffer model and creates the interpreter
func (b *TFLiteBackend) Load(model []byte) error {

	b.model = tflite.NewModel(model)

	if b.model == nil {
		return fmt.Errorf("failed to create model")
	}

	b.options = tflite.NewInterpreterOptions()

	if b.options == nil {
		return fmt.Errorf("interpreter options failed to be created")
	}

	b.options.SetNumThread(b.numThreads)
	b.options.SetErrorReporter(func(msg string, _ interface{}) {
		b.log.Warn("tflite", zap.String("message", msg))
	}, nil)

	b.interpreter = tflite.NewInterpreter(b.model, b.options)

	if b.interpreter == nil {
		return fmt.Errorf("failed to create interpreter")
	}

	return nil
}

// AllocateTensors wraps the interpreters tensor allocation.  The interpreter
// plans tensor memory itself so the arena is only checked to be large enough
// to hold the tensors.
func (b *TFLiteBackend) AllocateTensors(arena *memory.Arena) error {

	if status := b.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("failed to allocate tensors, status %v", status)
	}

	var err error

	b.inputs, err = b.wrapTensors(arena, b.interpreter.GetInputTensorCount(), b.interpreter.GetInputTensor)

	if err != nil {
		return err
	}

	b.outputs, err = b.wrapTensors(arena, b.interpreter.GetOutputTensorCount(), b.interpreter.GetOutputTensor)

	return err
}

// wrapTensors exposes interpreter tensors as Tensors sharing the
// interpreter's buffers
func (b *TFLiteBackend) wrapTensors(arena *memory.Arena, n int,
	get func(int) *tflite.Tensor) ([]*Tensor, error) {

	tensors := make([]*Tensor, n)

	for i := 0; i < n; i++ {
		tt := get(i)

		shape := make([]int, tt.NumDims())

		for d := range shape {
			shape[d] = tt.Dim(d)
		}

		qp := tt.QuantizationParams()

		t := &Tensor{
			Index: i,
			Name:  tt.Name(),
			Fmt:   TensorNHWC,
			Shape: shape,
			Quant: quantize.Params{Scale: float32(qp.Scale), ZeroPoint: int32(qp.ZeroPoint)},
		}

		if !t.Quant.Valid() {
			t.Quant = quantize.Identity()
		}

		switch tt.Type() {
		case tflite.Int8:
			t.Type = TensorInt8
			t.BufInt = tt.Int8s()
		case tflite.UInt8:
			t.Type = TensorUint8
			t.BufUint = tt.UInt8s()
		case tflite.Float32:
			t.Type = TensorFloat32
			t.BufFloat = tt.Float32s()
		default:
			return nil, fmt.Errorf("tensor %s has unsupported type %s", tt.Name(), tt.Type())
		}

		// account for the tensor in the arena budget
		if _, err := arena.Carve(tt.ByteSize(), 1); err != nil {
			return nil, fmt.Errorf("tensor %s does not fit the arena: %w", tt.Name(), err)
		}

		tensors[i] = t
	}

	return tensors, nil
}

// NumInputs returns the number of model input tensors
func (b *TFLiteBackend) NumInputs() int {
	return len(b.inputs)
}

// NumOutputs returns the number of model output tensors
func (b *TFLiteBackend) NumOutputs() int {
	return len(b.outputs)
}

// InputTensor returns input tensor i
func (b *TFLiteBackend) InputTensor(i int) (*Tensor, error) {

	if i < 0 || i >= len(b.inputs) {
		return nil, fmt.Errorf("input tensor index %d out of range", i)
	}

	return b.inputs[i], nil
}

// OutputTensor returns output tensor i
func (b *TFLiteBackend) OutputTensor(i int) (*Tensor, error) {

	if i < 0 || i >= len(b.outputs) {
		return nil, fmt.Errorf("output tensor index %d out of range", i)
	}

	return b.outputs[i], nil
}

// Invoke runs the interpreter
func (b *TFLiteBackend) Invoke() error {

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return fmt.Errorf("tflite invoke failed, status %v", status)
	}

	return nil
}

// Version returns the engine description
func (b *TFLiteBackend) Version() string {
	return "tflite"
}

// Close deletes the interpreter, options and model
func (b *TFLiteBackend) Close() error {

	if b.interpreter != nil {
		b.interpreter.Delete()
	}

	if b.options != nil {
		b.options.Delete()
	}

	if b.model != nil {
		b.model.Delete()
	}

	return nil
}

func init() {
	RegisterBackend("tflite", func(opts BackendOptions) (Backend, error) {
		return NewTFLiteBackend(opts.Threads, opts.Logger), nil
	})
}
