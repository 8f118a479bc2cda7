package vespadet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/swdee/go-vespadet/memory"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultArenaSize is the tensor arena reserved when none is configured
const DefaultArenaSize = 2 * 1024 * 1024

var (
	// ErrNotAllocated is returned when the engine is used before its tensors
	// have been allocated
	ErrNotAllocated = errors.New("tensors have not been allocated")
	// ErrAlreadyAllocated is returned when tensors are allocated a second time
	ErrAlreadyAllocated = errors.New("tensors already allocated")
	// ErrClosed is returned when a closed Runtime is used
	ErrClosed = errors.New("runtime is closed")
)

// RuntimeConfig defines the resources given to a Runtime
type RuntimeConfig struct {
	// Allocator supplies the memory domains, a default sized allocator is
	// created if nil
	Allocator *memory.Allocator
	// ArenaSize is the tensor arena size in bytes
	ArenaSize int
	// Logger receives runtime log messages
	Logger *zap.Logger
}

// Runtime is a loaded model and its inference engine.  It is created once at
// startup and reused for every frame, tensors and arena are never
// reallocated.
type Runtime struct {
	mu sync.Mutex
	// backend is the engine executing the model
	backend Backend
	// model is the model blob held in the high capacity domain
	model *memory.Block
	// arena is the tensor arena
	arena *memory.Arena
	// alloc is the allocator the model and arena came from
	alloc *memory.Allocator
	// inputs caches the input tensors of the model
	inputs []*Tensor
	// outputs caches the output tensors of the model
	outputs []*Tensor
	// allocated indicates AllocateTensors has succeeded
	allocated bool
	closed    bool
	log       *zap.Logger
}

// NewRuntime loads the model into the backend, reserves the tensor arena and
// allocates tensors.  The Runtime takes ownership of the model Block.  All
// errors returned are initialization failures and should abort startup.
func NewRuntime(b Backend, model *memory.Block, cfg RuntimeConfig) (*Runtime, error) {

	if b == nil {
		return nil, fmt.Errorf("%w: no inference backend given", ErrModelLoad)
	}

	if model == nil || model.Len() == 0 {
		return nil, fmt.Errorf("%w: model is empty", ErrModelLoad)
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewAllocator(64*1024, model.Len()+DefaultArenaSize)
	}

	if cfg.ArenaSize <= 0 {
		cfg.ArenaSize = DefaultArenaSize
	}

	r := &Runtime{
		backend: b,
		model:   model,
		alloc:   cfg.Allocator,
		log:     cfg.Logger,
	}

	if err := b.Load(model.Bytes()); err != nil {
		model.Release()
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	arena, err := memory.NewArena(cfg.Allocator, memory.HighCapacity, cfg.ArenaSize)

	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("error reserving tensor arena: %w", err), r.closeBackend())
	}

	r.arena = arena

	if err := r.AllocateTensors(); err != nil {
		return nil, multierr.Append(err, r.Close())
	}

	r.log.Info("runtime ready",
		zap.Int("inputs", len(r.inputs)),
		zap.Int("outputs", len(r.outputs)),
		zap.Int("model_bytes", model.Len()),
		zap.Int("arena_bytes", arena.Size()),
		zap.Int("arena_used", arena.Used()),
	)

	return r, nil
}

// AllocateTensors allocates the tensors of the model and caches their
// attributes.  It may only succeed once per Runtime.
func (r *Runtime) AllocateTensors() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if r.allocated {
		return ErrAlreadyAllocated
	}

	if err := r.backend.AllocateTensors(r.arena); err != nil {
		return fmt.Errorf("error allocating tensors: %w", err)
	}

	r.inputs = make([]*Tensor, r.backend.NumInputs())

	for i := range r.inputs {
		t, err := r.backend.InputTensor(i)

		if err != nil {
			return fmt.Errorf("error querying input tensor %d: %w", i, err)
		}

		r.inputs[i] = t
	}

	r.outputs = make([]*Tensor, r.backend.NumOutputs())

	for i := range r.outputs {
		t, err := r.backend.OutputTensor(i)

		if err != nil {
			return fmt.Errorf("error querying output tensor %d: %w", i, err)
		}

		r.outputs[i] = t
	}

	r.allocated = true
	return nil
}

// InputTensor returns the input tensor at index i
func (r *Runtime) InputTensor(i int) (*Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allocated {
		return nil, ErrNotAllocated
	}

	if i < 0 || i >= len(r.inputs) {
		return nil, fmt.Errorf("input tensor index %d out of range, model has %d",
			i, len(r.inputs))
	}

	return r.inputs[i], nil
}

// OutputTensor returns the output tensor at index i
func (r *Runtime) OutputTensor(i int) (*Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allocated {
		return nil, ErrNotAllocated
	}

	if i < 0 || i >= len(r.outputs) {
		return nil, fmt.Errorf("output tensor index %d out of range, model has %d",
			i, len(r.outputs))
	}

	return r.outputs[i], nil
}

// InputAttrs returns the loaded model's input tensors
func (r *Runtime) InputAttrs() []*Tensor {
	return r.inputs
}

// OutputAttrs returns the loaded model's output tensors
func (r *Runtime) OutputAttrs() []*Tensor {
	return r.outputs
}

// Invoke runs the model once.  The call blocks until the engine returns and
// errors wrap ErrInvokeFailure.
func (r *Runtime) Invoke() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if !r.allocated {
		return fmt.Errorf("%w: %w", ErrInvokeFailure, ErrNotAllocated)
	}

	if err := r.backend.Invoke(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvokeFailure, err)
	}

	return nil
}

// InputAttribute of trained model input tensor
type InputAttribute struct {
	Width   int
	Height  int
	Channel int
}

// InputAttributes returns the image dimensions of the first input tensor
func (r *Runtime) InputAttributes() (InputAttribute, error) {

	t, err := r.InputTensor(0)

	if err != nil {
		return InputAttribute{}, err
	}

	if t.NDims() != 4 {
		return InputAttribute{}, NewShapeError("input", t.Shape, "[1, H, W, C]", true)
	}

	// set default vars where input is NCHW
	attr := InputAttribute{
		Channel: t.Dim(1),
		Height:  t.Dim(2),
		Width:   t.Dim(3),
	}

	if t.Fmt != TensorNCHW {
		attr = InputAttribute{
			Height:  t.Dim(1),
			Width:   t.Dim(2),
			Channel: t.Dim(3),
		}
	}

	return attr, nil
}

// ValidateInput checks the first input tensor is a single square 3 channel
// 8 bit quantized image of the given size, or of any size when size is 0.
// Returns the input tensor and its side length.  Any mismatch is fatal.
func (r *Runtime) ValidateInput(size int) (*Tensor, int, error) {

	in, err := r.InputTensor(0)

	if err != nil {
		return nil, 0, err
	}

	attr, err := r.InputAttributes()

	if err != nil {
		return nil, 0, err
	}

	want := "[1, S, S, 3]"

	if size > 0 {
		want = fmt.Sprintf("[1, %d, %d, 3]", size, size)
	}

	if in.Dim(0) != 1 || attr.Channel != 3 || attr.Width != attr.Height ||
		attr.Width <= 0 || (size > 0 && attr.Width != size) {
		return nil, 0, NewShapeError("input", in.Shape, want, true)
	}

	if in.Fmt == TensorNCHW {
		return nil, 0, NewShapeError("input", in.Shape, want+" in NHWC layout", true)
	}

	if !in.Quantized() {
		return nil, 0, fmt.Errorf("%w: input tensor type %s is not 8 bit quantized",
			ErrShapeMismatch, in.Type)
	}

	if in.Len() != in.NumElems() {
		return nil, 0, NewShapeError("input", in.Shape,
			fmt.Sprintf("buffer of %d elements", in.Len()), true)
	}

	return in, attr.Width, nil
}

// MemoryUsage returns the usage of both memory domains
func (r *Runtime) MemoryUsage() []memory.Usage {
	return []memory.Usage{
		r.alloc.Usage(memory.Internal),
		r.alloc.Usage(memory.HighCapacity),
	}
}

// Arena returns the tensor arena
func (r *Runtime) Arena() *memory.Arena {
	return r.arena
}

// Backend returns the engine the Runtime drives
func (r *Runtime) Backend() Backend {
	return r.backend
}

// closeBackend closes the backend and frees the model Block
func (r *Runtime) closeBackend() error {
	err := r.backend.Close()
	r.model.Release()
	return err
}

// Close releases the engine, the tensor arena and the model
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	err := r.closeBackend()

	if r.arena != nil {
		r.arena.Release()
	}

	return err
}
