package vespadet

import "github.com/swdee/go-vespadet/memory"

// Backend is the inference engine executing the network.  The Runtime
// drives a Backend through Load, then AllocateTensors exactly once, then any
// number of Invoke calls.  Invoke is synchronous and blocking.
type Backend interface {
	// Load parses the model blob.  The blob remains valid until Close.
	Load(model []byte) error
	// AllocateTensors lays out the tensors of the loaded model, carving
	// buffers from the arena where the engine supports it
	AllocateTensors(arena *memory.Arena) error
	// NumInputs returns the number of input tensors of the model
	NumInputs() int
	// NumOutputs returns the number of output tensors of the model
	NumOutputs() int
	// InputTensor returns the mutable input tensor at index i
	InputTensor(i int) (*Tensor, error)
	// OutputTensor returns the readable output tensor at index i
	OutputTensor(i int) (*Tensor, error)
	// Invoke runs the model once over the current input tensors
	Invoke() error
	// Close releases all engine resources
	Close() error
}

// Versioner is implemented by backends able to report their engine version
type Versioner interface {
	Version() string
}
