package pipeline

import (
	"time"

	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/postprocess"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/quantize"
)

// Default pauses of the loop
const (
	DefaultFramePause  = 300 * time.Millisecond
	DefaultRetryPause  = 50 * time.Millisecond
	DefaultInvokePause = 300 * time.Millisecond
)

// Config defines the behaviour of a Pipeline
type Config struct {
	// InputSize is the expected model input side length, 0 accepts the size
	// declared by the input tensor
	InputSize int
	// Policy is the resize policy of the model input
	Policy preprocess.Policy
	// Audit lists extra resize policies whose canvases are written to the
	// sink for dataset review, they are never fed to the model
	Audit []preprocess.Policy
	// PadValue is the letterbox fill byte
	PadValue byte
	// Enhancement is applied to the model input canvas
	Enhancement preprocess.Enhancement
	// Convention selects how pixels map to real input values
	Convention quantize.Convention
	// Decode holds the decoder parameters, InputSize is taken from the
	// validated input tensor
	Decode postprocess.DFLParams
	// Pool supplies the canvas and decode scratch buffers, nil allocates
	// from the heap
	Pool *memory.Pool
	// Labels names the classes in reports and overlays
	Labels []string
	// FramePause is slept after every frame
	FramePause time.Duration
	// RetryPause is slept after a capture miss
	RetryPause time.Duration
	// InvokePause is slept after an inference failure
	InvokePause time.Duration
	// MaxFrames stops Run after this many frames, 0 runs until the source
	// is exhausted
	MaxFrames int
	// CPUMask pins the worker thread to the given cores when non zero
	CPUMask uintptr
	Save    SaveConfig
	Debug   DebugConfig
}

// SaveConfig selects the artifacts written to the sink per frame
type SaveConfig struct {
	Frames     bool
	Canvas     bool
	Detections bool
	Overlay    bool
}

// DebugConfig gates debug level diagnostics
type DebugConfig struct {
	// Tensors logs tensor types, shapes and quantization at startup
	Tensors bool
	// InputStats logs statistics of the canvas and quantized input
	InputStats bool
	// OutputStats logs statistics of the dequantized output
	OutputStats bool
	// Samples logs this many raw and dequantized output values
	Samples int
	// Scan logs the best scoring cell and its top classes
	Scan bool
	// TopK is the number of classes logged by Scan
	TopK int
	// Detections logs decoded boxes
	Detections bool
	// DumpLimit bounds the boxes logged per frame
	DumpLimit int
}

// DefaultConfig returns a Config for a 192x192 letterboxed model with
// automatic input convention and the default decoder parameters
func DefaultConfig() Config {
	return Config{
		Policy:      preprocess.Letterbox,
		Convention:  quantize.Auto,
		Decode:      postprocess.DFLDefaultParams(),
		FramePause:  DefaultFramePause,
		RetryPause:  DefaultRetryPause,
		InvokePause: DefaultInvokePause,
		Debug: DebugConfig{
			TopK:      5,
			DumpLimit: 10,
		},
	}
}
