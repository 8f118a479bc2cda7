package vespadet

import (
	"fmt"
	"strings"

	"github.com/swdee/go-vespadet/quantize"
)

// TensorFormat is the memory layout of an image tensor
type TensorFormat int

const (
	TensorUndefined TensorFormat = iota
	TensorNHWC
	TensorNCHW
)

// TensorType is the element type of a tensor
type TensorType int

const (
	TensorUnknown TensorType = iota
	TensorFloat32
	TensorFloat16
	TensorInt8
	TensorUint8
	TensorInt16
	TensorInt32
	TensorInt64
	TensorBool
)

// Tensor is an input or output tensor of the inference engine.  Exactly one
// of the buffers is set depending on Type, float16 tensors are exposed as
// float32.  Buffers are owned by the engine and remain valid for the life
// of the Runtime.
type Tensor struct {
	Index int
	Name  string
	Type  TensorType
	Fmt   TensorFormat
	Shape []int
	// Quant holds the per tensor affine quantization read from the model
	Quant quantize.Params
	// BufInt is the element buffer of TensorInt8 tensors
	BufInt []int8
	// BufUint is the element buffer of TensorUint8 tensors
	BufUint []uint8
	// BufFloat is the element buffer of TensorFloat32 and TensorFloat16
	// tensors
	BufFloat []float32
}

// NumElems returns the number of elements in the tensor
func (t *Tensor) NumElems() int {

	if len(t.Shape) == 0 {
		return 0
	}

	n := 1

	for _, d := range t.Shape {
		n *= d
	}

	return n
}

// NDims returns the rank of the tensor
func (t *Tensor) NDims() int {
	return len(t.Shape)
}

// Dim returns the size of dimension i or 0 if the tensor has no such
// dimension
func (t *Tensor) Dim(i int) int {

	if i < 0 || i >= len(t.Shape) {
		return 0
	}

	return t.Shape[i]
}

// Quantized reports whether the tensor holds 8 bit quantized elements
func (t *Tensor) Quantized() bool {
	return t.Type == TensorInt8 || t.Type == TensorUint8
}

// Len returns the number of elements held in the tensors buffer
func (t *Tensor) Len() int {
	switch t.Type {
	case TensorInt8:
		return len(t.BufInt)
	case TensorUint8:
		return len(t.BufUint)
	case TensorFloat32, TensorFloat16:
		return len(t.BufFloat)
	default:
		return 0
	}
}

// Value returns element i as a real value, dequantizing quantized tensors
func (t *Tensor) Value(i int) float32 {
	switch t.Type {
	case TensorInt8:
		return t.Quant.Dequantize(int32(t.BufInt[i]))
	case TensorUint8:
		return t.Quant.Dequantize(int32(t.BufUint[i]))
	case TensorFloat32, TensorFloat16:
		return t.BufFloat[i]
	default:
		return 0
	}
}

// Raw returns element i without dequantization
func (t *Tensor) Raw(i int) float32 {
	switch t.Type {
	case TensorInt8:
		return float32(t.BufInt[i])
	case TensorUint8:
		return float32(t.BufUint[i])
	default:
		return t.Value(i)
	}
}

// Bytes returns the size of the tensors buffer in bytes
func (t *Tensor) Bytes() int {
	return t.NumElems() * t.Type.Size()
}

// String returns the Tensor's attributes formatted as a string
func (t *Tensor) String() string {
	return fmt.Sprintf("index=%d, name=%s, n_dims=%d, dims=%v, n_elems=%d, "+
		"size=%d, fmt=%s, type=%s, zp=%d, scale=%f",
		t.Index, t.Name, t.NDims(), t.Shape, t.NumElems(), t.Bytes(),
		t.Fmt.String(), t.Type.String(), t.Quant.ZeroPoint, t.Quant.Scale,
	)
}

// Size returns the number of bytes of a single element
func (t TensorType) Size() int {
	switch t {
	case TensorInt8, TensorUint8, TensorBool:
		return 1
	case TensorFloat16, TensorInt16:
		return 2
	case TensorFloat32, TensorInt32:
		return 4
	case TensorInt64:
		return 8
	default:
		return 0
	}
}

// String returns a readable description of the TensorType
func (t TensorType) String() string {
	switch t {
	case TensorFloat32:
		return "FP32"
	case TensorFloat16:
		return "FP16"
	case TensorInt8:
		return "INT8"
	case TensorUint8:
		return "UINT8"
	case TensorInt16:
		return "INT16"
	case TensorInt32:
		return "INT32"
	case TensorInt64:
		return "INT64"
	case TensorBool:
		return "BOOL"
	default:
		return "UNKNOW"
	}
}

// ParseTensorType converts a type name as printed by String back into a
// TensorType
func ParseTensorType(s string) (TensorType, error) {
	for t := TensorFloat32; t <= TensorBool; t++ {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}

	return TensorUnknown, fmt.Errorf("unknown tensor type %q", s)
}

// String returns a readable description of the TensorFormat
func (t TensorFormat) String() string {
	switch t {
	case TensorNCHW:
		return "NCHW"
	case TensorNHWC:
		return "NHWC"
	case TensorUndefined:
		return "UNDEFINED"
	default:
		return "UNKNOW"
	}
}
