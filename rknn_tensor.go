//go:build rknn

package vespadet

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/swdee/go-vespadet/quantize"
)

// maximum field lengths of attributes in a tensor
const (
	attrMaxDimension  = C.RKNN_MAX_DIMS
	attrMaxNameLength = C.RKNN_MAX_NAME_LEN
)

// tensorAttr represents the C.rknn_tensor_attr structure
type tensorAttr struct {
	Index  uint32
	NDims  uint32
	Dims   [attrMaxDimension]uint32
	Name   string
	NElems uint32
	Size   uint32
	Fmt    C.rknn_tensor_format
	Type   C.rknn_tensor_type
	ZP     int32
	Scale  float32
}

// convertTensorAttr converts a C.rknn_tensor_attr to a Go tensorAttr
func convertTensorAttr(cAttr *C.rknn_tensor_attr) tensorAttr {

	// convert C char array to Go string for Name field
	nameBytes := C.GoBytes(unsafe.Pointer(&cAttr.name[0]), C.int(attrMaxNameLength))
	goName := string(nameBytes)

	// find the first null byte to correctly end the string (if present)
	if nullIndex := strings.IndexByte(goName, 0); nullIndex != -1 {
		goName = goName[:nullIndex]
	}

	return tensorAttr{
		Index:  uint32(cAttr.index),
		NDims:  uint32(cAttr.n_dims),
		Dims:   *(*[attrMaxDimension]uint32)(unsafe.Pointer(&cAttr.dims)),
		Name:   goName,
		NElems: uint32(cAttr.n_elems),
		Size:   uint32(cAttr.size),
		Fmt:    cAttr.fmt,
		Type:   cAttr._type,
		ZP:     int32(cAttr.zp),
		Scale:  float32(cAttr.scale),
	}
}

// queryTensors gets the model Input or Output tensor attributes
func (b *RKNNBackend) queryTensors(cmd C.rknn_query_cmd, num uint32) ([]tensorAttr, error) {

	cAttrs := make([]C.rknn_tensor_attr, num)
	attrs := make([]tensorAttr, num)

	for i := uint32(0); i < num; i++ {
		cAttrs[i].index = C.uint32_t(i)

		ret := C.rknn_query(b.ctx, cmd, unsafe.Pointer(&cAttrs[i]),
			C.uint(unsafe.Sizeof(cAttrs[i])))

		if ret != C.RKNN_SUCC {
			return nil, fmt.Errorf("C.rknn_query tensor attr %d failed with code %d, error: %s",
				i, int(ret), ErrorCodes(ret).String())
		}

		attrs[i] = convertTensorAttr(&cAttrs[i])
	}

	return attrs, nil
}

// specsFromAttrs maps RKNN attributes onto TensorSpecs
func specsFromAttrs(attrs []tensorAttr) []TensorSpec {

	specs := make([]TensorSpec, len(attrs))

	for i, a := range attrs {

		shape := make([]int, a.NDims)

		for d := range shape {
			shape[d] = int(a.Dims[d])
		}

		specs[i] = TensorSpec{
			Name:  a.Name,
			Type:  convertTensorType(a.Type),
			Fmt:   convertTensorFormat(a.Fmt),
			Shape: shape,
			Quant: quantize.Params{Scale: a.Scale, ZeroPoint: a.ZP},
		}
	}

	return specs
}

// convertTensorType maps C.rknn_tensor_type onto TensorType
func convertTensorType(t C.rknn_tensor_type) TensorType {
	switch t {
	case C.RKNN_TENSOR_FLOAT32:
		return TensorFloat32
	case C.RKNN_TENSOR_FLOAT16:
		return TensorFloat16
	case C.RKNN_TENSOR_INT8:
		return TensorInt8
	case C.RKNN_TENSOR_UINT8:
		return TensorUint8
	case C.RKNN_TENSOR_INT16:
		return TensorInt16
	case C.RKNN_TENSOR_INT32:
		return TensorInt32
	case C.RKNN_TENSOR_INT64:
		return TensorInt64
	case C.RKNN_TENSOR_BOOL:
		return TensorBool
	default:
		return TensorUnknown
	}
}

// convertTensorFormat maps C.rknn_tensor_format onto TensorFormat
func convertTensorFormat(f C.rknn_tensor_format) TensorFormat {
	switch f {
	case C.RKNN_TENSOR_NHWC:
		return TensorNHWC
	case C.RKNN_TENSOR_NCHW:
		return TensorNCHW
	default:
		return TensorUndefined
	}
}
