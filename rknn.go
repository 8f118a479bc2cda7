//go:build rknn

package vespadet

/*
#cgo LDFLAGS: -lrknnrt
#include "rknn_api.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/swdee/go-vespadet/memory"
)

// CoreMask wraps C.rknn_core_mask
type CoreMask int

// rknn_core_mask values used to target which cores on the NPU the model is run
// on.  Auto will pick an idle core to run the model on.
const (
	NPUCoreAuto    CoreMask = C.RKNN_NPU_CORE_AUTO
	NPUCore0       CoreMask = C.RKNN_NPU_CORE_0
	NPUCore1       CoreMask = C.RKNN_NPU_CORE_1
	NPUCore2       CoreMask = C.RKNN_NPU_CORE_2
	NPUCore01      CoreMask = C.RKNN_NPU_CORE_0_1
	NPUCore012     CoreMask = C.RKNN_NPU_CORE_0_1_2
	NPUSkipSetCore CoreMask = 9999
)

// ErrorCodes
type ErrorCodes int

// error code values returned by the C API
const (
	Success              ErrorCodes = C.RKNN_SUCC
	ErrFail              ErrorCodes = C.RKNN_ERR_FAIL
	ErrTimeout           ErrorCodes = C.RKNN_ERR_TIMEOUT
	ErrDeviceUnavailable ErrorCodes = C.RKNN_ERR_DEVICE_UNAVAILABLE
	ErrMallocFail        ErrorCodes = C.RKNN_ERR_MALLOC_FAIL
	ErrParamInvalid      ErrorCodes = C.RKNN_ERR_PARAM_INVALID
	ErrModelInvalid      ErrorCodes = C.RKNN_ERR_MODEL_INVALID
	ErrCtxInvalid        ErrorCodes = C.RKNN_ERR_CTX_INVALID
	ErrInputInvalid      ErrorCodes = C.RKNN_ERR_INPUT_INVALID
	ErrOutputInvalid     ErrorCodes = C.RKNN_ERR_OUTPUT_INVALID
	ErrDeviceMismatch    ErrorCodes = C.RKNN_ERR_DEVICE_UNMATCH
	ErrPlatformMismatch  ErrorCodes = C.RKNN_ERR_TARGET_PLATFORM_UNMATCH
)

// String returns a readable description of the error code
func (e ErrorCodes) String() string {
	switch e {
	case Success:
		return "execution successful"
	case ErrFail:
		return "execution failed"
	case ErrTimeout:
		return "execution timed out"
	case ErrDeviceUnavailable:
		return "device is unavailable"
	case ErrMallocFail:
		return "C memory allocation failed"
	case ErrParamInvalid:
		return "parameter is invalid"
	case ErrModelInvalid:
		return "model file is invalid"
	case ErrCtxInvalid:
		return "context is invalid"
	case ErrInputInvalid:
		return "input is invalid"
	case ErrOutputInvalid:
		return "output is invalid"
	case ErrDeviceMismatch:
		return "device mismatch, please update rknn sdk and npu driver/firmware"
	case ErrPlatformMismatch:
		return "the RKNN model target platform is not compatible with the current platform"
	default:
		return fmt.Sprintf("unknown error code %d", e)
	}
}

// RKNNBackend runs the model on a Rockchip NPU
type RKNNBackend struct {
	// ctx is the C runtime context
	ctx C.rknn_context
	// core is the NPU core mask to run on
	core CoreMask
	// inputAttrs caches the Input Tensor Attributes of the Model
	inputAttrs []tensorAttr
	// outputAttrs caches the Output Tensor Attributes of the Model
	outputAttrs []tensorAttr
	inputs      []*Tensor
	outputs     []*Tensor
	cOutputs    []C.rknn_output
	loaded      bool
}

// NewRKNNBackend returns a backend pinned to the NPU core
func NewRKNNBackend(core CoreMask) *RKNNBackend {
	return &RKNNBackend{core: core}
}

// Load wraps C.rknn_init which initializes the RKNN context with the model
// data
func (b *RKNNBackend) Load(model []byte) error {

	ret := C.rknn_init(&b.ctx, unsafe.Pointer(&model[0]), C.uint32_t(len(model)), 0, nil)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_init call failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	b.loaded = true

	// setCoreMask is only supported on RK3588, allow skipping for other
	// Rockchip models like RK3566
	if b.core != NPUSkipSetCore {
		ret = C.rknn_set_core_mask(b.ctx, C.rknn_core_mask(b.core))

		if ret != C.RKNN_SUCC {
			return fmt.Errorf("C.rknn_set_core_mask failed with code %d, error: %s",
				ret, ErrorCodes(ret).String())
		}
	}

	var cIONum C.rknn_input_output_num

	ret = C.rknn_query(b.ctx, C.RKNN_QUERY_IN_OUT_NUM, unsafe.Pointer(&cIONum),
		C.uint(C.sizeof_rknn_input_output_num))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("rknn_query failed with return code %d", int(ret))
	}

	var err error

	b.inputAttrs, err = b.queryTensors(C.RKNN_QUERY_INPUT_ATTR, uint32(cIONum.n_input))

	if err != nil {
		return err
	}

	b.outputAttrs, err = b.queryTensors(C.RKNN_QUERY_OUTPUT_ATTR, uint32(cIONum.n_output))

	return err
}

// AllocateTensors carves the input and output buffers from the arena.  The
// NPU keeps its own internal buffers, inputs are passed through unconverted
// and outputs are copied back quantized.
func (b *RKNNBackend) AllocateTensors(arena *memory.Arena) error {

	var err error

	b.inputs, err = carveTensors(arena, specsFromAttrs(b.inputAttrs))

	if err != nil {
		return fmt.Errorf("error allocating input tensors: %w", err)
	}

	b.outputs, err = carveTensors(arena, specsFromAttrs(b.outputAttrs))

	if err != nil {
		return fmt.Errorf("error allocating output tensors: %w", err)
	}

	b.cOutputs = make([]C.rknn_output, len(b.outputs))

	return nil
}

// NumInputs returns the number of model input tensors
func (b *RKNNBackend) NumInputs() int {
	return len(b.inputAttrs)
}

// NumOutputs returns the number of model output tensors
func (b *RKNNBackend) NumOutputs() int {
	return len(b.outputAttrs)
}

// InputTensor returns input tensor i
func (b *RKNNBackend) InputTensor(i int) (*Tensor, error) {

	if i < 0 || i >= len(b.inputs) {
		return nil, fmt.Errorf("input tensor index %d out of range", i)
	}

	return b.inputs[i], nil
}

// OutputTensor returns output tensor i
func (b *RKNNBackend) OutputTensor(i int) (*Tensor, error) {

	if i < 0 || i >= len(b.outputs) {
		return nil, fmt.Errorf("output tensor index %d out of range", i)
	}

	return b.outputs[i], nil
}

// Invoke sets the inputs, wraps C.rknn_run and copies the outputs back into
// the output tensors
func (b *RKNNBackend) Invoke() error {

	if err := b.setInputs(); err != nil {
		return err
	}

	ret := C.rknn_run(b.ctx, nil)

	if ret < 0 {
		return fmt.Errorf("C.rknn_run failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return b.getOutputs()
}

// setInputs wraps C.rknn_inputs_set passing the quantized input buffers
// through to the NPU without conversion
func (b *RKNNBackend) setInputs() error {

	cInputs := make([]C.rknn_input, len(b.inputs))

	for i, t := range b.inputs {
		cInputs[i].index = C.uint32_t(i)
		cInputs[i].size = C.uint32_t(t.Bytes())
		cInputs[i].pass_through = C.uint8_t(1)
		cInputs[i]._type = C.rknn_tensor_type(b.inputAttrs[i].Type)
		cInputs[i].fmt = C.rknn_tensor_format(b.inputAttrs[i].Fmt)

		if t.Type == TensorInt8 {
			cInputs[i].buf = unsafe.Pointer(&t.BufInt[0])
		} else {
			cInputs[i].buf = unsafe.Pointer(&t.BufUint[0])
		}
	}

	ret := C.rknn_inputs_set(b.ctx, C.uint32_t(len(cInputs)), &cInputs[0])

	if ret != 0 {
		return fmt.Errorf("C.rknn_inputs_set failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// getOutputs wraps C.rknn_outputs_get and C.rknn_outputs_release
func (b *RKNNBackend) getOutputs() error {

	for idx := range b.cOutputs {
		b.cOutputs[idx] = C.rknn_output{}
		b.cOutputs[idx].index = C.uint32_t(idx)
		b.cOutputs[idx].want_float = C.uint8_t(0)
	}

	ret := C.rknn_outputs_get(b.ctx, C.uint32_t(len(b.cOutputs)),
		(*C.rknn_output)(unsafe.Pointer(&b.cOutputs[0])), nil)

	if ret < 0 {
		return fmt.Errorf("C.rknn_outputs_get failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	for i, cOutput := range b.cOutputs {
		t := b.outputs[i]
		size := int(cOutput.size)

		switch t.Type {
		case TensorInt8:
			copy(t.BufInt, unsafe.Slice((*int8)(cOutput.buf), size))
		case TensorUint8:
			copy(t.BufUint, unsafe.Slice((*uint8)(cOutput.buf), size))
		case TensorFloat16:
			convertFloat16BufferToFloat32(unsafe.Slice((*uint16)(cOutput.buf), size/2), t.BufFloat)
		case TensorFloat32:
			copy(t.BufFloat, unsafe.Slice((*float32)(cOutput.buf), size/4))
		}
	}

	ret = C.rknn_outputs_release(b.ctx, C.uint32_t(len(b.cOutputs)),
		(*C.rknn_output)(unsafe.Pointer(&b.cOutputs[0])))

	if ret != 0 {
		return fmt.Errorf("C.rknn_outputs_release failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// Version returns the RKNN API and Driver versions
func (b *RKNNBackend) Version() string {

	var cSdkVer C.rknn_sdk_version

	ret := C.rknn_query(b.ctx, C.RKNN_QUERY_SDK_VERSION,
		unsafe.Pointer(&cSdkVer), C.uint(C.sizeof_rknn_sdk_version))

	if ret != C.RKNN_SUCC {
		return fmt.Sprintf("rknn (version query failed with code %d)", int(ret))
	}

	return fmt.Sprintf("Driver Version: %s, API Version: %s",
		C.GoString(&(cSdkVer.drv_version[0])), C.GoString(&(cSdkVer.api_version[0])))
}

// Close wraps C.rknn_destroy which unloads the RKNN model from the runtime and
// destroys the context releasing all C resources
func (b *RKNNBackend) Close() error {

	if !b.loaded {
		return nil
	}

	b.loaded = false
	ret := C.rknn_destroy(b.ctx)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_destroy failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

func init() {
	RegisterBackend("rknn", func(opts BackendOptions) (Backend, error) {

		core := NPUCoreAuto

		switch opts.Core {
		case 0:
			core = NPUCore0
		case 1:
			core = NPUCore1
		case 2:
			core = NPUCore2
		}

		return NewRKNNBackend(core), nil
	})
}
