package vespadet

import (
	"errors"
	"fmt"

	"github.com/swdee/go-vespadet/memory"
)

// error taxonomy of the detection core.  All errors returned by the
// packages wrap one of these so callers can classify them with errors.Is
var (
	// ErrCaptureFailure indicates no frame was available from the source
	ErrCaptureFailure = errors.New("capture failure")
	// ErrDecodeFailure indicates a compressed image could not be decoded
	ErrDecodeFailure = errors.New("decode failure")
	// ErrAllocationFailure indicates a buffer or arena allocation failed
	ErrAllocationFailure = memory.ErrAllocationFailure
	// ErrShapeMismatch indicates tensor rank or dimensions differ from what
	// the consumer expects
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvokeFailure indicates the inference engine reported a non success
	// status
	ErrInvokeFailure = errors.New("invoke failure")
	// ErrGridAssumptionViolated is a warning that the output cell count is
	// not a perfect square
	ErrGridAssumptionViolated = errors.New("grid assumption violated")
	// ErrModelLoad indicates the model could not be read or loaded into the
	// engine
	ErrModelLoad = errors.New("model load failure")
)

// ShapeError describes a tensor whose shape is inconsistent with what was
// expected.  A fatal ShapeError aborts startup whilst a recoverable one only
// discards the current frame.
type ShapeError struct {
	// Tensor is the name or role of the tensor
	Tensor string
	// Got is the shape found
	Got []int
	// Want describes the expected shape
	Want string
	// fatal is true if the error can not be recovered from
	fatal bool
}

// NewShapeError returns a ShapeError for the tensor
func NewShapeError(tensor string, got []int, want string, fatal bool) *ShapeError {
	return &ShapeError{
		Tensor: tensor,
		Got:    append([]int(nil), got...),
		Want:   want,
		fatal:  fatal,
	}
}

// Error implements the error interface
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: tensor %s has shape %v, expected %s",
		ErrShapeMismatch, e.Tensor, e.Got, e.Want)
}

// Unwrap allows errors.Is(err, ErrShapeMismatch)
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Fatal reports whether the mismatch is unrecoverable
func (e *ShapeError) Fatal() bool {
	return e.fatal
}

// IsFatal reports whether err carries a fatal ShapeError or is one of the
// initialization failures that must abort startup
func IsFatal(err error) bool {

	var se *ShapeError

	if errors.As(err, &se) {
		return se.Fatal()
	}

	return errors.Is(err, ErrAllocationFailure) || errors.Is(err, ErrModelLoad)
}
