// Package quantize implements the per-tensor affine quantization arithmetic
// used to move pixel data into int8 input tensors and to read real valued
// scores back out of int8 output tensors.
package quantize

import (
	"fmt"
	"math"
)

const (
	// MinInt8 and MaxInt8 bound every element of an int8 quantized tensor
	MinInt8 = -128
	MaxInt8 = 127
	// MinUint8 and MaxUint8 bound every element of a uint8 quantized tensor
	MinUint8 = 0
	MaxUint8 = 255
)

// Params are the affine quantization parameters of a tensor.  A single
// scale and zero point apply uniformly across the whole tensor.
type Params struct {
	// Scale is the real value step of one quantized unit, must be positive
	Scale float32
	// ZeroPoint is the quantized value representing real 0
	ZeroPoint int32
}

// Identity returns Params that leave values unchanged, used for tensors that
// carry no quantization
func Identity() Params {
	return Params{Scale: 1, ZeroPoint: 0}
}

// Valid reports whether the scale is a positive finite number
func (p Params) Valid() bool {
	s := float64(p.Scale)
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// Validate returns an error describing why the Params can not be used
func (p Params) Validate() error {
	if !p.Valid() {
		return fmt.Errorf("invalid quantization scale %v", p.Scale)
	}

	return nil
}

// Dequantize converts a quantized value to its real value, (q - zp) * scale
func (p Params) Dequantize(q int32) float32 {
	return float32(q-p.ZeroPoint) * p.Scale
}

// Quantize converts a real value to int8 using round(v/scale) + zp clamped
// to [-128, 127]
func (p Params) Quantize(v float32) int8 {
	return int8(p.quantize(float64(v), MinInt8, MaxInt8))
}

// QuantizeUint8 converts a real value to uint8 using round(v/scale) + zp
// clamped to [0, 255]
func (p Params) QuantizeUint8(v float32) uint8 {
	return uint8(p.quantize(float64(v), MinUint8, MaxUint8))
}

// quantize performs the rounding and clamping in float64 so out of range
// values never overflow the integer conversion
func (p Params) quantize(v float64, lo, hi int32) int32 {

	q := math.Round(v/float64(p.Scale)) + float64(p.ZeroPoint)

	if math.IsNaN(q) {
		return Clamp(p.ZeroPoint, lo, hi)
	}

	if q <= float64(lo) {
		return lo
	}

	if q >= float64(hi) {
		return hi
	}

	return int32(q)
}

// Element is the integer type of a quantized tensor's elements
type Element int

const (
	Int8 Element = iota
	Uint8
)

// Bounds returns the lowest and highest quantized value of the Element
func (e Element) Bounds() (lo, hi int32) {
	if e == Uint8 {
		return MinUint8, MaxUint8
	}

	return MinInt8, MaxInt8
}

// String returns a readable description of the Element
func (e Element) String() string {
	if e == Uint8 {
		return "uint8"
	}

	return "int8"
}

// RealRange returns the real values represented by the lowest and highest
// int8 quantized values
func (p Params) RealRange() (lo, hi float32) {
	return p.RealRangeOf(Int8)
}

// RealRangeOf returns the real values represented by the lowest and highest
// quantized values of the Element
func (p Params) RealRangeOf(e Element) (lo, hi float32) {
	qlo, qhi := e.Bounds()
	return p.Dequantize(qlo), p.Dequantize(qhi)
}

// String returns the Params formatted for logging
func (p Params) String() string {
	return fmt.Sprintf("scale=%.10f zero_point=%d", p.Scale, p.ZeroPoint)
}

// Clamp restricts q to the range [lo, hi]
func Clamp(q, lo, hi int32) int32 {

	if q < lo {
		return lo
	}

	if q > hi {
		return hi
	}

	return q
}
