package quantize

import "fmt"

// InputQuantizer converts 8 bit pixel values into quantized input tensor
// elements.  As a pixel only has 256 possible values the conversion is
// precomputed into lookup tables.
type InputQuantizer struct {
	params     Params
	convention Convention
	lutInt8    [256]int8
	lutUint8   [256]uint8
}

// NewInputQuantizer returns an InputQuantizer for a tensor using the given
// Params under a resolved Convention
func NewInputQuantizer(p Params, c Convention) (*InputQuantizer, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if c != UnitInterval && c != RawByte {
		return nil, fmt.Errorf("input quantizer needs a resolved convention, got %s", c)
	}

	q := &InputQuantizer{
		params:     p,
		convention: c,
	}

	for v := 0; v < 256; v++ {
		real := c.pixelReal(uint8(v))
		q.lutInt8[v] = p.Quantize(real)
		q.lutUint8[v] = p.QuantizeUint8(real)
	}

	return q, nil
}

// Params returns the quantization parameters of the input tensor
func (q *InputQuantizer) Params() Params {
	return q.params
}

// Convention returns the pixel Convention in use
func (q *InputQuantizer) Convention() Convention {
	return q.convention
}

// Quantize converts a single pixel value to int8
func (q *InputQuantizer) Quantize(v uint8) int8 {
	return q.lutInt8[v]
}

// QuantizeInto converts every pixel byte into the int8 tensor buffer dst
func (q *InputQuantizer) QuantizeInto(dst []int8, pixels []byte) error {

	if len(dst) != len(pixels) {
		return fmt.Errorf("tensor holds %d elements but image has %d bytes",
			len(dst), len(pixels))
	}

	for i, v := range pixels {
		dst[i] = q.lutInt8[v]
	}

	return nil
}

// QuantizeUint8Into converts every pixel byte into the uint8 tensor buffer
// dst
func (q *InputQuantizer) QuantizeUint8Into(dst []uint8, pixels []byte) error {

	if len(dst) != len(pixels) {
		return fmt.Errorf("tensor holds %d elements but image has %d bytes",
			len(dst), len(pixels))
	}

	for i, v := range pixels {
		dst[i] = q.lutUint8[v]
	}

	return nil
}

// DequantizeTable returns the real value for every possible int8 element of
// a tensor indexed by q+128
func DequantizeTable(p Params) [256]float32 {

	var lut [256]float32

	for i := range lut {
		lut[i] = p.Dequantize(int32(i) + MinInt8)
	}

	return lut
}
