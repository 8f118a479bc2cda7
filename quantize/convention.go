package quantize

import (
	"errors"
	"fmt"
	"strings"
)

// Convention defines how an 8 bit pixel value is turned into the real value
// that gets quantized into the input tensor
type Convention int

const (
	// Auto resolves the convention from the input tensor's declared
	// quantization parameters
	Auto Convention = iota
	// UnitInterval divides the pixel by 255 so the real input is in [0,1]
	UnitInterval
	// RawByte quantizes the pixel value 0-255 directly
	RawByte
)

var (
	// ErrAmbiguousConvention is returned when the declared quantization
	// range of a tensor matches neither the [0,1] or [0,255] input convention
	ErrAmbiguousConvention = errors.New("input quantization convention is ambiguous")
	// ErrConventionConflict is returned when a requested convention
	// contradicts the range declared by the tensor
	ErrConventionConflict = errors.New("input quantization convention conflicts with tensor metadata")
)

// ranges of the highest representable real input value accepted as
// evidence for each convention
const (
	unitRangeMin = 0.5
	unitRangeMax = 2.0
	rawRangeMin  = 128.0
	rawRangeMax  = 512.0
)

// ParseConvention converts a configuration string into a Convention
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "unit", "unitinterval", "div255":
		return UnitInterval, nil
	case "raw", "rawbyte", "byte":
		return RawByte, nil
	default:
		return Auto, fmt.Errorf("unknown quantization convention %q", s)
	}
}

// String returns a readable description of the Convention
func (c Convention) String() string {
	switch c {
	case Auto:
		return "auto"
	case UnitInterval:
		return "unit"
	case RawByte:
		return "raw"
	default:
		return "unknown"
	}
}

// pixelReal returns the real value a pixel represents under the Convention
func (c Convention) pixelReal(v uint8) float32 {
	if c == UnitInterval {
		return float32(float64(v) / 255.0)
	}

	return float32(v)
}

// detect inspects the real range covered by the quantization of the
// element type and reports which Convention it was calibrated for
func detect(p Params, e Element) (Convention, bool) {

	_, hi := p.RealRangeOf(e)
	top := float64(hi)

	switch {
	case top >= unitRangeMin && top <= unitRangeMax:
		return UnitInterval, true
	case top >= rawRangeMin && top <= rawRangeMax:
		return RawByte, true
	default:
		return Auto, false
	}
}

// ResolveConvention decides which Convention applies to an input tensor.  An
// Auto request is answered from the tensor's declared scale and zero point.
// An explicit request is honoured unless the declared range clearly belongs
// to the other convention.  The range is taken over the bounds of the
// tensor's element type e.
func ResolveConvention(p Params, e Element, requested Convention) (Convention, error) {

	if err := p.Validate(); err != nil {
		return Auto, err
	}

	detected, ok := detect(p, e)

	switch requested {
	case Auto:
		if !ok {
			lo, hi := p.RealRangeOf(e)
			return Auto, fmt.Errorf("%w: declared %s real range [%g, %g] (%s)",
				ErrAmbiguousConvention, e, lo, hi, p.String())
		}
		return detected, nil

	case UnitInterval, RawByte:
		if ok && detected != requested {
			return Auto, fmt.Errorf("%w: requested %s but tensor range suggests %s (%s)",
				ErrConventionConflict, requested, detected, p.String())
		}
		return requested, nil

	default:
		return Auto, fmt.Errorf("unknown quantization convention %d", requested)
	}
}
