// Package diag provides numeric summaries of image buffers and tensors used
// by debug logging to check the quantization and decode stages.
package diag

import (
	"fmt"
	"strings"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/quantize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises a series of values
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// String returns the Stats formatted for logging
func (s Stats) String() string {
	return fmt.Sprintf("n=%d min=%.4f max=%.4f mean=%.4f std=%.4f",
		s.Count, s.Min, s.Max, s.Mean, s.StdDev)
}

// Summarise computes the Stats of vals
func Summarise(vals []float64) Stats {

	if len(vals) == 0 {
		return Stats{}
	}

	s := Stats{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
	}

	if len(vals) == 1 {
		s.Mean = vals[0]
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)

	return s
}

// ByteStats returns the Stats of an RGB byte buffer
func ByteStats(buf []byte) Stats {

	vals := make([]float64, len(buf))

	for i, v := range buf {
		vals[i] = float64(v)
	}

	return Summarise(vals)
}

// Int8Stats returns the Stats of the raw int8 values and of their
// dequantized real values
func Int8Stats(buf []int8, p quantize.Params) (raw Stats, real Stats) {

	rawVals := make([]float64, len(buf))
	realVals := make([]float64, len(buf))

	for i, q := range buf {
		rawVals[i] = float64(q)
		realVals[i] = float64(p.Dequantize(int32(q)))
	}

	return Summarise(rawVals), Summarise(realVals)
}

// TensorStats returns the Stats of the dequantized values of a tensor
func TensorStats(t *vespadet.Tensor) Stats {

	n := t.Len()
	vals := make([]float64, n)

	for i := 0; i < n; i++ {
		vals[i] = float64(t.Value(i))
	}

	return Summarise(vals)
}

// Samples formats the first n elements of a tensor as raw=dequantized pairs
func Samples(t *vespadet.Tensor, n int) string {

	if n > t.Len() {
		n = t.Len()
	}

	var sb strings.Builder

	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}

		if t.Quantized() {
			fmt.Fprintf(&sb, "%g=%.4f", t.Raw(i), t.Value(i))
		} else {
			fmt.Fprintf(&sb, "%.4f", t.Value(i))
		}
	}

	return sb.String()
}
