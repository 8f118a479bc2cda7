package quantize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {

	tests := []Params{
		{Scale: 1.0 / 255.0, ZeroPoint: -128},
		{Scale: 0.003921569, ZeroPoint: -128},
		{Scale: 0.15, ZeroPoint: 12},
		{Scale: 1.0, ZeroPoint: 0},
		{Scale: 0.0725, ZeroPoint: -3},
		{Scale: 1e-4, ZeroPoint: 127},
	}

	for _, p := range tests {
		t.Run(p.String(), func(t *testing.T) {
			for q := int32(MinInt8); q <= MaxInt8; q++ {
				got := p.Quantize(p.Dequantize(q))
				require.Equal(t, int8(q), got, "round trip of %d", q)
			}
		})
	}
}

func TestQuantizeClamps(t *testing.T) {

	p := Params{Scale: 0.1, ZeroPoint: 0}

	assert.Equal(t, int8(127), p.Quantize(1000))
	assert.Equal(t, int8(-128), p.Quantize(-1000))
	assert.Equal(t, int8(127), p.Quantize(float32(math.Inf(1))))
	assert.Equal(t, int8(0), p.Quantize(float32(math.NaN())))
	assert.Equal(t, uint8(255), p.QuantizeUint8(1000))
	assert.Equal(t, uint8(0), p.QuantizeUint8(-3))
	assert.Equal(t, int8(10), p.Quantize(1.0))
}

func TestDequantizeExact(t *testing.T) {

	p := Params{Scale: 0.5, ZeroPoint: -8}

	assert.Equal(t, float32(0), p.Dequantize(-8))
	assert.Equal(t, float32(4), p.Dequantize(0))
	assert.Equal(t, float32(-60), p.Dequantize(-128))
}

func TestUnitIntervalQuantizer(t *testing.T) {

	// typical calibration of a [0,1] input
	p := Params{Scale: 1.0 / 255.0, ZeroPoint: -128}

	q, err := NewInputQuantizer(p, UnitInterval)
	require.NoError(t, err)

	assert.Equal(t, int8(-128), q.Quantize(0))
	assert.Equal(t, int8(127), q.Quantize(255))
	assert.Equal(t, int8(0), q.Quantize(128))

	for v := 0; v < 256; v++ {
		want := int8(math.Round(float64(v)/255.0/float64(p.Scale)) - 128)
		assert.Equal(t, want, q.Quantize(uint8(v)))
	}

	dst := make([]int8, 3)
	require.NoError(t, q.QuantizeInto(dst, []byte{0, 128, 255}))
	assert.Equal(t, []int8{-128, 0, 127}, dst)

	assert.Error(t, q.QuantizeInto(dst, []byte{0}))
}

func TestRawByteQuantizer(t *testing.T) {

	p := Params{Scale: 1.0, ZeroPoint: -128}

	q, err := NewInputQuantizer(p, RawByte)
	require.NoError(t, err)

	assert.Equal(t, int8(-128), q.Quantize(0))
	assert.Equal(t, int8(127), q.Quantize(255))

	dst := make([]uint8, 2)
	require.NoError(t, q.QuantizeUint8Into(dst, []byte{3, 200}))
	assert.Equal(t, []uint8{0, 72}, dst)

	_, err = NewInputQuantizer(p, Auto)
	assert.Error(t, err)

	_, err = NewInputQuantizer(Params{Scale: 0}, RawByte)
	assert.Error(t, err)
}

func TestResolveConvention(t *testing.T) {

	unit := Params{Scale: 1.0 / 255.0, ZeroPoint: -128}
	raw := Params{Scale: 1.0, ZeroPoint: -128}
	odd := Params{Scale: 0.05, ZeroPoint: 0}
	unitU8 := Params{Scale: 1.0 / 255.0, ZeroPoint: 0}
	rawU8 := Params{Scale: 1.0, ZeroPoint: 0}

	tests := []struct {
		name      string
		params    Params
		elem      Element
		requested Convention
		want      Convention
		err       error
	}{
		{"auto unit", unit, Int8, Auto, UnitInterval, nil},
		{"auto raw", raw, Int8, Auto, RawByte, nil},
		{"auto ambiguous", odd, Int8, Auto, Auto, ErrAmbiguousConvention},
		{"explicit agrees", unit, Int8, UnitInterval, UnitInterval, nil},
		{"explicit conflict", unit, Int8, RawByte, Auto, ErrConventionConflict},
		{"explicit overrides ambiguous", odd, Int8, RawByte, RawByte, nil},
		{"auto uint8 unit", unitU8, Uint8, Auto, UnitInterval, nil},
		{"auto uint8 raw", rawU8, Uint8, Auto, RawByte, nil},
		{"explicit uint8 conflict", unitU8, Uint8, RawByte, Auto, ErrConventionConflict},
		{"uint8 unit read as int8", unitU8, Int8, Auto, Auto, ErrAmbiguousConvention},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveConvention(tc.params, tc.elem, tc.requested)

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ResolveConvention(Params{Scale: -1}, Int8, Auto)
	assert.Error(t, err)

	lo, hi := unitU8.RealRangeOf(Uint8)
	assert.Equal(t, float32(0), lo)
	assert.InDelta(t, 1.0, hi, 1e-6)
}

func TestParseConvention(t *testing.T) {

	for in, want := range map[string]Convention{
		"":     Auto,
		"auto": Auto,
		"Unit": UnitInterval,
		"raw":  RawByte,
	} {
		got, err := ParseConvention(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotEqual(t, "unknown", got.String())
	}

	_, err := ParseConvention("float")
	assert.Error(t, err)
}

func TestDequantizeTable(t *testing.T) {

	p := Params{Scale: 0.25, ZeroPoint: 4}
	lut := DequantizeTable(p)

	for q := int32(MinInt8); q <= MaxInt8; q++ {
		assert.Equal(t, p.Dequantize(q), lut[q+128])
	}
}
