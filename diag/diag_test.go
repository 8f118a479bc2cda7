package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess"
	"github.com/swdee/go-vespadet/quantize"
)

func TestByteStats(t *testing.T) {

	s := ByteStats([]byte{0, 255, 0, 255})

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 255.0, s.Max)
	assert.InDelta(t, 127.5, s.Mean, 1e-9)
	assert.Greater(t, s.StdDev, 0.0)

	assert.Equal(t, Stats{}, ByteStats(nil))

	one := ByteStats([]byte{7})
	assert.Equal(t, 7.0, one.Mean)
	assert.Equal(t, 0.0, one.StdDev)
}

func TestInt8Stats(t *testing.T) {

	p := quantize.Params{Scale: 0.5, ZeroPoint: -128}
	raw, real := Int8Stats([]int8{-128, 127}, p)

	assert.Equal(t, -128.0, raw.Min)
	assert.Equal(t, 127.0, raw.Max)
	assert.InDelta(t, 0, real.Min, 1e-6)
	assert.InDelta(t, 127.5, real.Max, 1e-6)
}

func detectionTensor() (*vespadet.Tensor, postprocess.Layout) {

	// 4 cells, 1 regression bin per side, 3 classes
	l := postprocess.Layout{Cells: 4, Channels: 7, Classes: 3, RegMax: 1, Grid: 2, Stride: 8, Square: true}

	t := &vespadet.Tensor{
		Name:   "output",
		Type:   vespadet.TensorInt8,
		Shape:  []int{1, 4, 7},
		Quant:  quantize.Params{Scale: 0.1, ZeroPoint: 0},
		BufInt: make([]int8, 28),
	}

	for i := 0; i < 4; i++ {
		for c := 0; c < 3; c++ {
			t.BufInt[i*7+4+c] = int8(-50 + 10*i + c)
		}
	}

	t.BufInt[2*7+4+1] = 40

	return t, l
}

func TestBestCell(t *testing.T) {

	ten, l := detectionTensor()

	best, err := BestCell(ten, l)
	require.NoError(t, err)

	assert.Equal(t, 2, best.Cell)
	assert.Equal(t, 1, best.Class)
	assert.InDelta(t, 4.0, best.Logit, 1e-5)
	assert.InDelta(t, postprocess.Sigmoid(4), best.Score, 1e-6)
}

func TestTopK(t *testing.T) {

	ten, l := detectionTensor()

	top, err := TopK(ten, l, 2, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, 1, top[0].Class)
	assert.Equal(t, 2, top[1].Class)
	assert.GreaterOrEqual(t, top[0].Score, top[1].Score)

	all, err := TopK(ten, l, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = TopK(ten, l, 4, 1)
	assert.Error(t, err)

	_, err = BestCell(ten, postprocess.Layout{Cells: 10, Channels: 7, Classes: 3, RegMax: 1})
	assert.ErrorIs(t, err, vespadet.ErrShapeMismatch)
}

func TestSamples(t *testing.T) {

	ten, _ := detectionTensor()
	ten.BufInt[0] = 5

	s := Samples(ten, 2)
	assert.Equal(t, "5=0.5000 0=0.0000", s)

	f := &vespadet.Tensor{Type: vespadet.TensorFloat32, Shape: []int{2}, BufFloat: []float32{1.5, -2}}
	assert.Equal(t, "1.5000 -2.0000", Samples(f, 10))

	assert.Equal(t, 28, len(strings.Fields(Samples(ten, 100))))
}
