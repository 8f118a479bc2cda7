package postprocess

import (
	"fmt"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess/result"
	"github.com/swdee/go-vespadet/quantize"
	"go.uber.org/zap"
)

// DFL defines the struct for post processing of a single output anchor free
// detection head whose box sides are regressed as distributions over
// RegMax bins (Distribution Focal Loss).  Overlapping boxes are not merged,
// detections are returned in cell scan order.  A DFL is not safe for
// concurrent use.
type DFL struct {
	// Params are the Model configuration parameters
	Params DFLParams
	// idGen provides the next number for each detection result ID
	idGen *result.IDGenerator
	log   *zap.Logger
	// scratch buffers reused across frames
	logits []float32
	probs  []float32
	// lookup tables of the last int8 output quantization seen
	lutParams  quantize.Params
	lutValid   bool
	deqLUT     [256]float32
	sigmoidLUT [256]float32
}

// DFLParams defines the struct containing the DFL parameters to use for post
// processing operations
type DFLParams struct {
	// InputSize is the side length in pixels of the square model input
	InputSize int
	// RegMax is the number of regression bins per box side
	RegMax int
	// ClassNum is the number of object classes the Model has been trained
	// with, 0 infers it from the output tensor
	ClassNum int
	// BoxThreshold is the minimum probability score required for a
	// detection to be kept
	BoxThreshold float32
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

// DFLDefaultParams returns an instance of DFLParams configured with default
// values for a 192x192 model featuring:
// - Regression Bins: 16
// - Box Threshold: 0.30
// - Maximum Object Number: 20
func DFLDefaultParams() DFLParams {
	return DFLParams{
		InputSize:       192,
		RegMax:          16,
		ClassNum:        0,
		BoxThreshold:    0.30,
		MaxObjectNumber: 20,
	}
}

// Validate checks the parameters are usable
func (p DFLParams) Validate() error {

	if p.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", p.InputSize)
	}

	if p.RegMax < 1 {
		return fmt.Errorf("regression bins must be at least 1, got %d", p.RegMax)
	}

	if p.ClassNum < 0 {
		return fmt.Errorf("class number can not be negative, got %d", p.ClassNum)
	}

	if p.BoxThreshold < 0 || p.BoxThreshold > 1 {
		return fmt.Errorf("box threshold must be within [0,1], got %v", p.BoxThreshold)
	}

	if p.MaxObjectNumber < 1 {
		return fmt.Errorf("maximum object number must be at least 1, got %d", p.MaxObjectNumber)
	}

	return nil
}

// NewDFL returns an instance of the DFL post processor
func NewDFL(p DFLParams, log *zap.Logger) (*DFL, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &DFL{
		Params: p,
		idGen:  result.NewIDGenerator(),
		log:    log,
		logits: make([]float32, 4*p.RegMax),
		probs:  make([]float32, p.RegMax),
	}, nil
}

// Layout describes how an output tensor is interpreted
type Layout struct {
	// Cells is the number of grid cells N
	Cells int
	// Channels is the number of values per cell C = 4*RegMax + Classes
	Channels int
	// Classes is the number of object classes K
	Classes int
	RegMax  int
	// Grid is the side length of the cell grid
	Grid int
	// Stride is the size of a grid cell in input pixels
	Stride float32
	// Square is false when Cells is not a perfect square
	Square bool
}

// RegChannels returns the number of regression channels preceding the
// class channels of each cell
func (l Layout) RegChannels() int {
	return 4 * l.RegMax
}

// String returns the Layout formatted for logging
func (l Layout) String() string {
	return fmt.Sprintf("N=%d C=%d CLS_CH=%d REG_CH=%d grid=%d stride=%.3f",
		l.Cells, l.Channels, l.Classes, l.RegChannels(), l.Grid, l.Stride)
}

// Layout checks the output tensor shape is [N, C] or [1, N, C] with
// C = 4*RegMax + K and returns how it is decoded.  Mismatches are returned
// as recoverable ShapeErrors.
func (d *DFL) Layout(t *vespadet.Tensor) (Layout, error) {

	regCh := 4 * d.Params.RegMax
	want := fmt.Sprintf("[1, N, %d+K]", regCh)

	var cells, channels int

	switch {
	case t.NDims() == 2:
		cells, channels = t.Dim(0), t.Dim(1)
	case t.NDims() == 3 && t.Dim(0) == 1:
		cells, channels = t.Dim(1), t.Dim(2)
	default:
		return Layout{}, vespadet.NewShapeError("output", t.Shape, want, false)
	}

	if cells <= 0 || channels <= regCh {
		return Layout{}, vespadet.NewShapeError("output", t.Shape, want, false)
	}

	classes := channels - regCh

	if d.Params.ClassNum > 0 && classes != d.Params.ClassNum {
		return Layout{}, vespadet.NewShapeError("output", t.Shape,
			fmt.Sprintf("[1, N, %d]", regCh+d.Params.ClassNum), false)
	}

	switch t.Type {
	case vespadet.TensorInt8, vespadet.TensorUint8, vespadet.TensorFloat32, vespadet.TensorFloat16:
	default:
		return Layout{}, fmt.Errorf("%w: output tensor type %s can not be decoded",
			vespadet.ErrShapeMismatch, t.Type)
	}

	if t.Len() < cells*channels {
		return Layout{}, vespadet.NewShapeError("output", t.Shape,
			fmt.Sprintf("buffer of %d elements", cells*channels), false)
	}

	grid, square := Grid(cells)

	return Layout{
		Cells:    cells,
		Channels: channels,
		Classes:  classes,
		RegMax:   d.Params.RegMax,
		Grid:     grid,
		Stride:   float32(d.Params.InputSize) / float32(grid),
		Square:   square,
	}, nil
}

// Result defines a struct used for object detection results
type Result struct {
	Layout        Layout
	DetectResults []result.DetectResult
	// Warnings holds non fatal conditions found whilst decoding such as
	// ErrGridAssumptionViolated
	Warnings []error
}

// GetDetectResults returns the object detection results containing bounding
// boxes
func (r Result) GetDetectResults() []result.DetectResult {
	return r.DetectResults
}

// DetectObjects decodes the output tensor into at most MaxObjectNumber
// detections whose score meets BoxThreshold
func (d *DFL) DetectObjects(t *vespadet.Tensor) (Result, error) {

	layout, err := d.Layout(t)

	if err != nil {
		return Result{}, err
	}

	res := Result{Layout: layout}

	if !layout.Square {
		warn := fmt.Errorf("%w: %d cells is not a perfect square, using grid %d",
			vespadet.ErrGridAssumptionViolated, layout.Cells, layout.Grid)
		res.Warnings = append(res.Warnings, warn)
		d.log.Warn("decode grid", zap.Error(warn))
	}

	value, score := d.accessors(t)
	regCh := layout.RegChannels()
	stride := layout.Stride
	var box [4]float32

	for i := 0; i < layout.Cells && len(res.DetectResults) < d.Params.MaxObjectNumber; i++ {

		base := i * layout.Channels

		bestClass := 0
		bestScore := score(base + regCh)

		for c := 1; c < layout.Classes; c++ {
			if p := score(base + regCh + c); p > bestScore {
				bestScore = p
				bestClass = c
			}
		}

		if bestScore < d.Params.BoxThreshold {
			continue
		}

		// distances are only decoded for cells that pass the threshold
		for k := 0; k < regCh; k++ {
			d.logits[k] = value(base + k)
		}

		computeDFL(d.logits, d.Params.RegMax, d.probs, &box)

		gx := i % layout.Grid
		gy := i / layout.Grid

		cx := (float32(gx) + 0.5) * stride
		cy := (float32(gy) + 0.5) * stride

		res.DetectResults = append(res.DetectResults, result.DetectResult{
			Class: bestClass,
			Box: result.Box{
				X: cx - box[0]*stride,
				Y: cy - box[1]*stride,
				W: (box[0] + box[2]) * stride,
				H: (box[1] + box[3]) * stride,
			},
			Probability: bestScore,
			Cell:        i,
			ID:          d.idGen.GetNext(),
		})
	}

	return res, nil
}

// accessors returns funcs reading element i of the tensor as a real value
// and as a sigmoid class score
func (d *DFL) accessors(t *vespadet.Tensor) (func(int) float32, func(int) float32) {

	switch t.Type {
	case vespadet.TensorInt8:
		d.tables(t.Quant)
		buf := t.BufInt
		return func(i int) float32 { return d.deqLUT[int(buf[i])+128] },
			func(i int) float32 { return d.sigmoidLUT[int(buf[i])+128] }

	case vespadet.TensorUint8:
		buf := t.BufUint
		q := t.Quant
		return func(i int) float32 { return q.Dequantize(int32(buf[i])) },
			func(i int) float32 { return Sigmoid(q.Dequantize(int32(buf[i]))) }

	default:
		buf := t.BufFloat
		return func(i int) float32 { return buf[i] },
			func(i int) float32 { return Sigmoid(buf[i]) }
	}
}

// tables precomputes dequantized and sigmoid values of every int8 element
func (d *DFL) tables(p quantize.Params) {

	if d.lutValid && d.lutParams == p {
		return
	}

	d.deqLUT = quantize.DequantizeTable(p)

	for i, v := range d.deqLUT {
		d.sigmoidLUT[i] = Sigmoid(v)
	}

	d.lutParams = p
	d.lutValid = true
}
