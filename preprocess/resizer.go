package preprocess

import (
	"fmt"
	"math"
	"strings"
)

// Policy selects how a source image is fitted onto the square canvas
type Policy int

const (
	// Letterbox scales preserving aspect ratio and pads the short side
	Letterbox Policy = iota
	// Distort stretches each axis independently to fill the canvas
	Distort
	// Crop scales the short side to the canvas and centre crops the long
	// side
	Crop
)

// String returns a readable description of the Policy
func (p Policy) String() string {
	switch p {
	case Letterbox:
		return "letterbox"
	case Distort:
		return "distort"
	case Crop:
		return "crop"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "letterbox", "":
		return Letterbox, nil
	case "distort", "stretch":
		return Distort, nil
	case "crop":
		return Crop, nil
	default:
		return Letterbox, fmt.Errorf("unknown resize policy %q", s)
	}
}

// Resizer defines the struct used for nearest neighbour resizing of RGB888
// images onto a square canvas.  Source indices for every destination row and
// column are precalculated so the per frame work is a copy.
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// size is the side length of the square destination canvas
	size   int
	policy Policy
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float64
	// resize dimensions of the scaled image region on the canvas
	resizeW int
	resizeH int
	// crop offsets into the scaled image
	xCrop int
	yCrop int
	// xMap and yMap hold the source column and row of each destination
	// column and row of the scaled region
	xMap []int
	yMap []int
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, size int, policy Policy) (*Resizer, error) {

	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", srcWidth, srcHeight)
	}

	if size <= 0 {
		return nil, fmt.Errorf("invalid canvas size %d", size)
	}

	r := &Resizer{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		size:      size,
		policy:    policy,
	}

	// precalculate scaling dimensions
	switch policy {
	case Letterbox:
		r.preCalcLetterbox()
	case Distort:
		r.preCalcDistort()
	case Crop:
		r.preCalcCrop()
	default:
		return nil, fmt.Errorf("unknown resize policy %d", policy)
	}

	return r, nil
}

// preCalcLetterbox calculates the scale, padding and sampling maps of an
// aspect preserving resize
func (r *Resizer) preCalcLetterbox() {

	S := float64(r.size)
	r.scale = math.Min(S/float64(r.srcWidth), S/float64(r.srcHeight))

	r.resizeW = clampInt(int(math.Round(float64(r.srcWidth)*r.scale)), 1, r.size)
	r.resizeH = clampInt(int(math.Round(float64(r.srcHeight)*r.scale)), 1, r.size)

	r.xPad = (r.size - r.resizeW) / 2 // padding width / 2
	r.yPad = (r.size - r.resizeH) / 2 // padding height / 2

	r.xMap = scaledMap(r.resizeW, 0, r.scale, r.srcWidth)
	r.yMap = scaledMap(r.resizeH, 0, r.scale, r.srcHeight)
}

// preCalcDistort calculates the sampling maps of a fill resize
func (r *Resizer) preCalcDistort() {

	r.resizeW = r.size
	r.resizeH = r.size
	r.scale = math.Min(float64(r.size)/float64(r.srcWidth), float64(r.size)/float64(r.srcHeight))

	r.xMap = make([]int, r.size)
	r.yMap = make([]int, r.size)

	for d := 0; d < r.size; d++ {
		r.xMap[d] = clampInt(d*r.srcWidth/r.size, 0, r.srcWidth-1)
		r.yMap[d] = clampInt(d*r.srcHeight/r.size, 0, r.srcHeight-1)
	}
}

// preCalcCrop calculates the scale, crop offsets and sampling maps of a
// short side resize followed by a centre crop
func (r *Resizer) preCalcCrop() {

	S := float64(r.size)
	r.scale = math.Max(S/float64(r.srcWidth), S/float64(r.srcHeight))

	scaledW := int(float64(r.srcWidth)*r.scale + 0.5)
	scaledH := int(float64(r.srcHeight)*r.scale + 0.5)

	r.xCrop = maxInt(scaledW-r.size, 0) / 2
	r.yCrop = maxInt(scaledH-r.size, 0) / 2

	r.resizeW = r.size
	r.resizeH = r.size

	r.xMap = scaledMap(r.size, r.xCrop, r.scale, r.srcWidth)
	r.yMap = scaledMap(r.size, r.yCrop, r.scale, r.srcHeight)
}

// scaledMap returns the source index floor((d+offset)/scale) clamped to the
// source dimension for n destination indices
func scaledMap(n, offset int, scale float64, srcDim int) []int {

	m := make([]int, n)

	for d := range m {
		m[d] = clampInt(int(math.Floor(float64(d+offset)/scale)), 0, srcDim-1)
	}

	return m
}

// Resize samples the RGB888 src image onto the RGB888 dst canvas.  Canvas
// pixels outside the scaled region are set to pad.
func (r *Resizer) Resize(src, dst []byte, pad byte) error {

	if len(src) < r.srcWidth*r.srcHeight*3 {
		return fmt.Errorf("source buffer of %d bytes too small for %dx%d RGB image",
			len(src), r.srcWidth, r.srcHeight)
	}

	if len(dst) != r.size*r.size*3 {
		return fmt.Errorf("canvas buffer of %d bytes does not match %dx%d RGB canvas",
			len(dst), r.size, r.size)
	}

	if r.resizeW != r.size || r.resizeH != r.size {
		for i := range dst {
			dst[i] = pad
		}
	}

	srcStride := r.srcWidth * 3
	dstStride := r.size * 3

	for y, sy := range r.yMap {
		srcRow := src[sy*srcStride : (sy+1)*srcStride]
		dstRow := dst[(y+r.yPad)*dstStride:]
		off := r.xPad * 3

		for _, sx := range r.xMap {
			copy(dstRow[off:off+3], srcRow[sx*3:sx*3+3])
			off += 3
		}
	}

	return nil
}

// ToSource maps a box in canvas pixels back into source image pixels
func (r *Resizer) ToSource(x, y, w, h float32) (float32, float32, float32, float32) {

	switch r.policy {
	case Distort:
		sx := float32(r.srcWidth) / float32(r.size)
		sy := float32(r.srcHeight) / float32(r.size)
		return x * sx, y * sy, w * sx, h * sy

	case Crop:
		s := float32(r.scale)
		return (x + float32(r.xCrop)) / s, (y + float32(r.yCrop)) / s, w / s, h / s

	default:
		s := float32(r.scale)
		return (x - float32(r.xPad)) / s, (y - float32(r.yPad)) / s, w / s, h / s
	}
}

// ScaleFactor returns the scale factor used in the resize
func (r *Resizer) ScaleFactor() float32 {
	return float32(r.scale)
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// XCrop returns the x offset cropped from the scaled image
func (r *Resizer) XCrop() int {
	return r.xCrop
}

// YCrop returns the y offset cropped from the scaled image
func (r *Resizer) YCrop() int {
	return r.yCrop
}

// ResizeWidth returns the width of the scaled image region on the canvas
func (r *Resizer) ResizeWidth() int {
	return r.resizeW
}

// ResizeHeight returns the height of the scaled image region on the canvas
func (r *Resizer) ResizeHeight() int {
	return r.resizeH
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}

// Size returns the side length of the canvas
func (r *Resizer) Size() int {
	return r.size
}

// Policy returns the resize policy
func (r *Resizer) Policy() Policy {
	return r.policy
}

func clampInt(v, lo, hi int) int {

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
