// Package preprocess converts raw frames into the fixed size RGB canvas fed
// to the quantizer.
package preprocess

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/memory"
	"go.uber.org/zap"
)

// names of the buffer pools used by the Normalizer
const (
	PoolCanvas  = "canvas"
	PoolScratch = "decode-scratch"
)

// NormalizedImage is an S x S RGB888 canvas plus the metadata needed to map
// canvas coordinates back to the source image.  It implements image.Image.
type NormalizedImage struct {
	// Pix holds Size*Size*3 bytes in R, G, B order
	Pix       []byte
	Size      int
	Policy    Policy
	Scale     float32
	PadX      int
	PadY      int
	CropX     int
	CropY     int
	SrcWidth  int
	SrcHeight int
	resizer   *Resizer
	release   func()
}

// ToSource maps a box in canvas pixels to source image pixels
func (n *NormalizedImage) ToSource(x, y, w, h float32) (float32, float32, float32, float32) {
	if n.resizer == nil {
		return x, y, w, h
	}
	return n.resizer.ToSource(x, y, w, h)
}

// Release returns the canvas to its pool.  The image must not be used
// afterwards.
func (n *NormalizedImage) Release() {
	if n.release != nil {
		n.release()
		n.release = nil
	}
	n.Pix = nil
}

// ColorModel implements image.Image
func (n *NormalizedImage) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (n *NormalizedImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, n.Size, n.Size)
}

// At implements image.Image
func (n *NormalizedImage) At(x, y int) color.Color {

	if x < 0 || y < 0 || x >= n.Size || y >= n.Size {
		return color.RGBA{}
	}

	i := (y*n.Size + x) * 3
	return color.RGBA{R: n.Pix[i], G: n.Pix[i+1], B: n.Pix[i+2], A: 0xff}
}

// RGBA returns a copy of the canvas as an *image.RGBA
func (n *NormalizedImage) RGBA() *image.RGBA {

	img := image.NewRGBA(n.Bounds())

	for i, j := 0, 0; i < len(n.Pix); i, j = i+3, j+4 {
		img.Pix[j] = n.Pix[i]
		img.Pix[j+1] = n.Pix[i+1]
		img.Pix[j+2] = n.Pix[i+2]
		img.Pix[j+3] = 0xff
	}

	return img
}

// Normalizer turns RawFrames into NormalizedImages
type Normalizer struct {
	size        int
	policy      Policy
	pad         byte
	decoder     Decoder
	order       binary.ByteOrder
	pool        *memory.Pool
	enhancement Enhancement
	log         *zap.Logger
	// resizer is cached for consecutive frames of the same dimensions
	resizer *Resizer
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithPadValue sets the byte letterbox padding is filled with, default black
func WithPadValue(v byte) Option {
	return func(n *Normalizer) {
		n.pad = v
	}
}

// WithDecoder sets the Decoder used for compressed frames
func WithDecoder(d Decoder) Option {
	return func(n *Normalizer) {
		n.decoder = d
	}
}

// WithByteOrder sets the byte order of RGB565 pixels, default little endian
func WithByteOrder(o binary.ByteOrder) Option {
	return func(n *Normalizer) {
		n.order = o
	}
}

// WithPool draws canvas and decode scratch buffers from the pool.  The pool
// must contain pools named PoolCanvas and PoolScratch.
func WithPool(p *memory.Pool) Option {
	return func(n *Normalizer) {
		n.pool = p
	}
}

// WithEnhancement applies the enhancement to every canvas
func WithEnhancement(e Enhancement) Option {
	return func(n *Normalizer) {
		n.enhancement = e
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) {
		n.log = l
	}
}

// NewNormalizer returns a Normalizer producing size x size canvases
func NewNormalizer(size int, policy Policy, opts ...Option) (*Normalizer, error) {

	if size <= 0 {
		return nil, fmt.Errorf("invalid canvas size %d", size)
	}

	if policy != Letterbox && policy != Distort && policy != Crop {
		return nil, fmt.Errorf("unknown resize policy %d", policy)
	}

	n := &Normalizer{
		size:    size,
		policy:  policy,
		decoder: ImagingDecoder{},
		order:   binary.LittleEndian,
		log:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.pool != nil && (!n.pool.Has(PoolCanvas) || !n.pool.Has(PoolScratch)) {
		return nil, fmt.Errorf("buffer pool must contain %q and %q pools",
			PoolCanvas, PoolScratch)
	}

	return n, nil
}

// Size returns the canvas side length
func (n *Normalizer) Size() int {
	return n.size
}

// Policy returns the resize policy
func (n *Normalizer) Policy() Policy {
	return n.policy
}

// WithPolicy returns a copy of the Normalizer using another resize policy,
// sharing the decoder and buffer pool
func (n *Normalizer) WithPolicy(p Policy) *Normalizer {
	c := *n
	c.policy = p
	c.resizer = nil
	return &c
}

// Normalize converts the frame into a canvas.  The frame is not retained.
// Errors from a malformed frame wrap ErrDecodeFailure and errors from an
// exhausted pool wrap ErrAllocationFailure.
func (n *Normalizer) Normalize(frame *vespadet.RawFrame) (*NormalizedImage, error) {

	if err := frame.Validate(); err != nil {
		return nil, err
	}

	src, width, height, done, err := n.sourcePixels(frame)

	if err != nil {
		return nil, err
	}

	// decode scratch is single use, release as soon as the canvas is filled
	defer done()

	r, err := n.resizerFor(width, height)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", vespadet.ErrDecodeFailure, err)
	}

	canvas, release, err := n.buffer(PoolCanvas, n.size*n.size*3)

	if err != nil {
		return nil, err
	}

	if err := r.Resize(src, canvas, n.pad); err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", vespadet.ErrDecodeFailure, err)
	}

	n.enhancement.Apply(canvas)

	return &NormalizedImage{
		Pix:       canvas,
		Size:      n.size,
		Policy:    n.policy,
		Scale:     r.ScaleFactor(),
		PadX:      r.XPad(),
		PadY:      r.YPad(),
		CropX:     r.XCrop(),
		CropY:     r.YCrop(),
		SrcWidth:  width,
		SrcHeight: height,
		resizer:   r,
		release:   release,
	}, nil
}

// sourcePixels returns the frame as RGB888 bytes and a func releasing any
// scratch buffer used
func (n *Normalizer) sourcePixels(frame *vespadet.RawFrame) ([]byte, int, int, func(), error) {

	noop := func() {}

	switch frame.Format {
	case vespadet.FrameRGB888:
		return frame.Data, frame.Width, frame.Height, noop, nil

	case vespadet.FrameRGB565:
		buf, release, err := n.buffer(PoolScratch, frame.Width*frame.Height*3)

		if err != nil {
			return nil, 0, 0, nil, err
		}

		err = RGB565ToRGB888(frame.Data, buf, frame.Width, frame.Height, n.order)

		if err != nil {
			release()
			return nil, 0, 0, nil, fmt.Errorf("%w: %w", vespadet.ErrDecodeFailure, err)
		}

		return buf, frame.Width, frame.Height, release, nil

	case vespadet.FrameCompressed:
		if n.decoder == nil {
			return nil, 0, 0, nil, fmt.Errorf("%w: no decoder for compressed frame",
				vespadet.ErrDecodeFailure)
		}

		img, err := n.decoder.Decode(frame.Data)

		if err != nil {
			return nil, 0, 0, nil, err
		}

		b := img.Bounds()

		if b.Empty() {
			return nil, 0, 0, nil, fmt.Errorf("%w: decoded image %s is empty",
				vespadet.ErrDecodeFailure, frame.Source)
		}

		buf, release, err := n.buffer(PoolScratch, b.Dx()*b.Dy()*3)

		if err != nil {
			return nil, 0, 0, nil, err
		}

		imageToRGB(img, buf)

		n.log.Debug("decoded frame",
			zap.String("source", frame.Source),
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()),
		)

		return buf, b.Dx(), b.Dy(), release, nil

	default:
		return nil, 0, 0, nil, fmt.Errorf("%w: unknown frame format %s",
			vespadet.ErrDecodeFailure, frame.Format)
	}
}

// buffer returns a zeroed buffer of size bytes and the func releasing it
func (n *Normalizer) buffer(name string, size int) ([]byte, func(), error) {

	if n.pool == nil {
		return make([]byte, size), func() {}, nil
	}

	buf, err := n.pool.Get(name, size)

	if err != nil {
		return nil, nil, err
	}

	return buf, func() { n.pool.Put(name, buf) }, nil
}

// resizerFor returns a Resizer for the source dimensions
func (n *Normalizer) resizerFor(width, height int) (*Resizer, error) {

	if n.resizer != nil && n.resizer.SrcWidth() == width && n.resizer.SrcHeight() == height {
		return n.resizer, nil
	}

	r, err := NewResizer(width, height, n.size, n.policy)

	if err != nil {
		return nil, err
	}

	n.resizer = r
	return r, nil
}
