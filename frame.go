package vespadet

import (
	"fmt"
	"time"
)

// FrameFormat is the pixel encoding of a RawFrame
type FrameFormat int

const (
	// FrameCompressed holds an encoded image such as a JPEG
	FrameCompressed FrameFormat = iota
	// FrameRGB565 holds packed 16 bit 5/6/5 pixels
	FrameRGB565
	// FrameRGB888 holds 3 bytes per pixel in R, G, B order
	FrameRGB888
)

// String returns a readable description of the FrameFormat
func (f FrameFormat) String() string {
	switch f {
	case FrameCompressed:
		return "compressed"
	case FrameRGB565:
		return "rgb565"
	case FrameRGB888:
		return "rgb888"
	default:
		return "unknown"
	}
}

// RawFrame is an acquired image as delivered by an image source.  It is
// owned by the caller, the normalizer reads it but does not retain it.
type RawFrame struct {
	Format FrameFormat
	// Data holds the encoded bytes or packed pixels
	Data []byte
	// Width and Height are the pixel dimensions, for compressed frames they
	// may be zero until decoded
	Width  int
	Height int
	// Source identifies where the frame came from such as a file path or
	// device name
	Source string
	// Captured is the time the frame was acquired
	Captured time.Time
}

// Validate checks the buffer size is consistent with the frame format and
// dimensions
func (f *RawFrame) Validate() error {

	if len(f.Data) == 0 {
		return fmt.Errorf("%w: frame %s has no data", ErrDecodeFailure, f.Source)
	}

	bpp := 0

	switch f.Format {
	case FrameCompressed:
		return nil
	case FrameRGB565:
		bpp = 2
	case FrameRGB888:
		bpp = 3
	default:
		return fmt.Errorf("%w: frame %s has unknown format %d", ErrDecodeFailure,
			f.Source, f.Format)
	}

	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: frame %s has invalid dimensions %dx%d",
			ErrDecodeFailure, f.Source, f.Width, f.Height)
	}

	if len(f.Data) < f.Width*f.Height*bpp {
		return fmt.Errorf("%w: %s frame %s of %dx%d needs %d bytes, got %d",
			ErrDecodeFailure, f.Format, f.Source, f.Width, f.Height,
			f.Width*f.Height*bpp, len(f.Data))
	}

	return nil
}
