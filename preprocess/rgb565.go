package preprocess

import (
	"encoding/binary"
	"fmt"
)

// RGB565Pixel expands a packed 5/6/5 pixel to 8 bits per channel by shifting
// each channel into the high bits and replicating its top bits into the low
// bits
func RGB565Pixel(p uint16) (r, g, b uint8) {

	r5 := uint8(p >> 11 & 0x1f)
	g6 := uint8(p >> 5 & 0x3f)
	b5 := uint8(p & 0x1f)

	r = r5<<3 | r5>>2
	g = g6<<2 | g6>>4
	b = b5<<3 | b5>>2

	return r, g, b
}

// RGB565ToRGB888 converts width*height packed pixels in src stored with the
// given byte order into R, G, B bytes in dst
func RGB565ToRGB888(src, dst []byte, width, height int, order binary.ByteOrder) error {

	n := width * height

	if len(src) < n*2 {
		return fmt.Errorf("rgb565 buffer of %d bytes too small for %dx%d image",
			len(src), width, height)
	}

	if len(dst) < n*3 {
		return fmt.Errorf("rgb888 buffer of %d bytes too small for %dx%d image",
			len(dst), width, height)
	}

	if order == nil {
		order = binary.LittleEndian
	}

	for i := 0; i < n; i++ {
		r, g, b := RGB565Pixel(order.Uint16(src[i*2:]))
		dst[i*3] = r
		dst[i*3+1] = g
		dst[i*3+2] = b
	}

	return nil
}
