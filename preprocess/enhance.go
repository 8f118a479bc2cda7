package preprocess

// Enhancement is an optional in place adjustment applied to the canvas
// after resizing
type Enhancement int

const (
	// EnhanceNone leaves the canvas untouched
	EnhanceNone Enhancement = 0
	// EnhanceContrast stretches each channel away from mid grey by 10%
	EnhanceContrast Enhancement = 1
	// EnhanceGrayscale replaces each pixel with its BT.601 luma in all
	// channels
	EnhanceGrayscale Enhancement = 2
)

// Apply runs the enabled enhancements over an RGB888 buffer.  Grayscale is
// applied before contrast.
func (e Enhancement) Apply(pix []byte) {

	if e&EnhanceGrayscale != 0 {
		Grayscale(pix)
	}

	if e&EnhanceContrast != 0 {
		Contrast(pix)
	}
}

// Contrast applies (v-128)*11/10+128 clamped to every byte
func Contrast(pix []byte) {
	for i, v := range pix {
		c := (int(v)-128)*11/10 + 128
		pix[i] = uint8(clampInt(c, 0, 255))
	}
}

// Grayscale converts RGB888 pixels in place using (77R + 150G + 29B) >> 8
func Grayscale(pix []byte) {
	for i := 0; i+2 < len(pix); i += 3 {
		y := (77*int(pix[i]) + 150*int(pix[i+1]) + 29*int(pix[i+2])) >> 8
		pix[i], pix[i+1], pix[i+2] = uint8(y), uint8(y), uint8(y)
	}
}
