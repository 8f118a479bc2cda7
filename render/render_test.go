package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swdee/go-vespadet/postprocess/result"
)

func TestRectangle(t *testing.T) {

	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{R: 255, A: 255}

	Rectangle(img, image.Rect(5, 5, 15, 15), red, 1)

	assert.Equal(t, red, img.RGBAAt(5, 5))
	assert.Equal(t, red, img.RGBAAt(14, 10))
	assert.Equal(t, red, img.RGBAAt(10, 14))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(10, 10), "interior untouched")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(15, 15), "outline stays inside")

	// clipped to image
	Rectangle(img, image.Rect(-5, -5, 30, 30), red, 2)
	assert.Equal(t, red, img.RGBAAt(0, 0))
	assert.Equal(t, red, img.RGBAAt(19, 19))
}

func TestDetectionBoxes(t *testing.T) {

	img := image.NewRGBA(image.Rect(0, 0, 192, 192))

	dets := []result.DetectResult{
		{Class: 0, Probability: 0.91, Box: result.Box{X: 40, Y: 60, W: 50, H: 40}},
		{Class: 3, Probability: 0.5, Box: result.Box{X: 0, Y: 0, W: 30, H: 30}},
		{Class: 1, Probability: 0.5, Box: result.Box{X: 500, Y: 500, W: 10, H: 10}},
	}

	DetectionBoxes(img, dets, []string{"wasp"}, DefaultFont(), 1)

	// bottom edge of the first box is not covered by any label
	assert.Equal(t, ClassColor(0), img.RGBAAt(60, 99))
	assert.Equal(t, ClassColor(3), img.RGBAAt(29, 29))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(150, 150))
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, classColors[0], ClassColor(0))
	assert.Equal(t, classColors[1], ClassColor(len(classColors)+1))
	assert.Equal(t, classColors[2], ClassColor(-2))
	assert.Equal(t, White, DefaultFont().Color)
}
