package render

import (
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text labels on an image
type Font struct {
	Face  font.Face
	Color color.RGBA
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      basicfont.Face7x13,
		Color:     White,
		LeftPad:   2,
		RightPad:  2,
		TopPad:    1,
		BottomPad: 2,
		Alignment: Left,
	}
}
