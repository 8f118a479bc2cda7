// Package render draws detection results onto images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess/result"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// DetectionBoxes renders the bounding boxes around the objects detected and
// a label with class name and score above each one
func DetectionBoxes(img *image.RGBA, detectResults []result.DetectResult,
	classNames []string, ft Font, lineThickness int) {

	bounds := img.Bounds()

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(detectResults))

	for _, detResult := range detectResults {

		useClr := ClassColor(detResult.Class)

		rect := detResult.Box.Rect(bounds)

		if rect.Empty() {
			continue
		}

		Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", vespadet.Label(classNames, detResult.Class),
			detResult.Probability)

		textW := font.MeasureString(ft.Face, text).Ceil()
		metrics := ft.Face.Metrics()
		textH := metrics.Ascent.Ceil() + metrics.Descent.Ceil()

		// Calculate the alignment of text label
		var left int

		switch ft.Alignment {
		case Center:
			left = (rect.Min.X+rect.Max.X)/2 - textW/2 - ft.LeftPad
		case Right:
			left = rect.Max.X - textW - ft.LeftPad - ft.RightPad
		case Left:
			fallthrough
		default:
			left = rect.Min.X
		}

		top := rect.Min.Y - textH - ft.TopPad - ft.BottomPad

		// labels that would leave the image are placed inside the box
		if top < bounds.Min.Y {
			top = rect.Min.Y
		}

		bRect := image.Rect(left, top, left+ft.LeftPad+textW+ft.RightPad,
			top+ft.TopPad+textH+ft.BottomPad)

		boxLabels = append(boxLabels, boxLabel{
			rect: bRect,
			clr:  useClr,
			text: text,
			textPos: fixed.P(left+ft.LeftPad,
				top+ft.TopPad+metrics.Ascent.Ceil()),
		})
	}

	// draw all labels last so they are the top most layer and not
	// overlapped by other boxes
	for _, box := range boxLabels {
		draw.Draw(img, box.rect.Intersect(bounds), image.NewUniform(box.clr),
			image.Point{}, draw.Src)

		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(ft.Color),
			Face: ft.Face,
			Dot:  box.textPos,
		}
		d.DrawString(box.text)
	}
}

// Rectangle draws the outline of r with the given line thickness, the
// outline lies inside r
func Rectangle(img *image.RGBA, r image.Rectangle, clr color.RGBA, thickness int) {

	if thickness < 1 {
		thickness = 1
	}

	r = r.Intersect(img.Bounds())
	src := image.NewUniform(clr)

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}

	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// boxLabel is a struct used to record rendering details of a box label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos fixed.Point26_6
}
