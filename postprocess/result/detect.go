package result

import (
	"fmt"
	"image"
	"math"
)

// DetectionResult is implemented by post processing results holding object
// detections
type DetectionResult interface {
	GetDetectResults() []DetectResult
}

// Box is the bounding box of a detected object in input canvas pixels.  X
// and Y are the top left corner.
type Box struct {
	X float32
	Y float32
	W float32
	H float32
}

// Rect returns the box rounded to integer pixels and clipped to bounds
func (b Box) Rect(bounds image.Rectangle) image.Rectangle {

	r := image.Rect(
		int(math.Round(float64(b.X))),
		int(math.Round(float64(b.Y))),
		int(math.Round(float64(b.X+b.W))),
		int(math.Round(float64(b.Y+b.H))),
	)

	return r.Intersect(bounds)
}

// String returns the box formatted for logging
func (b Box) String() string {
	return fmt.Sprintf("x=%.1f y=%.1f w=%.1f h=%.1f", b.X, b.Y, b.W, b.H)
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Box are the bounding box dimensions of the object location
	Box Box
	// Probability is the confidence score of the object detected
	Probability float32
	// Cell is the index of the grid cell the detection was decoded from
	Cell int
	// ID is a unique ID assigned to the detection result
	ID int64
}
