package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"

	"github.com/lmittmann/ppm"
	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess/result"
)

// ArtifactKind identifies what an artifact holds
type ArtifactKind int

const (
	// ArtifactFrame is the compressed frame as captured
	ArtifactFrame ArtifactKind = iota
	// ArtifactCanvas is the normalized model input image
	ArtifactCanvas
	// ArtifactDetections is the JSON detection report
	ArtifactDetections
	// ArtifactOverlay is the normalized image with boxes drawn
	ArtifactOverlay
)

// ArtifactName returns the identifier of an artifact of frame seq, policy
// names the normalization of canvas artifacts
func ArtifactName(kind ArtifactKind, seq int, policy string) string {
	switch kind {
	case ArtifactFrame:
		return fmt.Sprintf("frame_%06d.jpg", seq)
	case ArtifactCanvas:
		return fmt.Sprintf("frame_%06d_%s.ppm", seq, policy)
	case ArtifactDetections:
		return fmt.Sprintf("frame_%06d_detections.json", seq)
	case ArtifactOverlay:
		return fmt.Sprintf("frame_%06d_overlay.png", seq)
	default:
		return fmt.Sprintf("frame_%06d.bin", seq)
	}
}

// EncodePPM encodes img as a binary P6 PPM
func EncodePPM(img image.Image) ([]byte, error) {

	var buf bytes.Buffer

	if err := ppm.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("ppm encoding failed: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {

	var buf bytes.Buffer

	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encoding failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Detection is the JSON form of a detection
type Detection struct {
	ID    int64   `json:"id"`
	Class int     `json:"class"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	W     float32 `json:"w"`
	H     float32 `json:"h"`
	Cell  int     `json:"cell"`
}

// Report is the JSON detection report of one frame
type Report struct {
	FrameMeta
	Detections []Detection `json:"detections"`
}

// NewReport builds the report of the detections of one frame
func NewReport(meta FrameMeta, dets []result.DetectResult, labels []string) Report {

	r := Report{
		FrameMeta:  meta,
		Detections: make([]Detection, 0, len(dets)),
	}

	for _, d := range dets {
		r.Detections = append(r.Detections, Detection{
			ID:    d.ID,
			Class: d.Class,
			Label: vespadet.Label(labels, d.Class),
			Score: d.Probability,
			X:     d.Box.X,
			Y:     d.Box.Y,
			W:     d.Box.W,
			H:     d.Box.H,
			Cell:  d.Cell,
		})
	}

	return r
}

// EncodeDetections encodes the detections of one frame as indented JSON
func EncodeDetections(meta FrameMeta, dets []result.DetectResult, labels []string) ([]byte, error) {
	return json.MarshalIndent(NewReport(meta, dets, labels), "", "  ")
}
