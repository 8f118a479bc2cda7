// Package sink persists the artifacts and detections produced by the
// pipeline.
package sink

import (
	"time"

	"github.com/swdee/go-vespadet/postprocess/result"
)

// Sink stores named artifacts such as captured frames and overlays
type Sink interface {
	WriteArtifact(id string, data []byte) error
	Close() error
}

// FrameMeta describes the frame a set of detections was decoded from
type FrameMeta struct {
	RunID    string    `json:"run_id"`
	Seq      int       `json:"seq"`
	Source   string    `json:"source,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Policy   string    `json:"policy"`
	Captured time.Time `json:"captured"`
}

// DetectionRecorder is implemented by sinks that store detections as
// structured records rather than artifacts
type DetectionRecorder interface {
	RecordDetections(meta FrameMeta, dets []result.DetectResult, labels []string) error
}

// RunIdentifier is implemented by sinks that assign the run identifier
// their artifacts are stored under.  A Pipeline writing to such a sink
// adopts the identifier so artifacts and detections share one run.
type RunIdentifier interface {
	RunID() string
}

// Discard is a Sink that drops everything
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteArtifact(string, []byte) error { return nil }

func (discard) Close() error { return nil }
