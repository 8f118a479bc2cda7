package pipeline

import (
	"errors"
	"fmt"

	vespadet "github.com/swdee/go-vespadet"
	"go.uber.org/atomic"
)

// Stats counts loop outcomes.  It is safe to read while Run is active.
type Stats struct {
	Frames             atomic.Int64
	Detections         atomic.Int64
	CaptureMisses      atomic.Int64
	DecodeFailures     atomic.Int64
	AllocationFailures atomic.Int64
	InvokeFailures     atomic.Int64
	ShapeMismatches    atomic.Int64
	SinkFailures       atomic.Int64
	Warnings           atomic.Int64
}

// StatsSnapshot is a point in time copy of Stats
type StatsSnapshot struct {
	Frames             int64
	Detections         int64
	CaptureMisses      int64
	DecodeFailures     int64
	AllocationFailures int64
	InvokeFailures     int64
	ShapeMismatches    int64
	SinkFailures       int64
	Warnings           int64
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Frames:             s.Frames.Load(),
		Detections:         s.Detections.Load(),
		CaptureMisses:      s.CaptureMisses.Load(),
		DecodeFailures:     s.DecodeFailures.Load(),
		AllocationFailures: s.AllocationFailures.Load(),
		InvokeFailures:     s.InvokeFailures.Load(),
		ShapeMismatches:    s.ShapeMismatches.Load(),
		SinkFailures:       s.SinkFailures.Load(),
		Warnings:           s.Warnings.Load(),
	}
}

// Failures returns the number of frames discarded
func (s StatsSnapshot) Failures() int64 {
	return s.DecodeFailures + s.AllocationFailures + s.InvokeFailures + s.ShapeMismatches
}

// String returns the snapshot formatted for logging
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("frames=%d detections=%d misses=%d failures=%d sink_failures=%d warnings=%d",
		s.Frames, s.Detections, s.CaptureMisses, s.Failures(), s.SinkFailures, s.Warnings)
}

// countFailure increments the counter matching the kind of a frame error
func (s *Stats) countFailure(err error) {
	switch {
	case errors.Is(err, vespadet.ErrInvokeFailure):
		s.InvokeFailures.Inc()
	case errors.Is(err, vespadet.ErrShapeMismatch):
		s.ShapeMismatches.Inc()
	case errors.Is(err, vespadet.ErrAllocationFailure):
		s.AllocationFailures.Inc()
	default:
		s.DecodeFailures.Inc()
	}
}
