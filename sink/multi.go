package sink

import (
	"github.com/swdee/go-vespadet/postprocess/result"
	"go.uber.org/multierr"
)

// MultiSink fans every artifact out to a set of sinks
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a MultiSink over sinks, nil entries are ignored
func NewMultiSink(sinks ...Sink) *MultiSink {

	m := &MultiSink{}

	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}

	return m
}

// WriteArtifact writes to every sink and returns the combined errors
func (m *MultiSink) WriteArtifact(id string, data []byte) error {

	var err error

	for _, s := range m.sinks {
		err = multierr.Append(err, s.WriteArtifact(id, data))
	}

	return err
}

// RecordDetections forwards to every sink implementing DetectionRecorder
func (m *MultiSink) RecordDetections(meta FrameMeta, dets []result.DetectResult, labels []string) error {

	var err error

	for _, s := range m.sinks {
		if rec, ok := s.(DetectionRecorder); ok {
			err = multierr.Append(err, rec.RecordDetections(meta, dets, labels))
		}
	}

	return err
}

// RunID returns the run identifier of the first sink assigning one, or an
// empty string when none do
func (m *MultiSink) RunID() string {

	for _, s := range m.sinks {
		if ri, ok := s.(RunIdentifier); ok && ri.RunID() != "" {
			return ri.RunID()
		}
	}

	return ""
}

// Close closes every sink
func (m *MultiSink) Close() error {

	var err error

	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}

	return err
}
