package capture

import (
	"context"
	"sync"

	vespadet "github.com/swdee/go-vespadet"
)

// SliceSource delivers a fixed list of frames in order.  A nil entry
// simulates a capture miss and yields ErrNoFrame.
type SliceSource struct {
	mu     sync.Mutex
	frames []*vespadet.RawFrame
	next   int
	closed bool
}

// NewSliceSource returns a SliceSource over frames
func NewSliceSource(frames ...*vespadet.RawFrame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Capture returns the next frame or ErrExhausted after the last one
func (s *SliceSource) Capture(ctx context.Context) (*vespadet.RawFrame, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.next >= len(s.frames) {
		return nil, ErrExhausted
	}

	f := s.frames[s.next]
	s.next++

	if f == nil {
		return nil, ErrNoFrame
	}

	return f, nil
}

// Supports reports Reset as the only capability
func (s *SliceSource) Supports(c Capability) bool {
	return c == Reset
}

// Reset rewinds the source to its first frame
func (s *SliceSource) Reset() error {
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	return nil
}

// Close stops the source, later captures return ErrExhausted
func (s *SliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
