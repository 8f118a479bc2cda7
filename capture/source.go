// Package capture provides the image sources feeding the pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"

	vespadet "github.com/swdee/go-vespadet"
)

var (
	// ErrNoFrame is returned when a source had no frame available this
	// attempt, the caller should pause briefly and retry
	ErrNoFrame = fmt.Errorf("%w: no frame available", vespadet.ErrCaptureFailure)
	// ErrExhausted is returned by finite sources once every frame has been
	// delivered
	ErrExhausted = errors.New("source exhausted")
)

// Source acquires raw frames.  Capture must not block indefinitely, it
// returns ErrNoFrame when nothing could be acquired.
type Source interface {
	Capture(ctx context.Context) (*vespadet.RawFrame, error)
	Close() error
}
