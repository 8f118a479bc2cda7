// Package webcam provides a capture.Source reading frames from a video
// device or file through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/capture"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultQuality = 90
)

// Options configures a Webcam
type Options struct {
	// Device is a camera index such as "0" or a video file path
	Device string
	Width  int
	Height int
	// Quality is the JPEG quality of compressed frames in [1,100]
	Quality int
	// Raw delivers decoded RGB888 frames instead of JPEG
	Raw bool
}

// Webcam is a capture.Source over an OpenCV VideoCapture
type Webcam struct {
	mu      sync.Mutex
	opts    Options
	capture *gocv.VideoCapture
	mat     gocv.Mat
	rgb     gocv.Mat
	log     *zap.Logger
}

// Open opens the device described by opts
func Open(opts Options, log *zap.Logger) (*Webcam, error) {

	if log == nil {
		log = zap.NewNop()
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}

	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}

	var device interface{} = opts.Device

	if id, err := strconv.Atoi(opts.Device); err == nil {
		device = id
	}

	vc, err := gocv.OpenVideoCapture(device)

	if err != nil {
		return nil, fmt.Errorf("error opening video device %s: %w", opts.Device, err)
	}

	w := &Webcam{
		opts:    opts,
		capture: vc,
		mat:     gocv.NewMat(),
		rgb:     gocv.NewMat(),
		log:     log,
	}

	w.applyFrameSize()

	log.Info("video device opened", zap.String("device", opts.Device),
		zap.Int("width", opts.Width), zap.Int("height", opts.Height),
		zap.Int("quality", opts.Quality), zap.Bool("raw", opts.Raw))

	return w, nil
}

func (w *Webcam) applyFrameSize() {
	w.capture.Set(gocv.VideoCaptureFrameWidth, float64(w.opts.Width))
	w.capture.Set(gocv.VideoCaptureFrameHeight, float64(w.opts.Height))
}

// Capture reads one frame from the device
func (w *Webcam) Capture(ctx context.Context) (*vespadet.RawFrame, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil, capture.ErrExhausted
	}

	if ok := w.capture.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, capture.ErrNoFrame
	}

	frame := &vespadet.RawFrame{
		Width:    w.mat.Cols(),
		Height:   w.mat.Rows(),
		Source:   w.opts.Device,
		Captured: time.Now(),
	}

	if w.opts.Raw {
		gocv.CvtColor(w.mat, &w.rgb, gocv.ColorBGRToRGB)
		frame.Format = vespadet.FrameRGB888
		frame.Data = append([]byte(nil), w.rgb.ToBytes()...)
		return frame, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.mat,
		[]int{gocv.IMWriteJpegQuality, w.opts.Quality})

	if err != nil {
		return nil, fmt.Errorf("%w: jpeg encoding failed: %v", vespadet.ErrCaptureFailure, err)
	}

	defer buf.Close()

	frame.Format = vespadet.FrameCompressed
	frame.Data = append([]byte(nil), buf.GetBytes()...)

	return frame, nil
}

// Supports reports the FrameSize and Quality capabilities
func (w *Webcam) Supports(c capture.Capability) bool {
	return c == capture.FrameSize || c == capture.Quality
}

// SetFrameSize changes the capture resolution
func (w *Webcam) SetFrameSize(width, height int) error {

	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.opts.Width, w.opts.Height = width, height

	if w.capture != nil {
		w.applyFrameSize()
	}

	return nil
}

// SetQuality changes the JPEG quality of captured frames
func (w *Webcam) SetQuality(quality int) error {

	if quality < 1 || quality > 100 {
		return fmt.Errorf("jpeg quality %d outside [1,100]", quality)
	}

	w.mu.Lock()
	w.opts.Quality = quality
	w.mu.Unlock()

	return nil
}

// Close releases the device
func (w *Webcam) Close() error {

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}

	err := w.capture.Close()
	w.capture = nil
	w.mat.Close()
	w.rgb.Close()

	return err
}
