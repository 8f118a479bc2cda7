package pipeline

import (
	"fmt"
	"time"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess/result"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/render"
	"github.com/swdee/go-vespadet/sink"
	"go.uber.org/zap"
)

// FrameResult holds the outcome of one processed frame
type FrameResult struct {
	Meta sink.FrameMeta
	// Detections are in model input canvas pixels in cell scan order
	Detections []result.DetectResult
	// SourceBoxes are the Detections boxes mapped back to source image
	// pixels
	SourceBoxes []result.Box
	// Warnings are non fatal decode conditions
	Warnings   []error
	InvokeTime time.Duration
}

// ProcessFrame runs one frame through every stage.  Returned errors wrap
// ErrDecodeFailure, ErrAllocationFailure, ErrInvokeFailure or
// ErrShapeMismatch and leave the Pipeline usable for the next frame.
func (p *Pipeline) ProcessFrame(frame *vespadet.RawFrame) (*FrameResult, error) {

	seq := p.seq
	p.seq++
	p.stats.Frames.Inc()

	meta := sink.FrameMeta{
		RunID:    p.runID,
		Seq:      seq,
		Source:   frame.Source,
		Policy:   p.cfg.Policy.String(),
		Captured: frame.Captured,
	}

	if p.cfg.Save.Frames && frame.Format == vespadet.FrameCompressed {
		p.write(sink.ArtifactName(sink.ArtifactFrame, seq, ""), frame.Data)
	}

	img, err := p.norm.Normalize(frame)

	if err != nil {
		return nil, err
	}

	defer img.Release()

	meta.Width, meta.Height = img.SrcWidth, img.SrcHeight

	if p.cfg.Save.Canvas {
		p.writeCanvas(seq, img)
	}

	p.writeAudit(seq, frame)

	if p.cfg.Debug.InputStats {
		p.logInputStats(seq, img)
	}

	if err := p.quantizeInput(img.Pix); err != nil {
		return nil, err
	}

	start := time.Now()

	if err := p.rt.Invoke(); err != nil {
		return nil, err
	}

	res := &FrameResult{
		Meta:       meta,
		InvokeTime: time.Since(start),
	}

	p.log.Debug("inference complete", zap.Int("seq", seq),
		zap.Duration("invoke_time", res.InvokeTime))

	p.logOutput(seq)

	decoded, err := p.decoder.DetectObjects(p.output)

	if err != nil {
		return nil, err
	}

	res.Detections = decoded.DetectResults
	res.Warnings = decoded.Warnings
	p.stats.Detections.Add(int64(len(res.Detections)))
	p.stats.Warnings.Add(int64(len(res.Warnings)))

	res.SourceBoxes = make([]result.Box, len(res.Detections))

	for i, d := range res.Detections {
		x, y, w, h := img.ToSource(d.Box.X, d.Box.Y, d.Box.W, d.Box.H)
		res.SourceBoxes[i] = result.Box{X: x, Y: y, W: w, H: h}
	}

	p.log.Info("frame decoded", zap.Int("seq", seq),
		zap.Int("detections", len(res.Detections)),
		zap.Float32("threshold", p.cfg.Decode.BoxThreshold),
		zap.Duration("invoke_time", res.InvokeTime))

	if p.cfg.Debug.Detections {
		p.logDetections(seq, res.Detections)
	}

	p.writeResults(meta, img, res.Detections)

	return res, nil
}

// quantizeInput fills the input tensor from the canvas
func (p *Pipeline) quantizeInput(pix []byte) error {

	var err error

	switch p.input.Type {
	case vespadet.TensorInt8:
		err = p.quant.QuantizeInto(p.input.BufInt, pix)
	case vespadet.TensorUint8:
		err = p.quant.QuantizeUint8Into(p.input.BufUint, pix)
	default:
		err = fmt.Errorf("input tensor type %s is not quantized", p.input.Type)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", vespadet.ErrShapeMismatch, err)
	}

	return nil
}

// write stores an artifact, sink failures are counted and logged but never
// discard the frame
func (p *Pipeline) write(id string, data []byte) {

	if err := p.sink.WriteArtifact(id, data); err != nil {
		p.stats.SinkFailures.Inc()
		p.log.Warn("failed to write artifact", zap.String("id", id), zap.Error(err))
	}
}

func (p *Pipeline) writeCanvas(seq int, img *preprocess.NormalizedImage) {

	data, err := sink.EncodePPM(img)

	if err != nil {
		p.stats.SinkFailures.Inc()
		p.log.Warn("failed to encode canvas", zap.Int("seq", seq), zap.Error(err))
		return
	}

	p.write(sink.ArtifactName(sink.ArtifactCanvas, seq, img.Policy.String()), data)
}

// writeAudit normalizes the frame with every audit policy and stores the
// canvases
func (p *Pipeline) writeAudit(seq int, frame *vespadet.RawFrame) {

	for _, n := range p.audit {
		img, err := n.Normalize(frame)

		if err != nil {
			p.log.Warn("audit normalization failed", zap.Int("seq", seq),
				zap.Stringer("policy", n.Policy()), zap.Error(err))
			continue
		}

		if p.cfg.Debug.InputStats {
			p.logInputStats(seq, img)
		}

		p.writeCanvas(seq, img)
		img.Release()
	}
}

// writeResults stores the detection report, overlay and records
func (p *Pipeline) writeResults(meta sink.FrameMeta, img *preprocess.NormalizedImage,
	dets []result.DetectResult) {

	if p.cfg.Save.Detections {
		data, err := sink.EncodeDetections(meta, dets, p.cfg.Labels)

		if err != nil {
			p.stats.SinkFailures.Inc()
			p.log.Warn("failed to encode detections", zap.Int("seq", meta.Seq), zap.Error(err))
		} else {
			p.write(sink.ArtifactName(sink.ArtifactDetections, meta.Seq, ""), data)
		}
	}

	if p.cfg.Save.Overlay {
		overlay := img.RGBA()
		render.DetectionBoxes(overlay, dets, p.cfg.Labels, render.DefaultFont(), 1)

		data, err := sink.EncodePNG(overlay)

		if err != nil {
			p.stats.SinkFailures.Inc()
			p.log.Warn("failed to encode overlay", zap.Int("seq", meta.Seq), zap.Error(err))
		} else {
			p.write(sink.ArtifactName(sink.ArtifactOverlay, meta.Seq, ""), data)
		}
	}

	if rec, ok := p.sink.(sink.DetectionRecorder); ok && len(dets) > 0 {
		if err := rec.RecordDetections(meta, dets, p.cfg.Labels); err != nil {
			p.stats.SinkFailures.Inc()
			p.log.Warn("failed to record detections", zap.Int("seq", meta.Seq), zap.Error(err))
		}
	}
}
