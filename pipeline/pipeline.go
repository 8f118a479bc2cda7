// Package pipeline runs the capture, normalize, quantize, invoke and decode
// stages over every frame of an image source on a single worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/capture"
	"github.com/swdee/go-vespadet/postprocess"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/quantize"
	"github.com/swdee/go-vespadet/sink"
	"go.uber.org/zap"
)

// Pipeline owns the per frame stages.  The Runtime, its tensors and the
// decoder are created once and reused for every frame.  A Pipeline is
// driven by a single goroutine.
type Pipeline struct {
	cfg     Config
	rt      *vespadet.Runtime
	src     capture.Source
	sink    sink.Sink
	log     *zap.Logger
	norm    *preprocess.Normalizer
	audit   []*preprocess.Normalizer
	quant   *quantize.InputQuantizer
	input   *vespadet.Tensor
	output  *vespadet.Tensor
	decoder *postprocess.DFL
	layout  postprocess.Layout
	size    int
	runID   string
	seq     int
	stats   Stats
	// sleep pauses between frames, returning early when ctx is done
	sleep func(ctx context.Context, d time.Duration) error
}

// New validates the model tensors against cfg and prepares every stage.
// Errors returned are initialization failures and should abort startup.
func New(rt *vespadet.Runtime, src capture.Source, snk sink.Sink, cfg Config,
	log *zap.Logger) (*Pipeline, error) {

	if log == nil {
		log = zap.NewNop()
	}

	if snk == nil {
		snk = sink.Discard
	}

	in, size, err := rt.ValidateInput(cfg.InputSize)

	if err != nil {
		return nil, fmt.Errorf("invalid model input: %w", err)
	}

	elem := quantize.Int8

	if in.Type == vespadet.TensorUint8 {
		elem = quantize.Uint8
	}

	conv, err := quantize.ResolveConvention(in.Quant, elem, cfg.Convention)

	if err != nil {
		return nil, fmt.Errorf("input tensor %s: %w", in.Quant, err)
	}

	quant, err := quantize.NewInputQuantizer(in.Quant, conv)

	if err != nil {
		return nil, err
	}

	out, err := rt.OutputTensor(0)

	if err != nil {
		return nil, fmt.Errorf("invalid model output: %w", err)
	}

	params := cfg.Decode
	params.InputSize = size

	decoder, err := postprocess.NewDFL(params, log)

	if err != nil {
		return nil, fmt.Errorf("invalid decoder parameters: %w", err)
	}

	// the output shape does not change between frames so a mismatch here
	// can never recover
	layout, err := decoder.Layout(out)

	if err != nil {
		return nil, fmt.Errorf("invalid model output: %w", err)
	}

	opts := []preprocess.Option{
		preprocess.WithPadValue(cfg.PadValue),
		preprocess.WithEnhancement(cfg.Enhancement),
		preprocess.WithLogger(log),
	}

	if cfg.Pool != nil {
		opts = append(opts, preprocess.WithPool(cfg.Pool))
	}

	norm, err := preprocess.NewNormalizer(size, cfg.Policy, opts...)

	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		rt:      rt,
		src:     src,
		sink:    snk,
		log:     log,
		norm:    norm,
		quant:   quant,
		input:   in,
		output:  out,
		decoder: decoder,
		layout:  layout,
		size:    size,
		runID:   uuid.NewString(),
		sleep:   sleepContext,
	}

	// artifacts and detections of one run share the sinks identifier
	if ri, ok := snk.(sink.RunIdentifier); ok && ri.RunID() != "" {
		p.runID = ri.RunID()
	}

	for _, policy := range cfg.Audit {
		if policy != cfg.Policy {
			p.audit = append(p.audit, norm.WithPolicy(policy))
		}
	}

	log.Info("pipeline ready",
		zap.String("run_id", p.runID),
		zap.Int("input_size", size),
		zap.Stringer("policy", cfg.Policy),
		zap.Stringer("convention", conv),
		zap.Stringer("input_quant", in.Quant),
		zap.Stringer("layout", layout),
	)

	if !layout.Square {
		log.Warn("output cells are not a perfect square, decoding with rounded grid",
			zap.Int("cells", layout.Cells), zap.Int("grid", layout.Grid))
	}

	if cfg.Debug.Tensors {
		p.logTensors()
	}

	return p, nil
}

// RunID returns the identifier recorded with every artifact of this
// Pipeline
func (p *Pipeline) RunID() string {
	return p.runID
}

// Layout returns how the output tensor is decoded
func (p *Pipeline) Layout() postprocess.Layout {
	return p.layout
}

// Convention returns the resolved input quantization convention
func (p *Pipeline) Convention() quantize.Convention {
	return p.quant.Convention()
}

// Stats returns the loop counters
func (p *Pipeline) Stats() *Stats {
	return &p.stats
}

// Run processes frames until the source is exhausted, MaxFrames is reached
// or ctx is cancelled.  Per frame failures are logged and the frame
// discarded.  An exhausted source or frame limit returns nil, cancellation
// returns ctx.Err().  Inference is never interrupted, cancellation is only
// observed between frames.
func (p *Pipeline) Run(ctx context.Context) error {

	if p.cfg.CPUMask != 0 {
		if err := vespadet.SetCPUAffinity(p.cfg.CPUMask); err != nil {
			p.log.Warn("failed to set cpu affinity", zap.Error(err))
		}
	}

	p.log.Info("pipeline started", zap.String("run_id", p.runID))

	defer func() {
		p.log.Info("pipeline stopped", zap.Stringer("stats", p.stats.Snapshot()))
	}()

	for frames := 0; p.cfg.MaxFrames <= 0 || frames < p.cfg.MaxFrames; {

		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := p.src.Capture(ctx)

		switch {
		case errors.Is(err, capture.ErrExhausted):
			p.log.Info("image source exhausted")
			return nil

		case err != nil && ctx.Err() != nil:
			return ctx.Err()

		case err != nil:
			p.stats.CaptureMisses.Inc()
			p.log.Debug("capture failed", zap.Error(err))

			if err := p.sleep(ctx, p.cfg.RetryPause); err != nil {
				return err
			}
			continue
		}

		frames++
		pause := p.cfg.FramePause

		if _, err := p.ProcessFrame(frame); err != nil {
			p.stats.countFailure(err)
			p.log.Error("frame discarded", zap.Int("seq", p.seq-1),
				zap.String("source", frame.Source), zap.Error(err))

			if errors.Is(err, vespadet.ErrInvokeFailure) {
				pause = p.cfg.InvokePause
			}
		}

		if err := p.sleep(ctx, pause); err != nil {
			return err
		}
	}

	return nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {

	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
