package pipeline

import (
	"github.com/swdee/go-vespadet/diag"
	"github.com/swdee/go-vespadet/postprocess/result"
	"github.com/swdee/go-vespadet/preprocess"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (p *Pipeline) debugEnabled() bool {
	return p.log.Core().Enabled(zapcore.DebugLevel)
}

func (p *Pipeline) logTensors() {

	for _, t := range p.rt.InputAttrs() {
		p.log.Debug("input tensor", zap.Stringer("tensor", t))
	}

	for _, t := range p.rt.OutputAttrs() {
		p.log.Debug("output tensor", zap.Stringer("tensor", t))
	}

	for _, u := range p.rt.MemoryUsage() {
		p.log.Debug("memory", zap.Stringer("usage", u))
	}
}

func (p *Pipeline) logInputStats(seq int, img *preprocess.NormalizedImage) {

	if !p.debugEnabled() {
		return
	}

	p.log.Debug("canvas stats", zap.Int("seq", seq),
		zap.Stringer("policy", img.Policy),
		zap.Stringer("rgb", diag.ByteStats(img.Pix)))
}

// logOutput logs the quantized input and the output tensor diagnostics
// enabled in DebugConfig
func (p *Pipeline) logOutput(seq int) {

	dbg := p.cfg.Debug

	if !p.debugEnabled() {
		return
	}

	if dbg.InputStats && p.input.BufInt != nil {
		raw, real := diag.Int8Stats(p.input.BufInt, p.input.Quant)
		p.log.Debug("input tensor stats", zap.Int("seq", seq),
			zap.Stringer("int8", raw), zap.Stringer("real", real))
	}

	if dbg.OutputStats {
		p.log.Debug("output tensor stats", zap.Int("seq", seq),
			zap.Stringer("dequant", diag.TensorStats(p.output)))
	}

	if dbg.Samples > 0 {
		p.log.Debug("output samples", zap.Int("seq", seq),
			zap.String("values", diag.Samples(p.output, dbg.Samples)))
	}

	if !dbg.Scan {
		return
	}

	best, err := diag.BestCell(p.output, p.layout)

	if err != nil {
		p.log.Debug("output scan failed", zap.Error(err))
		return
	}

	p.log.Debug("best cell", zap.Int("seq", seq), zap.Stringer("score", best))

	if dbg.TopK <= 0 {
		return
	}

	top, err := diag.TopK(p.output, p.layout, best.Cell, dbg.TopK)

	if err != nil {
		return
	}

	for rank, c := range top {
		p.log.Debug("top class", zap.Int("seq", seq), zap.Int("rank", rank),
			zap.Stringer("score", c))
	}
}

func (p *Pipeline) logDetections(seq int, dets []result.DetectResult) {

	limit := len(dets)

	if p.cfg.Debug.DumpLimit > 0 && limit > p.cfg.Debug.DumpLimit {
		limit = p.cfg.Debug.DumpLimit
	}

	for _, d := range dets[:limit] {
		p.log.Debug("detection", zap.Int("seq", seq), zap.Int64("id", d.ID),
			zap.Int("class", d.Class), zap.Float32("score", d.Probability),
			zap.Stringer("box", d.Box), zap.Int("cell", d.Cell))
	}
}
