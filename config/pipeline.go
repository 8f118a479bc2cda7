package config

import (
	"fmt"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/pipeline"
	"github.com/swdee/go-vespadet/postprocess"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/quantize"
)

// PipelineConfig converts the loaded settings into the configuration of a
// pipeline.Pipeline.  Labels and the buffer pool are supplied by the caller.
func (c *AppConfig) PipelineConfig(labels []string, pool *memory.Pool) (pipeline.Config, error) {

	pc := pipeline.DefaultConfig()

	policy, err := preprocess.ParsePolicy(c.Input.Policy)

	if err != nil {
		return pc, err
	}

	audit, err := c.AuditPolicies()

	if err != nil {
		return pc, err
	}

	conv, err := quantize.ParseConvention(c.Input.Convention)

	if err != nil {
		return pc, err
	}

	enh, err := ParseEnhancement(c.Input.Enhancement)

	if err != nil {
		return pc, err
	}

	if c.Input.PadValue < 0 || c.Input.PadValue > 255 {
		return pc, fmt.Errorf("input.padvalue %d out of range", c.Input.PadValue)
	}

	pc.InputSize = c.Input.Size
	pc.Policy = policy
	pc.Audit = audit
	pc.PadValue = byte(c.Input.PadValue)
	pc.Enhancement = enh
	pc.Convention = conv
	pc.Decode = postprocess.DFLParams{
		InputSize:       c.Input.Size,
		RegMax:          c.Decode.RegMax,
		ClassNum:        c.Decode.Classes,
		BoxThreshold:    c.Decode.Threshold,
		MaxObjectNumber: c.Decode.MaxObjects,
	}

	// the decoder input size is replaced by the validated model input
	if pc.Decode.InputSize == 0 {
		pc.Decode.InputSize = postprocess.DFLDefaultParams().InputSize
	}

	pc.Pool = pool
	pc.Labels = labels
	pc.FramePause = c.Pipeline.FramePause
	pc.RetryPause = c.Pipeline.RetryPause
	pc.InvokePause = c.Pipeline.InvokePause
	pc.MaxFrames = c.Pipeline.MaxFrames
	pc.CPUMask = vespadet.CPUCoreMask(c.Pipeline.CPUCores)

	pc.Save = pipeline.SaveConfig{
		Frames:     c.Sink.Frames,
		Canvas:     c.Sink.Canvas,
		Detections: c.Sink.Detections,
		Overlay:    c.Sink.Overlay,
	}

	pc.Debug = pipeline.DebugConfig{
		Tensors:     c.Debug.Tensors,
		InputStats:  c.Debug.InputStats,
		OutputStats: c.Debug.OutputStats,
		Samples:     c.Debug.Samples,
		Scan:        c.Debug.Scan,
		TopK:        c.Debug.TopK,
		Detections:  c.Debug.Detections,
		DumpLimit:   c.Debug.DumpLimit,
	}

	return pc, nil
}

// AuditPolicies parses input.audit
func (c *AppConfig) AuditPolicies() ([]preprocess.Policy, error) {

	var audit []preprocess.Policy

	for _, a := range c.Input.Audit {
		p, err := preprocess.ParsePolicy(a)

		if err != nil {
			return nil, err
		}

		audit = append(audit, p)
	}

	return audit, nil
}
