package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/quantize"
	"go.uber.org/multierr"
)

// Validate rejects settings no component can work with
func (c *AppConfig) Validate() error {

	var err error

	if c.Input.Size < 0 {
		err = multierr.Append(err, fmt.Errorf("input.size must not be negative, got %d", c.Input.Size))
	}

	if _, e := preprocess.ParsePolicy(c.Input.Policy); e != nil {
		err = multierr.Append(err, fmt.Errorf("input.policy: %w", e))
	}

	for _, a := range c.Input.Audit {
		if _, e := preprocess.ParsePolicy(a); e != nil {
			err = multierr.Append(err, fmt.Errorf("input.audit: %w", e))
		}
	}

	if _, e := quantize.ParseConvention(c.Input.Convention); e != nil {
		err = multierr.Append(err, fmt.Errorf("input.convention: %w", e))
	}

	if _, e := ParseEnhancement(c.Input.Enhancement); e != nil {
		err = multierr.Append(err, fmt.Errorf("input.enhancement: %w", e))
	}

	if _, e := ParseByteOrder(c.Input.ByteOrder); e != nil {
		err = multierr.Append(err, fmt.Errorf("input.byteorder: %w", e))
	}

	if c.Input.PadValue < 0 || c.Input.PadValue > 255 {
		err = multierr.Append(err, fmt.Errorf("input.padvalue must be within [0,255], got %d", c.Input.PadValue))
	}

	if c.Decode.RegMax < 1 {
		err = multierr.Append(err, fmt.Errorf("decode.regmax must be at least 1, got %d", c.Decode.RegMax))
	}

	if c.Decode.Threshold < 0 || c.Decode.Threshold > 1 {
		err = multierr.Append(err, fmt.Errorf("decode.threshold must be within [0,1], got %v", c.Decode.Threshold))
	}

	if c.Decode.MaxObjects < 1 {
		err = multierr.Append(err, fmt.Errorf("decode.maxobjects must be at least 1, got %d", c.Decode.MaxObjects))
	}

	if c.Decode.Classes < 0 {
		err = multierr.Append(err, fmt.Errorf("decode.classes must not be negative, got %d", c.Decode.Classes))
	}

	if !knownBackend(c.Engine.Backend) {
		err = multierr.Append(err, fmt.Errorf("engine.backend %q is not one of %s",
			c.Engine.Backend, strings.Join(Backends, ", ")))
	}

	if c.Engine.Backend == "replay" {
		for _, t := range []TensorConfig{c.Engine.Replay.Input, c.Engine.Replay.Output} {
			if _, e := t.Spec(); e != nil {
				err = multierr.Append(err, fmt.Errorf("engine.replay: %w", e))
			}
		}
	}

	if c.Memory.HighCapacity <= 0 || c.Memory.Arena <= 0 {
		err = multierr.Append(err, errors.New("memory.highcapacity and memory.arena must be positive"))
	}

	switch c.Source.Kind {
	case "dir", "webcam":
	default:
		err = multierr.Append(err, fmt.Errorf("source.kind %q is not dir or webcam", c.Source.Kind))
	}

	for _, p := range []struct {
		name string
		v    int64
	}{
		{"pipeline.framepause", int64(c.Pipeline.FramePause)},
		{"pipeline.retrypause", int64(c.Pipeline.RetryPause)},
		{"pipeline.invokepause", int64(c.Pipeline.InvokePause)},
	} {
		if p.v < 0 {
			err = multierr.Append(err, fmt.Errorf("%s must not be negative", p.name))
		}
	}

	if _, e := c.Log.level(); e != nil {
		err = multierr.Append(err, e)
	}

	return err
}

// Backends are the engine names accepted by engine.backend.  Engines other
// than replay are only usable in binaries built with their build tag.
var Backends = []string{"replay", "rknn", "tflite"}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

func (l LogConfig) level() (string, error) {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return l.Level, nil
	default:
		return "", fmt.Errorf("log.level %q is not debug, info, warn or error", l.Level)
	}
}

// Spec converts the declaration into a replay tensor spec
func (t TensorConfig) Spec() (vespadet.TensorSpec, error) {

	typ, err := vespadet.ParseTensorType(t.Type)

	if err != nil {
		return vespadet.TensorSpec{}, fmt.Errorf("tensor %s: %w", t.Name, err)
	}

	if len(t.Shape) == 0 {
		return vespadet.TensorSpec{}, fmt.Errorf("tensor %s has no shape", t.Name)
	}

	for _, d := range t.Shape {
		if d <= 0 {
			return vespadet.TensorSpec{}, fmt.Errorf("tensor %s has invalid shape %v", t.Name, t.Shape)
		}
	}

	spec := vespadet.TensorSpec{
		Name:  t.Name,
		Type:  typ,
		Fmt:   vespadet.TensorNHWC,
		Shape: append([]int(nil), t.Shape...),
		Quant: quantize.Params{Scale: t.Scale, ZeroPoint: t.ZeroPoint},
	}

	if typ == vespadet.TensorFloat32 || typ == vespadet.TensorFloat16 {
		spec.Quant = quantize.Identity()
	}

	return spec, nil
}

// ParseEnhancement converts a configuration string into an Enhancement
func ParseEnhancement(s string) (preprocess.Enhancement, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return preprocess.EnhanceNone, nil
	case "contrast":
		return preprocess.EnhanceContrast, nil
	case "grayscale", "greyscale":
		return preprocess.EnhanceGrayscale, nil
	default:
		return preprocess.EnhanceNone, fmt.Errorf("unknown enhancement %q", s)
	}
}

// ParseByteOrder converts le or be into a byte order
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "le", "little":
		return binary.LittleEndian, nil
	case "be", "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", s)
	}
}

// ModelPath returns the model file to load.  When model.file is empty the
// name comes from the MODEL define of model.legacyconfig.  Relative names
// are joined with model.dir.
func (c *AppConfig) ModelPath() (string, error) {

	name := c.Model.File

	if name == "" {
		if c.Model.LegacyConfig == "" {
			return "", errors.New("neither model.file nor model.legacyconfig is set")
		}

		var err error
		name, err = ReadLegacyModel(c.Model.LegacyConfig)

		if err != nil {
			return "", err
		}
	}

	if filepath.IsAbs(name) {
		return name, nil
	}

	return filepath.Join(c.Model.Dir, name), nil
}
