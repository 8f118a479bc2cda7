package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/swdee/go-vespadet/quantize"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 192, cfg.Input.Size)
	assert.Equal(t, "letterbox", cfg.Input.Policy)
	assert.Equal(t, "auto", cfg.Input.Convention)
	assert.Equal(t, 16, cfg.Decode.RegMax)
	assert.Equal(t, float32(0.30), cfg.Decode.Threshold)
	assert.Equal(t, 20, cfg.Decode.MaxObjects)
	assert.Equal(t, 300*time.Millisecond, cfg.Pipeline.FramePause)
	assert.Equal(t, 50*time.Millisecond, cfg.Pipeline.RetryPause)
	assert.Equal(t, 300*time.Millisecond, cfg.Pipeline.InvokePause)
	assert.Equal(t, 2*1024*1024, cfg.Memory.Arena)
	assert.Equal(t, 5, cfg.Debug.TopK)
	assert.Equal(t, 10, cfg.Debug.DumpLimit)
	assert.Equal(t, []int{1, 192, 192, 3}, cfg.Engine.Replay.Input.Shape)
}

func TestLoadFileAndEnv(t *testing.T) {

	dir := t.TempDir()
	file := filepath.Join(dir, "vespadet.yaml")

	yml := `
input:
  policy: distort
  audit: [letterbox]
decode:
  threshold: 0.45
pipeline:
  framepause: 1s
  cpucores: [4, 5]
engine:
  backend: replay
  replay:
    output:
      shape: [1, 576, 65]
      scale: 0.05
      zeropoint: -10
`
	require.NoError(t, os.WriteFile(file, []byte(yml), 0644))

	t.Setenv("VESPA_DECODE_MAXOBJECTS", "7")
	t.Setenv("VESPA_LOG_LEVEL", "debug")
	t.Setenv("VESPA_INPUT_ENHANCEMENT", "contrast")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "distort", cfg.Input.Policy)
	assert.Equal(t, []string{"letterbox"}, cfg.Input.Audit)
	assert.Equal(t, float32(0.45), cfg.Decode.Threshold)
	assert.Equal(t, 7, cfg.Decode.MaxObjects)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Pipeline.FramePause)
	assert.Equal(t, []int{4, 5}, cfg.Pipeline.CPUCores)

	spec, err := cfg.Engine.Replay.Output.Spec()
	require.NoError(t, err)
	assert.Equal(t, vespadet.TensorInt8, spec.Type)
	assert.Equal(t, []int{1, 576, 65}, spec.Shape)
	assert.Equal(t, int32(-10), spec.Quant.ZeroPoint)

	e, err := ParseEnhancement(cfg.Input.Enhancement)
	require.NoError(t, err)
	assert.Equal(t, preprocess.EnhanceContrast, e)
}

func TestValidate(t *testing.T) {

	tests := []struct {
		name   string
		mutate func(c *AppConfig)
		want   string
	}{
		{"policy", func(c *AppConfig) { c.Input.Policy = "zoom" }, "input.policy"},
		{"audit", func(c *AppConfig) { c.Input.Audit = []string{"zoom"} }, "input.audit"},
		{"convention", func(c *AppConfig) { c.Input.Convention = "half" }, "input.convention"},
		{"threshold", func(c *AppConfig) { c.Decode.Threshold = 1.2 }, "decode.threshold"},
		{"regmax", func(c *AppConfig) { c.Decode.RegMax = 0 }, "decode.regmax"},
		{"maxobjects", func(c *AppConfig) { c.Decode.MaxObjects = 0 }, "decode.maxobjects"},
		{"backend", func(c *AppConfig) { c.Engine.Backend = "onnx" }, "engine.backend"},
		{"replay shape", func(c *AppConfig) { c.Engine.Backend = "replay" }, "engine.replay"},
		{"source", func(c *AppConfig) { c.Source.Kind = "radio" }, "source.kind"},
		{"pause", func(c *AppConfig) { c.Pipeline.RetryPause = -time.Second }, "pipeline.retrypause"},
		{"padvalue", func(c *AppConfig) { c.Input.PadValue = 300 }, "input.padvalue"},
		{"log level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tc.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseLegacyModel(t *testing.T) {

	tests := []struct {
		name  string
		input string
		want  string
		err   bool
	}{
		{"simple", `#define MODEL "wasp.tflite"`, "wasp.tflite", false},
		{"first wins", "// comment\n#define MODEL_NAME \"a.tflite\"\n#define MODEL \"b.tflite\"\n", "a.tflite", false},
		{"skips empty quotes", "#define MODEL \"\"\n#define MODEL \"c.tflite\"", "c.tflite", false},
		{"needs define", `MODEL "x.tflite"`, "", true},
		{"needs quotes", "#define MODEL x.tflite", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		got, err := ParseLegacyModel(strings.NewReader(tc.input))

		if tc.err {
			assert.ErrorIs(t, err, ErrNoModelDefine, tc.name)
			continue
		}

		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestModelPath(t *testing.T) {

	dir := t.TempDir()
	legacy := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(legacy, []byte("#define MODEL \"wasp.tflite\"\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Model.Dir = "/models"
	cfg.Model.LegacyConfig = legacy

	path, err := cfg.ModelPath()
	require.NoError(t, err)
	assert.Equal(t, "/models/wasp.tflite", path)

	cfg.Model.File = "/abs/other.tflite"
	path, err = cfg.ModelPath()
	require.NoError(t, err)
	assert.Equal(t, "/abs/other.tflite", path)

	cfg.Model.File = ""
	cfg.Model.LegacyConfig = ""
	_, err = cfg.ModelPath()
	assert.Error(t, err)

	cfg.Model.LegacyConfig = filepath.Join(dir, "missing.txt")
	_, err = cfg.ModelPath()
	assert.Error(t, err)
}

func TestParseByteOrder(t *testing.T) {

	o, err := ParseByteOrder("be")
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, o)

	o, err = ParseByteOrder("")
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, o)

	_, err = ParseByteOrder("middle")
	assert.Error(t, err)
}

func TestPipelineConfig(t *testing.T) {

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Input.Policy = "crop"
	cfg.Input.Audit = []string{"letterbox", "distort"}
	cfg.Input.PadValue = 114
	cfg.Input.Convention = "raw"
	cfg.Decode.Classes = 3
	cfg.Pipeline.CPUCores = []int{4, 5, 6, 7}
	cfg.Pipeline.MaxFrames = 12
	cfg.Sink.Overlay = true
	cfg.Debug.Scan = true

	pc, err := cfg.PipelineConfig([]string{"wasp"}, nil)
	require.NoError(t, err)

	assert.Equal(t, preprocess.Crop, pc.Policy)
	assert.Equal(t, []preprocess.Policy{preprocess.Letterbox, preprocess.Distort}, pc.Audit)
	assert.Equal(t, byte(114), pc.PadValue)
	assert.Equal(t, quantize.RawByte, pc.Convention)
	assert.Equal(t, 192, pc.InputSize)
	assert.Equal(t, 192, pc.Decode.InputSize)
	assert.Equal(t, 16, pc.Decode.RegMax)
	assert.Equal(t, 3, pc.Decode.ClassNum)
	assert.Equal(t, float32(0.30), pc.Decode.BoxThreshold)
	assert.Equal(t, 20, pc.Decode.MaxObjectNumber)
	assert.Equal(t, uintptr(0xf0), pc.CPUMask)
	assert.Equal(t, 12, pc.MaxFrames)
	assert.Equal(t, 300*time.Millisecond, pc.FramePause)
	assert.Equal(t, 50*time.Millisecond, pc.RetryPause)
	assert.True(t, pc.Save.Frames)
	assert.True(t, pc.Save.Overlay)
	assert.True(t, pc.Debug.Scan)
	assert.Equal(t, 5, pc.Debug.TopK)
	assert.Equal(t, []string{"wasp"}, pc.Labels)

	cfg.Input.Size = 0
	pc, err = cfg.PipelineConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, pc.InputSize)
	assert.Equal(t, 192, pc.Decode.InputSize)

	cfg.Input.Audit = []string{"zoom"}
	_, err = cfg.PipelineConfig(nil, nil)
	assert.Error(t, err)
}
