// Package config loads the application configuration from defaults, an
// optional YAML file and VESPA_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// EnvPrefix is the prefix of environment variables overriding the file,
// VESPA_DECODE_THRESHOLD sets decode.threshold
const EnvPrefix = "VESPA_"

// LogConfig defines logging configurations
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ModelConfig locates the model and its labels
type ModelConfig struct {
	// File is the model path, relative paths are joined with Dir
	File string `koanf:"file"`
	Dir  string `koanf:"dir"`
	// LegacyConfig is a config.txt whose MODEL define names the model file
	// when File is empty
	LegacyConfig string `koanf:"legacyconfig"`
	Labels       string `koanf:"labels"`
}

// TensorConfig declares a tensor of the replay engine
type TensorConfig struct {
	Name      string  `koanf:"name"`
	Type      string  `koanf:"type"`
	Shape     []int   `koanf:"shape"`
	Scale     float32 `koanf:"scale"`
	ZeroPoint int32   `koanf:"zeropoint"`
}

// EngineConfig selects the inference backend
type EngineConfig struct {
	// Backend is replay, tflite or rknn
	Backend string `koanf:"backend"`
	Threads int    `koanf:"threads"`
	// Core selects the NPU core of the rknn backend, -1 for automatic
	Core   int `koanf:"core"`
	Replay struct {
		Input  TensorConfig `koanf:"input"`
		Output TensorConfig `koanf:"output"`
		// Recording is a raw output tensor dump replayed on every invoke
		Recording string `koanf:"recording"`
	} `koanf:"replay"`
}

// MemoryConfig defines the memory domain budgets in bytes
type MemoryConfig struct {
	Internal     int `koanf:"internal"`
	HighCapacity int `koanf:"highcapacity"`
	Arena        int `koanf:"arena"`
	// ScratchSize bounds the decoded frame buffer
	ScratchSize int `koanf:"scratchsize"`
}

// InputConfig defines how frames are fitted to the model input
type InputConfig struct {
	// Size is the expected input side length, 0 accepts the model's
	Size        int      `koanf:"size"`
	Policy      string   `koanf:"policy"`
	Audit       []string `koanf:"audit"`
	Convention  string   `koanf:"convention"`
	PadValue    int      `koanf:"padvalue"`
	Enhancement string   `koanf:"enhancement"`
	// ByteOrder of RGB565 frames, le or be
	ByteOrder string `koanf:"byteorder"`
}

// DecodeConfig defines the detection decoder parameters
type DecodeConfig struct {
	RegMax     int     `koanf:"regmax"`
	Classes    int     `koanf:"classes"`
	Threshold  float32 `koanf:"threshold"`
	MaxObjects int     `koanf:"maxobjects"`
}

// SourceConfig selects the image source
type SourceConfig struct {
	// Kind is dir or webcam
	Kind    string `koanf:"kind"`
	Dir     string `koanf:"dir"`
	Device  string `koanf:"device"`
	Width   int    `koanf:"width"`
	Height  int    `koanf:"height"`
	Quality int    `koanf:"quality"`
	Raw     bool   `koanf:"raw"`
}

// SinkConfig selects where artifacts go and which are written
type SinkConfig struct {
	Dir        string `koanf:"dir"`
	SQLite     string `koanf:"sqlite"`
	Frames     bool   `koanf:"frames"`
	Canvas     bool   `koanf:"canvas"`
	Detections bool   `koanf:"detections"`
	Overlay    bool   `koanf:"overlay"`
}

// PipelineConfig defines the loop timing
type PipelineConfig struct {
	FramePause  time.Duration `koanf:"framepause"`
	RetryPause  time.Duration `koanf:"retrypause"`
	InvokePause time.Duration `koanf:"invokepause"`
	MaxFrames   int           `koanf:"maxframes"`
	CPUCores    []int         `koanf:"cpucores"`
}

// DebugConfig gates debug diagnostics
type DebugConfig struct {
	Tensors     bool `koanf:"tensors"`
	InputStats  bool `koanf:"inputstats"`
	OutputStats bool `koanf:"outputstats"`
	Samples     int  `koanf:"samples"`
	Scan        bool `koanf:"scan"`
	TopK        int  `koanf:"topk"`
	Detections  bool `koanf:"detections"`
	DumpLimit   int  `koanf:"dumplimit"`
}

// AppConfig defines the whole configuration
type AppConfig struct {
	Log      LogConfig      `koanf:"log"`
	Model    ModelConfig    `koanf:"model"`
	Engine   EngineConfig   `koanf:"engine"`
	Memory   MemoryConfig   `koanf:"memory"`
	Input    InputConfig    `koanf:"input"`
	Decode   DecodeConfig   `koanf:"decode"`
	Source   SourceConfig   `koanf:"source"`
	Sink     SinkConfig     `koanf:"sink"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Debug    DebugConfig    `koanf:"debug"`
}

// defaults are loaded before the file and environment
var defaults = map[string]any{
	"log.level":                     "info",
	"log.format":                    "json",
	"model.dir":                     ".",
	"engine.backend":                "tflite",
	"engine.threads":                1,
	"engine.core":                   -1,
	"engine.replay.input.name":      "images",
	"engine.replay.input.type":      "INT8",
	"engine.replay.input.shape":     []int{1, 192, 192, 3},
	"engine.replay.input.scale":     1.0 / 255,
	"engine.replay.input.zeropoint": -128,
	"engine.replay.output.name":     "output0",
	"engine.replay.output.type":     "INT8",
	"engine.replay.output.scale":    1.0,
	"memory.internal":               256 * 1024,
	"memory.highcapacity":           16 * 1024 * 1024,
	"memory.arena":                  2 * 1024 * 1024,
	"memory.scratchsize":            1600 * 1200 * 3,
	"input.size":                    192,
	"input.policy":                  "letterbox",
	"input.convention":              "auto",
	"input.enhancement":             "none",
	"input.byteorder":               "le",
	"decode.regmax":                 16,
	"decode.classes":                0,
	"decode.threshold":              0.30,
	"decode.maxobjects":             20,
	"source.kind":                   "dir",
	"source.dir":                    "images",
	"source.device":                 "0",
	"source.width":                  640,
	"source.height":                 480,
	"source.quality":                90,
	"sink.dir":                      "capture",
	"sink.frames":                   true,
	"sink.canvas":                   true,
	"sink.detections":               true,
	"pipeline.framepause":           "300ms",
	"pipeline.retrypause":           "50ms",
	"pipeline.invokepause":          "300ms",
	"debug.topk":                    5,
	"debug.dumplimit":               10,
}

// Load reads the configuration.  An empty filePath uses only the defaults
// and the environment.
func Load(filePath string) (*AppConfig, error) {

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envValue maps VESPA_SECTION_KEY to section.key, comma separated values
// become lists
func envValue(s string, v string) (string, any) {

	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")

	if strings.Contains(v, ",") {
		return key, strings.Split(strings.TrimSpace(v), ",")
	}

	return key, v
}
