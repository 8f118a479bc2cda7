package main

import (
	"fmt"
	"os"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/capture"
	"github.com/swdee/go-vespadet/config"
	"github.com/swdee/go-vespadet/logging"
	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/sink"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/src-d/go-billy.v4/osfs"
)

// loadConfig reads the configuration named by --config and builds the
// logger, --debug overrides log.level
func loadConfig(c *cli.Context) (*config.AppConfig, *zap.Logger, error) {

	cfg, err := config.Load(c.String("config"))

	if err != nil {
		return nil, nil, err
	}

	if c.Bool("debug") {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Stdout: c.App.Writer,
		Stderr: c.App.ErrWriter,
	})

	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

// replaySpecs returns the declared tensors of the replay engine
func replaySpecs(cfg *config.AppConfig) (vespadet.TensorSpec, vespadet.TensorSpec, error) {

	in, err := cfg.Engine.Replay.Input.Spec()

	if err != nil {
		return in, in, fmt.Errorf("engine.replay.input: %w", err)
	}

	out, err := cfg.Engine.Replay.Output.Spec()

	if err != nil {
		return in, out, fmt.Errorf("engine.replay.output: %w", err)
	}

	return in, out, nil
}

// newRuntime loads the model and creates the configured backend
func newRuntime(cfg *config.AppConfig, alloc *memory.Allocator,
	log *zap.Logger) (*vespadet.Runtime, error) {

	opts := vespadet.BackendOptions{
		Threads: cfg.Engine.Threads,
		Core:    cfg.Engine.Core,
		Logger:  log.Named(cfg.Engine.Backend),
	}

	if cfg.Engine.Backend == "replay" {
		in, out, err := replaySpecs(cfg)

		if err != nil {
			return nil, err
		}

		opts.Inputs = []vespadet.TensorSpec{in}
		opts.Outputs = []vespadet.TensorSpec{out}

		if cfg.Engine.Replay.Recording != "" {
			rec, err := os.ReadFile(cfg.Engine.Replay.Recording)

			if err != nil {
				return nil, fmt.Errorf("error reading replay recording: %w", err)
			}

			opts.Recordings = [][]byte{rec}
		}
	}

	backend, err := vespadet.NewBackend(cfg.Engine.Backend, opts)

	if err != nil {
		return nil, err
	}

	modelFile, err := cfg.ModelPath()

	if err != nil {
		return nil, err
	}

	model, err := vespadet.LoadModel(modelFile, alloc)

	if err != nil {
		return nil, err
	}

	log.Info("model loaded", zap.String("file", modelFile),
		zap.Int("bytes", model.Len()), zap.String("backend", cfg.Engine.Backend))

	return vespadet.NewRuntime(backend, model, vespadet.RuntimeConfig{
		Allocator: alloc,
		ArenaSize: cfg.Memory.Arena,
		Logger:    log,
	})
}

// loadLabels reads model.labels, no labels file names classes by index
func loadLabels(cfg *config.AppConfig) ([]string, error) {

	if cfg.Model.Labels == "" {
		return nil, nil
	}

	return vespadet.LoadLabels(cfg.Model.Labels)
}

// sourceOpener creates a capture.Source from the source settings
type sourceOpener func(cfg config.SourceConfig, log *zap.Logger) (capture.Source, error)

// sourceOpeners are the source kinds available in this binary, webcam is
// added by builds with the gocv tag
var sourceOpeners = map[string]sourceOpener{
	"dir": openDirSource,
}

func openDirSource(cfg config.SourceConfig, log *zap.Logger) (capture.Source, error) {
	return capture.NewDirSource(osfs.New(cfg.Dir), ".", log.With(zap.String("dir", cfg.Dir)))
}

func openSource(cfg config.SourceConfig, log *zap.Logger) (capture.Source, error) {

	open, ok := sourceOpeners[cfg.Kind]

	if !ok {
		return nil, fmt.Errorf("source kind %q is not available in this build", cfg.Kind)
	}

	return open(cfg, log)
}

// openSink creates the directory and database sinks that are configured,
// with neither configured artifacts are discarded
func openSink(cfg config.SinkConfig, log *zap.Logger) (sink.Sink, error) {

	var sinks []sink.Sink

	if cfg.Dir != "" {
		d, err := sink.NewDirSink(osfs.New(cfg.Dir), ".")

		if err != nil {
			return nil, err
		}

		log.Info("writing artifacts to directory", zap.String("dir", cfg.Dir))
		sinks = append(sinks, d)
	}

	if cfg.SQLite != "" {
		s, err := sink.NewSQLiteSink(cfg.SQLite)

		if err != nil {
			return nil, err
		}

		log.Info("writing artifacts to database", zap.String("file", cfg.SQLite),
			zap.String("run_id", s.RunID()))
		sinks = append(sinks, s)
	}

	switch len(sinks) {
	case 0:
		return sink.Discard, nil
	case 1:
		return sinks[0], nil
	default:
		return sink.NewMultiSink(sinks...), nil
	}
}
