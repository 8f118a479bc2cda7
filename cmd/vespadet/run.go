package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/pipeline"
	"github.com/swdee/go-vespadet/preprocess"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RunAction corresponds to `vespadet run`
func RunAction(c *cli.Context) (err error) {

	cfg, log, err := loadConfig(c)

	if err != nil {
		return err
	}

	defer log.Sync()

	if c.IsSet("max-frames") {
		cfg.Pipeline.MaxFrames = c.Int("max-frames")
	}

	labels, err := loadLabels(cfg)

	if err != nil {
		return err
	}

	alloc := memory.NewAllocator(cfg.Memory.Internal, cfg.Memory.HighCapacity)

	rt, err := newRuntime(cfg, alloc, log)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, rt.Close()) }()

	_, size, err := rt.ValidateInput(cfg.Input.Size)

	if err != nil {
		return fmt.Errorf("invalid model input: %w", err)
	}

	audit, err := cfg.AuditPolicies()

	if err != nil {
		return err
	}

	// one canvas for the model input and one per audit policy
	pool := memory.NewPool(alloc, memory.HighCapacity)
	defer pool.Close()

	if err := pool.Create(preprocess.PoolCanvas, size*size*3, 1+len(audit)); err != nil {
		return err
	}

	if err := pool.Create(preprocess.PoolScratch, cfg.Memory.ScratchSize, 1); err != nil {
		return err
	}

	pc, err := cfg.PipelineConfig(labels, pool)

	if err != nil {
		return err
	}

	src, err := openSource(cfg.Source, log)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, src.Close()) }()

	snk, err := openSink(cfg.Sink, log)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, snk.Close()) }()

	p, err := pipeline.New(rt, src, snk, pc, log)

	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := p.Stats().Snapshot()

	log.Info("run complete", zap.String("run_id", p.RunID()),
		zap.Int64("frames", stats.Frames), zap.Int64("detections", stats.Detections),
		zap.Int64("failures", stats.Failures()))

	return nil
}
