package main

import (
	"errors"
	"fmt"
	"os"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/diag"
	"github.com/swdee/go-vespadet/memory"
	"github.com/swdee/go-vespadet/postprocess"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

// DecodeAction corresponds to `vespadet decode`.  The dump holds the raw
// elements of the output tensor declared by engine.replay.output.
func DecodeAction(c *cli.Context) (err error) {

	if c.NArg() != 1 {
		return errors.New("decode needs exactly one output dump file")
	}

	cfg, log, err := loadConfig(c)

	if err != nil {
		return err
	}

	defer log.Sync()

	raw, err := os.ReadFile(c.Args().First())

	if err != nil {
		return fmt.Errorf("error reading output dump: %w", err)
	}

	in, out, err := replaySpecs(cfg)

	if err != nil {
		return err
	}

	labels, err := loadLabels(cfg)

	if err != nil {
		return err
	}

	alloc := memory.NewAllocator(cfg.Memory.Internal, cfg.Memory.HighCapacity)

	arena, err := memory.NewArena(alloc, memory.HighCapacity, cfg.Memory.Arena)

	if err != nil {
		return err
	}

	defer arena.Release()

	b := vespadet.NewReplayBackend([]vespadet.TensorSpec{in}, []vespadet.TensorSpec{out},
		vespadet.Replay(raw))

	defer func() { err = multierr.Append(err, b.Close()) }()

	// the replay engine accepts the dump itself as its model blob
	if err := b.Load(raw); err != nil {
		return err
	}

	if err := b.AllocateTensors(arena); err != nil {
		return err
	}

	if err := b.Invoke(); err != nil {
		return fmt.Errorf("%w: %w", vespadet.ErrInvokeFailure, err)
	}

	t, err := b.OutputTensor(0)

	if err != nil {
		return err
	}

	pc, err := cfg.PipelineConfig(labels, nil)

	if err != nil {
		return err
	}

	params := pc.Decode

	// the input side length defaults to the declared input tensor
	if cfg.Input.Size == 0 && len(in.Shape) == 4 {
		params.InputSize = in.Shape[1]
	}

	d, err := postprocess.NewDFL(params, log)

	if err != nil {
		return err
	}

	res, err := d.DetectObjects(t)

	if err != nil {
		return err
	}

	w := c.App.Writer

	fmt.Fprintf(w, "Output: %s\n", t)
	fmt.Fprintf(w, "Layout: %s\n", res.Layout)

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning: %v\n", warn)
	}

	if c.Bool("scan") {
		best, err := diag.BestCell(t, res.Layout)

		if err != nil {
			return err
		}

		fmt.Fprintf(w, "Best: %s\n", best)

		top, err := diag.TopK(t, res.Layout, best.Cell, pc.Debug.TopK)

		if err != nil {
			return err
		}

		for _, s := range top {
			fmt.Fprintf(w, "  %s %s\n", vespadet.Label(labels, s.Class), s)
		}
	}

	for _, det := range res.DetectResults {
		fmt.Fprintf(w, "%s @ (%s) %.4f cell=%d\n", vespadet.Label(labels, det.Class),
			det.Box, det.Probability, det.Cell)
	}

	fmt.Fprintf(w, "Detections: %d\n", len(res.DetectResults))

	return nil
}
