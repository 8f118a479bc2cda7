package main

import (
	"github.com/swdee/go-vespadet/memory"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

// QueryAction corresponds to `vespadet query`
func QueryAction(c *cli.Context) (err error) {

	cfg, log, err := loadConfig(c)

	if err != nil {
		return err
	}

	defer log.Sync()

	alloc := memory.NewAllocator(cfg.Memory.Internal, cfg.Memory.HighCapacity)

	rt, err := newRuntime(cfg, alloc, log)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, rt.Close()) }()

	return rt.Query(c.App.Writer)
}
