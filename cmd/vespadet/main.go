// Command vespadet runs the quantized object detector over a directory of
// images or a camera, queries a model or decodes a recorded output tensor.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var app = &cli.App{
	Name:            "vespadet",
	Usage:           "on device quantized object detection",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
			EnvVars: []string{"VESPA_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "run",
			Usage:  "capture, normalize, infer and decode frames until the source is exhausted",
			Action: RunAction,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "max-frames",
					Usage: "stop after `N` frames, 0 runs until the source is exhausted",
				},
			},
		},
		{
			Name:   "query",
			Usage:  "print the engine version, model tensors and memory usage",
			Action: QueryAction,
		},
		{
			Name:      "decode",
			Usage:     "decode a raw output tensor dump with the replay engine tensors",
			ArgsUsage: "<dump file>",
			Action:    DecodeAction,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "scan",
					Usage: "print the best scoring cell and its top classes",
				},
			},
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
