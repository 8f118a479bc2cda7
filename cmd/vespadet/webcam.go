//go:build gocv

package main

import (
	"github.com/swdee/go-vespadet/capture"
	"github.com/swdee/go-vespadet/capture/webcam"
	"github.com/swdee/go-vespadet/config"
	"go.uber.org/zap"
)

func init() {
	sourceOpeners["webcam"] = openWebcam
}

func openWebcam(cfg config.SourceConfig, log *zap.Logger) (capture.Source, error) {

	cam, err := webcam.Open(webcam.Options{
		Device:  cfg.Device,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Quality: cfg.Quality,
		Raw:     cfg.Raw,
	}, log.Named("webcam"))

	if err != nil {
		return nil, err
	}

	return cam, nil
}
