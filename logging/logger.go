// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger
type Options struct {
	// Level is the minimum level logged: debug, info, warn or error
	Level string
	// Format is json or console
	Format string
	// Stdout receives debug and info entries, os.Stdout when nil
	Stdout io.Writer
	// Stderr receives warn and higher entries, os.Stderr when nil
	Stderr io.Writer
}

// New returns a logger writing debug and info entries to stdout and warn,
// error and fatal entries to stderr
func New(opts Options) (*zap.Logger, error) {

	level, err := ParseLevel(opts.Level)

	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder

	switch strings.ToLower(opts.Format) {
	case "", "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	stdout, stderr := opts.Stdout, opts.Stderr

	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	// debug and info level enabler
	lowLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.WarnLevel
	})

	// warn, error and fatal level enabler
	highLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.WarnLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stdout)), lowLevel),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(stderr)), highLevel),
	)

	return zap.New(core), nil
}

// ParseLevel converts a level name, empty means info
func ParseLevel(s string) (zapcore.Level, error) {

	if s == "" {
		return zapcore.InfoLevel, nil
	}

	var l zapcore.Level

	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}

	return l, nil
}
