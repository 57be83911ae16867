package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoding, level and destination of the application logger.
type Options struct {
	JSON  bool
	Debug bool
	// Output is a zap sink path. Empty means stderr so that stdout carries results only.
	Output  string
	Version string
}

func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if opts.JSON {
		encoding = "json"
	}

	if opts.Debug {
		level = zapcore.DebugLevel
	}

	output := opts.Output
	if output == "" {
		output = "stderr"
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}

	// Caller lines are noise outside of debug runs.
	if !opts.Debug {
		cfg.DisableCaller = true
	}

	if opts.Version != "" {
		cfg.InitialFields = map[string]any{"version": opts.Version}
	}

	return cfg.Build()
}
