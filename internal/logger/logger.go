// Package logger builds the zap logger used by the datasplit command.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error (default info)
	Format string // console or json (default console)
	File   string // optional log file, rotated by size

	MaxSizeMB  int // rotation size (default 50)
	MaxBackups int // rotated files kept (default 3)
}

// New returns a logger writing to stderr and, when File is set, to a
// rotating JSON log file.
func New(opts Options) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil || opts.Level == "" {
		level = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(level)

	var enc zapcore.Encoder
	switch opts.Format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("logger: unknown format %q (want console or json)", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), atom),
	}

	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 50
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, atom))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
