// Package logger is a thin wrapper building go.uber.org/zap loggers with a
// JSON encoder and optional lumberjack file rotation.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger from cfg. Output goes to cfg.FileName through a
// rotating writer, or to stderr when no file is configured.
func New(cfg Config) (*zap.Logger, error) {
	var w zapcore.WriteSyncer
	if cfg.FileName != "" {
		w = zapcore.AddSync(rotatingWriter(cfg))
	} else {
		w = zapcore.Lock(os.Stderr)
	}
	return NewWithWriter(cfg.Level, w)
}

// NewWithWriter builds a logger at the given level writing to w.
func NewWithWriter(level string, w io.Writer) (*zap.Logger, error) {
	lvl := new(zapcore.Level)
	if level == "" {
		level = "INFO"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	core := zapcore.NewCore(getEncoder(), zapcore.AddSync(w), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

func getEncoder() zapcore.Encoder {
	encodeConfig := zap.NewProductionEncoderConfig()
	encodeConfig.TimeKey = "time"
	encodeConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encodeConfig.EncodeDuration = zapcore.StringDurationEncoder
	encodeConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encodeConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewJSONEncoder(encodeConfig)
}

func rotatingWriter(cfg Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}
