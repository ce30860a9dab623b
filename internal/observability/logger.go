// Package observability wires up the service's structured logging as a
// package-level *zap.Logger (observability.CLILogger, referenced from
// internal/cmd) rather than a logger threaded through every call site.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServerLogger is the process-wide logger used by the serve command in
// internal/cmd for server start and shutdown messages.
// CLILogger is the logger used by the cobra command tree. Both are set by
// Init and default to zap's no-op logger before that so tests and library
// consumers never hit a nil pointer.
var (
	ServerLogger = zap.NewNop()
	CLILogger    = zap.NewNop()
)

// LogConfig controls how Init builds the process loggers.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// FilePath, when non-empty, additionally writes JSON logs to a
	// lumberjack-rotated file. Stderr output always happens regardless.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds ServerLogger and CLILogger from cfg. It never returns an
// error: an unparseable level falls back to info, since a server that
// starts with the wrong log level beats one that refuses to start at all.
func Init(cfg LogConfig) {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller())

	ServerLogger = logger.Named("server")
	CLILogger = logger.Named("cli")
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
