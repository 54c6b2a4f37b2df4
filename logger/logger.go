// Package logger wraps zap with package-level Debug/Info/Warn/Error
// helpers over a rotated, optionally console-mirrored sink.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors config.LoggerConfig; kept separate so this package has no
// import-cycle on config.
type Config struct {
	Level       string
	File        string
	MaxFileSize int
	Console     bool
}

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

func init() {
	log = zap.NewNop().Sugar()
}

// Configure installs the process-wide logger. Call once at startup, before
// any other package logs.
func Configure(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return fmt.Errorf("invalid logger level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core

	if cfg.File != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  cfg.MaxFileSize,
			Compress: true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), w, level))
	}

	if cfg.Console || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	core := zapcore.NewTee(cores...)

	mu.Lock()
	log = zap.New(core).Sugar()
	mu.Unlock()
	return nil
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(template string, args ...any) { get().Debugf(template, args...) }
func Info(template string, args ...any)  { get().Infof(template, args...) }
func Warn(template string, args ...any)  { get().Warnf(template, args...) }
func Error(template string, args ...any) { get().Errorf(template, args...) }

// Sync flushes buffered log entries; call before process exit.
func Sync() error {
	return get().Sync()
}
