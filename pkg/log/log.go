// Package log wires the process-wide structured logger.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the package-wide sugared logger. Components call
// log.Logger.Infow/Errorw/Debugw directly rather than threading a
// logger through every constructor.
var Logger *zap.SugaredLogger

var mu sync.Mutex

func init() {
	l, _ := zap.NewProduction()
	Logger = l.Sugar()
}

// Options configures the package logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// FilePath, when set, rotates logs through lumberjack instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console renders human-readable, colorized lines instead of JSON.
	Console bool
}

// Configure rebuilds the package logger from Options. Safe to call once
// at process start, before any Port Worker or Manager goroutine starts.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	level := zapcore.InfoLevel
	switch opts.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Console {
		ccfg := zap.NewDevelopmentEncoderConfig()
		ccfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ccfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer
	if opts.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		ws = zapcore.AddSync(lj)
	} else {
		ws = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	core := zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(level))
	Logger = zap.New(core, zap.AddCaller()).Sugar()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
