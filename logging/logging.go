// Package logging contains the zap-backed logger used by the aligner.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface passed through the aligner. It is satisfied by a
// *zap.SugaredLogger with a few additions for naming and level control.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
	AsZap() *zap.SugaredLogger
}

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		// stdout carries the calibration documents, so logs go to stderr.
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs.
func NewLogger(name string) Logger {
	return newLoggerAt(name, INFO)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs.
func NewDebugLogger(name string) Logger {
	return newLoggerAt(name, DEBUG)
}

// NewBlankLogger returns a logger that discards everything. Useful as a default.
func NewBlankLogger(name string) Logger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &impl{SugaredLogger: zap.NewNop().Sugar().Named(name), name: name, level: level}
}

func newLoggerAt(name string, lvl Level) Logger {
	config := NewLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(lvl.AsZap())
	return &impl{
		SugaredLogger: zap.Must(config.Build()).Sugar().Named(name),
		name:          name,
		level:         config.Level,
	}
}
