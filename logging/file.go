package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for log files.
const (
	logFileMaxSizeMB  = 64
	logFileMaxBackups = 3
)

// NewFileLogger returns an Info+ logger that writes to stderr and also appends JSON entries to a
// size-rotated file at path. Closing the returned io.Closer releases the file.
func NewFileLogger(name, path string) (Logger, io.Closer) {
	config := NewLoggerConfig()
	fileEncoder := config.EncoderConfig
	fileEncoder.EncodeLevel = zapcore.CapitalLevelEncoder

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	console := zap.Must(config.Build())
	core := zapcore.NewTee(
		console.Core(),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(sink), config.Level),
	)
	return &impl{
		SugaredLogger: zap.New(core, zap.AddCaller()).Sugar().Named(name),
		name:          name,
		level:         config.Level,
	}, sink
}
