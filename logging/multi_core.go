package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore creates a zapcore.Core that tees output to the console and a
// rotating log file. An empty filePath gives a console-only core.
//
// The file output always uses JSON. The console is coloured and
// human-readable in development, JSON otherwise.
func NewMultiCore(level zapcore.Level, filePath string, isDev bool) (zapcore.Core, error) {
	console := zapcore.Lock(os.Stdout)
	if filePath == "" {
		return newConsoleCore(level, console, isDev), nil
	}
	if err := ensureLogDir(filePath); err != nil {
		return nil, err
	}
	return NewMultiCoreWithWriters(level, console, NewFileWriter(filePath), isDev), nil
}

// NewMultiCoreWithWriters tees output to the provided writers. Tests pass
// buffers here.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)
	return zapcore.NewTee(newConsoleCore(level, consoleWriter, isDev), fileCore)
}

func newConsoleCore(level zapcore.Level, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, w, level)
}
