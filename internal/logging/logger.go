package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file inside .rvmbridge/logs.
const FileName = "rvmbridge.log"

// Options controls the console side of the logger. The file always records
// debug and above.
type Options struct {
	Verbose bool
	// Console receives human readable output. Defaults to stderr.
	Console io.Writer
}

// Logger appends structured lines to .rvmbridge/logs/rvmbridge.log so users
// can inspect a run after the console window closes, and mirrors them on the
// console.
type Logger struct {
	*zap.Logger
	RunID string
	Path  string
	file  *os.File
}

// New creates (or reuses) the log file in logsDir and tags every entry with a
// fresh run id.
func New(logsDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logsDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := zapcore.InfoLevel
	if opts.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	consoleEncoder.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleEncoder.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(f), zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.AddSync(console), consoleLevel),
	)
	runID := uuid.NewString()
	logger := zap.New(core).With(zap.String("run", runID))
	return &Logger{Logger: logger, RunID: runID, Path: path, file: f}, nil
}

// Close flushes and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Logger.Sync()
	return l.file.Close()
}
