// Package logging provides the three named log streams of the service:
// operation (registrations, edits, approvals), error, and access (HTTP).
// Streams are explicit slog handles passed into components, not globals.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Loggers carries the process's named log streams.
type Loggers struct {
	Operation *slog.Logger
	Error     *slog.Logger
	Access    *slog.Logger
}

// Setup initializes rotating file handlers under logDir (10MB per file,
// 5 backups) and returns the stream handles. The operation stream also
// mirrors to stdout.
func Setup(logDir, level string) (*Loggers, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	lvl := parseLevel(level)

	operationOut := io.MultiWriter(rotatingFile(logDir, "operation.log"), os.Stdout)
	loggers := &Loggers{
		Operation: slog.New(slog.NewTextHandler(operationOut, &slog.HandlerOptions{Level: lvl})),
		Error: slog.New(slog.NewTextHandler(rotatingFile(logDir, "error.log"),
			&slog.HandlerOptions{Level: slog.LevelError})),
		Access: slog.New(slog.NewTextHandler(rotatingFile(logDir, "access.log"),
			&slog.HandlerOptions{Level: slog.LevelInfo})),
	}

	slog.SetDefault(loggers.Operation)
	return loggers, nil
}

func rotatingFile(dir, name string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
