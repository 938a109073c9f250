package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func NewLogger(level string) zerolog.Logger {
	return newLogger(os.Stdout, level)
}

// NewFileLogger writes to stdout and to a size-rotated file at path.
// An empty path behaves like NewLogger.
func NewFileLogger(level, path string) zerolog.Logger {
	if path == "" {
		return NewLogger(level)
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	return newLogger(io.MultiWriter(os.Stdout, rotator), level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
