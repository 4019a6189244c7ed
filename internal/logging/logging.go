// Package logging is a small leveled logger over the standard log package.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents the logging level.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// CurrentLevel returns the global log level.
func CurrentLevel() Level {
	return Level(level.Load())
}

// SetVerbose enables debug logging, or restores info.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelInfo)
	}
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// ParseLevel maps a config string to a Level; unknown names yield info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func logf(l Level, prefix, format string, args ...any) {
	if CurrentLevel() >= l {
		logger.Printf(prefix+format, args...)
	}
}

// Error logs an error message.
func Error(format string, args ...any) { logf(LevelError, "[ERROR] ", format, args...) }

// Warn logs a warning message.
func Warn(format string, args ...any) { logf(LevelWarn, "[WARN] ", format, args...) }

// Info logs an info message.
func Info(format string, args ...any) { logf(LevelInfo, "[INFO] ", format, args...) }

// Debug logs a debug message.
func Debug(format string, args ...any) { logf(LevelDebug, "[DEBUG] ", format, args...) }
