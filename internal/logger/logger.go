package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is a log severity level
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu       sync.RWMutex
	level    = LevelInfo
	out      io.Writer = os.Stderr
	std                = log.New(os.Stderr, "", log.LstdFlags)
	fileSink *os.File
)

// ParseLevel converts a level name into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// SetLevel sets the minimum level that will be emitted
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetFile mirrors log output to the given file path in addition to stderr.
// Passing an empty path disables the file sink.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
	if path == "" {
		out = os.Stderr
		std.SetOutput(out)
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	fileSink = f
	out = io.MultiWriter(os.Stderr, f)
	std.SetOutput(out)
	return nil
}

func logf(l Level, tag, format string, args ...any) {
	mu.RLock()
	min := level
	mu.RUnlock()
	if l < min {
		return
	}
	std.Printf(tag+" "+format, args...)
}

// Trace logs at trace level
func Trace(format string, args ...any) { logf(LevelTrace, "[TRACE]", format, args...) }

// Debug logs at debug level
func Debug(format string, args ...any) { logf(LevelDebug, "[DEBUG]", format, args...) }

// Info logs at info level
func Info(format string, args ...any) { logf(LevelInfo, "[INFO]", format, args...) }

// Warn logs at warn level
func Warn(format string, args ...any) { logf(LevelWarn, "[WARN]", format, args...) }

// Error logs at error level
func Error(format string, args ...any) { logf(LevelError, "[ERROR]", format, args...) }

// Fatal logs at fatal level and exits
func Fatal(format string, args ...any) {
	logf(LevelFatal, "[FATAL]", format, args...)
	os.Exit(1)
}
