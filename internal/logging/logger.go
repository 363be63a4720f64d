// Package logging provides a process-wide structured logger used by every
// package in this module. It mirrors the teacher's singleton-over-slog
// design: callers use the package-level functions rather than threading a
// logger through every constructor, and tests can swap the singleton to
// assert on emitted records.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// Get returns the current process-wide logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// SetLogger replaces the process-wide logger. Intended for tests and for
// bootstrap code (out of scope here) that wants a differently configured
// handler.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	singleton.Store(l)
}

func Debug(msg string)                       { Get().Debug(msg) }
func Debugf(format string, args ...any)       { Get().Debug(sprintf(format, args...)) }
func Debugw(msg string, kv ...any)            { Get().Debug(msg, kv...) }
func Info(msg string)                         { Get().Info(msg) }
func Infof(format string, args ...any)        { Get().Info(sprintf(format, args...)) }
func Infow(msg string, kv ...any)             { Get().Info(msg, kv...) }
func Warn(msg string)                         { Get().Warn(msg) }
func Warnf(format string, args ...any)        { Get().Warn(sprintf(format, args...)) }
func Warnw(msg string, kv ...any)             { Get().Warn(msg, kv...) }
func Error(msg string)                        { Get().Error(msg) }
func Errorf(format string, args ...any)       { Get().Error(sprintf(format, args...)) }
func Errorw(msg string, kv ...any)            { Get().Error(msg, kv...) }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
