// Package logging provides structured logging for the POS terminal core.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	global *zerolog.Logger
)

// Init initializes the global logger. Level is one of debug, info, warn,
// error; anything else falls back to info.
func Init(out io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	global = &l
	mu.Unlock()
}

// Get returns the global logger instance, initializing it with defaults if
// Init was never called.
func Get() *zerolog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		Init(os.Stdout, "info")
		mu.RLock()
		l = global
		mu.RUnlock()
	}
	return l
}

func emit(ev *zerolog.Event, message string, fields map[string]interface{}) {
	if fields != nil {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

// Debug logs a debug message with optional context fields.
func Debug(message string, fields map[string]interface{}) {
	emit(Get().Debug(), message, fields)
}

// Info logs an info message with optional context fields.
func Info(message string, fields map[string]interface{}) {
	emit(Get().Info(), message, fields)
}

// Warn logs a warning message with optional context fields.
func Warn(message string, fields map[string]interface{}) {
	emit(Get().Warn(), message, fields)
}

// Error logs an error message with optional context fields.
func Error(message string, err error, fields map[string]interface{}) {
	ev := Get().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	emit(ev, message, fields)
}

// ErrorWithCode logs an error message tagged with an application error code.
func ErrorWithCode(message string, code string, err error, fields map[string]interface{}) {
	ev := Get().Error().Str("code", code)
	if err != nil {
		ev = ev.Err(err)
	}
	emit(ev, message, fields)
}
