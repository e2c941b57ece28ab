// Package logging provides the structured logger shared by every package.
// It keeps a small field-oriented API and writes JSON lines through zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Option is passed to the log methods; it attaches one or more fields.
type Option func(*zerolog.Event)

func WithField(key string, value interface{}) Option {
	return func(e *zerolog.Event) {
		e.Interface(key, value)
	}
}

func WithFields(fields map[string]interface{}) Option {
	return func(e *zerolog.Event) {
		e.Fields(fields)
	}
}

func WithError(err error) Option {
	return func(e *zerolog.Event) {
		e.Err(err)
	}
}

type Logger struct {
	level Level
	zl    zerolog.Logger
}

// New creates a logger writing to stdout.
func New(level Level) *Logger {
	return NewWithWriter(level, os.Stdout)
}

func NewWithWriter(level Level, w io.Writer) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{level: level, zl: zl}
}

// Level reports the minimum level this logger emits.
func (l *Logger) Level() Level {
	return l.level
}

// Zerolog exposes the underlying logger for middleware such as hlog.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Named returns a child logger tagging every entry with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		level: l.level,
		zl:    l.zl.With().Str("component", component).Logger(),
	}
}

func (l *Logger) Debug(msg string, opts ...Option) {
	l.write(l.zl.Debug(), msg, opts)
}

func (l *Logger) Info(msg string, opts ...Option) {
	l.write(l.zl.Info(), msg, opts)
}

func (l *Logger) Warn(msg string, opts ...Option) {
	l.write(l.zl.Warn(), msg, opts)
}

func (l *Logger) Error(msg string, opts ...Option) {
	l.write(l.zl.Error(), msg, opts)
}

func (l *Logger) write(e *zerolog.Event, msg string, opts []Option) {
	// zerolog hands back a nil event when the level is disabled
	if e == nil {
		return
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Msg(msg)
}
