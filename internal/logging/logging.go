package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a deliberately small, framework-agnostic logging interface.
// Packages depend on it rather than on zerolog so tests can record calls.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// ZeroLogger implements Logger on top of zerolog and prints JSON lines.
type ZeroLogger struct {
	zl zerolog.Logger
}

// NewStdoutLogger creates a JSON logger on stdout at info level. component is
// optional and is attached to every line.
func NewStdoutLogger(component string) *ZeroLogger {
	return NewLogger(os.Stdout, component, "info")
}

// NewLogger creates a logger writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, component, level string) *ZeroLogger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

func (z *ZeroLogger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			ev = ev.AnErr(f.Key, v)
		case time.Duration:
			ev = ev.Str(f.Key, v.String())
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

func (z *ZeroLogger) Debug(msg string, fields ...Field) { z.emit(z.zl.Debug(), msg, fields) }

func (z *ZeroLogger) Info(msg string, fields ...Field) { z.emit(z.zl.Info(), msg, fields) }

func (z *ZeroLogger) Warn(msg string, fields ...Field) { z.emit(z.zl.Warn(), msg, fields) }

func (z *ZeroLogger) Error(msg string, fields ...Field) { z.emit(z.zl.Error(), msg, fields) }

// With returns a child logger carrying fields on every line.
func (z *ZeroLogger) With(fields ...Field) Logger {
	ctx := z.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZeroLogger{zl: zerolog.Nop()}
}
