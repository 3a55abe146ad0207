// Package logger is the structured logger of the skills hub: typed fields on
// top of a log/slog JSON or text handler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level is a slog level; lower is more verbose.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel accepts debug, info, warn/warning and error in any case.
// Anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is one key/value pair of a log entry.
type Field = slog.Attr

func String(key, value string) Field    { return slog.String(key, value) }
func Int(key string, value int) Field   { return slog.Int(key, value) }
func Bool(key string, value bool) Field { return slog.Bool(key, value) }
func Any(key string, value any) Field   { return slog.Any(key, value) }

// Duration is rendered as text ("1.5s") in both formats.
func Duration(key string, value time.Duration) Field {
	return slog.String(key, value.String())
}

// Err logs the message only, so wrapped errors stay readable in JSON.
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Domain fields.
func UserID(id string) Field        { return String("user_id", id) }
func SkillID(id string) Field       { return String("skill_id", id) }
func RecordID(id string) Field      { return String("record_id", id) }
func Status(s string) Field         { return String("status", s) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

const RequestIDKey = "request_id"

// Format selects the handler encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Options struct {
	Output    io.Writer // os.Stdout when nil
	Level     Level
	Format    Format // JSON unless FormatText
	AddCaller bool
}

type Logger struct {
	sl *slog.Logger
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddCaller}

	var h slog.Handler = slog.NewJSONHandler(opts.Output, hopts)
	if opts.Format == FormatText {
		h = slog.NewTextHandler(opts.Output, hopts)
	}
	return &Logger{sl: slog.New(h)}
}

// Default logs JSON at info level to stdout.
func Default() *Logger {
	return New(Options{})
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{sl: slog.New(slog.DiscardHandler)}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{sl: l.sl.With(args(fields)...)}
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.sl.Debug(msg, args(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.sl.Info(msg, args(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.sl.Warn(msg, args(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.sl.Error(msg, args(fields)...) }

func args(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

type ctxKey struct{}

// WithContext attaches l to ctx for FromContext.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Default when none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
