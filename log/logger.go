package log

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"
)

const errorKey = "LOG_ERROR"

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

// verbosityLevels is indexed by how chatty the output should be.
var verbosityLevels = []slog.Level{LevelCrit, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}

// FromVerbosity converts a verbosity count (0 = crit only, 5 = trace) to a
// slog level. Counts past the end saturate at trace.
func FromVerbosity(v int) slog.Level {
	switch {
	case v < 0:
		return LevelCrit
	case v >= len(verbosityLevels):
		return LevelTrace
	}
	return verbosityLevels[v]
}

var levelNames = map[slog.Level][2]string{
	LevelTrace: {"TRACE", "trace"},
	LevelDebug: {"DEBUG", "debug"},
	LevelInfo:  {"INFO ", "info"},
	LevelWarn:  {"WARN ", "warn"},
	LevelError: {"ERROR", "error"},
	LevelCrit:  {"CRIT ", "crit"},
}

// LevelAlignedString returns the five character column name of l.
func LevelAlignedString(l slog.Level) string {
	if n, ok := levelNames[l]; ok {
		return n[0]
	}
	return "unknown level"
}

func LevelString(l slog.Level) string {
	if n, ok := levelNames[l]; ok {
		return n[1]
	}
	return "unknown"
}

// Logger writes module tagged key/value records to a slog.Handler.
type Logger interface {
	With(ctx ...any) Logger
	Write(level slog.Level, module string, msg string, attrs ...any)

	Trace(module string, msg string, ctx ...any)
	Debug(module string, msg string, ctx ...any)
	Info(module string, msg string, ctx ...any)
	Warn(module string, msg string, ctx ...any)
	Error(module string, msg string, ctx ...any)
	// Crit exits the process after writing.
	Crit(module string, msg string, ctx ...any)

	Enabled(ctx context.Context, level slog.Level) bool
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(ctx ...any) Logger { return &logger{l.inner.With(ctx...)} }

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

// Write records msg with the caller's pc so handlers can report the source.
func (l *logger) Write(level slog.Level, module string, msg string, attrs ...any) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	if len(attrs)%2 != 0 {
		attrs = append(attrs, nil, errorKey, "normalized odd number of arguments by adding nil")
	}
	r.Add(attrs...)
	l.inner.Handler().Handle(context.Background(), r)
}

func (l *logger) Trace(module string, msg string, ctx ...any) { l.Write(LevelTrace, module, msg, ctx...) }
func (l *logger) Debug(module string, msg string, ctx ...any) { l.Write(LevelDebug, module, msg, ctx...) }
func (l *logger) Info(module string, msg string, ctx ...any)  { l.Write(LevelInfo, module, msg, ctx...) }
func (l *logger) Warn(module string, msg string, ctx ...any)  { l.Write(LevelWarn, module, msg, ctx...) }
func (l *logger) Error(module string, msg string, ctx ...any) { l.Write(LevelError, module, msg, ctx...) }

func (l *logger) Crit(module string, msg string, ctx ...any) {
	l.Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}
