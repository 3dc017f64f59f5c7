package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	ParseMonitoring   = "parse"   // TOML document and expression parsing
	InterpMonitoring  = "interp"  // value expression interpretation
	BackingMonitoring = "backing" // address backing resolution
	EmitMonitoring    = "emit"    // C code emission
	DriverMonitoring  = "driver"  // file traversal and batch statistics
)

var root atomic.Value

func init() {
	root.Store(NewLogger(DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

func InitLogger(logLevel string) {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	InitLoggerWithLevel(os.Stderr, logLvl)
}

// InitLoggerWithLevel installs a terminal logger on w at the given level.
// Colour is used when w is a terminal.
func InitLoggerWithLevel(w io.Writer, lvl slog.Level) {
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(w, lvl, isTerminal(w))))
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

var knownModules = []string{ParseMonitoring, InterpMonitoring, BackingMonitoring, EmitMonitoring, DriverMonitoring}

// moduleEnabled gates Debug and Trace per module. Only the driver is on by
// default.
var (
	moduleMu      sync.RWMutex
	moduleEnabled = map[string]bool{DriverMonitoring: true}
)

// EnableModule enables logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = true
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = false
}

// EnableModules enables a comma separated list of modules. "all" enables
// every known module.
func EnableModules(modules string) {
	for _, module := range strings.Split(modules, ",") {
		module = strings.TrimSpace(module)
		switch module {
		case "":
		case "all":
			for _, m := range knownModules {
				EnableModule(m)
			}
		default:
			EnableModule(module)
		}
	}
}

// isModuleEnabled checks if logging is enabled for the given module.
func isModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace and Debug are dropped unless their module is enabled.
func Trace(module string, msg string, ctx ...any) {
	if isModuleEnabled(module) {
		Root().Write(LevelTrace, module, msg, ctx...)
	}
}

func Debug(module string, msg string, ctx ...any) {
	if isModuleEnabled(module) {
		Root().Write(LevelDebug, module, msg, ctx...)
	}
}

func Info(module string, msg string, ctx ...any)  { Root().Write(LevelInfo, module, msg, ctx...) }
func Warn(module string, msg string, ctx ...any)  { Root().Write(LevelWarn, module, msg, ctx...) }
func Error(module string, msg string, ctx ...any) { Root().Write(LevelError, module, msg, ctx...) }

func Crit(module string, msg string, ctx ...any) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}

func New(ctx ...any) Logger {
	return Root().With(ctx...)
}
