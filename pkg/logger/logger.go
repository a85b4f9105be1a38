// Package logger provides the context-carried structured logger used
// throughout mcphub, backed by charmbracelet/log.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is the user-facing level name, decoupled from charmlog's type
// so configuration layers never need to import charmbracelet/log directly.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel maps a LogLevel to charmlog's level type. Unknown values
// default to InfoLevel; DisabledLevel maps to a level above Error so nothing
// is ever emitted.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Logger is the interface the rest of mcphub programs against.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

// Config configures a Logger instance.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the configuration used outside of tests: info level,
// text formatting, writing to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig returns a logger configuration that discards all output,
// suitable for unit tests that don't want logging noise.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args {
		if strings.Contains(arg, "-test.") {
			return true
		}
	}
	return false
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds a Logger from config. A nil config uses TestConfig when
// running under `go test` and DefaultConfig otherwise.
func NewLogger(config *Config) Logger {
	if config == nil {
		if IsTestEnvironment() {
			config = TestConfig()
		} else {
			config = DefaultConfig()
		}
	}

	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      config.TimeFormat,
		ReportCaller:    config.AddSource,
	}
	if config.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	l := charmlog.NewWithOptions(out, opts)
	l.SetLevel(config.Level.ToCharmlogLevel())
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

type ctxKey string

// LoggerCtxKey is the context key a Logger is stored/retrieved under.
const LoggerCtxKey ctxKey = "mcphub.logger"

var defaultLogger = NewLogger(nil)

// ContextWithLogger returns a child context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the Logger carried by ctx, falling back to a package
// default logger when absent, of the wrong type, or nil.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}

// InitForTests installs a disabled-output default logger, used by test
// helpers that don't thread a context-bound logger explicitly.
func InitForTests() {
	defaultLogger = NewLogger(TestConfig())
}

// SetupLogger builds and returns the process-wide default logger from CLI
// flags, matching the shape the cobra entrypoint wires up at startup.
func SetupLogger(level LogLevel, jsonOutput bool, addSource bool) Logger {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.JSON = jsonOutput
	cfg.AddSource = addSource
	l := NewLogger(cfg)
	defaultLogger = l
	return l
}
