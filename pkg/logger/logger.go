package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var (
	colorTime   = newColor(color.FgHiBlack)
	colorPrefix = newColor(color.FgCyan)
	colorFields = newColor(color.FgHiBlack)
	colorTitle  = newColor(color.FgCyan, color.Bold)
	levelColors = map[Level]*color.Color{
		DebugLevel: newColor(color.FgHiBlack),
		InfoLevel:  newColor(color.FgGreen),
		WarnLevel:  newColor(color.FgYellow),
		ErrorLevel: newColor(color.FgRed),
		FatalLevel: newColor(color.FgRed, color.Bold),
	}
)

// newColor returns a color that always emits escape codes. Whether color is
// written at all is decided per logger, not by the process wide
// color.NoColor switch.
func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// output is shared by a logger and every child derived from it, so level
// and color changes apply to the whole tree.
type output struct {
	mu       sync.Mutex
	level    Level
	writer   io.Writer
	noColor  bool
	showTime bool
}

type logger struct {
	out    *output
	fields map[string]interface{}
	prefix string
}

// Default logger instance
var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a logger writing to stdout. Color is disabled when stdout is
// not a terminal.
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		NoColor:  !IsTerminal(os.Stdout),
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &logger{
		out: &output{
			level:    cfg.Level,
			writer:   cfg.Writer,
			noColor:  cfg.NoColor,
			showTime: cfg.ShowTime,
		},
		fields: make(map[string]interface{}),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Default returns the package level logger.
func Default() Logger {
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.level = level
		l.out.mu.Unlock()
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.noColor = noColor
		l.out.mu.Unlock()
	}
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.writer = w
		l.out.mu.Unlock()
	}
}

// ColorEnabled reports whether the default logger writes color.
func ColorEnabled() bool {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return !l.out.noColor
	}
	return false
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func paint(c *color.Color, noColor bool, s string) string {
	if noColor {
		return s
	}
	return c.Sprint(s)
}

func (l *logger) log(level Level, args ...interface{}) {
	o := l.out
	o.mu.Lock()

	if level < o.level {
		o.mu.Unlock()
		return
	}

	var parts []string

	if o.showTime {
		parts = append(parts, paint(colorTime, o.noColor, time.Now().Format("15:04:05")))
	}

	parts = append(parts, paint(levelColors[level], o.noColor, levelString(level)))

	if l.prefix != "" {
		parts = append(parts, paint(colorPrefix, o.noColor, "["+l.prefix+"]"))
	}

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, paint(colorFields, o.noColor, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, fmt.Sprint(args...))

	_, _ = fmt.Fprintln(o.writer, strings.Join(parts, " "))

	o.mu.Unlock()

	// Exit on fatal (after unlocking mutex)
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	l.log(level, fmt.Sprintf(format, args...))
}

func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO "
	case WarnLevel:
		return "WARN "
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l *logger) Debug(args ...interface{})                 { l.log(DebugLevel, args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }
func (l *logger) Info(args ...interface{})                  { l.log(InfoLevel, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.logf(InfoLevel, format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.log(WarnLevel, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.logf(WarnLevel, format, args...) }
func (l *logger) Error(args ...interface{})                 { l.log(ErrorLevel, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }
func (l *logger) Fatal(args ...interface{})                 { l.log(FatalLevel, args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.logf(FatalLevel, format, args...) }

func (l *logger) child(prefix string, extra map[string]interface{}) *logger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &logger{out: l.out, fields: fields, prefix: prefix}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.child(l.prefix, map[string]interface{}{key: value})
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	return l.child(l.prefix, fields)
}

func (l *logger) WithPrefix(prefix string) Logger {
	return l.child(prefix, nil)
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
