// Package logger provides the console logger used by the stitch pipeline.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	l10n "github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
)

// Level is the severity of a log message.
type Level int

// Log levels
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelQuiet
)

// String returns the level name.
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
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name. Unknown names give LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet", "silent":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger is a levelled logger. Messages are translation keys formatted with
// args.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// LogMessage records a pipeline milestone and reports write failures.
	LogMessage(msg string) error

	// WithComponent returns a Logger that prefixes messages with component.
	WithComponent(component string) Logger
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// Console writes log lines to an io.Writer.
type Console struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	component string
	color     bool
}

// NewConsole creates a logger writing to stderr. Color is enabled when
// stderr is a terminal.
func NewConsole(level Level) *Console {
	fd := os.Stderr.Fd()
	return &Console{
		mu:    &sync.Mutex{},
		out:   os.Stderr,
		level: level,
		color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// New creates a logger writing uncolored lines to w.
func New(w io.Writer, level Level) *Console {
	return &Console{mu: &sync.Mutex{}, out: w, level: level}
}

// Debug logs a translated debug message.
func (l *Console) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }

// Info logs a translated informational message.
func (l *Console) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args...) }

// Warn logs a translated warning.
func (l *Console) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args...) }

// Error logs a translated error.
func (l *Console) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

// LogMessage writes a milestone at info level and returns any write error.
func (l *Console) LogMessage(msg string) error {
	return l.write(LevelInfo, l10n.T(msg))
}

// WithComponent returns a copy of l that prefixes lines with component.
func (l *Console) WithComponent(component string) Logger {
	c := *l
	c.component = component
	return &c
}

func (l *Console) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.write(level, l10n.F(msg, args...))
}

func (l *Console) write(level Level, line string) error {
	if level < l.level {
		return nil
	}

	if l.component != "" {
		if l.color {
			line = fmt.Sprintf("%s[%s]%s %s", colorCyan, l.component, colorReset, line)
		} else {
			line = fmt.Sprintf("[%s] %s", l.component, line)
		}
	}

	if l.color {
		switch level {
		case LevelDebug:
			line = colorGray + line + colorReset
		case LevelWarn:
			line = colorYellow + line + colorReset
		case LevelError:
			line = colorRed + line + colorReset
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintln(l.out, line)
	return err
}

// Noop discards everything.
type Noop struct{}

// NewNoop creates a logger for quiet runs.
func NewNoop() *Noop { return &Noop{} }

// Debug discards the message.
func (Noop) Debug(msg string, args ...interface{}) {}

// Info discards the message.
func (Noop) Info(msg string, args ...interface{}) {}

// Warn discards the message.
func (Noop) Warn(msg string, args ...interface{}) {}

// Error discards the message.
func (Noop) Error(msg string, args ...interface{}) {}

// LogMessage discards the milestone.
func (Noop) LogMessage(msg string) error { return nil }

// WithComponent returns n.
func (n *Noop) WithComponent(component string) Logger { return n }
