package logging

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Level represents a log level
type Level int

const (
	// DebugLevel reports every join run, including the successful ones
	DebugLevel Level = iota
	// InfoLevel is the default
	InfoLevel
	// WarnLevel reports rejected requests
	WarnLevel
	// ErrorLevel reports failed joins and block file errors
	ErrorLevel
)

// levelNames are the names accepted in configuration and written to the
// "level" key of every entry.
var levelNames = [...]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
}

func (l Level) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// LevelNames returns the accepted level names from most to least verbose.
func LevelNames() []string {
	return append([]string(nil), levelNames[:]...)
}

// LookupLevel converts a level name to a Level. Names are case-insensitive
// and "warning" is accepted for WarnLevel.
func LookupLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return WarnLevel, nil
	}
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return InfoLevel, errors.Newf("unknown log level %q (want one of %s)", s, strings.Join(levelNames[:], ", "))
}

// ParseLevel is LookupLevel falling back to InfoLevel.
func ParseLevel(s string) Level {
	level, err := LookupLevel(s)
	if err != nil {
		return InfoLevel
	}
	return level
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that adds fields to every entry
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON Entry per line. Children created with With
// share the parent's lock and writer but not its level.
type JSONLogger struct {
	mu     *sync.Mutex
	w      io.Writer
	level  Level
	preset []Field
	now    func() time.Time
}

// Entry is one line of JSONLogger output.
type Entry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (n NopLogger) With(...Field) Logger { return n }
func (NopLogger) SetLevel(Level)         {}
func (NopLogger) GetLevel() Level        { return InfoLevel }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation logs the duration of an operation when it ends.
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
