package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LevelEnv names the environment variable LevelFromEnv reads.
const LevelEnv = "LOG_LEVEL"

// NewJSONLogger creates a logger writing to w at the given level.
func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	return &JSONLogger{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		now:   time.Now,
	}
}

// LevelFromEnv returns the level named by LOG_LEVEL, or fallback when the
// variable is unset or names no level.
func LevelFromEnv(fallback Level) Level {
	name, ok := os.LookupEnv(LevelEnv)
	if !ok {
		return fallback
	}
	level, err := LookupLevel(name)
	if err != nil {
		return fallback
	}
	return level
}

func (l *JSONLogger) log(level Level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := Entry{
		Time:    l.now().UTC().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
		Fields:  collect(l.preset, fields),
	}
	// One Write per entry keeps lines from concurrent children whole.
	line, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.w, `{"level":"error","msg":"unencodable log entry","cause":%q}`+"\n", err.Error())
		return
	}
	_, _ = l.w.Write(append(line, '\n'))
}

// collect flattens preset and call-site fields into one map. Call-site
// fields win on duplicate keys.
func collect(preset, fields []Field) map[string]any {
	if len(preset)+len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(preset)+len(fields))
	for _, f := range preset {
		m[f.Key] = f.Value
	}
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child logger. The child starts at the parent's current
// level; later SetLevel calls on either one do not affect the other.
func (l *JSONLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	preset := make([]Field, 0, len(l.preset)+len(fields))
	preset = append(preset, l.preset...)
	preset = append(preset, fields...)
	return &JSONLogger{
		mu:     l.mu,
		w:      l.w,
		level:  l.level,
		preset: preset,
		now:    l.now,
	}
}

func (l *JSONLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *JSONLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// StartTimer begins timing an operation
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{
		logger: logger,
		msg:    msg,
		start:  time.Now(),
		fields: fields,
	}
}

// End logs the operation at info level and returns its duration
func (t *TimedOperation) End(extra ...Field) time.Duration {
	return t.EndWithLevel(InfoLevel, t.msg, extra...)
}

// EndWithLevel logs msg at level with the elapsed time as latency.
func (t *TimedOperation) EndWithLevel(level Level, msg string, extra ...Field) time.Duration {
	elapsed := time.Since(t.start)
	fields := make([]Field, 0, len(t.fields)+len(extra)+1)
	fields = append(append(fields, t.fields...), extra...)
	fields = append(fields, Latency(elapsed))

	log := t.logger.Info
	switch level {
	case DebugLevel:
		log = t.logger.Debug
	case WarnLevel:
		log = t.logger.Warn
	case ErrorLevel:
		log = t.logger.Error
	}
	log(msg, fields...)
	return elapsed
}

// EndError logs the operation at error level with err and its root cause.
func (t *TimedOperation) EndError(err error, extra ...Field) time.Duration {
	return t.EndWithLevel(ErrorLevel, t.msg, append(extra, Error(err), Cause(err))...)
}
