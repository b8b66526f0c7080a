package logging

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Cause records the innermost error of a wrapped chain.
func Cause(err error) Field {
	if err == nil {
		return Field{Key: "cause", Value: nil}
	}
	return Field{Key: "cause", Value: errors.UnwrapAll(err).Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers
func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}

// Join field helpers
func RunID(id string) Field {
	return String("run_id", id)
}

func JoinKind(kind string) Field {
	return String("join_kind", kind)
}

func Side(side string) Field {
	return String("side", side)
}

func Block(i int) Field {
	return Int("block", i)
}

func Rows(n int) Field {
	return Int("rows", n)
}

func Columns(n int) Field {
	return Int("join_columns", n)
}
