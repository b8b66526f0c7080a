package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to unmarshal %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{" Info ", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"invalid", InfoLevel}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLookupLevel(t *testing.T) {
	if level, err := LookupLevel("warn"); err != nil || level != WarnLevel {
		t.Errorf("LookupLevel(warn) = %v, %v", level, err)
	}
	if _, err := LookupLevel("loud"); err == nil {
		t.Error("LookupLevel(loud) should fail")
	}
	if _, err := LookupLevel(""); err == nil {
		t.Error("LookupLevel(\"\") should fail")
	}
	if got := Level(42).String(); got != "unknown" {
		t.Errorf("Level(42).String() = %v, want unknown", got)
	}
	for _, name := range LevelNames() {
		level, err := LookupLevel(name)
		if err != nil || level.String() != name {
			t.Errorf("LookupLevel(%q) = %v, %v", name, level, err)
		}
	}
}

func TestJoinFields(t *testing.T) {
	tests := []struct {
		field Field
		key   string
		value any
	}{
		{RunID("r-1"), "run_id", "r-1"},
		{JoinKind("undef-inner"), "join_kind", "undef-inner"},
		{Side("left"), "side", "left"},
		{Block(3), "block", 3},
		{Rows(120), "rows", 120},
		{Columns(2), "join_columns", 2},
		{Path("/tmp/a.mjb"), "path", "/tmp/a.mjb"},
		{Duration("timeout", 5*time.Second), "timeout", "5s"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("field = %+v, want {Key:%s Value:%v}", tt.field, tt.key, tt.value)
			}
		})
	}
}

func TestErrorFields(t *testing.T) {
	root := errors.New("checksum mismatch")
	wrapped := errors.Wrap(errors.Wrap(root, "reading block 4"), "pulling left block")

	if f := Error(wrapped); f.Value != "pulling left block: reading block 4: checksum mismatch" {
		t.Errorf("Error() = %+v", f)
	}
	if f := Cause(wrapped); f.Key != "cause" || f.Value != "checksum mismatch" {
		t.Errorf("Cause() = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Error(nil) = %+v", f)
	}
	if f := Cause(nil); f.Value != nil {
		t.Errorf("Cause(nil) = %+v", f)
	}
}

func TestJSONLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("join finished", RunID("abc"), Rows(7))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "info" {
		t.Errorf("Level = %v, want info", entry.Level)
	}
	if entry.Message != "join finished" {
		t.Errorf("Message = %v", entry.Message)
	}
	if entry.Fields["run_id"] != "abc" {
		t.Errorf("run_id = %v, want abc", entry.Fields["run_id"])
	}
	if entry.Fields["rows"] != float64(7) { // JSON numbers decode as float64
		t.Errorf("rows = %v, want 7", entry.Fields["rows"])
	}
	if entry.Time == "" {
		t.Error("Time field is empty")
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != "warn" || entries[1].Level != "error" {
		t.Errorf("Levels = %s, %s", entries[0].Level, entries[1].Level)
	}

	logger.SetLevel(DebugLevel)
	if logger.GetLevel() != DebugLevel {
		t.Errorf("GetLevel() = %v, want debug", logger.GetLevel())
	}
	logger.Debug("now visible")
	if got := len(decodeEntries(t, &buf)); got != 3 {
		t.Errorf("Expected 3 entries after SetLevel, got %d", got)
	}
}

func TestJSONLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("join"), JoinKind("inner"))
	child.Info("pulled block", Side("right"), JoinKind("optional"))
	logger.Info("parent")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Fields["component"] != "join" {
		t.Errorf("component = %v, want join", entries[0].Fields["component"])
	}
	if entries[0].Fields["join_kind"] != "optional" {
		t.Errorf("call-site field should override preset, got %v", entries[0].Fields["join_kind"])
	}
	if entries[0].Fields["side"] != "right" {
		t.Errorf("side = %v, want right", entries[0].Fields["side"])
	}
	if entries[1].Fields != nil {
		t.Errorf("parent should not inherit child fields, got %v", entries[1].Fields)
	}
}

func TestJSONLogger_ConcurrentChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := logger.With(Block(i))
			for j := 0; j < 50; j++ {
				child.Info("row batch", Rows(j))
			}
		}(i)
	}
	wg.Wait()

	// Every line must decode; interleaved writes would corrupt the JSON.
	if got := len(decodeEntries(t, &buf)); got != 400 {
		t.Errorf("Expected 400 entries, got %d", got)
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	timer := StartTimer(logger, "join", RunID("t1"))
	elapsed := timer.End(Rows(3))
	if elapsed < 0 {
		t.Errorf("elapsed = %v", elapsed)
	}

	failed := StartTimer(logger, "join", RunID("t2"))
	failed.EndError(errors.Wrap(errors.New("boom"), "pulling right block"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "info" || entries[0].Fields["rows"] != float64(3) {
		t.Errorf("End entry = %+v", entries[0])
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Error("End entry has no latency")
	}
	if entries[1].Level != "error" {
		t.Errorf("EndError level = %v", entries[1].Level)
	}
	if entries[1].Fields["cause"] != "boom" || entries[1].Fields["run_id"] != "t2" {
		t.Errorf("EndError fields = %v", entries[1].Fields)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(LevelEnv, "Debug")
	if got := LevelFromEnv(ErrorLevel); got != DebugLevel {
		t.Errorf("LevelFromEnv() = %v, want debug", got)
	}

	t.Setenv(LevelEnv, "chatty")
	if got := LevelFromEnv(WarnLevel); got != WarnLevel {
		t.Errorf("LevelFromEnv() with a bad name = %v, want the fallback", got)
	}
}

func TestJSONLogger_FixedClock(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	logger.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	}

	logger.With(Side("left")).Info("pulled")

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Time != "2024-03-01T11:00:00Z" {
		t.Errorf("Time = %v, want UTC timestamp", entries[0].Time)
	}
}

func TestJSONLogger_ChildLevelIsIndependent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	child := logger.With(Component("query"))

	logger.SetLevel(ErrorLevel)
	child.Info("still visible")
	logger.Info("filtered")

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 || entries[0].Message != "still visible" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored", Rows(1))
	if logger.With(Side("left")) == nil {
		t.Error("With() returned nil")
	}
	if logger.GetLevel() != InfoLevel {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
}

func BenchmarkJSONLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("join finished", JoinKind("inner"), Rows(42))
	}
}

func BenchmarkJSONLogger_InfoFiltered(b *testing.B) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, ErrorLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("join finished", JoinKind("inner"), Rows(42))
	}
}
