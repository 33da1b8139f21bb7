package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerEmitsJSONWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New().SetOutput(buf).SetLevel(LevelDebug)

	logger.WithField("conversation", "abc").Info("appended", map[string]interface{}{"count": "2"})
	if buf.Len() == 0 {
		t.Fatalf("expected log output")
	}

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log json: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "appended" {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Fields["conversation"] != "abc" {
		t.Fatalf("expected WithField value to propagate")
	}
	if entry.Fields["count"] != "2" {
		t.Fatalf("expected call-site field to propagate")
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New().SetOutput(buf).SetLevel(LevelError)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected sub-error levels to be filtered, got %q", buf.String())
	}

	logger.Error("kept", map[string]interface{}{"k": "v"})
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected error log to be written")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestDefaultLoggerHelpers(t *testing.T) {
	old := Default
	defer func() { Default = old }()

	buf := &bytes.Buffer{}
	Default = New().SetOutput(buf).SetLevel(LevelDebug)

	Debug("first")
	Info("second")
	Warn("third")
	Error("fourth")

	output := buf.String()
	for _, want := range []string{"first", "second", "third", "fourth"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in default logger output, got %s", want, output)
		}
	}
}
