package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	logger.Debug("This is a debug message")
	if !strings.Contains(buf.String(), "[DEBUG]") || !strings.Contains(buf.String(), "This is a debug message") {
		t.Errorf("Debug logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Info("This is an info message")
	if !strings.Contains(buf.String(), "[INFO]") || !strings.Contains(buf.String(), "This is an info message") {
		t.Errorf("Info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Warn("This is a warning message")
	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "This is a warning message") {
		t.Errorf("Warn logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Error("This is an error message")
	if !strings.Contains(buf.String(), "[ERROR]") || !strings.Contains(buf.String(), "This is an error message") {
		t.Errorf("Error logging failed, got: %s", buf.String())
	}
	buf.Reset()

	withField := logger.WithField("path", "/tmp/.DS_Store").WithField("records", 7)
	withField.Info("Message with fields")
	output := buf.String()
	if !strings.Contains(output, "[INFO]") ||
		!strings.Contains(output, "Message with fields") ||
		!strings.Contains(output, "path=/tmp/.DS_Store") ||
		!strings.Contains(output, "records=7") {
		t.Errorf("Logging with fields failed, got: %s", output)
	}
	buf.Reset()
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelWarn),
	)

	logger.Debug("suppressed")
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below LevelWarn, got: %s", buf.String())
	}

	logger.Warn("emitted")
	if !strings.Contains(buf.String(), "emitted") {
		t.Errorf("Warn not emitted at LevelWarn, got: %s", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	// Must not panic and must keep returning a usable logger.
	logger.Debug("dropped")
	logger.WithField("k", "v").Error("dropped")
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "LEVEL(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}
