package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{Level: InfoLevel, Format: TextFormat, Output: buf})

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message should not appear when level is Info")
	}

	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("Info message should appear when level is Info")
	}

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Error("Output should contain the info message")
	}
	if !strings.Contains(output, "[INFO]") {
		t.Error("Output should contain the INFO level")
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: buf})

	logger.Info("test message", map[string]interface{}{"allocated_bytes": 42})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Fields["allocated_bytes"] != float64(42) {
		t.Errorf("expected allocated_bytes=42, got %v", entry.Fields["allocated_bytes"])
	}
}

func TestWithComponentAndField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&Config{Level: InfoLevel, Format: JSONFormat, Output: buf}).WithComponent("fabric")

	logger.WithField("stream", "s1").Info("queue grown")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry.Fields["component"] != "fabric" {
		t.Errorf("expected component=fabric, got %v", entry.Fields["component"])
	}
	if entry.Fields["stream"] != "s1" {
		t.Errorf("expected stream=s1, got %v", entry.Fields["stream"])
	}
}

func TestParseLogLevel(t *testing.T) {
	if _, err := ParseLogLevel("bogus"); err == nil {
		t.Error("expected an error for an unrecognized level")
	}
	lvl, err := ParseLogLevel("warn")
	if err != nil || lvl != WarnLevel {
		t.Errorf("expected WarnLevel, got %v, err=%v", lvl, err)
	}
}

func TestGetGlobalLoggerIsASingletonUntilReinitialized(t *testing.T) {
	first := GetGlobalLogger()
	second := GetGlobalLogger()
	if first != second {
		t.Error("GetGlobalLogger should return the same instance without an intervening InitGlobalLogger")
	}

	InitGlobalLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &bytes.Buffer{}})
	if GetGlobalLogger() == first {
		t.Error("InitGlobalLogger should replace the global logger instance")
	}
}
