package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestFormats(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("info", "text", &buf).Info("assignment committed", "task_id", "task-1")
	if out := buf.String(); !strings.Contains(out, "task_id=task-1") {
		t.Errorf("text output missing attribute: %s", out)
	}

	buf.Reset()
	NewWithWriter("info", "json", &buf).Info("assignment committed", "task_id", "task-1")
	if out := buf.String(); !strings.Contains(out, `"task_id":"task-1"`) {
		t.Errorf("json output missing attribute: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", "text", &buf)
	logger.Info("quiet")
	logger.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Errorf("warn level filtering broken: %s", out)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := Level(tt.in); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
