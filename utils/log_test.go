package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, WARN)

	log.Debug("hidden %d", 1)
	log.Info("also hidden")
	log.Warn("shown %s", "warning")
	log.Error("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warning") {
		t.Errorf("warn line missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR] shown error") {
		t.Errorf("error line missing: %q", out)
	}
}

func TestLogger_SetMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, ERROR)

	log.Info("before")
	log.SetMinLevel(TRACE)
	log.Trace("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("INFO leaked at ERROR level: %q", out)
	}
	if !strings.Contains(out, "[TRACE] after") {
		t.Errorf("trace line missing after lowering the level: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"trace", TRACE},
		{"DEBUG", DEBUG},
		{"warning", WARN},
		{"critical", CRITICAL},
		{"nonsense", INFO},
		{"", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
