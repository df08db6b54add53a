package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")

	l, err := NewToFile("info", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	l.Debug("hidden")
	l.With(String("call", "weekly-suggestions")).Info("loaded", Int("count", 4))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("Debug line should be filtered at info level")
	}
	if !strings.Contains(out, `"call":"weekly-suggestions"`) || !strings.Contains(out, `"count":4`) {
		t.Errorf("Expected structured fields in output, got %s", out)
	}
}
