package logger

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// captureStdout runs f with os.Stdout redirected to a pipe and returns the output.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	f()

	_ = w.Close()
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func TestLoggerIncludesServiceAndStack(t *testing.T) {
	out := captureStdout(t, func() {
		l := New("citycal-test", "info", false)
		l.Error().Stack().Err(errors.New("boom")).Msg("failed")
	})

	line := strings.TrimSpace(out)
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not json: %q: %v", line, err)
	}
	if entry["service"] != "citycal-test" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
	if _, ok := entry["stack"]; !ok {
		t.Errorf("expected stack field in %v", entry)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	out := captureStdout(t, func() {
		l := New("citycal-test", "warn", false)
		l.Info().Msg("hidden")
		l.Warn().Msg("shown")
	})
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestLoggerBadLevelFallsBackToInfo(t *testing.T) {
	l := New("citycal-test", "loud", false)
	if l.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v", l.GetLevel())
	}
}
