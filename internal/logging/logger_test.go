package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewAutoFormatFallsBackToJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "auto", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", slog.Int("n", 3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" {
		t.Fatalf("unexpected msg: %v", rec["msg"])
	}
}

func TestNewConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewRejectsUnknownFormatAndLevel(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNopIsDisabled(t *testing.T) {
	if Nop().Enabled(t.Context(), slog.LevelError) {
		t.Fatal("nop logger should be disabled at every level")
	}
}
