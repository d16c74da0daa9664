package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" INFO ", zerolog.InfoLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("x", 100), 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
}

func TestFormatAlertJSON(t *testing.T) {
	t.Parallel()
	msg := formatAlertJSON([]byte(`{"level":"warn","message":"send failed","recipient":"+5255"}`))
	if !strings.HasPrefix(msg, "[WARN] send failed") {
		t.Fatalf("formatted = %q", msg)
	}
	if !strings.Contains(msg, "recipient=+5255") {
		t.Fatalf("attrs missing: %q", msg)
	}

	// Non-JSON input falls back to the raw line.
	if got := formatAlertJSON([]byte("plain text")); got != "plain text" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger // zero value
	l.Info("ignored", String("k", "v"))
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	n := Nop()
	n.Error("ignored", Err(nil))
	if n.IsZero() {
		t.Fatal("Nop logger is usable, not zero")
	}
}
