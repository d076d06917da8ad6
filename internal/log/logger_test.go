package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerStampsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: slog.LevelInfo}).WithComponent(ComponentRates)

	logger.Info("fetched", FieldRecords, 3)

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=rates") {
		t.Fatalf("unexpected component stamping: %s", out)
	}
	if !strings.Contains(out, "records=3") {
		t.Fatalf("missing attribute: %s", out)
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))

	sl.LogError(context.Background(), "import failed", errors.New("boom"), ComponentLedger, OpImport, NewFields().WithImport(7, 0, "csv"))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=import", "component=ledger", "import_id=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}
	logger := Discard().WithComponent(ComponentGoal)
	if got := FromContext(NewContext(context.Background(), logger)); got.Component() != ComponentGoal {
		t.Fatalf("component = %s", got.Component())
	}
}
